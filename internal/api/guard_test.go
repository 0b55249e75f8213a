package api

import "testing"

func TestIsDeleteStatement(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"DELETE FROM tickets", true},
		{"delete from tickets", true},
		{"DeLeTe FROM tickets WHERE id = 1", true},
		{"  \t\nDELETE FROM users", true},
		{"DELETED_ROWS()", true}, // prefix match, intentionally coarse
		{"SELECT * FROM tickets", false},
		{"UPDATE tickets SET status = 'closed'", false},
		{"", false},
		{"DEL", false},
	}
	for _, tt := range tests {
		if got := isDeleteStatement(tt.query); got != tt.want {
			t.Errorf("isDeleteStatement(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestIsSelectStatement(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM users", true},
		{"select id from tickets", true},
		{"  SELECT 1", true},
		{"INSERT INTO users VALUES (1)", false},
		{"WITH x AS (SELECT 1) SELECT * FROM x", false},
	}
	for _, tt := range tests {
		if got := isSelectStatement(tt.query); got != tt.want {
			t.Errorf("isSelectStatement(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestValidValue(t *testing.T) {
	if !validValue(validCategories, "billing") {
		t.Error("billing should be a valid category")
	}
	if validValue(validCategories, "Billing") {
		t.Error("category matching is case sensitive")
	}
	if validValue(validPriorities, "") {
		t.Error("empty priority should be invalid")
	}
}

func TestRenderRows(t *testing.T) {
	got := renderRows(
		[]string{"id", "name"},
		[][]string{{"1", "Budi"}, {"2", "NULL"}},
	)
	want := "id | name\n1 | Budi\n2 | NULL"
	if got != want {
		t.Errorf("renderRows = %q, want %q", got, want)
	}
}

func TestRenderRowsHeaderOnly(t *testing.T) {
	got := renderRows([]string{"id"}, nil)
	if got != "id" {
		t.Errorf("renderRows = %q, want header only", got)
	}
}
