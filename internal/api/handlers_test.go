package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bfiber/helpdesk/internal/faq"
	"github.com/bfiber/helpdesk/internal/retrieval"
	"github.com/bfiber/helpdesk/internal/storage"
)

func newTestAppHandler(t *testing.T) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	vectors := retrieval.NewSQLiteStore(store.DB())
	syncer := faq.NewSyncer(store, fakeEmbedder{}, vectors)

	return NewAppHandler(AppDeps{Store: store, Syncer: syncer, Index: vectors}), store
}

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, store := newTestAppHandler(t)
	seedUser(t, store)

	rec := doRequest(t, h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["users"] != float64(1) {
		t.Errorf("users = %v, want 1", body["users"])
	}
}

func TestFAQSyncEndpoint(t *testing.T) {
	h, store := newTestAppHandler(t)

	// Empty table reports zero synced rather than an error.
	rec := doRequest(t, h, http.MethodPost, "/faq/sync")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["synced"] != 0 {
		t.Errorf("synced = %d, want 0", body["synced"])
	}

	if _, err := store.AddFAQDoc(storage.FAQDoc{Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("adding FAQ doc: %v", err)
	}
	rec = doRequest(t, h, http.MethodPost, "/faq/sync")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["synced"] != 1 {
		t.Errorf("synced = %d, want 1", body["synced"])
	}
}

func TestListTicketsEndpoint(t *testing.T) {
	h, store := newTestAppHandler(t)
	userID := seedUser(t, store)
	if _, err := store.CreateTicket(storage.Ticket{
		UserID: userID, Title: "No internet", Description: "d",
		Category: "technical support", Priority: "high",
	}); err != nil {
		t.Fatalf("creating ticket: %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/tickets?user_id=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var tickets []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &tickets); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("got %d tickets, want 1", len(tickets))
	}
	if tickets[0]["title"] != "No internet" || tickets[0]["status"] != "open" {
		t.Errorf("ticket = %v", tickets[0])
	}
}

func TestListTicketsRequiresUserID(t *testing.T) {
	h, _ := newTestAppHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/tickets")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"]["type"] != "invalid_request_error" {
		t.Errorf("error type = %v, want invalid_request_error", body["error"]["type"])
	}
}

func TestListTicketsRejectsBadLimit(t *testing.T) {
	h, _ := newTestAppHandler(t)

	for _, target := range []string{"/tickets?user_id=1&limit=0", "/tickets?user_id=1&limit=x"} {
		rec := doRequest(t, h, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}
