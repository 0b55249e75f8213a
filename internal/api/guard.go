package api

import "strings"

// Fixed vocabularies for ticket creation. Order matters: it is the order the
// values appear in error messages the calling agent parses.
var (
	validCategories = []string{"technical support", "billing", "account management", "retention & experience"}
	validPriorities = []string{"low", "medium", "high"}
	validRoles      = []string{"user", "assistant"}
)

func validValue(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// isDeleteStatement reports whether the trimmed, case-normalized query text
// starts with DELETE. This is a prefix blocklist, not a SQL parser: it does
// not catch UPDATE/INSERT against protected tables or multi-statement
// payloads. The remaining policy lives in the agent instructions.
func isDeleteStatement(query string) bool {
	return hasPrefixFold(query, "DELETE")
}

// isSelectStatement reports whether the query should be run as a read and its
// rows rendered, rather than executed for an affected-row count.
func isSelectStatement(query string) bool {
	return hasPrefixFold(query, "SELECT")
}

func hasPrefixFold(query, prefix string) bool {
	trimmed := strings.TrimSpace(query)
	return len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix)
}

// renderRows formats a result set as text: a header line of column names,
// then one line per row, fields separated by " | ".
func renderRows(cols []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	for _, row := range rows {
		b.WriteByte('\n')
		b.WriteString(strings.Join(row, " | "))
	}
	return b.String()
}
