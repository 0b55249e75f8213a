package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bfiber/helpdesk/internal/faq"
	"github.com/bfiber/helpdesk/internal/storage"
)

// AppDeps holds dependencies for the admin HTTP surface.
type AppDeps struct {
	Store  *storage.Store
	Syncer FAQSyncer
	Index  FAQIndex
}

// NewAppHandler builds the admin router: health, FAQ sync trigger, and a
// ticket listing for operators. The MCP transport is mounted separately.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Post("/faq/sync", handleFAQSync(deps))
	r.Get("/tickets", handleListTickets(deps))

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Store.RowCounts()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "database unavailable: %v", err)
			return
		}
		vectors, err := deps.Index.Count()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "vector store unavailable: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"users":       counts.Users,
			"tickets":     counts.Tickets,
			"faq_docs":    counts.FAQDocs,
			"faq_vectors": vectors,
		})
	}
}

func handleFAQSync(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Syncer.Sync(r.Context())
		if errors.Is(err, faq.ErrNoData) {
			writeJSON(w, http.StatusOK, map[string]int{"synced": 0})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "FAQ sync failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"synced": n})
	}
}

func handleListTickets(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required and must be an integer")
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			if limit > 100 {
				limit = 100
			}
		}

		tickets, err := deps.Store.ListTickets(userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing tickets: %v", err)
			return
		}

		type ticketJSON struct {
			ID        int64  `json:"id"`
			UserID    int64  `json:"user_id"`
			Title     string `json:"title"`
			Category  string `json:"category"`
			Status    string `json:"status"`
			Priority  string `json:"priority"`
			CreatedAt string `json:"created_at"`
		}
		out := make([]ticketJSON, len(tickets))
		for i, t := range tickets {
			out[i] = ticketJSON{
				ID:        t.ID,
				UserID:    t.UserID,
				Title:     t.Title,
				Category:  t.Category,
				Status:    t.Status,
				Priority:  t.Priority,
				CreatedAt: t.CreatedAt.Format(time.RFC3339),
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
