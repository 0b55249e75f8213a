package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type User struct {
	ID          int64
	Name        string
	Email       string
	PhoneNumber string
	Address     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Ticket struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Category    string
	Status      string // "open", "in_progress", "resolved"
	Priority    string // "low", "medium", "high"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type FAQDoc struct {
	ID        int64
	Question  string
	Answer    string
	Category  string
	CreatedAt time.Time
}

type TicketLog struct {
	ID        int64
	TicketID  int64
	Action    string // "created", "updated", "resolved"
	OldValue  string
	NewValue  string
	CreatedAt time.Time
}

type ChatMessage struct {
	ID        int64
	UserID    int64
	SessionID string
	Role      string // "user", "assistant"
	Message   string
	CreatedAt time.Time
}

// Counts reports per-table row counts for status reporting.
type Counts struct {
	Users   int
	Tickets int
	FAQDocs int
}
