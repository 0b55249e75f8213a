package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for users, tickets, FAQ docs,
// ticket logs, and chat history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "helpdesk.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for components that share the database,
// such as the vector store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Users ---

// CreateUser inserts a new user and returns its assigned ID.
// No uniqueness pre-check is performed; the schema's own constraints apply.
func (s *Store) CreateUser(u User) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT INTO users (name, email, phone_number, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.PhoneNumber, u.Address, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FindUsers returns all users whose email OR phone number matches.
// Multiple matches are possible; callers decide how to disambiguate.
func (s *Store) FindUsers(email, phoneNumber string) ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, name, email, phone_number, address, created_at, updated_at
		FROM users WHERE email = ? OR phone_number = ?
		ORDER BY id ASC`,
		email, phoneNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// UserExists reports whether a user with the given ID is present.
func (s *Store) UserExists(id int64) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanUser(rows *sql.Rows) (User, error) {
	var u User
	var createdAt, updatedAt string
	if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.Address, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	var err error
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return User{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return u, nil
}

// --- Tickets ---

// CreateTicket inserts a new ticket with status forced to "open" and
// created_at equal to updated_at, and records a "created" entry in
// ticket_logs within the same transaction. It does not verify the referenced
// user; callers check existence first.
func (s *Store) CreateTicket(t Ticket) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning ticket transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO tickets (user_id, title, description, category, status, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'open', ?, ?, ?)`,
		t.UserID, t.Title, t.Description, t.Category, t.Priority, now, now,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
		INSERT INTO ticket_logs (ticket_id, action, old_value, new_value, created_at)
		VALUES (?, 'created', '', 'open', ?)`,
		id, now,
	); err != nil {
		return 0, fmt.Errorf("recording ticket log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing ticket: %w", err)
	}
	return id, nil
}

// GetTicket returns a single ticket by ID.
func (s *Store) GetTicket(id int64) (Ticket, error) {
	var t Ticket
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, title, description, category, status, priority, created_at, updated_at
		FROM tickets WHERE id = ?`, id,
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Category, &t.Status, &t.Priority, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Ticket{}, ErrNotFound
	}
	if err != nil {
		return Ticket{}, err
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Ticket{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Ticket{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return t, nil
}

// ListTickets returns the most recent tickets for a user.
func (s *Store) ListTickets(userID int64, limit int) ([]Ticket, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, description, category, status, priority, created_at, updated_at
		FROM tickets WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Ticket
	for rows.Next() {
		var t Ticket
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Category, &t.Status, &t.Priority, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if t.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// ListTicketLogs returns all log entries for a ticket in insertion order.
func (s *Store) ListTicketLogs(ticketID int64) ([]TicketLog, error) {
	rows, err := s.db.Query(`
		SELECT id, ticket_id, action, old_value, new_value, created_at
		FROM ticket_logs WHERE ticket_id = ? ORDER BY id ASC`,
		ticketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TicketLog
	for rows.Next() {
		var l TicketLog
		var createdAt string
		if err := rows.Scan(&l.ID, &l.TicketID, &l.Action, &l.OldValue, &l.NewValue, &createdAt); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

// --- FAQ docs ---

// ListFAQDocs returns all FAQ rows in stable ID order. The vector sync keys
// its upserts on row position, so this ordering must not change between calls
// against an unchanged table.
func (s *Store) ListFAQDocs() ([]FAQDoc, error) {
	rows, err := s.db.Query(`
		SELECT id, question, answer, category, created_at
		FROM faq_docs ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FAQDoc
	for rows.Next() {
		var d FAQDoc
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Question, &d.Answer, &d.Category, &createdAt); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// AddFAQDoc inserts a FAQ row. Used by tests and admin seeding.
func (s *Store) AddFAQDoc(d FAQDoc) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT INTO faq_docs (question, answer, category, created_at)
		VALUES (?, ?, ?, ?)`,
		d.Question, d.Answer, d.Category, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// --- Chat history ---

// SaveChatMessage appends a message to the chat history.
func (s *Store) SaveChatMessage(m ChatMessage) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO chat_history (user_id, session_id, role, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.UserID, m.SessionID, m.Role, m.Message, now,
	)
	return err
}

// RecentChatMessages returns the most recent messages for a session, oldest first.
func (s *Store) RecentChatMessages(sessionID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, session_id, role, message, created_at
		FROM (
			SELECT id, user_id, session_id, role, message, created_at
			FROM chat_history WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.Role, &m.Message, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- Raw queries ---

// RawQuery runs an arbitrary read statement and returns column names plus all
// rows rendered as strings. NULL values render as "NULL".
func (s *Store) RawQuery(query string) ([]string, [][]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		rendered := make([]string, len(cols))
		for i, v := range vals {
			rendered[i] = renderValue(v)
		}
		out = append(out, rendered)
	}
	return cols, out, rows.Err()
}

// RawExec runs an arbitrary write statement and returns the affected row count.
func (s *Store) RawExec(query string) (int64, error) {
	res, err := s.db.Exec(query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// --- Counts ---

// RowCounts returns per-table row counts for users, tickets, and faq_docs.
func (s *Store) RowCounts() (Counts, error) {
	var c Counts
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&c.Users); err != nil {
		return Counts{}, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tickets").Scan(&c.Tickets); err != nil {
		return Counts{}, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM faq_docs").Scan(&c.FAQDocs); err != nil {
		return Counts{}, err
	}
	return c, nil
}
