package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned when a client row does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db      *sql.DB
	changes *ChangeFeed
}

// NewSQLiteStore opens the database and creates the schema. Row changes are
// published on feed; a nil feed gets a private one.
func NewSQLiteStore(dataSourceName string, feed *ChangeFeed) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// A single connection keeps in-memory databases consistent across calls.
	db.SetMaxOpenConns(1)

	if feed == nil {
		feed = NewChangeFeed(nil)
	}
	store := &SQLiteStore{db: db, changes: feed}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Changes returns the feed row changes are published on.
func (s *SQLiteStore) Changes() *ChangeFeed {
	return s.changes
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS clients (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT UNIQUE NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        phone TEXT NOT NULL DEFAULT '',
        attendance TEXT NOT NULL DEFAULT 'ia',
        urgent TEXT NOT NULL DEFAULT 'false',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS message_history (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        message TEXT,
        role TEXT,
        created_at TEXT
    );

    CREATE INDEX IF NOT EXISTS idx_message_history_session ON message_history (session_id, id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Client methods
func (s *SQLiteStore) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, session_id, name, phone, attendance, urgent, created_at FROM clients WHERE session_id != '' ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Name, &c.Phone, &c.Attendance, &c.Urgent, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client row: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate client rows: %w", err)
	}
	return clients, nil
}

func (s *SQLiteStore) GetClient(ctx context.Context, sessionID string) (*Client, error) {
	var c Client
	err := s.db.QueryRowContext(ctx, "SELECT id, session_id, name, phone, attendance, urgent, created_at FROM clients WHERE session_id = ?", sessionID).
		Scan(&c.ID, &c.SessionID, &c.Name, &c.Phone, &c.Attendance, &c.Urgent, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &c, nil
}

// UpsertClient inserts the client or updates the row with the same session.
func (s *SQLiteStore) UpsertClient(ctx context.Context, c *Client) error {
	if c.SessionID == "" {
		return fmt.Errorf("client session_id is required")
	}
	if c.Attendance == "" {
		c.Attendance = AttendanceAI
	}
	if c.Urgent == "" {
		c.Urgent = "false"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin client upsert: %w", err)
	}
	defer tx.Rollback()

	op := OpUpdate
	err = tx.QueryRowContext(ctx, "SELECT id FROM clients WHERE session_id = ?", c.SessionID).Scan(&c.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		op = OpInsert
		c.CreatedAt = time.Now()
		res, err := tx.ExecContext(ctx, "INSERT INTO clients (session_id, name, phone, attendance, urgent, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			c.SessionID, c.Name, c.Phone, c.Attendance, c.Urgent, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert client: %w", err)
		}
		c.ID, _ = res.LastInsertId()
	case err != nil:
		return fmt.Errorf("failed to look up client: %w", err)
	default:
		_, err = tx.ExecContext(ctx, "UPDATE clients SET name = ?, phone = ?, attendance = ?, urgent = ? WHERE id = ?",
			c.Name, c.Phone, c.Attendance, c.Urgent, c.ID)
		if err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client upsert: %w", err)
	}
	s.changes.Publish(Change{Table: TableClients, Op: op, SessionID: c.SessionID})
	return nil
}

func (s *SQLiteStore) SetAttendance(ctx context.Context, sessionID, attendance string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE clients SET attendance = ? WHERE session_id = ?", attendance, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update attendance: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	s.changes.Publish(Change{Table: TableClients, Op: OpUpdate, SessionID: sessionID})
	return nil
}

// DeleteClient removes the client and its whole message history.
func (s *SQLiteStore) DeleteClient(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin client delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM message_history WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM clients WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client delete: %w", err)
	}
	s.changes.Publish(Change{Table: TableClients, Op: OpDelete, SessionID: sessionID})
	return nil
}

func (s *SQLiteStore) CountClients(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clients").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return n, nil
}

// History methods
func (s *SQLiteStore) InsertHistory(ctx context.Context, rec *HistoryRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("history session_id is required")
	}
	res, err := s.db.ExecContext(ctx, "INSERT INTO message_history (session_id, message, role, created_at) VALUES (?, ?, ?, ?)",
		rec.SessionID, nullIfEmpty(string(rec.Message)), nullIfEmpty(rec.Role), nullIfEmpty(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	rec.ID, _ = res.LastInsertId()

	inserted := *rec
	s.changes.Publish(Change{Table: TableHistory, Op: OpInsert, SessionID: rec.SessionID, History: &inserted})
	return nil
}

// ListHistory returns a conversation in ascending id order.
func (s *SQLiteStore) ListHistory(ctx context.Context, sessionID string) ([]HistoryRecord, error) {
	return s.queryHistory(ctx, "SELECT id, session_id, message, role, created_at FROM message_history WHERE session_id = ? ORDER BY id ASC", sessionID)
}

// LastHistory returns the newest record of a conversation, or nil when the
// conversation has none.
func (s *SQLiteStore) LastHistory(ctx context.Context, sessionID string) (*HistoryRecord, error) {
	records, err := s.queryHistory(ctx, "SELECT id, session_id, message, role, created_at FROM message_history WHERE session_id = ? ORDER BY id DESC LIMIT 1", sessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ListHistorySince returns timestamped records created at or after since.
// created_at is free-form text, so the filter runs after the query.
func (s *SQLiteStore) ListHistorySince(ctx context.Context, since time.Time, parse func(string) (time.Time, bool)) ([]HistoryRecord, error) {
	records, err := s.queryHistory(ctx, "SELECT id, session_id, message, role, created_at FROM message_history WHERE created_at IS NOT NULL ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if t, ok := parse(rec.CreatedAt); ok && !t.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *SQLiteStore) queryHistory(ctx context.Context, query string, args ...any) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var message, role, createdAt sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &message, &role, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if message.Valid {
			rec.Message = []byte(message.String)
		}
		rec.Role = role.String
		rec.CreatedAt = createdAt.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return records, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
