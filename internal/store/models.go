package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Attendance values stored in clients.attendance.
const (
	AttendanceHuman = "human"
	AttendanceAI    = "ia"
)

type Client struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Attendance string    `json:"attendance"` // "human" or "ia"
	Urgent     string    `json:"urgent"`     // boolean-like, written by the automation
	CreatedAt  time.Time `json:"created_at"`
}

// IsUrgent accepts the boolean-like spellings the automation writes.
func (c Client) IsUrgent() bool {
	switch strings.ToLower(strings.TrimSpace(c.Urgent)) {
	case "true", "1", "t", "yes", "sim":
		return true
	}
	return false
}

// HistoryRecord is one row of message_history. Message holds the column
// verbatim: a JSON document or plain text.
type HistoryRecord struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role,omitempty"`
	Message   json.RawMessage `json:"message"`
	CreatedAt string          `json:"created_at,omitempty"`
}
