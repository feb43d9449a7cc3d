package transcript

import (
	"strconv"
	"strings"
	"time"
)

// isoLayout matches the millisecond UTC timestamps the dashboard renders.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// timestampLayouts are accepted when reading stored created_at values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Clock supplies the fallback time for records without created_at.
type Clock func() time.Time

// Record is one row of the message history as the normalizer sees it.
type Record struct {
	ID        int64
	SessionID string
	Role      string
	Message   Payload
	CreatedAt string
}

// Turn is a display-ready chat turn. Empty Content means suppressed.
type Turn struct {
	ID        string `json:"id" yaml:"id"`
	Role      Role   `json:"role" yaml:"role"`
	Content   string `json:"content" yaml:"content"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

// Visible reports whether the turn should be rendered.
func (t Turn) Visible() bool {
	return strings.TrimSpace(t.Content) != ""
}

// Time parses CreatedAt. The boolean is false for unparseable values.
func (t Turn) Time() (time.Time, bool) {
	return ParseTimestamp(t.CreatedAt)
}

// Normalize maps one record to exactly one turn.
func Normalize(rec Record, now Clock) Turn {
	createdAt := rec.CreatedAt
	if createdAt == "" {
		if now == nil {
			now = time.Now
		}
		createdAt = FormatTimestamp(now())
	}
	return Turn{
		ID:        strconv.FormatInt(rec.ID, 10),
		Role:      ResolveRole(rec.Role, rec.Message),
		Content:   CleanMessage(rec.Message),
		CreatedAt: createdAt,
	}
}

// Assemble normalizes records already ordered by ascending id and drops the
// suppressed turns. Input order is kept.
func Assemble(records []Record, now Clock) []Turn {
	turns := make([]Turn, 0, len(records))
	for _, rec := range records {
		turns = append(turns, Normalize(rec, now))
	}
	return Visible(turns)
}

// Visible filters out turns with empty or whitespace-only content.
func Visible(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Visible() {
			out = append(out, t)
		}
	}
	return out
}

// FormatTimestamp renders t as an ISO-8601 UTC string with milliseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// ParseTimestamp reads the timestamp formats found in the history table.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
