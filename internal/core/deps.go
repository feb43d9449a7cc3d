package core

import (
	"context"
	"time"

	"github.com/jmau0/riobutcher/internal/automation"
	"github.com/jmau0/riobutcher/internal/store"
	"github.com/jmau0/riobutcher/internal/transcript"
)

// Store is the storage handle the services share. *store.SQLiteStore
// satisfies it.
type Store interface {
	ListClients(ctx context.Context) ([]store.Client, error)
	GetClient(ctx context.Context, sessionID string) (*store.Client, error)
	ListHistory(ctx context.Context, sessionID string) ([]store.HistoryRecord, error)
	LastHistory(ctx context.Context, sessionID string) (*store.HistoryRecord, error)
	ListHistorySince(ctx context.Context, since time.Time, parse func(string) (time.Time, bool)) ([]store.HistoryRecord, error)
	Ping(ctx context.Context) error
	Changes() *store.ChangeFeed
}

// Automation is the outbound workflow client. *automation.Client satisfies it.
type Automation interface {
	SetAttendance(ctx context.Context, req automation.AttendanceRequest) (*automation.Response, error)
	DeleteLead(ctx context.Context, req automation.DeleteRequest) error
	SendMessage(ctx context.Context, req automation.SendRequest) (*automation.Response, error)
	GenerateQR(ctx context.Context, instance string) (string, error)
}

// ToRecord converts a stored history row for the normalizer.
func ToRecord(h store.HistoryRecord) transcript.Record {
	return transcript.Record{
		ID:        h.ID,
		SessionID: h.SessionID,
		Role:      h.Role,
		Message:   transcript.ParsePayload(h.Message),
		CreatedAt: h.CreatedAt,
	}
}

// ToRecords converts rows keeping their order.
func ToRecords(rows []store.HistoryRecord) []transcript.Record {
	records := make([]transcript.Record, 0, len(rows))
	for _, h := range rows {
		records = append(records, ToRecord(h))
	}
	return records
}

// StorageStatus reports "connected" or "error" for the connectivity badge.
func StorageStatus(ctx context.Context, s Store) string {
	if err := s.Ping(ctx); err != nil {
		return "error"
	}
	return "connected"
}
