package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmau0/riobutcher/internal/store"
	"github.com/jmau0/riobutcher/internal/transcript"
)

type HourBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

type Summary struct {
	TotalLeads   int          `json:"total_leads"`
	UrgentLeads  int          `json:"urgent_leads"`
	HumanOwned   int          `json:"human_owned"`
	AIOwned      int          `json:"ai_owned"`
	AIEfficiency float64      `json:"ai_efficiency"`
	TurnsByHour  []HourBucket `json:"turns_by_hour"`
	GeneratedAt  string       `json:"generated_at"`
}

// MetricsService computes the dashboard cards and the per-hour chart.
type MetricsService struct {
	store    Store
	location *time.Location
	clock    transcript.Clock
}

func NewMetricsService(s Store, location *time.Location) *MetricsService {
	if location == nil {
		location = time.Local
	}
	return &MetricsService{store: s, location: location, clock: time.Now}
}

// Summary counts leads by ownership and the visible turns of the last 24
// hours per hour of day.
func (s *MetricsService) Summary(ctx context.Context) (*Summary, error) {
	now := s.clock()

	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients for metrics: %w", err)
	}

	summary := &Summary{
		TotalLeads:  len(clients),
		TurnsByHour: make([]HourBucket, 24),
		GeneratedAt: transcript.FormatTimestamp(now),
	}
	for _, c := range clients {
		if c.IsUrgent() {
			summary.UrgentLeads++
		}
		if c.Attendance == store.AttendanceHuman {
			summary.HumanOwned++
		} else {
			summary.AIOwned++
		}
	}
	if summary.TotalLeads > 0 {
		pct := float64(summary.AIOwned) / float64(summary.TotalLeads) * 100
		summary.AIEfficiency = math.Round(pct*10) / 10
	}

	for h := range summary.TurnsByHour {
		summary.TurnsByHour[h].Hour = fmt.Sprintf("%02dh", h)
	}

	rows, err := s.store.ListHistorySince(ctx, now.Add(-24*time.Hour), transcript.ParseTimestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for metrics: %w", err)
	}
	for _, rec := range ToRecords(rows) {
		if transcript.CleanMessage(rec.Message) == "" {
			continue
		}
		t, ok := transcript.ParseTimestamp(rec.CreatedAt)
		if !ok {
			continue
		}
		summary.TurnsByHour[t.In(s.location).Hour()].Count++
	}
	return summary, nil
}
