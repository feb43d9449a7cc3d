package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jmau0/riobutcher/internal/automation"
	"github.com/jmau0/riobutcher/internal/store"
	"github.com/jmau0/riobutcher/internal/transcript"
)

const (
	TabAll    = "todos"
	TabUrgent = "urgentes"

	emptyConversationText = "Iniciar conversa"
)

var ErrLeadNotFound = errors.New("lead not found")

type Lead struct {
	SessionID   string `json:"session_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	LastMessage string `json:"last_message"`
	LastTime    string `json:"last_time"`
	AgentPaused bool   `json:"agent_paused"`
	Urgent      bool   `json:"urgent"`
	Unread      int    `json:"unread"`
}

type LeadFilter struct {
	Tab    string
	Search string
}

// LeadService keeps the conversation list shown in the sidebar. The list is
// the last successful fetch; optimistic pause toggles are applied on top of
// it until the next refresh reconciles with storage.
type LeadService struct {
	store      Store
	automation Automation
	logger     *slog.Logger

	mu     sync.RWMutex
	leads  []Lead
	loaded bool
}

func NewLeadService(s Store, a Automation, logger *slog.Logger) *LeadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadService{store: s, automation: a, logger: logger}
}

// Refresh rebuilds the list from storage. On failure the previous list stays
// in place.
func (s *LeadService) Refresh(ctx context.Context) ([]Lead, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		s.logger.Error("failed to fetch leads", "err", err)
		return s.snapshot(), fmt.Errorf("failed to fetch leads: %w", err)
	}

	leads := make([]Lead, 0, len(clients))
	for _, c := range clients {
		lead := leadFromClient(c)
		last, err := s.store.LastHistory(ctx, c.SessionID)
		if err != nil {
			s.logger.Warn("failed to fetch last message", "session_id", c.SessionID, "err", err)
		} else if last != nil {
			if text := transcript.CleanMessage(transcript.ParsePayload(last.Message)); text != "" {
				lead.LastMessage = text
			}
			if t, ok := transcript.ParseTimestamp(last.CreatedAt); ok {
				lead.LastTime = t.Local().Format("15:04")
			}
		}
		leads = append(leads, lead)
	}

	s.mu.Lock()
	s.leads = leads
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("leads refreshed", "count", len(leads))
	return s.snapshot(), nil
}

func leadFromClient(c store.Client) Lead {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		suffix := "????"
		if len(c.SessionID) >= 4 {
			suffix = c.SessionID[len(c.SessionID)-4:]
		} else if c.SessionID != "" {
			suffix = c.SessionID
		}
		name = "Cliente " + suffix
	}
	phone := c.Phone
	if phone == "" {
		phone = c.SessionID
	}
	return Lead{
		SessionID:   c.SessionID,
		Name:        name,
		Phone:       phone,
		LastMessage: emptyConversationText,
		AgentPaused: c.Attendance == store.AttendanceHuman,
		Urgent:      c.IsUrgent(),
	}
}

// Leads returns the cached list narrowed by tab and search text.
func (s *LeadService) Leads(filter LeadFilter) []Lead {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]Lead, 0)
	for _, l := range s.snapshot() {
		if filter.Tab == TabUrgent && !l.Urgent {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Name), search) && !strings.Contains(l.Phone, search) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Loaded reports whether at least one refresh succeeded.
func (s *LeadService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *LeadService) Lead(sessionID string) (Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leads {
		if l.SessionID == sessionID {
			return l, true
		}
	}
	return Lead{}, false
}

func (s *LeadService) UrgentCount() int {
	n := 0
	for _, l := range s.snapshot() {
		if l.Urgent {
			n++
		}
	}
	return n
}

// TogglePause applies the new ownership locally, then notifies the workflow.
// A webhook failure is returned but the local change is kept; the next
// refresh shows what the workflow actually stored.
func (s *LeadService) TogglePause(ctx context.Context, sessionID string, paused bool) (Lead, error) {
	s.mu.Lock()
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		s.mu.Unlock()
		return Lead{}, ErrLeadNotFound
	}
	s.leads[idx].AgentPaused = paused
	lead := s.leads[idx]
	s.mu.Unlock()

	resp, err := s.automation.SetAttendance(ctx, automation.AttendanceRequest{
		SessionID:  lead.SessionID,
		ClientName: lead.Name,
		Phone:      lead.Phone,
		Paused:     paused,
	})
	if err != nil {
		s.logger.Error("attendance webhook failed", "session_id", sessionID, "paused", paused, "err", err)
		return lead, err
	}
	if resp != nil {
		if data, ok := resp.JSON.(map[string]any); ok {
			if clientID, ok := data["client_id"]; ok {
				s.logger.Debug("attendance webhook acknowledged", "session_id", sessionID, "client_id", clientID)
			}
		}
	}
	return lead, nil
}

// Delete removes a lead through the workflow. The local list only changes
// after the workflow confirms.
func (s *LeadService) Delete(ctx context.Context, sessionID string) error {
	lead, ok := s.Lead(sessionID)
	if !ok {
		return ErrLeadNotFound
	}

	err := s.automation.DeleteLead(ctx, automation.DeleteRequest{
		SessionID:  lead.SessionID,
		ClientName: lead.Name,
		Phone:      lead.Phone,
	})
	if err != nil {
		s.logger.Error("delete webhook failed", "session_id", sessionID, "err", err)
		return err
	}

	s.mu.Lock()
	if idx := s.indexLocked(sessionID); idx >= 0 {
		s.leads = append(s.leads[:idx], s.leads[idx+1:]...)
	}
	s.mu.Unlock()
	s.logger.Info("lead deleted", "session_id", sessionID)
	return nil
}

// Watch refreshes the list on every change to the clients table until ctx
// is done.
func (s *LeadService) Watch(ctx context.Context) {
	sub := s.store.Changes().Subscribe(store.TableClients, "")
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.C:
			if !ok {
				s.logger.Warn("clients change feed closed")
				return
			}
			s.logger.Debug("clients changed", "op", change.Op, "session_id", change.SessionID)
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("refresh after change failed", "err", err)
			}
		}
	}
}

func (s *LeadService) snapshot() []Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Lead(nil), s.leads...)
}

func (s *LeadService) indexLocked(sessionID string) int {
	for i, l := range s.leads {
		if l.SessionID == sessionID {
			return i
		}
	}
	return -1
}
