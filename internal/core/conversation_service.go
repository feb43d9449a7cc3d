package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmau0/riobutcher/internal/automation"
	"github.com/jmau0/riobutcher/internal/transcript"
)

var ErrEmptyMessage = errors.New("message content cannot be empty")

type ConversationService struct {
	store      Store
	automation Automation
	leads      *LeadService
	logger     *slog.Logger
	clock      transcript.Clock
}

func NewConversationService(s Store, a Automation, leads *LeadService, logger *slog.Logger) *ConversationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationService{
		store:      s,
		automation: a,
		leads:      leads,
		logger:     logger,
		clock:      time.Now,
	}
}

// History returns the visible transcript of a conversation.
func (s *ConversationService) History(ctx context.Context, sessionID string) ([]transcript.Turn, error) {
	rows, err := s.store.ListHistory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", sessionID, err)
	}
	return transcript.Assemble(ToRecords(rows), s.clock), nil
}

// Send builds the optimistic echo of an operator message and asks the
// workflow to deliver it. The echo is returned even when the webhook fails;
// that error is returned alongside it.
func (s *ConversationService) Send(ctx context.Context, sessionID, text string) (transcript.Turn, error) {
	echo, err := s.Echo(sessionID, text)
	if err != nil {
		return transcript.Turn{}, err
	}
	return echo, s.Deliver(ctx, sessionID, echo)
}

// Echo builds the optimistic local turn for an operator message without
// sending it.
func (s *ConversationService) Echo(sessionID, text string) (transcript.Turn, error) {
	content := strings.TrimSpace(text)
	if content == "" || sessionID == "" {
		return transcript.Turn{}, ErrEmptyMessage
	}
	return transcript.Turn{
		ID:        "local-" + uuid.NewString(),
		Role:      transcript.RoleAssistant,
		Content:   content,
		CreatedAt: transcript.FormatTimestamp(s.clock()),
	}, nil
}

// Deliver fires the send webhook for an echo built by Echo.
func (s *ConversationService) Deliver(ctx context.Context, sessionID string, echo transcript.Turn) error {
	var clientName string
	if s.leads != nil {
		if lead, ok := s.leads.Lead(sessionID); ok {
			clientName = lead.Name
		}
	}

	_, err := s.automation.SendMessage(ctx, automation.SendRequest{
		SessionID:  sessionID,
		ClientName: clientName,
		Message:    echo.Content,
	})
	if err != nil {
		s.logger.Error("send webhook failed", "session_id", sessionID, "err", err)
		return err
	}
	return nil
}

// GeneratePairingQR requests a WhatsApp pairing QR code for instance.
func (s *ConversationService) GeneratePairingQR(ctx context.Context, instance string) (string, error) {
	qr, err := s.automation.GenerateQR(ctx, instance)
	if err != nil {
		s.logger.Error("qr webhook failed", "instance", instance, "err", err)
		return "", err
	}
	return qr, nil
}
