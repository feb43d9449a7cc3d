package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmau0/riobutcher/internal/store"
	"github.com/jmau0/riobutcher/internal/transcript"
)

// ConversationView is the transcript one dashboard client has open. Only
// one conversation is materialized at a time; selecting another one drops
// the previous push subscription before the new one is opened.
type ConversationView struct {
	store  Store
	live   *transcript.Live
	logger *slog.Logger
	clock  transcript.Clock
	onTurn func(transcript.Turn)

	mu   sync.Mutex
	sub  *store.Subscription
	done chan struct{}
}

// NewConversationView creates a view. onTurn receives every pushed turn that
// survives duplicate suppression and is visible; it may be nil.
func NewConversationView(s Store, dedupeWindow time.Duration, logger *slog.Logger, onTurn func(transcript.Turn)) *ConversationView {
	if logger == nil {
		logger = slog.Default()
	}
	if onTurn == nil {
		onTurn = func(transcript.Turn) {}
	}
	return &ConversationView{
		store:  s,
		live:   transcript.NewLive(dedupeWindow),
		logger: logger,
		clock:  time.Now,
		onTurn: onTurn,
	}
}

// Select switches the view to sessionID and returns its visible turns.
// Re-selecting the same conversation acts as a refresh: if the fetch fails
// the turns already on screen are kept. A fetch failure while switching
// leaves the new conversation empty but still subscribed.
func (v *ConversationView) Select(ctx context.Context, sessionID string) ([]transcript.Turn, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.stopLocked()

	// Subscribe before fetching so inserts racing the fetch are buffered;
	// the ones the fetch already returned are dropped as duplicates.
	sub := v.store.Changes().Subscribe(store.TableHistory, sessionID)

	rows, err := v.store.ListHistory(ctx, sessionID)
	switch {
	case err != nil && v.live.Session() == sessionID:
		v.logger.Warn("history refresh failed, keeping current transcript", "session_id", sessionID, "err", err)
	case err != nil:
		v.logger.Warn("history fetch failed", "session_id", sessionID, "err", err)
		v.live.Reset(sessionID, nil)
	default:
		turns := make([]transcript.Turn, 0, len(rows))
		for _, rec := range ToRecords(rows) {
			turns = append(turns, transcript.Normalize(rec, v.clock))
		}
		v.live.Reset(sessionID, turns)
	}

	done := make(chan struct{})
	v.sub = sub
	v.done = done
	go v.consume(sub, sessionID, done)

	return v.live.Turns(), err
}

func (v *ConversationView) consume(sub *store.Subscription, sessionID string, done chan struct{}) {
	defer close(done)
	for change := range sub.C {
		if change.Op != store.OpInsert || change.History == nil {
			continue
		}
		turn := transcript.Normalize(ToRecord(*change.History), v.clock)
		if v.live.Session() != sessionID {
			continue
		}
		if !v.live.Push(turn) {
			v.logger.Debug("duplicate pushed message ignored", "session_id", sessionID, "id", turn.ID)
			continue
		}
		if turn.Visible() {
			v.onTurn(turn)
		}
	}
}

// SendLocal appends an optimistic echo to the open conversation. It returns
// false when the stored copy of the message was already pushed.
func (v *ConversationView) SendLocal(turn transcript.Turn) bool {
	if !v.live.AppendLocal(turn) {
		v.logger.Debug("echo already delivered by push", "session_id", v.live.Session(), "content", turn.Content)
		return false
	}
	return true
}

// Session returns the selected conversation, or "" before the first Select.
func (v *ConversationView) Session() string {
	return v.live.Session()
}

// Turns returns the visible transcript.
func (v *ConversationView) Turns() []transcript.Turn {
	return v.live.Turns()
}

// Close stops the push subscription.
func (v *ConversationView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

func (v *ConversationView) stopLocked() {
	if v.sub == nil {
		return
	}
	v.sub.Close()
	<-v.done
	v.sub = nil
	v.done = nil
}
