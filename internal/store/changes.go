package store

import (
	"log/slog"
	"sync"
)

// Table names published on the change feed.
const (
	TableClients = "clients"
	TableHistory = "message_history"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change describes one committed row change. History is set for inserts into
// message_history.
type Change struct {
	Table     string
	Op        Op
	SessionID string
	History   *HistoryRecord
}

// subscriptionBuffer is how many undelivered changes a subscriber may lag.
const subscriptionBuffer = 64

// ChangeFeed fans row changes out to subscribers scoped by table and,
// optionally, by conversation.
type ChangeFeed struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	logger *slog.Logger
}

// Subscription receives changes on C until Close is called.
type Subscription struct {
	C <-chan Change

	feed      *ChangeFeed
	ch        chan Change
	table     string
	sessionID string
	once      sync.Once
}

func NewChangeFeed(logger *slog.Logger) *ChangeFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeFeed{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers interest in a table. An empty sessionID matches every
// conversation.
func (f *ChangeFeed) Subscribe(table, sessionID string) *Subscription {
	ch := make(chan Change, subscriptionBuffer)
	sub := &Subscription{
		C:         ch,
		feed:      f,
		ch:        ch,
		table:     table,
		sessionID: sessionID,
	}
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub
}

// Publish delivers a change without blocking the writer. A subscriber whose
// buffer is full misses the change.
func (f *ChangeFeed) Publish(c Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs {
		if !sub.matches(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			f.logger.Warn("change feed subscriber lagging, change dropped",
				"table", c.Table, "op", c.Op, "session_id", c.SessionID)
		}
	}
}

// Len returns the number of open subscriptions.
func (f *ChangeFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (s *Subscription) matches(c Change) bool {
	if s.table != c.Table {
		return false
	}
	return s.sessionID == "" || s.sessionID == c.SessionID
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
		close(s.ch)
	})
}
