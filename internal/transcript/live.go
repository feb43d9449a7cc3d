package transcript

import (
	"sync"
	"time"
)

// DefaultDedupeWindow is how close in time a pushed turn must be to an
// existing turn with the same content to be treated as its echo.
const DefaultDedupeWindow = 10 * time.Second

// Live is the in-memory transcript of the conversation currently on screen.
// Pushed records are appended unless they repeat an optimistic local echo,
// and an echo is dropped when its stored copy was pushed first.
type Live struct {
	mu      sync.Mutex
	session string
	turns   []Turn
	window  time.Duration

	// pushed holds the indexes of turns delivered by Push that no local
	// echo has matched yet.
	pushed map[int]bool
}

// NewLive creates an empty live transcript. A non-positive window selects
// DefaultDedupeWindow.
func NewLive(window time.Duration) *Live {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &Live{window: window}
}

// Reset replaces the whole transcript, as on conversation switch or refresh.
func (l *Live) Reset(session string, turns []Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = session
	l.turns = append([]Turn(nil), turns...)
	l.pushed = nil
}

// Session returns the conversation the transcript belongs to.
func (l *Live) Session() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// AppendLocal appends an optimistic echo. It returns false when a pushed
// turn with the same content inside the window already stands for it; each
// pushed turn absorbs at most one echo.
func (l *Live) AppendLocal(t Turn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := t.Time()
	if ok {
		for i := range l.turns {
			if !l.pushed[i] || l.turns[i].Content != t.Content {
				continue
			}
			if l.within(at, l.turns[i]) {
				delete(l.pushed, i)
				return false
			}
		}
	}
	l.turns = append(l.turns, t)
	return true
}

// Push appends a turn delivered by the change feed. It returns false when
// the turn is discarded as a duplicate.
func (l *Live) Push(t Turn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isDuplicate(t) {
		return false
	}
	if l.pushed == nil {
		l.pushed = make(map[int]bool)
	}
	l.pushed[len(l.turns)] = true
	l.turns = append(l.turns, t)
	return true
}

func (l *Live) isDuplicate(incoming Turn) bool {
	at, ok := incoming.Time()
	if !ok {
		return false
	}
	for _, existing := range l.turns {
		if existing.Content == incoming.Content && l.within(at, existing) {
			return true
		}
	}
	return false
}

// within reports whether existing has a parseable timestamp closer than the
// window to at.
func (l *Live) within(at time.Time, existing Turn) bool {
	prev, ok := existing.Time()
	if !ok {
		return false
	}
	diff := at.Sub(prev)
	if diff < 0 {
		diff = -diff
	}
	return diff < l.window
}

// Turns returns a snapshot of the visible turns in order.
func (l *Live) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Visible(l.turns)
}

// Len counts every turn, suppressed ones included.
func (l *Live) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
