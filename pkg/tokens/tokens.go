// Package tokens implements the prediction-token ledger. The compositor
// requests a token before starting speculative work; the token later
// correlates the predicted timing triple with the actual outcome.
package tokens

import (
	"sync"

	"FrameTimeline/pkg/timing"
)

// InvalidToken marks a frame for which no token was ever requested.
const InvalidToken int64 = -1

// MaxRetention is how long issued predictions are kept before they are
// considered expired.
const MaxRetention timing.Nanos = 120 * 1_000_000 // 120ms

type entry struct {
	issueTime   timing.Nanos
	predictions timing.TimelineItem
}

// Ledger issues monotonically increasing tokens bound to predicted timing
// triples and evicts entries that age out of the retention window. Safe for
// concurrent use; both operations are short and non-blocking.
type Ledger struct {
	mu      sync.Mutex
	current int64
	order   []int64 // issuance order, oldest first
	entries map[int64]entry
	nowFn   func() timing.Nanos
}

// NewLedger returns an empty ledger on the monotonic clock.
func NewLedger() *Ledger {
	return NewLedgerWithClock(timing.Now)
}

// NewLedgerWithClock lets tests control time.
func NewLedgerWithClock(now func() timing.Nanos) *Ledger {
	return &Ledger{entries: make(map[int64]entry), nowFn: now}
}

// Issue records the predictions under a fresh token and evicts stale entries.
func (l *Ledger) Issue(predictions timing.TimelineItem) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	token := l.current
	l.current++
	l.order = append(l.order, token)
	l.entries[token] = entry{issueTime: l.nowFn(), predictions: predictions}
	l.flush(l.nowFn())
	return token
}

// Lookup returns the predictions for the token if it is still within the
// retention window. Looking up neither extends retention nor evicts.
func (l *Ledger) Lookup(token int64) (timing.TimelineItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[token]
	if !ok || l.nowFn()-e.issueTime >= MaxRetention {
		return timing.TimelineItem{}, false
	}
	return e.predictions, true
}

// flush drops entries aged past the retention window. Tokens are ordered by
// issue time, so once an entry within the window is found no younger entry
// needs checking.
func (l *Ledger) flush(now timing.Nanos) {
	evicted := 0
	for _, token := range l.order {
		if now-l.entries[token].issueTime < MaxRetention {
			break
		}
		delete(l.entries, token)
		evicted++
	}
	l.order = l.order[evicted:]
}
