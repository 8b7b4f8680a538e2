// Package usage tracks per-layer present history and derives the refresh-rate
// vote the layer feeds into rate selection.
package usage

import (
	"sync"

	"FrameTimeline/pkg/refresh"
	"FrameTimeline/pkg/timing"
)

const (
	// historyLimit and historyDuration bound the per-layer sample window.
	historyLimit    = 90
	historyDuration timing.Nanos = 1_000_000_000 // 1s

	// frequentWindow is how many recent samples the frequency test inspects.
	frequentWindow = 3
	// minFrequentFps is the rate below which a layer counts as infrequent.
	minFrequentFps timing.Fps = 10

	// minGap filters duplicate samples (several queues within one frame);
	// maxGap filters outliers where the layer simply went quiet.
	minGap timing.Nanos = 4_000_000   // 4ms
	maxGap timing.Nanos = 250_000_000 // 250ms

	// derivedMargin is how closely consecutive derived rates must agree
	// before a new rate is reported.
	derivedMargin timing.Fps = 1.0
)

// UpdateKind says what kind of layer activity a record represents.
type UpdateKind int

const (
	// BufferUpdate: the layer queued a new buffer; counts toward cadence.
	BufferUpdate UpdateKind = iota
	// MetadataUpdate: geometry or metadata changed without new content; keeps
	// the layer active but does not affect cadence.
	MetadataUpdate
)

// Vote is the tracker's contribution to refresh-rate selection.
type Vote struct {
	Type refresh.LayerVoteType
	Fps  timing.Fps
}

type sample struct {
	presentTime timing.Nanos
	recordTime  timing.Nanos
}

// Tracker derives a refresh-rate vote for one layer from its rolling history
// of present requests. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	name        string
	history     []sample
	lastUpdate  timing.Nanos
	lastDerived timing.Fps
	hasDerived  bool
	reported    timing.Fps
	hasReported bool
}

func NewTracker(name string) *Tracker {
	return &Tracker{name: name}
}

func (t *Tracker) Name() string { return t.name }

// RecordPresent appends a present request to the history. Metadata-only
// updates refresh activity without contributing a cadence sample.
func (t *Tracker) RecordPresent(presentTime, now timing.Nanos, kind UpdateKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastUpdate = now
	if kind != BufferUpdate {
		return
	}
	t.history = append(t.history, sample{presentTime: presentTime, recordTime: now})
	t.trimLocked(now)
}

func (t *Tracker) trimLocked(now timing.Nanos) {
	drop := 0
	for _, s := range t.history {
		if now-s.recordTime <= historyDuration {
			break
		}
		drop++
	}
	if len(t.history)-drop > historyLimit {
		drop = len(t.history) - historyLimit
	}
	t.history = t.history[drop:]
}

// Vote returns the layer's current refresh-rate preference. An infrequent
// layer votes for the minimum rate; a frequent layer with a consistent
// cadence votes Heuristic at the derived rate.
func (t *Tracker) Vote(now timing.Nanos) Vote {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.trimLocked(now)
	if !t.frequentLocked(now) {
		return Vote{Type: refresh.VoteMin}
	}
	fps, ok := t.deriveLocked()
	if !ok {
		if t.hasReported {
			return Vote{Type: refresh.VoteHeuristic, Fps: t.reported}
		}
		return Vote{Type: refresh.VoteMax}
	}
	return Vote{Type: refresh.VoteHeuristic, Fps: fps}
}

// frequentLocked applies the recency test over the last frequentWindow
// samples: too few samples means we know nothing yet and assume frequent.
func (t *Tracker) frequentLocked(now timing.Nanos) bool {
	if len(t.history) < frequentWindow {
		return true
	}
	window := t.history[len(t.history)-frequentWindow:]
	if now-window[0].recordTime > timing.Nanos(frequentWindow)*minFrequentFps.Period() {
		return false
	}
	span := window[len(window)-1].presentTime - window[0].presentTime
	if span <= 0 {
		return true
	}
	avg := span / timing.Nanos(frequentWindow-1)
	return avg <= minFrequentFps.Period()
}

// deriveLocked averages the inter-present gaps, dropping duplicates and
// outliers, and only reports a new rate once two consecutive derivations
// agree. An inconsistent derivation repeats the previously reported rate.
func (t *Tracker) deriveLocked() (timing.Fps, bool) {
	var total timing.Nanos
	var count int
	for i := 1; i < len(t.history); i++ {
		gap := t.history[i].presentTime - t.history[i-1].presentTime
		if gap < minGap || gap > maxGap {
			continue
		}
		total += gap
		count++
	}
	if count < frequentWindow-1 {
		return 0, false
	}

	derived := timing.FpsFromPeriod(total / timing.Nanos(count))
	prev, had := t.lastDerived, t.hasDerived
	t.lastDerived = derived
	t.hasDerived = true

	consistent := had && float64(derived-prev) < float64(derivedMargin) &&
		float64(prev-derived) < float64(derivedMargin)
	if consistent {
		t.reported = derived
		t.hasReported = true
		return derived, true
	}
	if t.hasReported {
		return t.reported, true
	}
	return 0, false
}
