// Package timeline tracks predicted versus actual frame timing for a display
// compositor and classifies missed deadlines by cause. Surface frames carry
// one producer's frame each; display frames aggregate the surfaces presented
// in one refresh; the Timeline owns the bounded history and the pending
// present-fence queue.
package timeline

import (
	"errors"
	"fmt"
	"sync"

	"FrameTimeline/pkg/timing"
	"FrameTimeline/pkg/tokens"
)

// DefaultMaxDisplayFrames is the history depth until SetMaxDisplayFrames.
const DefaultMaxDisplayFrames = 64

type pendingPresent struct {
	fence Fence
	frame *DisplayFrame
}

// Timeline is the frame-timing ledger. All methods are safe for concurrent
// use; the metrics sink is always invoked after the internal lock is
// released.
type Timeline struct {
	mu sync.Mutex

	tokens     *tokens.Ledger
	sink       MetricsSink
	thresholds Thresholds

	maxDisplayFrames int
	history          []*DisplayFrame // finalized, present order
	current          *DisplayFrame
	pending          []pendingPresent // submission order
}

// NewTimeline builds a timeline over the given token ledger. sink may be nil
// to discard observations.
func NewTimeline(ledger *tokens.Ledger, sink MetricsSink, th Thresholds) *Timeline {
	return &Timeline{
		tokens:           ledger,
		sink:             sink,
		thresholds:       th,
		maxDisplayFrames: DefaultMaxDisplayFrames,
		current:          newDisplayFrame(),
	}
}

// Tokens exposes the ledger so producers can issue prediction tokens.
func (t *Timeline) Tokens() *tokens.Ledger { return t.tokens }

// CreateSurfaceFrame resolves the token against the ledger and builds the
// record with the matching prediction state: None for the invalid-token
// sentinel, Expired when the token aged out, Valid otherwise.
func (t *Timeline) CreateSurfaceFrame(token int64, ownerPID int32, ownerUID uint32,
	layerName, debugName string) *SurfaceFrame {
	if token == tokens.InvalidToken {
		return NewSurfaceFrame(token, ownerPID, ownerUID, layerName, debugName,
			timing.PredictionNone, timing.TimelineItem{})
	}
	predictions, ok := t.tokens.Lookup(token)
	if !ok {
		return NewSurfaceFrame(token, ownerPID, ownerUID, layerName, debugName,
			timing.PredictionExpired, timing.TimelineItem{})
	}
	return NewSurfaceFrame(token, ownerPID, ownerUID, layerName, debugName,
		timing.PredictionValid, predictions)
}

// AddSurfaceFrame appends the record to the current, not-yet-finalized
// display frame. Insertion order is preserved through classification and
// dumps.
func (t *Timeline) AddSurfaceFrame(sf *SurfaceFrame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.addSurfaceFrame(sf)
}

// SetWakeUp arms the current display frame: it resolves the compositor's own
// prediction token and records the actual wake-up time and the refresh rate
// the display runs at.
func (t *Timeline) SetWakeUp(token int64, wakeUpTime timing.Nanos, refreshRate timing.Fps) {
	state := timing.PredictionExpired
	predictions, ok := t.tokens.Lookup(token)
	if ok {
		state = timing.PredictionValid
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.arm(token, state, predictions, wakeUpTime, refreshRate)
}

// SetPresent records the end of the compositor's work for the current display
// frame, queues it behind its present fence, and rotates in a fresh current
// frame. Any fences that have signaled are flushed.
func (t *Timeline) SetPresent(endTime timing.Nanos, fence Fence) {
	t.mu.Lock()
	t.current.actuals.End = endTime
	t.pending = append(t.pending, pendingPresent{fence: fence, frame: t.current})
	t.current = newDisplayFrame()
	observations := t.flushPendingLocked()
	t.mu.Unlock()
	t.emit(observations)
}

// FlushPending retries fence resolution for queued display frames. Safe to
// call from a poll loop; an unsignaled fence is never an error.
func (t *Timeline) FlushPending() {
	t.mu.Lock()
	observations := t.flushPendingLocked()
	t.mu.Unlock()
	t.emit(observations)
}

// flushPendingLocked advances the pending queue from the front only, so
// display frames reach history strictly in present order even when fences
// signal out of order. An invalid fence discards its frame unclassified.
func (t *Timeline) flushPendingLocked() []Observation {
	var observations []Observation
	for len(t.pending) > 0 {
		p := t.pending[0]
		signalTime, err := p.fence.SignalTime()
		if errors.Is(err, ErrFencePending) {
			break
		}
		t.pending = t.pending[1:]
		if err != nil {
			continue
		}
		observations = append(observations, p.frame.classify(signalTime, t.thresholds)...)
		t.history = append(t.history, p.frame)
		if len(t.history) > t.maxDisplayFrames {
			t.history = t.history[1:]
		}
	}
	return observations
}

func (t *Timeline) emit(observations []Observation) {
	if t.sink == nil {
		return
	}
	for _, obs := range observations {
		t.sink.ReportJank(obs)
	}
}

// SetMaxDisplayFrames resizes the history. Resizing clears history and the
// pending queue wholesale; a shrink must not leave dangling tail references.
func (t *Timeline) SetMaxDisplayFrames(n int) error {
	if n < 1 {
		return fmt.Errorf("timeline: history depth must be positive, got %d", n)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxDisplayFrames = n
	t.history = nil
	t.pending = nil
	return nil
}

// Reset discards all history and pending frames, keeping the current depth.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
	t.pending = nil
}

// HistoryLen reports how many display frames are retained.
func (t *Timeline) HistoryLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

// PendingLen reports how many display frames await fence resolution.
func (t *Timeline) PendingLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
