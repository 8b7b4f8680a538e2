package timeline

import (
	"errors"
	"sync"

	"FrameTimeline/pkg/timing"
)

// ErrFencePending means the fence has not signaled yet; retry later.
var ErrFencePending = errors.New("fence not yet signaled")

// ErrFenceInvalid means the fence will never signal; the frame it guards
// cannot be classified.
var ErrFenceInvalid = errors.New("invalid fence")

// Fence is the display driver's completion signal for one present. SignalTime
// must never block: it returns ErrFencePending until the signal time is known.
type Fence interface {
	SignalTime() (timing.Nanos, error)
}

// SoftwareFence is a Fence settable from test or simulation code.
type SoftwareFence struct {
	mu       sync.Mutex
	signaled bool
	invalid  bool
	at       timing.Nanos
}

func NewSoftwareFence() *SoftwareFence { return &SoftwareFence{} }

// SignaledFence returns a fence already signaled at t.
func SignaledFence(t timing.Nanos) *SoftwareFence {
	return &SoftwareFence{signaled: true, at: t}
}

// InvalidFence returns a fence that will never signal.
func InvalidFence() *SoftwareFence {
	return &SoftwareFence{invalid: true}
}

// Signal marks the fence as signaled at t.
func (f *SoftwareFence) Signal(t timing.Nanos) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = true
	f.at = t
}

func (f *SoftwareFence) SignalTime() (timing.Nanos, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalid {
		return 0, ErrFenceInvalid
	}
	if !f.signaled {
		return 0, ErrFencePending
	}
	return f.at, nil
}
