package timeline

import (
	"fmt"
	"sync"

	"FrameTimeline/pkg/timing"
)

// SurfaceFrame is the timing record for one frame of one producer. It is
// created when the producer's work is scheduled, receives actual timestamps
// incrementally, and is classified once when its display frame presents.
type SurfaceFrame struct {
	mu sync.Mutex

	token     int64
	ownerPID  int32
	ownerUID  uint32
	layerName string
	debugName string

	predictionState timing.PredictionState
	predictions     timing.TimelineItem
	actuals         timing.TimelineItem

	presentState    timing.PresentState
	presentStateSet bool
	lastLatchTime   timing.Nanos
	renderRate      timing.Fps

	jank            timing.JankType
	presentMetadata timing.FramePresentMetadata
	readyMetadata   timing.FrameReadyMetadata
	deadlineDelta   timing.Nanos
	presentDelta    timing.Nanos
}

// NewSurfaceFrame builds an unclassified record. predictionState and
// predictions come from the token ledger at creation time.
func NewSurfaceFrame(token int64, ownerPID int32, ownerUID uint32, layerName, debugName string,
	predictionState timing.PredictionState, predictions timing.TimelineItem) *SurfaceFrame {
	return &SurfaceFrame{
		token:           token,
		ownerPID:        ownerPID,
		ownerUID:        ownerUID,
		layerName:       layerName,
		debugName:       debugName,
		predictionState: predictionState,
		predictions:     predictions,
	}
}

func (sf *SurfaceFrame) Token() int64      { return sf.token }
func (sf *SurfaceFrame) LayerName() string { return sf.layerName }
func (sf *SurfaceFrame) OwnerUID() uint32  { return sf.ownerUID }

// SetActualQueueTime records when the producer queued the buffer. The queue
// time starts the actual triple; the end is refined by the acquire fence.
func (sf *SurfaceFrame) SetActualQueueTime(queueTime timing.Nanos) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.actuals.Start = queueTime
	if queueTime > sf.actuals.End {
		sf.actuals.End = queueTime
	}
}

// SetAcquireFenceTime records when the producer's GPU work finished. The
// effective end of work is whichever came later, acquire or queue.
func (sf *SurfaceFrame) SetAcquireFenceTime(acquireTime timing.Nanos) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if acquireTime > sf.actuals.Start {
		sf.actuals.End = acquireTime
	} else {
		sf.actuals.End = sf.actuals.Start
	}
}

// SetRenderRate records the rate the layer chose to render at, for metrics.
func (sf *SurfaceFrame) SetRenderRate(rate timing.Fps) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.renderRate = rate
}

// SetPresentState records the frame's final outcome. Calling it twice is a
// double-completion bug upstream and aborts.
func (sf *SurfaceFrame) SetPresentState(state timing.PresentState, lastLatchTime timing.Nanos) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.presentStateSet {
		panic(fmt.Sprintf("present state set twice on layer %q token %d (was %s, now %s)",
			sf.layerName, sf.token, sf.presentState, state))
	}
	sf.presentStateSet = true
	sf.presentState = state
	sf.lastLatchTime = lastLatchTime
}

// PresentState returns the recorded outcome, PresentUnknown until set.
func (sf *SurfaceFrame) PresentState() timing.PresentState {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.presentState
}

// JankType returns the classification result, JankNone before classification.
func (sf *SurfaceFrame) JankType() timing.JankType {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.jank
}

// PresentMetadata returns the classified present timing.
func (sf *SurfaceFrame) PresentMetadata() timing.FramePresentMetadata {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.presentMetadata
}

// ReadyMetadata returns the classified finish timing.
func (sf *SurfaceFrame) ReadyMetadata() timing.FrameReadyMetadata {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.readyMetadata
}

// onPresent classifies the frame against its predictions once the display's
// actual present time is known. displayJank, deadline and present deltas come
// from the owning display frame's own classification. Returns an observation
// for the metrics sink when the frame was classified.
func (sf *SurfaceFrame) onPresent(presentTime timing.Nanos, displayJank timing.JankType,
	refreshRate timing.Fps, vsyncPeriod timing.Nanos, th Thresholds) (Observation, bool) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	// A dropped frame never reached the display; nothing to classify.
	if sf.presentState == timing.Dropped {
		return Observation{}, false
	}
	sf.actuals.Present = presentTime

	switch sf.predictionState {
	case timing.PredictionNone:
		// No token was requested; there is no deadline to have missed.
		return Observation{}, false
	case timing.PredictionExpired:
		sf.jank = timing.JankUnknown
		sf.presentMetadata = timing.UnknownPresent
		sf.readyMetadata = timing.UnknownFinish
		sf.deadlineDelta = expiredDeadlineDelta
		return sf.observationLocked(refreshRate), true
	}

	sf.presentDelta = sf.actuals.Present - sf.predictions.Present
	sf.deadlineDelta = sf.actuals.End - sf.predictions.End
	deltaToVsync := abs(sf.presentDelta) % vsyncPeriod

	if sf.deadlineDelta > th.Deadline {
		sf.readyMetadata = timing.LateFinish
	} else {
		sf.readyMetadata = timing.OnTimeFinish
	}
	switch {
	case abs(sf.presentDelta) <= th.Present:
		sf.presentMetadata = timing.OnTimePresent
	case sf.presentDelta > 0:
		sf.presentMetadata = timing.LatePresent
	default:
		sf.presentMetadata = timing.EarlyPresent
	}

	switch sf.presentMetadata {
	case timing.OnTimePresent:
		sf.jank = timing.JankNone
	case timing.EarlyPresent:
		if sf.readyMetadata == timing.OnTimeFinish {
			// Finished on time but presented on the wrong (earlier) vsync:
			// either the compositor latched early or predictions drifted.
			if th.nearVsyncBoundary(deltaToVsync, vsyncPeriod) {
				sf.jank = timing.JankCompositorScheduling
			} else {
				sf.jank = timing.JankPredictionError
			}
		} else {
			// Finished late yet presented early; no coherent cause.
			sf.jank = timing.JankUnknown
		}
	case timing.LatePresent:
		if sf.lastLatchTime != 0 && sf.predictions.End <= sf.lastLatchTime {
			// The buffer sat queued behind an earlier one for a full latch.
			sf.jank |= timing.JankBufferStuffing
		}
		if sf.readyMetadata == timing.OnTimeFinish {
			if displayJank != timing.JankNone {
				sf.jank |= displayJank
			} else if th.nearVsyncBoundary(deltaToVsync, vsyncPeriod) {
				sf.jank |= timing.JankCompositorScheduling
			} else {
				sf.jank |= timing.JankPredictionError
			}
		} else {
			if displayJank == timing.JankNone {
				sf.jank |= timing.JankProducerDeadlineMissed
			} else {
				sf.jank |= displayJank
			}
		}
	}
	return sf.observationLocked(refreshRate), true
}

func (sf *SurfaceFrame) observationLocked(refreshRate timing.Fps) Observation {
	return Observation{
		RefreshRate:   refreshRate,
		RenderRate:    sf.renderRate,
		OwnerUID:      sf.ownerUID,
		LayerName:     sf.layerName,
		Jank:          sf.jank,
		DeadlineDelta: sf.deadlineDelta,
		PresentDelta:  sf.presentDelta,
	}
}

// surfaceSnapshot is an immutable copy for dumping.
type surfaceSnapshot struct {
	token           int64
	ownerPID        int32
	ownerUID        uint32
	layerName       string
	presentState    timing.PresentState
	predictionState timing.PredictionState
	predictions     timing.TimelineItem
	actuals         timing.TimelineItem
	jank            timing.JankType
	presentMetadata timing.FramePresentMetadata
	readyMetadata   timing.FrameReadyMetadata
	deadlineDelta   timing.Nanos
	presentDelta    timing.Nanos
}

func (sf *SurfaceFrame) snapshot() surfaceSnapshot {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return surfaceSnapshot{
		token:           sf.token,
		ownerPID:        sf.ownerPID,
		ownerUID:        sf.ownerUID,
		layerName:       sf.layerName,
		presentState:    sf.presentState,
		predictionState: sf.predictionState,
		predictions:     sf.predictions,
		actuals:         sf.actuals,
		jank:            sf.jank,
		presentMetadata: sf.presentMetadata,
		readyMetadata:   sf.readyMetadata,
		deadlineDelta:   sf.deadlineDelta,
		presentDelta:    sf.presentDelta,
	}
}
