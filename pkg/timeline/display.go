package timeline

import (
	"FrameTimeline/pkg/timing"
)

// DisplayFrame is the compositor's own timing record for one display refresh.
// It owns the surface frames presented in that refresh, in insertion order,
// and cascades its classification verdict into them.
type DisplayFrame struct {
	token       int64
	refreshRate timing.Fps
	vsyncPeriod timing.Nanos

	predictionState timing.PredictionState
	predictions     timing.TimelineItem
	actuals         timing.TimelineItem

	jank            timing.JankType
	startMetadata   timing.FrameStartMetadata
	presentMetadata timing.FramePresentMetadata
	readyMetadata   timing.FrameReadyMetadata
	deadlineDelta   timing.Nanos
	presentDelta    timing.Nanos

	surfaceFrames []*SurfaceFrame
}

func newDisplayFrame() *DisplayFrame {
	return &DisplayFrame{token: -1}
}

// arm binds the wake-up prediction to the frame and starts its actual triple.
func (df *DisplayFrame) arm(token int64, predictionState timing.PredictionState,
	predictions timing.TimelineItem, wakeUpTime timing.Nanos, refreshRate timing.Fps) {
	df.token = token
	df.predictionState = predictionState
	df.predictions = predictions
	df.actuals.Start = wakeUpTime
	df.refreshRate = refreshRate
	df.vsyncPeriod = refreshRate.Period()
}

func (df *DisplayFrame) addSurfaceFrame(sf *SurfaceFrame) {
	df.surfaceFrames = append(df.surfaceFrames, sf)
}

// classify runs the display-level classifier with the fence-resolved present
// time, then drives every child surface frame's classifier with the verdict.
// Returns the observations to forward to the metrics sink.
func (df *DisplayFrame) classify(signalTime timing.Nanos, th Thresholds) []Observation {
	df.actuals.Present = signalTime

	switch df.predictionState {
	case timing.PredictionExpired:
		df.jank = timing.JankUnknown
		df.startMetadata = timing.UnknownStart
		df.presentMetadata = timing.UnknownPresent
		df.readyMetadata = timing.UnknownFinish
		df.deadlineDelta = expiredDeadlineDelta
	case timing.PredictionValid:
		df.classifyValid(th)
	}

	observations := make([]Observation, 0, len(df.surfaceFrames)+1)
	if df.predictionState != timing.PredictionNone {
		observations = append(observations, Observation{
			DisplayFrame:  true,
			RefreshRate:   df.refreshRate,
			Jank:          df.jank,
			DeadlineDelta: df.deadlineDelta,
			PresentDelta:  df.presentDelta,
		})
	}
	for _, sf := range df.surfaceFrames {
		if obs, ok := sf.onPresent(signalTime, df.jank, df.refreshRate, df.vsyncPeriod, th); ok {
			observations = append(observations, obs)
		}
	}
	return observations
}

func (df *DisplayFrame) classifyValid(th Thresholds) {
	df.presentDelta = df.actuals.Present - df.predictions.Present
	df.deadlineDelta = df.actuals.End - df.predictions.End
	startDelta := df.actuals.Start - df.predictions.Start
	deltaToVsync := abs(df.presentDelta) % df.vsyncPeriod

	switch {
	case abs(startDelta) <= th.Start:
		df.startMetadata = timing.OnTimeStart
	case startDelta > 0:
		df.startMetadata = timing.LateStart
	default:
		df.startMetadata = timing.EarlyStart
	}
	if df.deadlineDelta > th.Deadline {
		df.readyMetadata = timing.LateFinish
	} else {
		df.readyMetadata = timing.OnTimeFinish
	}
	switch {
	case abs(df.presentDelta) <= th.Present:
		df.presentMetadata = timing.OnTimePresent
	case df.presentDelta > 0:
		df.presentMetadata = timing.LatePresent
	default:
		df.presentMetadata = timing.EarlyPresent
	}

	switch df.presentMetadata {
	case timing.OnTimePresent:
		df.jank = timing.JankNone
	case timing.EarlyPresent:
		if df.readyMetadata == timing.OnTimeFinish {
			if th.nearVsyncBoundary(deltaToVsync, df.vsyncPeriod) {
				df.jank = timing.JankCompositorScheduling
			} else {
				df.jank = timing.JankPredictionError
			}
		} else {
			// Composition ran long yet the frame still made an earlier
			// vsync; the compositor scheduled against the wrong one.
			df.jank = timing.JankCompositorScheduling
		}
	case timing.LatePresent:
		if df.readyMetadata == timing.OnTimeFinish {
			// The compositor made its deadline, so a late present is on the
			// driver unless the cadence shows a prediction drift.
			if th.nearVsyncBoundary(deltaToVsync, df.vsyncPeriod) {
				df.jank = timing.JankDisplayDriverLate
			} else {
				df.jank = timing.JankPredictionError
			}
		} else {
			df.jank = timing.JankCompositorCpuDeadlineMissed
		}
	default:
		df.jank = timing.JankUnknown
	}
}

// minTime is the smallest set timestamp in the frame and its children, used
// as the dump base time.
func (df *DisplayFrame) minTime() timing.Nanos {
	minTime := timing.MinTime(df.predictionState, df.predictions, df.actuals)
	for _, sf := range df.surfaceFrames {
		s := sf.snapshot()
		if t := timing.MinTime(s.predictionState, s.predictions, s.actuals); t < minTime {
			minTime = t
		}
	}
	return minTime
}
