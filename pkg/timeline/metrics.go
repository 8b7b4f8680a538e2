package timeline

import "FrameTimeline/pkg/timing"

// Observation is what the core forwards to the metrics collaborator for every
// classified frame. Emitted after all internal locks are released.
type Observation struct {
	DisplayFrame  bool
	RefreshRate   timing.Fps
	RenderRate    timing.Fps
	OwnerUID      uint32
	LayerName     string
	Jank          timing.JankType
	DeadlineDelta timing.Nanos
	PresentDelta  timing.Nanos
}

// MetricsSink consumes classified-frame observations. Implementations must
// not call back into the timeline.
type MetricsSink interface {
	ReportJank(Observation)
}
