package exporting

import (
	"log"
	"strings"
	"sync"

	"FrameTimeline/pkg/timeline"
	"FrameTimeline/pkg/timing"
)

// FrameRecord flattens one classified-frame observation into a record.
func FrameRecord(obs timeline.Observation, sessionID, hostname string, at timing.Nanos) Record {
	kind := "surface"
	if obs.DisplayFrame {
		kind = "display"
	}
	return Record{
		"timestamp_ns":      at,
		"session":           sessionID,
		"hostname":          hostname,
		"kind":              kind,
		"layer":             obs.LayerName,
		"uid":               int64(obs.OwnerUID),
		"refresh_fps":       float64(obs.RefreshRate),
		"render_fps":        float64(obs.RenderRate),
		"jank_mask":         int64(obs.Jank),
		"jank":              strings.Join(obs.Jank.Names(), ", "),
		"deadline_delta_ns": obs.DeadlineDelta,
		"present_delta_ns":  obs.PresentDelta,
	}
}

// Recorder is the metrics sink handed to the timeline: each observation
// becomes a Record fanned out to an optional exporter, an optional websocket
// stream, and an optional in-memory buffer for graphing.
type Recorder struct {
	mu       sync.Mutex
	session  string
	hostname string
	exporter *Exporter
	stream   *Stream
	buffer   bool
	records  []Record
	count    int
}

func NewRecorder(session, hostname string) *Recorder {
	return &Recorder{session: session, hostname: hostname}
}

// WithExporter attaches a file exporter.
func (r *Recorder) WithExporter(e *Exporter) *Recorder {
	r.exporter = e
	return r
}

// WithStream attaches a websocket stream.
func (r *Recorder) WithStream(s *Stream) *Recorder {
	r.stream = s
	return r
}

// WithBuffer keeps all records in memory, for graphing after a run.
func (r *Recorder) WithBuffer() *Recorder {
	r.buffer = true
	return r
}

// ReportJank implements timeline.MetricsSink. Write failures are logged and
// do not propagate back into the timing core.
func (r *Recorder) ReportJank(obs timeline.Observation) {
	record := FrameRecord(obs, r.session, r.hostname, timing.Now())

	r.mu.Lock()
	r.count++
	if r.buffer {
		r.records = append(r.records, record)
	}
	exporter, stream := r.exporter, r.stream
	r.mu.Unlock()

	if exporter != nil {
		if err := exporter.Write(record); err != nil {
			log.Printf("recorder: export failed: %v", err)
		}
	}
	if stream != nil {
		stream.Publish(record)
	}
}

// Count reports how many observations were recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Records returns the buffered records.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
