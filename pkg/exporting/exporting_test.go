package exporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"FrameTimeline/pkg/timeline"
	"FrameTimeline/pkg/timing"
)

func sampleObservation() timeline.Observation {
	return timeline.Observation{
		RefreshRate:   60,
		RenderRate:    30,
		OwnerUID:      10001,
		LayerName:     "app#0",
		Jank:          timing.JankBufferStuffing | timing.JankProducerDeadlineMissed,
		DeadlineDelta: 3_000_000,
		PresentDelta:  16_666_667,
	}
}

func TestFrameRecordFlattensObservation(t *testing.T) {
	record := FrameRecord(sampleObservation(), "session-1", "host-1", 42)

	if record["kind"] != "surface" {
		t.Errorf("Expected kind surface, got %v", record["kind"])
	}
	if record["layer"] != "app#0" {
		t.Errorf("Expected layer app#0, got %v", record["layer"])
	}
	if record["uid"] != int64(10001) {
		t.Errorf("Expected uid 10001, got %v", record["uid"])
	}
	jank, _ := record["jank"].(string)
	if !strings.Contains(jank, "Buffer Stuffing") || !strings.Contains(jank, "Producer Deadline Missed") {
		t.Errorf("Expected both causes in jank string, got %q", jank)
	}

	display := sampleObservation()
	display.DisplayFrame = true
	record = FrameRecord(display, "session-1", "host-1", 42)
	if record["kind"] != "display" {
		t.Errorf("Expected kind display, got %v", record["kind"])
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")

	records := []Record{
		FrameRecord(sampleObservation(), "session-1", "host-1", 100),
		FrameRecord(sampleObservation(), "session-1", "host-1", 200),
	}
	if err := SaveRecords(path, records); err != nil {
		t.Fatalf("SaveRecords failed: %v", err)
	}

	loaded, err := LoadRecords(path)
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(loaded))
	}

	// JSON numbers decode as float64.
	if got := loaded[0]["layer"]; got != "app#0" {
		t.Errorf("Expected layer app#0, got %v", got)
	}
	if got := loaded[0]["timestamp_ns"]; got != float64(100) {
		t.Errorf("Expected timestamp 100, got %v", got)
	}
	if got := loaded[1]["present_delta_ns"]; got != float64(16_666_667) {
		t.Errorf("Expected present delta 16666667, got %v", got)
	}
}

func TestFormatRegistry(t *testing.T) {
	for _, name := range []string{"jsonl", "csv", "tsv", "parquet"} {
		if _, ok := Get(name); !ok {
			t.Errorf("Expected format %s to be registered", name)
		}
	}
	if _, ok := Get("xml"); ok {
		t.Error("Expected xml to be unsupported")
	}

	f, ok := GetByPath("/tmp/run.jsonl")
	if !ok || f.Name() != "jsonl" {
		t.Errorf("Expected jsonl format for .jsonl path, got %v", f)
	}
	if got := GetExtension("parquet"); got != ".parquet" {
		t.Errorf("Expected .parquet, got %s", got)
	}
	if got := GetExtension("unknown"); got != ".jsonl" {
		t.Errorf("Expected .jsonl default, got %s", got)
	}
}

func TestRecorderBuffersAndCounts(t *testing.T) {
	r := NewRecorder("session-1", "host-1").WithBuffer()

	r.ReportJank(sampleObservation())
	r.ReportJank(sampleObservation())

	if got := r.Count(); got != 2 {
		t.Errorf("Expected 2 observations, got %d", got)
	}
	records := r.Records()
	if len(records) != 2 {
		t.Fatalf("Expected 2 buffered records, got %d", len(records))
	}
	if records[0]["session"] != "session-1" {
		t.Errorf("Expected session session-1, got %v", records[0]["session"])
	}
}

func TestRecorderWritesThroughExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	exporter, err := NewExporter(path, "jsonl")
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	r := NewRecorder("session-1", "host-1").WithExporter(exporter)
	r.ReportJank(sampleObservation())
	r.ReportJank(sampleObservation())
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("Expected 2 lines, got %d", len(lines))
	}
}

func TestCSVRoundTripPreservesRowCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.csv")

	records := []Record{
		FrameRecord(sampleObservation(), "session-1", "host-1", 100),
		FrameRecord(sampleObservation(), "session-1", "host-1", 200),
	}
	if err := SaveRecords(path, records); err != nil {
		t.Fatalf("SaveRecords failed: %v", err)
	}
	loaded, err := LoadRecords(path)
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(loaded))
	}
	if got := loaded[0]["layer"]; got != "app#0" {
		t.Errorf("Expected layer app#0, got %v", got)
	}
}
