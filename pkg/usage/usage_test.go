package usage

import (
	"testing"

	"FrameTimeline/pkg/refresh"
	"FrameTimeline/pkg/timing"
)

func ms(n float64) timing.Nanos { return timing.Nanos(n * 1e6) }

// record feeds a steady cadence of buffer updates where record time tracks
// present time, and returns the time of the last sample.
func record(t *Tracker, start, gap timing.Nanos, count int) timing.Nanos {
	at := start
	for i := 0; i < count; i++ {
		t.RecordPresent(at, at, BufferUpdate)
		at += gap
	}
	return at - gap
}

func TestNoHistoryVotesMax(t *testing.T) {
	tr := NewTracker("app#0")
	if got := tr.Vote(0); got.Type != refresh.VoteMax {
		t.Errorf("got %s with no history; want Max", got.Type)
	}

	// Metadata-only updates keep the layer active but carry no cadence.
	for i := 0; i < 5; i++ {
		tr.RecordPresent(ms(float64(i)*16.667), ms(float64(i)*16.667), MetadataUpdate)
	}
	if got := tr.Vote(ms(100)); got.Type != refresh.VoteMax {
		t.Errorf("got %s after metadata updates; want Max", got.Type)
	}
}

func TestInfrequentLayerVotesMin(t *testing.T) {
	tr := NewTracker("clock#0")

	// One present every 200ms: well under the 10fps frequency floor.
	last := record(tr, 0, ms(200), 4)
	got := tr.Vote(last + ms(100))
	if got.Type != refresh.VoteMin {
		t.Errorf("got %s for 5fps cadence; want Min", got.Type)
	}
}

func TestSteadyCadenceDerivesHeuristicRate(t *testing.T) {
	tr := NewTracker("video#0")

	gap := timing.Fps(30).Period()
	last := record(tr, 0, gap, 10)

	// The first consistent derivation arms the reported rate; the second
	// confirms it.
	if got := tr.Vote(last); got.Type != refresh.VoteMax {
		t.Errorf("got %s before confirmation; want Max", got.Type)
	}
	got := tr.Vote(last)
	if got.Type != refresh.VoteHeuristic {
		t.Fatalf("got %s; want Heuristic", got.Type)
	}
	if !got.Fps.Equals(30) {
		t.Errorf("got %s; want 30fps", got.Fps)
	}
}

func TestDuplicatesAndOutliersAreFiltered(t *testing.T) {
	tr := NewTracker("video#0")

	// A duplicate queue (zero gap), a 300ms stall, and otherwise a clean
	// 30fps cadence. The stall and the duplicate must not skew the average.
	presents := []timing.Nanos{
		0, 0,
		ms(33.333), ms(66.667), ms(100),
		ms(400), // stall
		ms(433.333), ms(466.667), ms(500),
	}
	for _, p := range presents {
		tr.RecordPresent(p, p, BufferUpdate)
	}

	now := ms(500)
	tr.Vote(now)
	got := tr.Vote(now)
	if got.Type != refresh.VoteHeuristic {
		t.Fatalf("got %s; want Heuristic", got.Type)
	}
	if !got.Fps.Equals(30) {
		t.Errorf("got %s; want 30fps despite duplicate and stall", got.Fps)
	}
}

func TestStaleHistoryIsForgotten(t *testing.T) {
	tr := NewTracker("app#0")

	record(tr, 0, timing.Fps(60).Period(), 10)
	// Two seconds later everything has aged out of the window; with no
	// usable history the tracker is back to its initial assumption.
	if got := tr.Vote(ms(2000)); got.Type != refresh.VoteMax {
		t.Errorf("got %s after history aged out; want Max", got.Type)
	}
}
