package timeline

import (
	"strconv"
	"strings"
	"sync"
	"testing"

	"FrameTimeline/pkg/timing"
	"FrameTimeline/pkg/tokens"
)

const base = timing.Nanos(100_000_000)

func ms(n float64) timing.Nanos { return timing.Nanos(n * 1e6) }

type captureSink struct {
	mu  sync.Mutex
	obs []Observation
}

func (c *captureSink) ReportJank(o Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.obs = append(c.obs, o)
}

func (c *captureSink) surface(layer string) (Observation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.obs {
		if !o.DisplayFrame && o.LayerName == layer {
			return o, true
		}
	}
	return Observation{}, false
}

func newTestTimeline(sink MetricsSink) *Timeline {
	return NewTimeline(tokens.NewLedger(), sink, DefaultThresholds())
}

// presentFrame arms the current display frame with an on-schedule prediction
// ending at signal and finalizes it through a signaled fence.
func presentFrame(tl *Timeline, wakeUp, end, signal timing.Nanos) {
	token := tl.Tokens().Issue(timing.TimelineItem{Start: wakeUp, End: end, Present: signal})
	tl.SetWakeUp(token, wakeUp, 60)
	tl.SetPresent(end, SignaledFence(signal))
}

func TestOnTimeFrameIsNotJanky(t *testing.T) {
	sink := &captureSink{}
	tl := newTestTimeline(sink)

	// Predicted (0, 10ms, 16ms), actual (0, 11ms, 16ms): within the 2ms
	// slack on both deadline and present.
	token := tl.Tokens().Issue(timing.TimelineItem{
		Start: base, End: base + ms(10), Present: base + ms(16),
	})
	sf := tl.CreateSurfaceFrame(token, 100, 1000, "app", "app")
	sf.SetActualQueueTime(base)
	sf.SetAcquireFenceTime(base + ms(11))
	sf.SetPresentState(timing.Presented, 0)
	tl.AddSurfaceFrame(sf)

	presentFrame(tl, base+ms(11), base+ms(13), base+ms(16))

	if got := sf.JankType(); got != timing.JankNone {
		t.Errorf("got jank %s; want None", got)
	}
	if got := sf.ReadyMetadata(); got != timing.OnTimeFinish {
		t.Errorf("got ready metadata %s; want On Time Finish", got)
	}
	if got := sf.PresentMetadata(); got != timing.OnTimePresent {
		t.Errorf("got present metadata %s; want On Time Present", got)
	}
	obs, ok := sink.surface("app")
	if !ok {
		t.Fatal("expected a surface observation")
	}
	if obs.Jank != timing.JankNone {
		t.Errorf("observation jank = %s; want None", obs.Jank)
	}
}

func TestLatePresentOffVsyncIsPredictionError(t *testing.T) {
	tl := newTestTimeline(nil)

	// Present lands 10ms late; 10ms mod 16.67ms is nowhere near a vsync
	// boundary, so the cadence drifted rather than slipping a whole frame.
	token := tl.Tokens().Issue(timing.TimelineItem{
		Start: base, End: base + ms(10), Present: base + ms(16),
	})
	sf := tl.CreateSurfaceFrame(token, 100, 1000, "app", "app")
	sf.SetActualQueueTime(base)
	sf.SetAcquireFenceTime(base + ms(11))
	sf.SetPresentState(timing.Presented, 0)
	tl.AddSurfaceFrame(sf)

	// The display frame itself predicted 26ms and hit it, so it is clean.
	presentFrame(tl, base+ms(21), base+ms(23), base+ms(26))

	if got := sf.PresentMetadata(); got != timing.LatePresent {
		t.Errorf("got present metadata %s; want Late Present", got)
	}
	if got := sf.JankType(); got != timing.JankPredictionError {
		t.Errorf("got jank %s; want Prediction Error", got)
	}
}

func TestLatePresentFullVsyncIsCompositorScheduling(t *testing.T) {
	tl := newTestTimeline(nil)

	// Present slips exactly one vsync: delta mod period is ~0, inside the
	// boundary band.
	period := timing.Fps(60).Period()
	token := tl.Tokens().Issue(timing.TimelineItem{
		Start: base, End: base + ms(10), Present: base + ms(16),
	})
	sf := tl.CreateSurfaceFrame(token, 100, 1000, "app", "app")
	sf.SetActualQueueTime(base)
	sf.SetAcquireFenceTime(base + ms(10))
	sf.SetPresentState(timing.Presented, 0)
	tl.AddSurfaceFrame(sf)

	signal := base + ms(16) + period
	presentFrame(tl, signal-ms(5), signal-ms(3), signal)

	if got := sf.JankType(); got != timing.JankCompositorScheduling {
		t.Errorf("got jank %s; want Compositor Scheduling", got)
	}
}

func TestBufferStuffingFlagged(t *testing.T) {
	tl := newTestTimeline(nil)

	token := tl.Tokens().Issue(timing.TimelineItem{
		Start: base, End: base + ms(10), Present: base + ms(16),
	})
	sf := tl.CreateSurfaceFrame(token, 100, 1000, "app", "app")
	sf.SetActualQueueTime(base)
	sf.SetAcquireFenceTime(base + ms(10))
	// The buffer was latched after its predicted deadline: it sat queued
	// behind an earlier frame.
	sf.SetPresentState(timing.Presented, base+ms(12))
	tl.AddSurfaceFrame(sf)

	presentFrame(tl, base+ms(21), base+ms(23), base+ms(26))

	if got := sf.JankType(); got&timing.JankBufferStuffing == 0 {
		t.Errorf("got jank %s; want Buffer Stuffing set", got)
	}
}

func TestLateFinishUnderCleanDisplayIsProducerDeadlineMissed(t *testing.T) {
	tl := newTestTimeline(nil)

	token := tl.Tokens().Issue(timing.TimelineItem{
		Start: base, End: base + ms(10), Present: base + ms(16),
	})
	sf := tl.CreateSurfaceFrame(token, 100, 1000, "app", "app")
	sf.SetActualQueueTime(base)
	sf.SetAcquireFenceTime(base + ms(20)) // 10ms past the deadline
	sf.SetPresentState(timing.Presented, 0)
	tl.AddSurfaceFrame(sf)

	presentFrame(tl, base+ms(21), base+ms(23), base+ms(26))

	if got := sf.JankType(); got != timing.JankProducerDeadlineMissed {
		t.Errorf("got jank %s; want Producer Deadline Missed", got)
	}
}

func TestExpiredTokenClassifiesUnknown(t *testing.T) {
	now := timing.Nanos(0)
	ledger := tokens.NewLedgerWithClock(func() timing.Nanos { return now })
	sink := &captureSink{}
	tl := NewTimeline(ledger, sink, DefaultThresholds())

	token := ledger.Issue(timing.TimelineItem{Start: base, End: base + ms(10), Present: base + ms(16)})
	now = tokens.MaxRetention + 1

	sf := tl.CreateSurfaceFrame(token, 100, 1000, "app", "app")
	sf.SetActualQueueTime(base)
	sf.SetAcquireFenceTime(base + ms(11))
	sf.SetPresentState(timing.Presented, 0)
	tl.AddSurfaceFrame(sf)

	displayToken := ledger.Issue(timing.TimelineItem{Start: base + ms(11), End: base + ms(13), Present: base + ms(16)})
	tl.SetWakeUp(displayToken, base+ms(11), 60)
	tl.SetPresent(base+ms(13), SignaledFence(base+ms(16)))

	if got := sf.JankType(); got != timing.JankUnknown {
		t.Errorf("got jank %s; want Unknown jank", got)
	}
	obs, ok := sink.surface("app")
	if !ok {
		t.Fatal("expected a surface observation for the expired frame")
	}
	if obs.DeadlineDelta != -1 {
		t.Errorf("got deadline delta %d; want sentinel -1", obs.DeadlineDelta)
	}
}

func TestNoTokenFrameIsNotClassified(t *testing.T) {
	sink := &captureSink{}
	tl := newTestTimeline(sink)

	sf := tl.CreateSurfaceFrame(tokens.InvalidToken, 100, 1000, "app", "app")
	sf.SetActualQueueTime(base)
	sf.SetAcquireFenceTime(base + ms(11))
	sf.SetPresentState(timing.Presented, 0)
	tl.AddSurfaceFrame(sf)

	presentFrame(tl, base+ms(11), base+ms(13), base+ms(16))

	if got := sf.JankType(); got != timing.JankNone {
		t.Errorf("got jank %s; want None (no causal basis)", got)
	}
	if _, ok := sink.surface("app"); ok {
		t.Error("expected no observation without predictions")
	}
}

func TestDroppedFrameLeftUntouched(t *testing.T) {
	sink := &captureSink{}
	tl := newTestTimeline(sink)

	token := tl.Tokens().Issue(timing.TimelineItem{
		Start: base, End: base + ms(10), Present: base + ms(16),
	})
	sf := tl.CreateSurfaceFrame(token, 100, 1000, "app", "app")
	sf.SetActualQueueTime(base)
	sf.SetPresentState(timing.Dropped, 0)
	tl.AddSurfaceFrame(sf)

	presentFrame(tl, base+ms(11), base+ms(13), base+ms(16))

	if got := sf.JankType(); got != timing.JankNone {
		t.Errorf("dropped frame was classified: %s", got)
	}
	if got := sf.PresentState(); got != timing.Dropped {
		t.Errorf("got present state %s; want Dropped", got)
	}
	if _, ok := sink.surface("app"); ok {
		t.Error("expected no observation for a dropped frame")
	}
}

func TestDoubleSetPresentStatePanics(t *testing.T) {
	tl := newTestTimeline(nil)
	sf := tl.CreateSurfaceFrame(tokens.InvalidToken, 100, 1000, "app", "app")
	sf.SetPresentState(timing.Presented, 0)

	defer func() {
		if recover() == nil {
			t.Error("expected second SetPresentState to panic")
		}
	}()
	sf.SetPresentState(timing.Dropped, 0)
}

func TestPendingFenceIsRetriedNotFailed(t *testing.T) {
	tl := newTestTimeline(nil)

	fence := NewSoftwareFence()
	token := tl.Tokens().Issue(timing.TimelineItem{Start: base, End: base + ms(13), Present: base + ms(16)})
	tl.SetWakeUp(token, base, 60)
	tl.SetPresent(base+ms(13), fence)

	if got := tl.PendingLen(); got != 1 {
		t.Fatalf("got %d pending frames; want 1", got)
	}
	tl.FlushPending()
	if got := tl.HistoryLen(); got != 0 {
		t.Fatalf("unsignaled fence finalized %d frames", got)
	}

	fence.Signal(base + ms(16))
	tl.FlushPending()
	if got, want := tl.HistoryLen(), 1; got != want {
		t.Errorf("got %d history frames; want %d", got, want)
	}
	if got := tl.PendingLen(); got != 0 {
		t.Errorf("got %d pending frames; want 0", got)
	}
}

func TestInvalidFenceDiscardsWithoutClassification(t *testing.T) {
	sink := &captureSink{}
	tl := newTestTimeline(sink)

	token := tl.Tokens().Issue(timing.TimelineItem{Start: base, End: base + ms(13), Present: base + ms(16)})
	tl.SetWakeUp(token, base, 60)
	tl.SetPresent(base+ms(13), InvalidFence())

	if got := tl.PendingLen(); got != 0 {
		t.Errorf("got %d pending frames; want 0", got)
	}
	if got := tl.HistoryLen(); got != 0 {
		t.Errorf("got %d history frames; want 0", got)
	}
	if len(sink.obs) != 0 {
		t.Errorf("invalid fence produced %d observations", len(sink.obs))
	}
}

func TestPendingQueueAdvancesFromFrontOnly(t *testing.T) {
	tl := newTestTimeline(nil)

	first := NewSoftwareFence()
	second := NewSoftwareFence()
	presentPending := func(f *SoftwareFence, wake timing.Nanos) {
		token := tl.Tokens().Issue(timing.TimelineItem{Start: wake, End: wake + ms(2), Present: wake + ms(5)})
		tl.SetWakeUp(token, wake, 60)
		tl.SetPresent(wake+ms(2), f)
	}
	presentPending(first, base)
	presentPending(second, base+ms(16))

	// The second fence signaling must not let its frame jump the queue.
	second.Signal(base + ms(21))
	tl.FlushPending()
	if got := tl.HistoryLen(); got != 0 {
		t.Fatalf("second frame finalized ahead of the first: %d in history", got)
	}

	first.Signal(base + ms(5))
	tl.FlushPending()
	if got := tl.HistoryLen(); got != 2 {
		t.Errorf("got %d history frames; want 2", got)
	}
}

func TestHistoryDepthKeepsMostRecentInOrder(t *testing.T) {
	tl := newTestTimeline(nil)
	if err := tl.SetMaxDisplayFrames(3); err != nil {
		t.Fatal(err)
	}

	var displayTokens []int64
	for i := 0; i < 5; i++ {
		wake := base + timing.Nanos(i)*ms(16)
		token := tl.Tokens().Issue(timing.TimelineItem{Start: wake, End: wake + ms(2), Present: wake + ms(5)})
		displayTokens = append(displayTokens, token)
		tl.SetWakeUp(token, wake, 60)
		tl.SetPresent(wake+ms(2), SignaledFence(wake+ms(5)))
	}

	if got := tl.HistoryLen(); got != 3 {
		t.Fatalf("got %d history frames; want 3", got)
	}

	dump := tl.DumpAll()
	for _, token := range displayTokens[2:] {
		want := "token=" + strconv.FormatInt(token, 10)
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %s", want)
		}
	}
	for _, token := range displayTokens[:2] {
		if strings.Contains(dump, "token="+strconv.FormatInt(token, 10)+" ") ||
			strings.Contains(dump, "token="+strconv.FormatInt(token, 10)+"\n") {
			t.Errorf("dump still contains evicted token %d", token)
		}
	}

	// Chronological order: later tokens appear later in the dump.
	if strings.Index(dump, "token="+strconv.FormatInt(displayTokens[2], 10)) > strings.Index(dump, "token="+strconv.FormatInt(displayTokens[4], 10)) {
		t.Error("dump is not in chronological order")
	}
}

func TestDumpIsIdempotent(t *testing.T) {
	tl := newTestTimeline(nil)
	for i := 0; i < 3; i++ {
		wake := base + timing.Nanos(i)*ms(16)
		presentFrame(tl, wake, wake+ms(2), wake+ms(5))
	}

	first := tl.DumpAll()
	second := tl.DumpAll()
	if first != second {
		t.Error("DumpAll is not idempotent without mutation")
	}
}

func TestDumpRendersUnsetAsNA(t *testing.T) {
	tl := newTestTimeline(nil)

	token := tl.Tokens().Issue(timing.TimelineItem{Start: base, End: base + ms(10), Present: base + ms(16)})
	sf := tl.CreateSurfaceFrame(token, 100, 1000, "app", "app")
	// No queue or acquire timestamps: the actual triple stays unset.
	sf.SetPresentState(timing.Dropped, 0)
	tl.AddSurfaceFrame(sf)

	presentFrame(tl, base+ms(11), base+ms(13), base+ms(16))

	dump := tl.DumpAll()
	if !strings.Contains(dump, "N/A") {
		t.Error("expected N/A for unset timestamps in dump")
	}
	if !strings.Contains(dump, "Dropped") {
		t.Error("expected dropped frame in dump")
	}
}

func TestDumpJankFiltersCleanFrames(t *testing.T) {
	tl := newTestTimeline(nil)

	// One clean frame, one late frame.
	presentFrame(tl, base, base+ms(2), base+ms(5))
	wake := base + ms(16)
	token := tl.Tokens().Issue(timing.TimelineItem{Start: wake, End: wake + ms(2), Present: wake + ms(5)})
	tl.SetWakeUp(token, wake, 60)
	tl.SetPresent(wake+ms(2), SignaledFence(wake+ms(15)))

	dump := tl.DumpJank()
	if !strings.Contains(dump, "1 display frames") {
		t.Errorf("janky-only dump should keep exactly one frame:\n%s", dump)
	}
	if !strings.Contains(dump, "[*]") {
		t.Error("janky frame should be flagged")
	}
}

func TestSetMaxDisplayFramesClearsWholesale(t *testing.T) {
	tl := newTestTimeline(nil)
	presentFrame(tl, base, base+ms(2), base+ms(5))

	pending := NewSoftwareFence()
	token := tl.Tokens().Issue(timing.TimelineItem{Start: base + ms(16), End: base + ms(18), Present: base + ms(21)})
	tl.SetWakeUp(token, base+ms(16), 60)
	tl.SetPresent(base+ms(18), pending)

	if err := tl.SetMaxDisplayFrames(8); err != nil {
		t.Fatal(err)
	}
	if got := tl.HistoryLen(); got != 0 {
		t.Errorf("resize kept %d history frames; want 0", got)
	}
	if got := tl.PendingLen(); got != 0 {
		t.Errorf("resize kept %d pending frames; want 0", got)
	}

	if err := tl.SetMaxDisplayFrames(0); err == nil {
		t.Error("expected error for non-positive history depth")
	}
}
