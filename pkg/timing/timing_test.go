package timing

import (
	"strings"
	"testing"
)

func TestJankTypeStringDecodesMask(t *testing.T) {
	if got := JankNone.String(); got != "None" {
		t.Errorf("got %q; want %q", got, "None")
	}

	mask := JankBufferStuffing | JankProducerDeadlineMissed
	s := mask.String()
	if !strings.Contains(s, "Buffer Stuffing") || !strings.Contains(s, "Producer Deadline Missed") {
		t.Errorf("mask %q missing expected causes", s)
	}

	names := mask.Names()
	if len(names) != 2 {
		t.Errorf("expected 2 cause names, got %d: %v", len(names), names)
	}
}

func TestJankTypePanicsOnUnknownBits(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on unrecognized jank bits")
		}
	}()
	_ = JankType(1 << 30).String()
}

func TestFpsPeriodRoundTrip(t *testing.T) {
	cases := []struct {
		fps    Fps
		period Nanos
	}{
		{60, 16_666_667},
		{90, 11_111_111},
		{120, 8_333_333},
	}
	for _, tc := range cases {
		if got := tc.fps.Period(); got != tc.period {
			t.Errorf("%s: got period %d; want %d", tc.fps, got, tc.period)
		}
		back := FpsFromPeriod(tc.period)
		if !back.Equals(tc.fps) {
			t.Errorf("period %d: got %s; want %s", tc.period, back, tc.fps)
		}
	}
}

func TestFpsRangeIncludesWithMargin(t *testing.T) {
	r := FpsRange{Min: 60, Max: 90}
	if !r.Includes(60) || !r.Includes(90) || !r.Includes(75) {
		t.Error("expected range to include its bounds and interior")
	}
	if !r.Includes(59.9995) {
		t.Error("expected margin to admit a rate within epsilon of the bound")
	}
	if r.Includes(120) || r.Includes(30) {
		t.Error("expected range to exclude rates outside it")
	}
}

func TestMinTimeSkipsUnsetFields(t *testing.T) {
	predictions := TimelineItem{Start: 100, End: 200, Present: 300}
	actuals := TimelineItem{End: 50}

	if got := MinTime(PredictionValid, predictions, actuals); got != 50 {
		t.Errorf("got %d; want 50", got)
	}
	if got := MinTime(PredictionExpired, predictions, actuals); got != 50 {
		t.Errorf("expired predictions should be ignored; got %d; want 50", got)
	}
}
