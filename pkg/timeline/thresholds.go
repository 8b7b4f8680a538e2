package timeline

import (
	"fmt"

	"FrameTimeline/pkg/timing"
)

// expiredDeadlineDelta is the sentinel deadline delta recorded for frames
// whose prediction token expired before classification.
const expiredDeadlineDelta timing.Nanos = -1

// Thresholds are the slack windows the classifiers compare deltas against.
type Thresholds struct {
	// Present: |actual present − predicted present| beyond this is Late/Early.
	Present timing.Nanos
	// Deadline: actual end − predicted end beyond this is a late finish.
	Deadline timing.Nanos
	// Start: |actual start − predicted start| beyond this is a late/early
	// start (display frames only).
	Start timing.Nanos
}

// DefaultThresholds matches the compositor defaults: 2ms of present and
// deadline slack, 2ms of start slack.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Present:  2_000_000,
		Deadline: 2_000_000,
		Start:    2_000_000,
	}
}

// checkBand verifies the near-zero and near-period bands of the vsync-factor
// test cannot overlap. An overlapping configuration would make the
// scheduling-vs-prediction distinction ambiguous, so it aborts.
func (t Thresholds) checkBand(vsyncPeriod timing.Nanos) {
	if 2*t.Present >= vsyncPeriod {
		panic(fmt.Sprintf("present threshold %dns must be under half the vsync period %dns",
			t.Present, vsyncPeriod))
	}
}

// nearVsyncBoundary reports whether deltaToVsync falls within the present
// threshold of either vsync edge, meaning the frame landed on a different
// vsync than predicted rather than drifting off cadence.
func (t Thresholds) nearVsyncBoundary(deltaToVsync, vsyncPeriod timing.Nanos) bool {
	t.checkBand(vsyncPeriod)
	return deltaToVsync < t.Present || deltaToVsync >= vsyncPeriod-t.Present
}

func abs(n timing.Nanos) timing.Nanos {
	if n < 0 {
		return -n
	}
	return n
}
