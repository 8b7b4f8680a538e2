package timeline

import (
	"fmt"
	"strings"

	"FrameTimeline/pkg/timing"
)

// DumpAll renders the full retained history as a text table.
func (t *Timeline) DumpAll() string { return t.dump(false) }

// DumpJank renders only the display frames that carry a jank verdict, and
// within them only the janky surface frames.
func (t *Timeline) DumpJank() string { return t.dump(true) }

// ParseArgs dispatches on the dump filter tokens: "-jank" selects the
// janky-only view, anything else (including no args) the full view.
func (t *Timeline) ParseArgs(args []string) string {
	for _, arg := range args {
		if arg == "-jank" {
			return t.DumpJank()
		}
	}
	return t.DumpAll()
}

func (t *Timeline) dump(jankOnly bool) string {
	t.mu.Lock()
	frames := make([]*DisplayFrame, len(t.history))
	copy(frames, t.history)
	t.mu.Unlock()

	if jankOnly {
		kept := frames[:0]
		for _, df := range frames {
			if df.isJanky() {
				kept = append(kept, df)
			}
		}
		frames = kept
	}
	if len(frames) == 0 {
		return "FrameTimeline history (0 display frames)\n"
	}

	base := frames[0].minTime()
	for _, df := range frames[1:] {
		if mt := df.minTime(); mt < base {
			base = mt
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FrameTimeline history (%d display frames, base %dns)\n", len(frames), base)
	for _, df := range frames {
		b.WriteString("\n")
		dumpDisplayFrame(&b, df, base, jankOnly)
	}
	return b.String()
}

// isJanky is only called on finalized frames, which are immutable.
func (df *DisplayFrame) isJanky() bool {
	if df.jank != timing.JankNone {
		return true
	}
	for _, sf := range df.surfaceFrames {
		if sf.JankType() != timing.JankNone {
			return true
		}
	}
	return false
}

func dumpDisplayFrame(b *strings.Builder, df *DisplayFrame, base timing.Nanos, jankOnly bool) {
	flag := ""
	if df.jank != timing.JankNone {
		flag = " [*]"
	}
	fmt.Fprintf(b, "Display frame token=%d%s\n", df.token, flag)
	fmt.Fprintf(b, "  refresh: %s  jank: %s\n", df.refreshRate, df.jank)
	fmt.Fprintf(b, "  start: %s  ready: %s  present: %s\n",
		df.startMetadata, df.readyMetadata, df.presentMetadata)
	fmt.Fprintf(b, "  predicted start/end/present: %s\n",
		fmtTriple(df.predictions, df.predictionState == timing.PredictionValid, base))
	fmt.Fprintf(b, "  actual    start/end/present: %s\n", fmtTriple(df.actuals, true, base))
	if df.predictionState == timing.PredictionValid {
		fmt.Fprintf(b, "  deadline delta: %s  present delta: %s\n",
			fmtDelta(df.deadlineDelta), fmtDelta(df.presentDelta))
	}

	for _, sf := range df.surfaceFrames {
		s := sf.snapshot()
		if jankOnly && s.jank == timing.JankNone {
			continue
		}
		flag = "   "
		if s.jank != timing.JankNone {
			flag = "[*]"
		}
		fmt.Fprintf(b, "  %s surface %s token=%d pid=%d uid=%d %s\n",
			flag, s.layerName, s.token, s.ownerPID, s.ownerUID, s.presentState)
		fmt.Fprintf(b, "      jank: %s  ready: %s  present: %s\n",
			s.jank, s.readyMetadata, s.presentMetadata)
		fmt.Fprintf(b, "      predicted: %s  actual: %s\n",
			fmtTriple(s.predictions, s.predictionState == timing.PredictionValid, base),
			fmtTriple(s.actuals, true, base))
		if s.predictionState == timing.PredictionValid {
			fmt.Fprintf(b, "      deadline delta: %s  present delta: %s\n",
				fmtDelta(s.deadlineDelta), fmtDelta(s.presentDelta))
		}
	}
}

// fmtTriple renders a triple relative to the base time, degrading to N/A per
// field when unset rather than failing the dump.
func fmtTriple(item timing.TimelineItem, valid bool, base timing.Nanos) string {
	if !valid {
		return "N/A / N/A / N/A"
	}
	return fmt.Sprintf("%s / %s / %s",
		fmtTime(item.Start, base), fmtTime(item.End, base), fmtTime(item.Present, base))
}

func fmtTime(t, base timing.Nanos) string {
	if t == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2fms", float64(t-base)/1e6)
}

func fmtDelta(d timing.Nanos) string {
	return fmt.Sprintf("%.2fms", float64(d)/1e6)
}
