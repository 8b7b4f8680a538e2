package refresh

import (
	"math"

	"FrameTimeline/pkg/timing"
)

// maxFramesToFit bounds the cadence search for fractional dividers; scores
// below 1/maxFramesToFit are not worth distinguishing.
const maxFramesToFit = 10

// SelectBestRate enumerates the allowed candidate rates under the current
// policy, scores every layer requirement against each, and returns the
// winner. Among equal top scores the lowest rate wins, to minimize power.
func (e *Engine) SelectBestRate(layers []LayerRequirement, signals GlobalSignals) RefreshRate {
	e.mu.Lock()
	defer e.mu.Unlock()

	policy := e.currentPolicyLocked()

	noVote, explicitExact, explicit := 0, 0, 0
	for _, layer := range layers {
		switch {
		case layer.Vote == NoVote:
			noVote++
		case layer.Vote == VoteExplicitExact:
			explicitExact++
			explicit++
		case layer.Vote.IsExplicit():
			explicit++
		}
	}

	// Touch boost pushes to the top of the primary range, unless an app
	// pinned an exact rate. Idle pulls to the bottom when there is no touch.
	if signals.Touch && explicitExact == 0 {
		return e.maxByPolicyLocked()
	}
	if signals.Idle && !signals.Touch {
		return e.minByPolicyLocked()
	}
	if len(layers) == 0 || noVote == len(layers) {
		return e.maxByPolicyLocked()
	}

	// Only explicit app votes widen the candidate set beyond the primary
	// range.
	candidates := e.primary
	if explicit > 0 {
		candidates = e.appRequest
	}

	span := timing.FpsRange{Min: candidates[0].Fps, Max: candidates[len(candidates)-1].Fps}
	currentGroup := e.rates[e.currentConfig].ConfigGroup

	scores := make([]float64, len(candidates))
	for _, layer := range layers {
		if layer.Vote == NoVote {
			continue
		}
		weight := layer.Weight
		if layer.Focused {
			weight *= 2
		}
		for i, rate := range candidates {
			if layer.Seamlessness == OnlySeamless && rate.ConfigGroup != currentGroup {
				// A group switch would flicker and the layer forbids it.
				continue
			}
			if !policy.PrimaryRange.Includes(rate.Fps) && !layer.Vote.IsExplicit() {
				// Only explicit votes may score outside the primary range.
				continue
			}
			scores[i] += weight * layerScore(layer, rate, span)
		}
	}

	best := -1
	for i := range scores {
		if scores[i] > 0 && (best < 0 || scores[i] > scores[best]) {
			best = i
		}
	}
	if best < 0 {
		// Nothing scored, e.g. seamlessness filtered every candidate.
		return e.rates[policy.DefaultConfig]
	}
	return candidates[best]
}

// layerScore rates how well one candidate serves one layer, in [0, 1].
func layerScore(layer LayerRequirement, rate RefreshRate, span timing.FpsRange) float64 {
	switch layer.Vote {
	case VoteMin:
		ratio := float64(span.Min) / float64(rate.Fps)
		return ratio * ratio
	case VoteMax:
		ratio := float64(rate.Fps) / float64(span.Max)
		return ratio * ratio
	case VoteExplicitExact:
		divider := FrameRateDivider(rate.Fps, layer.DesiredFps)
		if divider == 0 {
			return 0
		}
		return dividerScore(divider)
	case VoteHeuristic, VoteExplicitDefault, VoteExplicitExactOrMultiple:
		if !layer.DesiredFps.IsValid() {
			return 0
		}
		return fitScore(layer.DesiredFps.Period(), rate.VsyncPeriod)
	}
	return 0
}

// dividerScore maps an integer divider to a score: an exact match is ideal,
// and among even dividers a finer-grained display (larger divider) is
// preferred since it presents the layer on cadence while leaving headroom
// for everyone else. All values stay strictly below the exact-match score.
func dividerScore(divider int) float64 {
	if divider == 1 {
		return 1.0
	}
	return 1.0 - 1.0/(2.0*float64(divider))
}

// fitScore rates how well the candidate's vsync period divides the layer's
// desired period. Even dividers score through dividerScore; a layer faster
// than the display or a fractional cadence is penalized.
func fitScore(layerPeriod, displayPeriod timing.Nanos) float64 {
	quot, rem := displayFrames(layerPeriod, displayPeriod)
	if rem == 0 {
		return dividerScore(quot)
	}
	if quot == 0 {
		// The layer wants to render faster than the display refreshes.
		return float64(layerPeriod) / float64(displayPeriod) / (maxFramesToFit + 1)
	}

	// Fractional divider: walk the cadence to see how quickly the phase
	// error accumulates. The slower it accumulates the better the fit.
	diff := rem - (displayPeriod - rem)
	if diff < 0 {
		diff = -diff
	}
	iter := 2
	for diff > PeriodMargin && iter < maxFramesToFit {
		diff = diff - (displayPeriod - diff)
		if diff < 0 {
			diff = -diff
		}
		iter++
	}
	return 1.0 / float64(iter)
}

// displayFrames returns how many display vsyncs fit in the layer period,
// folding a remainder within PeriodMargin of either bound to zero.
func displayFrames(layerPeriod, displayPeriod timing.Nanos) (int, timing.Nanos) {
	quot := layerPeriod / displayPeriod
	rem := layerPeriod % displayPeriod
	if rem <= PeriodMargin {
		rem = 0
	} else if displayPeriod-rem <= PeriodMargin {
		quot++
		rem = 0
	}
	return int(quot), rem
}

// FrameRateDivider returns the integer by which the display rate must be
// divided to match the layer rate, or 0 when no integer divider fits within
// tolerance.
func FrameRateDivider(displayFps, layerFps timing.Fps) int {
	if !layerFps.IsValid() || !displayFps.IsValid() {
		return 0
	}
	numPeriods := float64(displayFps) / float64(layerFps)
	rounded := math.Round(numPeriods)
	if rounded < 1 {
		return 0
	}
	if math.Abs(numPeriods-rounded) > 0.01 {
		return 0
	}
	return int(rounded)
}

// FrameRateOverrides computes per-application frame-rate caps: a uid gets an
// override when all of its layers unanimously request the same rate and that
// rate evenly divides the display rate. Touch cancels all overrides so
// interaction stays at full rate.
func (e *Engine) FrameRateOverrides(layers []LayerRequirement, displayFps timing.Fps, touch bool) map[uint32]timing.Fps {
	overrides := make(map[uint32]timing.Fps)
	if touch {
		return overrides
	}

	conflicting := make(map[uint32]bool)
	for _, layer := range layers {
		if !layer.Vote.IsExplicit() || !layer.DesiredFps.IsValid() {
			continue
		}
		if conflicting[layer.OwnerUID] {
			continue
		}
		if prev, ok := overrides[layer.OwnerUID]; ok && !prev.Equals(layer.DesiredFps) {
			delete(overrides, layer.OwnerUID)
			conflicting[layer.OwnerUID] = true
			continue
		}
		if FrameRateDivider(displayFps, layer.DesiredFps) == 0 {
			conflicting[layer.OwnerUID] = true
			delete(overrides, layer.OwnerUID)
			continue
		}
		overrides[layer.OwnerUID] = layer.DesiredFps
	}
	return overrides
}
