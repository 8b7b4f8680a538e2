package timing

import (
	"fmt"
	"strings"
)

// JankType is a bitmask of jank causes. A classified frame may carry several
// causes at once.
type JankType int32

// JankNone is the empty mask: no deadline was missed.
const JankNone JankType = 0

const (
	// JankDisplayDriverLate: the display driver presented the frame a full
	// vsync later than the compositor asked for.
	JankDisplayDriverLate JankType = 1 << iota
	// JankCompositorCpuDeadlineMissed: the compositor's own CPU work ran
	// past its deadline.
	JankCompositorCpuDeadlineMissed
	// JankCompositorGpuDeadlineMissed: composition work on the GPU ran past
	// its deadline.
	JankCompositorGpuDeadlineMissed
	// JankProducerDeadlineMissed: the frame producer finished its work late.
	JankProducerDeadlineMissed
	// JankPredictionError: the scheduler's predictions drifted from the
	// actual vsync cadence.
	JankPredictionError
	// JankCompositorScheduling: the compositor latched onto an unexpected
	// vsync; the delta to present is a multiple of the refresh period.
	JankCompositorScheduling
	// JankBufferStuffing: the producer queued buffers faster than they could
	// be latched, so the frame waited out an extra vsync.
	JankBufferStuffing
	// JankUnknown: a deadline was missed but no cause could be attributed.
	JankUnknown
)

var jankNames = []struct {
	bit  JankType
	name string
}{
	{JankDisplayDriverLate, "Display Driver Late"},
	{JankCompositorCpuDeadlineMissed, "Compositor CPU Deadline Missed"},
	{JankCompositorGpuDeadlineMissed, "Compositor GPU Deadline Missed"},
	{JankProducerDeadlineMissed, "Producer Deadline Missed"},
	{JankPredictionError, "Prediction Error"},
	{JankCompositorScheduling, "Compositor Scheduling"},
	{JankBufferStuffing, "Buffer Stuffing"},
	{JankUnknown, "Unknown jank"},
}

// String decodes the bitmask into a comma-separated cause list. Leftover bits
// after decoding indicate a corrupted mask and abort.
func (j JankType) String() string {
	if j == JankNone {
		return "None"
	}
	var names []string
	rest := j
	for _, e := range jankNames {
		if rest&e.bit != 0 {
			names = append(names, e.name)
			rest &^= e.bit
		}
	}
	if rest != 0 {
		panic(fmt.Sprintf("unrecognized jank type value %#x", int32(rest)))
	}
	return strings.Join(names, ", ")
}

// Names returns the individual cause names set in the mask, decoding with the
// same invariant as String.
func (j JankType) Names() []string {
	if j == JankNone {
		return []string{"None"}
	}
	var names []string
	rest := j
	for _, e := range jankNames {
		if rest&e.bit != 0 {
			names = append(names, e.name)
			rest &^= e.bit
		}
	}
	if rest != 0 {
		panic(fmt.Sprintf("unrecognized jank type value %#x", int32(rest)))
	}
	return names
}
