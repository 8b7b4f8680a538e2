// Package timing holds the core value types shared by the frame timeline:
// nanosecond timestamps, predicted/actual timing triples, classification
// enums and the jank-cause bitmask.
package timing

import "fmt"

// Nanos is a timestamp or duration on the monotonic clock, in nanoseconds.
// The zero value means "unset".
type Nanos = int64

// TimelineItem is the {start, end, present} triple describing one frame's
// lifecycle, either predicted or actual. Invariant when all three are set:
// Start <= End <= Present.
type TimelineItem struct {
	Start   Nanos
	End     Nanos
	Present Nanos
}

// MinTime returns the smallest set timestamp across predictions and actuals.
// Predictions only need their start checked since start <= end <= present.
func MinTime(predictionState PredictionState, predictions, actuals TimelineItem) Nanos {
	minTime := int64(1<<63 - 1)
	if predictionState == PredictionValid {
		minTime = min(minTime, predictions.Start)
	}
	if actuals.Start != 0 {
		minTime = min(minTime, actuals.Start)
	}
	if actuals.End != 0 {
		minTime = min(minTime, actuals.End)
	}
	if actuals.Present != 0 {
		minTime = min(minTime, actuals.Present)
	}
	return minTime
}

// PredictionState describes whether predicted timestamps were available when
// the frame's token was resolved.
type PredictionState int

const (
	// PredictionNone means no token was ever requested for the frame.
	PredictionNone PredictionState = iota
	// PredictionExpired means a token existed but aged out of the ledger
	// before it was looked up.
	PredictionExpired
	// PredictionValid means predictions are attached.
	PredictionValid
)

func (s PredictionState) String() string {
	switch s {
	case PredictionValid:
		return "Valid"
	case PredictionExpired:
		return "Expired"
	case PredictionNone:
		return "None"
	}
	return fmt.Sprintf("PredictionState(%d)", int(s))
}

// PresentState records the final outcome of a surface frame.
type PresentState int

const (
	PresentUnknown PresentState = iota
	Presented
	Dropped
)

func (s PresentState) String() string {
	switch s {
	case Presented:
		return "Presented"
	case Dropped:
		return "Dropped"
	case PresentUnknown:
		return "Unknown"
	}
	return fmt.Sprintf("PresentState(%d)", int(s))
}

// FramePresentMetadata classifies the actual present time against the
// predicted one.
type FramePresentMetadata int

const (
	UnknownPresent FramePresentMetadata = iota
	OnTimePresent
	LatePresent
	EarlyPresent
)

func (m FramePresentMetadata) String() string {
	switch m {
	case OnTimePresent:
		return "On Time Present"
	case LatePresent:
		return "Late Present"
	case EarlyPresent:
		return "Early Present"
	case UnknownPresent:
		return "Unknown Present"
	}
	return fmt.Sprintf("FramePresentMetadata(%d)", int(m))
}

// FrameReadyMetadata classifies the time the frame's work finished against
// the predicted deadline.
type FrameReadyMetadata int

const (
	UnknownFinish FrameReadyMetadata = iota
	OnTimeFinish
	LateFinish
)

func (m FrameReadyMetadata) String() string {
	switch m {
	case OnTimeFinish:
		return "On Time Finish"
	case LateFinish:
		return "Late Finish"
	case UnknownFinish:
		return "Unknown Finish"
	}
	return fmt.Sprintf("FrameReadyMetadata(%d)", int(m))
}

// FrameStartMetadata classifies the actual start time against the predicted
// one. Only display frames derive it.
type FrameStartMetadata int

const (
	UnknownStart FrameStartMetadata = iota
	OnTimeStart
	LateStart
	EarlyStart
)

func (m FrameStartMetadata) String() string {
	switch m {
	case OnTimeStart:
		return "On Time Start"
	case LateStart:
		return "Late Start"
	case EarlyStart:
		return "Early Start"
	case UnknownStart:
		return "Unknown Start"
	}
	return fmt.Sprintf("FrameStartMetadata(%d)", int(m))
}
