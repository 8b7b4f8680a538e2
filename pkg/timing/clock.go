package timing

import "golang.org/x/sys/unix"

// Now returns the current monotonic clock reading in nanoseconds. All
// timestamps flowing through the timeline use this clock so deltas between
// predicted and actual times are meaningful.
func Now() Nanos {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Nano()
}
