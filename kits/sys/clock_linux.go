//go:build linux

package sys

import (
	"time"

	"golang.org/x/sys/unix"
)

var start = time.Now()

// ticks returns CLOCK_MONOTONIC in nanoseconds.
func ticks() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return int64(time.Since(start))
	}
	return ts.Nano()
}

func sleep(ns int64) {
	ts := unix.NsecToTimespec(ns)
	for {
		err := unix.Nanosleep(&ts, &ts)
		if err != unix.EINTR {
			return
		}
	}
}
