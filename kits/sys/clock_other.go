//go:build !linux

package sys

import "time"

var start = time.Now()

func ticks() int64 { return int64(time.Since(start)) }

func sleep(ns int64) { time.Sleep(time.Duration(ns)) }
