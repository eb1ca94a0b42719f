//go:build linux

package sys

import "golang.org/x/sys/unix"

// memAvailable returns the free system RAM in bytes.
func memAvailable() int64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		log.Warningf("sysinfo: %v", err)
		return 0
	}
	return int64(info.Freeram) * int64(info.Unit)
}
