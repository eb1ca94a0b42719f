// Package sys implements the natives of the sys kit (kit id 0): Sys,
// Component, Type, Str, Test, StdOutStream and PlatformService.
package sys

import (
	"runtime"

	"github.com/chazu/svm/vm"
	"github.com/tliron/commonlog"
)

//go:generate go run ../../cmd/svm-nativegen -in natives.toml -out natives_gen.go

var log = commonlog.GetLogger("svm.sys")

// Platform identification reported by PlatformService.
var (
	PlatformID      = "svm-" + runtime.GOOS + "-" + runtime.GOARCH
	PlatformVersion = "0.1.0"
)

const platformType = "sys::Platform"

// Kit returns the sys kit's native table.
func Kit() *vm.Kit { return nativeKit() }

// NativeTable returns a table holding the sys kit followed by extra.
func NativeTable(extra ...*vm.Kit) (*vm.NativeTable, error) {
	return vm.NewNativeTable(append([]*vm.Kit{Kit()}, extra...)...)
}
