package sys

import "github.com/chazu/svm/vm"

func platformID(v *vm.VM, _ []vm.Cell) vm.Cell {
	return stateOf(v).constStr(v, PlatformID)
}

func platformVersion(v *vm.VM, _ []vm.Cell) vm.Cell {
	return stateOf(v).constStr(v, PlatformVersion)
}

// platformNativeChecksum returns the checksum of the native declarations
// the sys kit table was generated from.
func platformNativeChecksum(v *vm.VM, _ []vm.Cell) vm.Cell {
	return stateOf(v).constStr(v, NativeChecksum)
}

func platformMemAvailable(_ *vm.VM, _ []vm.Cell) int64 {
	return memAvailable()
}
