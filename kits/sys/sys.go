package sys

import (
	"bytes"
	"strconv"

	"github.com/chazu/svm/vm"
)

// ---------------------------------------------------------------------------
// Sys: memory
// ---------------------------------------------------------------------------

func sysPlatformType(v *vm.VM, _ []vm.Cell) vm.Cell {
	return stateOf(v).constStr(v, platformType)
}

// sysMalloc returns zeroed memory, or null when the VM is out of memory.
func sysMalloc(v *vm.VM, p []vm.Cell) vm.Cell {
	return vm.AddrCell(v.Memory().Malloc(int(p[0].Int())))
}

func sysFree(v *vm.VM, p []vm.Cell) vm.Cell {
	if a := p[0].Addr(); a != 0 && !v.Memory().Free(a) {
		log.Warningf("free of %#x: not an allocated block", uint32(a))
	}
	return vm.NullCell
}

// sysCopy is copy(src, srcOff, dest, destOff, num). The ranges may
// overlap.
func sysCopy(v *vm.VM, p []vm.Cell) vm.Cell {
	num := int(p[4].Int())
	if num <= 0 {
		return vm.NullCell
	}
	mem := v.Memory()
	src := mem.Bytes(p[0].Addr()+vm.Addr(p[1].Int()), num)
	copy(mem.WritableBytes(p[2].Addr()+vm.Addr(p[3].Int()), num), src)
	return vm.NullCell
}

func sysCompareBytes(v *vm.VM, p []vm.Cell) vm.Cell {
	n := int(p[4].Int())
	if n <= 0 {
		return vm.ZeroCell
	}
	mem := v.Memory()
	a := mem.Bytes(p[0].Addr()+vm.Addr(p[1].Int()), n)
	b := mem.Bytes(p[2].Addr()+vm.Addr(p[3].Int()), n)
	return vm.IntCell(int32(bytes.Compare(a, b)))
}

// byteRange resolves the (bytes, off, len) arguments shared by setBytes,
// andBytes and orBytes.
func byteRange(v *vm.VM, p []vm.Cell) []byte {
	n := int(p[3].Int())
	if n <= 0 {
		return nil
	}
	return v.Memory().WritableBytes(p[1].Addr()+vm.Addr(p[2].Int()), n)
}

func sysSetBytes(v *vm.VM, p []vm.Cell) vm.Cell {
	val := uint8(p[0])
	b := byteRange(v, p)
	for i := range b {
		b[i] = val
	}
	return vm.NullCell
}

func sysAndBytes(v *vm.VM, p []vm.Cell) vm.Cell {
	mask := uint8(p[0])
	b := byteRange(v, p)
	for i := range b {
		b[i] &= mask
	}
	return vm.NullCell
}

func sysOrBytes(v *vm.VM, p []vm.Cell) vm.Cell {
	mask := uint8(p[0])
	b := byteRange(v, p)
	for i := range b {
		b[i] |= mask
	}
	return vm.NullCell
}

func sysScodeAddr(_ *vm.VM, _ []vm.Cell) vm.Cell {
	return vm.AddrCell(vm.CodeBase)
}

// ---------------------------------------------------------------------------
// Sys: number formatting
// ---------------------------------------------------------------------------

// The formatting natives return the per-VM scratch buffer, so a result is
// only valid until the next call.

func sysIntStr(v *vm.VM, p []vm.Cell) vm.Cell {
	return stateOf(v).scratch(v, strconv.FormatInt(int64(p[0].Int()), 10))
}

func sysHexStr(v *vm.VM, p []vm.Cell) vm.Cell {
	return stateOf(v).scratch(v, strconv.FormatUint(uint64(uint32(p[0])), 16))
}

func sysLongStr(v *vm.VM, p []vm.Cell) vm.Cell {
	return stateOf(v).scratch(v, strconv.FormatInt(vm.WideArg(p, 0), 10))
}

func sysLongHexStr(v *vm.VM, p []vm.Cell) vm.Cell {
	return stateOf(v).scratch(v, strconv.FormatUint(uint64(vm.WideArg(p, 0)), 16))
}

func sysFloatStr(v *vm.VM, p []vm.Cell) vm.Cell {
	return stateOf(v).scratch(v, formatFloat(float64(p[0].Float())))
}

func sysDoubleStr(v *vm.VM, p []vm.Cell) vm.Cell {
	return stateOf(v).scratch(v, formatFloat(vm.DoubleArg(p, 0)))
}

// ---------------------------------------------------------------------------
// Sys: bit casts
// ---------------------------------------------------------------------------

// Cells and wide values already carry raw bits, so the casts are identity.

func sysFloatToBits(_ *vm.VM, p []vm.Cell) vm.Cell { return p[0] }
func sysBitsToFloat(_ *vm.VM, p []vm.Cell) vm.Cell { return p[0] }
func sysDoubleToBits(_ *vm.VM, p []vm.Cell) int64  { return vm.WideArg(p, 0) }
func sysBitsToDouble(_ *vm.VM, p []vm.Cell) int64  { return vm.WideArg(p, 0) }

// ---------------------------------------------------------------------------
// Sys: time and randomness
// ---------------------------------------------------------------------------

func sysTicks(_ *vm.VM, _ []vm.Cell) int64 { return ticks() }

// sysSleep sleeps for the given number of nanoseconds.
func sysSleep(_ *vm.VM, p []vm.Cell) vm.Cell {
	if ns := vm.WideArg(p, 0); ns > 0 {
		sleep(ns)
	}
	return vm.NullCell
}

func sysRand(v *vm.VM, _ []vm.Cell) vm.Cell {
	return vm.IntCell(int32(stateOf(v).rng.Uint32()))
}
