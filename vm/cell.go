package vm

import "math"

// ---------------------------------------------------------------------------
// Cell: one untagged 32-bit stack word
// ---------------------------------------------------------------------------

// Cell is a 32-bit stack word. Its meaning (int, float or address) is
// decided by the instruction that consumes it.
type Cell uint32

// Addr is a virtual address inside a VM's memory.
type Addr uint32

const (
	ZeroCell   Cell = 0
	NullCell   Cell = 0
	FalseCell  Cell = 0
	TrueCell   Cell = 1
	NegOneCell Cell = 0xffffffff
)

// Null sentinels for primitive slots.
const (
	NullBool   Cell   = 2
	NullFloat  Cell   = 0x7fc00000
	NullDouble uint64 = 0x7ff8000000000000
)

// IntCell returns the cell holding v.
func IntCell(v int32) Cell { return Cell(uint32(v)) }

// FloatCell returns the cell holding the bits of v.
func FloatCell(v float32) Cell { return Cell(math.Float32bits(v)) }

// AddrCell returns the cell holding address a.
func AddrCell(a Addr) Cell { return Cell(a) }

// BoolCell returns TrueCell or FalseCell.
func BoolCell(b bool) Cell {
	if b {
		return TrueCell
	}
	return FalseCell
}

// Int reads the cell as a signed int.
func (c Cell) Int() int32 { return int32(c) }

// Float reads the cell as a float.
func (c Cell) Float() float32 { return math.Float32frombits(uint32(c)) }

// Addr reads the cell as an address.
func (c Cell) Addr() Addr { return Addr(c) }

// Wide joins a low and high cell into a 64-bit value.
func Wide(lo, hi Cell) int64 {
	return int64(uint64(lo) | uint64(hi)<<32)
}

// SplitWide splits v into its low and high cells.
func SplitWide(v int64) (lo, hi Cell) {
	return Cell(uint32(v)), Cell(uint32(uint64(v) >> 32))
}

// WideArg reads the 64-bit argument that starts at params[i].
func WideArg(params []Cell, i int) int64 {
	return Wide(params[i], params[i+1])
}

// DoubleArg reads the double argument that starts at params[i].
func DoubleArg(params []Cell, i int) float64 {
	return math.Float64frombits(uint64(WideArg(params, i)))
}

// DoubleBits returns the 64-bit pattern of v as an int64.
func DoubleBits(v float64) int64 { return int64(math.Float64bits(v)) }
