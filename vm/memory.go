package vm

import (
	"encoding/binary"
	"math"
	"sort"
)

// ---------------------------------------------------------------------------
// Memory: a segmented 32-bit address space
// ---------------------------------------------------------------------------

const (
	// NullGuard is the size of the unmapped region at address 0. Any
	// access below it is reported as a null pointer dereference.
	NullGuard Addr = 0x1000

	// CodeBase is where the image is mapped.
	CodeBase Addr = 0x10000

	// DefaultMemoryLimit caps the bytes a VM may map, image included.
	DefaultMemoryLimit = 64 << 20

	segmentAlign = 16
	guardGap     = 0x100
)

var le = binary.LittleEndian

// memFault is raised by an out-of-segment access and recovered by the
// interpreter.
type memFault struct {
	addr  Addr
	write bool
}

func (f memFault) null() bool { return f.addr < NullGuard }

type segment struct {
	base     Addr
	data     []byte
	reserved uint32 // address range owned, >= len(data)
	readOnly bool
}

type span struct {
	base Addr
	size uint32
}

// Memory maps the code image, the static data block and heap blocks into
// one address space. All accessors are bounds-checked against the owning
// segment and use little-endian byte order.
type Memory struct {
	segs  []*segment
	last  *segment
	next  Addr
	free  []span
	used  int
	limit int
}

// NewMemory creates an empty address space that will map at most limit
// bytes. A limit <= 0 selects DefaultMemoryLimit.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{next: CodeBase, limit: limit}
}

// MapCode maps img read-only at CodeBase. It must be the first mapping.
func (m *Memory) MapCode(img []byte) Addr {
	if m.next != CodeBase || len(img) > m.limit {
		return 0
	}
	return m.mapSegment(img, true)
}

// Malloc maps n zeroed bytes and returns their address, or 0 if the
// address space or the memory limit is exhausted.
func (m *Memory) Malloc(n int) Addr {
	if n < 0 || m.used+n > m.limit {
		return 0
	}
	for i, s := range m.free {
		if int(s.size) >= n {
			m.free = append(m.free[:i], m.free[i+1:]...)
			seg := &segment{base: s.base, data: make([]byte, n), reserved: s.size}
			m.insert(seg)
			m.used += n
			return seg.base
		}
	}
	return m.mapSegment(make([]byte, n), false)
}

func (m *Memory) mapSegment(data []byte, readOnly bool) Addr {
	size := uint64(len(data))
	if size == 0 {
		size = 1
	}
	reserved := (size + segmentAlign - 1) &^ (segmentAlign - 1)
	end := uint64(m.next) + reserved + guardGap
	if end > math.MaxUint32 {
		return 0
	}
	seg := &segment{base: m.next, data: data, reserved: uint32(reserved), readOnly: readOnly}
	m.next = Addr(end)
	m.insert(seg)
	m.used += len(data)
	return seg.base
}

func (m *Memory) insert(seg *segment) {
	i := sort.Search(len(m.segs), func(i int) bool { return m.segs[i].base > seg.base })
	m.segs = append(m.segs, nil)
	copy(m.segs[i+1:], m.segs[i:])
	m.segs[i] = seg
}

// Free unmaps the block at a. It reports false if a is not the start of a
// heap block.
func (m *Memory) Free(a Addr) bool {
	i := sort.Search(len(m.segs), func(i int) bool { return m.segs[i].base >= a })
	if i == len(m.segs) || m.segs[i].base != a || m.segs[i].readOnly {
		return false
	}
	seg := m.segs[i]
	m.segs = append(m.segs[:i], m.segs[i+1:]...)
	if m.last == seg {
		m.last = nil
	}
	m.used -= len(seg.data)
	m.free = append(m.free, span{seg.base, seg.reserved})
	return true
}

// Used returns the number of mapped bytes.
func (m *Memory) Used() int { return m.used }

// Valid reports whether n bytes at a are mapped.
func (m *Memory) Valid(a Addr, n int) bool {
	_, ok := m.lookup(a, n)
	return ok
}

func (m *Memory) lookup(a Addr, n int) ([]byte, bool) {
	if a < NullGuard {
		return nil, false
	}
	seg := m.last
	if seg == nil || a < seg.base || uint64(a-seg.base)+uint64(n) > uint64(len(seg.data)) {
		i := sort.Search(len(m.segs), func(i int) bool { return m.segs[i].base > a }) - 1
		if i < 0 {
			return nil, false
		}
		seg = m.segs[i]
		if uint64(a-seg.base)+uint64(n) > uint64(len(seg.data)) {
			return nil, false
		}
		m.last = seg
	}
	off := a - seg.base
	return seg.data[off : int(off)+n], true
}

func (m *Memory) read(a Addr, n int) []byte {
	b, ok := m.lookup(a, n)
	if !ok {
		panic(memFault{addr: a})
	}
	return b
}

func (m *Memory) write(a Addr, n int) []byte {
	b, ok := m.lookup(a, n)
	if !ok || m.last.readOnly {
		panic(memFault{addr: a, write: true})
	}
	return b
}

// ---------------------------------------------------------------------------
// Typed accessors
// ---------------------------------------------------------------------------

func (m *Memory) Uint8(a Addr) uint8 { return m.read(a, 1)[0] }

func (m *Memory) SetUint8(a Addr, v uint8) { m.write(a, 1)[0] = v }

func (m *Memory) Uint16(a Addr) uint16 { return le.Uint16(m.read(a, 2)) }

func (m *Memory) SetUint16(a Addr, v uint16) { le.PutUint16(m.write(a, 2), v) }

func (m *Memory) Uint32(a Addr) uint32 { return le.Uint32(m.read(a, 4)) }

func (m *Memory) SetUint32(a Addr, v uint32) { le.PutUint32(m.write(a, 4), v) }

func (m *Memory) Int32(a Addr) int32 { return int32(m.Uint32(a)) }

func (m *Memory) Int64(a Addr) int64 { return int64(le.Uint64(m.read(a, 8))) }

func (m *Memory) SetInt64(a Addr, v int64) { le.PutUint64(m.write(a, 8), uint64(v)) }

func (m *Memory) Float32(a Addr) float32 { return math.Float32frombits(m.Uint32(a)) }

func (m *Memory) Float64(a Addr) float64 { return math.Float64frombits(uint64(m.Int64(a))) }

// Ref reads a stored pointer.
func (m *Memory) Ref(a Addr) Addr { return Addr(m.Uint32(a)) }

// SetRef stores a pointer.
func (m *Memory) SetRef(a Addr, v Addr) { m.SetUint32(a, uint32(v)) }

// Bytes returns a read-only view of n bytes at a.
func (m *Memory) Bytes(a Addr, n int) []byte { return m.read(a, n) }

// WritableBytes returns a mutable view of n bytes at a.
func (m *Memory) WritableBytes(a Addr, n int) []byte { return m.write(a, n) }

// CString reads the NUL-terminated string at a. The string ends at the
// end of its segment if no terminator is found.
func (m *Memory) CString(a Addr) string {
	m.read(a, 1)
	seg := m.last
	data := seg.data[a-seg.base:]
	for i, c := range data {
		if c == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}

// WriteCString copies s plus a terminator to a, truncating to max bytes
// including the terminator.
func (m *Memory) WriteCString(a Addr, s string, max int) {
	if len(s) >= max {
		s = s[:max-1]
	}
	b := m.write(a, len(s)+1)
	copy(b, s)
	b[len(s)] = 0
}
