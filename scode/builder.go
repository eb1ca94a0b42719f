package scode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Builder: assembles scode images
// ---------------------------------------------------------------------------

// ErrUnboundRef is returned by Build when a referenced block was never placed.
var ErrUnboundRef = errors.New("unbound block reference")

// Ref is a block index that may be referenced before the block is placed.
type Ref struct {
	name   string
	bix    uint16
	bound  bool
	fixups []int // byte offsets of u2 slots waiting for bix
}

// Bix returns the bound block index. It panics if the ref is unbound.
func (r *Ref) Bix() uint16 {
	if !r.bound {
		panic("scode: ref " + r.name + " not bound")
	}
	return r.bix
}

// Bound reports whether the ref has been placed.
func (r *Ref) Bound() bool { return r.bound }

// Builder lays out an image: header, then block-aligned methods and
// descriptors in call order, then pooled constants. A method must be
// finished before the next method or descriptor is started.
type Builder struct {
	buf    []byte
	refs   []*Ref
	Header Header

	main, resume, tests, kits *Ref

	pending []pooled
	strs    map[string]*Ref
}

type pooled struct {
	ref  *Ref
	emit func()
}

// NewBuilder creates a builder with a current-version header.
func NewBuilder() *Builder {
	return &Builder{
		buf: make([]byte, HeaderSize, 256),
		Header: Header{
			Magic:     Magic,
			Major:     MajorVersion,
			Minor:     MinorVersion,
			BlockSize: BlockSize,
			RefSize:   RefSize,
		},
	}
}

// NewRef creates an unbound block reference. The name is only used in
// error messages.
func (b *Builder) NewRef(name string) *Ref {
	r := &Ref{name: name, fixups: make([]int, 0, 2)}
	b.refs = append(b.refs, r)
	return r
}

// Len returns the current image length in bytes.
func (b *Builder) Len() int { return len(b.buf) }

func (b *Builder) align() {
	for len(b.buf)%BlockSize != 0 {
		b.buf = append(b.buf, 0)
	}
}

// Bind places r at the next block boundary.
func (b *Builder) Bind(r *Ref) {
	if r.bound {
		panic("scode: ref " + r.name + " already bound")
	}
	b.align()
	bix := len(b.buf) / BlockSize
	if bix > math.MaxUint16 {
		panic("scode: image exceeds block index range")
	}
	r.bix = uint16(bix)
	r.bound = true
	for _, at := range r.fixups {
		binary.LittleEndian.PutUint16(b.buf[at:], r.bix)
	}
	r.fixups = nil
}

func (b *Builder) u1(v uint8)  { b.buf = append(b.buf, v) }
func (b *Builder) u2(v uint16) { b.buf = binary.LittleEndian.AppendUint16(b.buf, v) }
func (b *Builder) u4(v uint32) { b.buf = binary.LittleEndian.AppendUint32(b.buf, v) }

// ref appends a u2 block index for r, or 0 when r is nil.
func (b *Builder) ref(r *Ref) {
	switch {
	case r == nil:
		b.u2(0)
	case r.bound:
		b.u2(r.bix)
	default:
		r.fixups = append(r.fixups, len(b.buf))
		b.u2(0)
	}
}

// ---------------------------------------------------------------------------
// Header wiring
// ---------------------------------------------------------------------------

// SetMain sets the main method.
func (b *Builder) SetMain(r *Ref) { b.main = r }

// SetResume sets the resume method.
func (b *Builder) SetResume(r *Ref) { b.resume = r }

// SetTests sets the test table block.
func (b *Builder) SetTests(r *Ref) { b.tests = r }

// SetKits sets the kits table block and kit count.
func (b *Builder) SetKits(r *Ref, n int) {
	b.kits = r
	b.Header.NumKits = uint8(n)
}

// SetDataSize sets the static data size in bytes.
func (b *Builder) SetDataSize(n uint32) { b.Header.DataSize = n }

// SetFlags sets the scode flags.
func (b *Builder) SetFlags(f uint8) { b.Header.Flags = f }

// Build places pooled constants and finishes the image. The header code
// size is set to the final length.
func (b *Builder) Build() ([]byte, error) {
	b.flushPool()
	b.align()
	for _, r := range b.refs {
		if !r.bound && len(r.fixups) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnboundRef, r.name)
		}
	}
	h := b.Header
	h.CodeSize = uint32(len(b.buf))
	var err error
	if h.Main, err = bixOf(b.main, h.Main); err != nil {
		return nil, err
	}
	if h.Resume, err = bixOf(b.resume, h.Resume); err != nil {
		return nil, err
	}
	if h.Tests, err = bixOf(b.tests, h.Tests); err != nil {
		return nil, err
	}
	if h.Kits, err = bixOf(b.kits, h.Kits); err != nil {
		return nil, err
	}
	img := make([]byte, len(b.buf))
	copy(img, b.buf)
	h.Encode(img)
	return img, nil
}

func bixOf(r *Ref, def uint16) (uint16, error) {
	if r == nil {
		return def, nil
	}
	if !r.bound {
		return 0, fmt.Errorf("%w: %s", ErrUnboundRef, r.name)
	}
	return r.bix, nil
}

// ---------------------------------------------------------------------------
// Data blocks
// ---------------------------------------------------------------------------

// Constants are pooled: each helper returns an unbound ref and Build lays
// the blocks out after the last method, so they may be created while a
// method body is still open. Identical strings share one block.

func (b *Builder) pool(name string, emit func()) *Ref {
	r := b.NewRef(name)
	b.pending = append(b.pending, pooled{r, emit})
	return r
}

func (b *Builder) flushPool() {
	for len(b.pending) > 0 {
		p := b.pending[0]
		b.pending = b.pending[1:]
		b.Bind(p.ref)
		p.emit()
	}
}

// Str pools a NUL-terminated string.
func (b *Builder) Str(s string) *Ref {
	if r, ok := b.strs[s]; ok {
		return r
	}
	r := b.pool("str "+s, func() {
		b.buf = append(b.buf, s...)
		b.u1(0)
	})
	if b.strs == nil {
		b.strs = make(map[string]*Ref)
	}
	b.strs[s] = r
	return r
}

// Block pools raw bytes.
func (b *Builder) Block(data []byte) *Ref {
	return b.pool("block", func() { b.buf = append(b.buf, data...) })
}

// Int32 pools a 32-bit int constant.
func (b *Builder) Int32(v int32) *Ref {
	return b.pool("int", func() { b.u4(uint32(v)) })
}

// Int64 pools a 64-bit long constant.
func (b *Builder) Int64(v int64) *Ref {
	return b.pool("long", func() { b.buf = binary.LittleEndian.AppendUint64(b.buf, uint64(v)) })
}

// Float32 pools a float constant.
func (b *Builder) Float32(v float32) *Ref {
	return b.pool("float", func() { b.u4(math.Float32bits(v)) })
}

// Float64 pools a double constant.
func (b *Builder) Float64(v float64) *Ref {
	return b.pool("double", func() { b.buf = binary.LittleEndian.AppendUint64(b.buf, math.Float64bits(v)) })
}

// RefTable pools an array of block indices, e.g. the kits table.
func (b *Builder) RefTable(entries ...*Ref) *Ref {
	return b.pool("table", func() {
		for _, e := range entries {
			b.ref(e)
		}
	})
}

// Vtable places an array of method block indices into r. A nil method
// leaves its entry zero.
func (b *Builder) Vtable(r *Ref, methods ...*Ref) {
	b.Bind(r)
	for _, m := range methods {
		b.ref(m)
	}
}

// KitDesc describes a kit block.
type KitDesc struct {
	ID       uint8
	Name     *Ref
	Version  *Ref
	Checksum uint32
	Types    []*Ref
}

// Kit places a kit descriptor into r.
func (b *Builder) Kit(r *Ref, k KitDesc) {
	b.Bind(r)
	b.u1(k.ID)
	b.u1(uint8(len(k.Types)))
	b.ref(k.Name)
	b.ref(k.Version)
	b.u2(0)
	b.u4(k.Checksum)
	for _, t := range k.Types {
		b.ref(t)
	}
}

// TypeDesc describes a type block.
type TypeDesc struct {
	ID     uint8
	Name   *Ref
	Kit    *Ref
	Base   *Ref
	SizeOf uint16
	Init   *Ref
	Slots  []*Ref
}

// Type places a type descriptor into r.
func (b *Builder) Type(r *Ref, t TypeDesc) {
	b.Bind(r)
	b.u1(t.ID)
	b.u1(uint8(len(t.Slots)))
	b.ref(t.Name)
	b.ref(t.Kit)
	b.ref(t.Base)
	b.u2(t.SizeOf)
	b.ref(t.Init)
	for _, s := range t.Slots {
		b.ref(s)
	}
}

// SlotDesc describes a slot block.
type SlotDesc struct {
	ID     uint8
	Flags  uint8
	Name   *Ref
	Type   *Ref
	Handle uint16
}

// Slot places a slot descriptor into r.
func (b *Builder) Slot(r *Ref, s SlotDesc) {
	b.Bind(r)
	b.u1(s.ID)
	b.u1(s.Flags)
	b.ref(s.Name)
	b.ref(s.Type)
	b.u2(s.Handle)
}

// QnameType pools a [kitName, typeName] pair.
func (b *Builder) QnameType(kitName, typeName *Ref) *Ref {
	return b.RefTable(kitName, typeName)
}

// QnameSlot pools a [typeQname, slotName] pair.
func (b *Builder) QnameSlot(typeQname, slotName *Ref) *Ref {
	return b.RefTable(typeQname, slotName)
}

// TestEntry is one row of the test table.
type TestEntry struct {
	Qname  *Ref // qnameSlot of the test method
	Method *Ref
}

// TestTable pools the test table: a u2 count followed by
// (qnameSlot, method) pairs.
func (b *Builder) TestTable(tests ...TestEntry) *Ref {
	return b.pool("tests", func() {
		b.u2(uint16(len(tests)))
		for _, t := range tests {
			b.ref(t.Qname)
			b.ref(t.Method)
		}
	})
}

// ---------------------------------------------------------------------------
// MethodBuilder: emits one method's opcode stream
// ---------------------------------------------------------------------------

// MethodBuilder appends instructions for a single method.
type MethodBuilder struct {
	b     *Builder
	start int
}

// Method places a method header (numParams, numLocals) into r and returns
// a builder for its body.
func (b *Builder) Method(r *Ref, numParams, numLocals int) *MethodBuilder {
	b.Bind(r)
	b.u1(uint8(numParams))
	b.u1(uint8(numLocals))
	return &MethodBuilder{b: b, start: len(b.buf)}
}

// Pos returns the image offset of the next instruction.
func (m *MethodBuilder) Pos() int { return len(m.b.buf) }

// Op emits an opcode with no operands.
func (m *MethodBuilder) Op(ops ...Opcode) *MethodBuilder {
	for _, op := range ops {
		m.b.u1(byte(op))
	}
	return m
}

// OpU1 emits an opcode with a u1 operand.
func (m *MethodBuilder) OpU1(op Opcode, v uint8) *MethodBuilder {
	m.b.u1(byte(op))
	m.b.u1(v)
	return m
}

// OpU2 emits an opcode with a u2 operand.
func (m *MethodBuilder) OpU2(op Opcode, v uint16) *MethodBuilder {
	m.b.u1(byte(op))
	m.b.u2(v)
	return m
}

// OpU4 emits an opcode with a u4 operand.
func (m *MethodBuilder) OpU4(op Opcode, v uint32) *MethodBuilder {
	m.b.u1(byte(op))
	m.b.u4(v)
	return m
}

// OpRef emits an opcode whose u2 operand is the block index of r.
func (m *MethodBuilder) OpRef(op Opcode, r *Ref) *MethodBuilder {
	m.b.u1(byte(op))
	m.b.ref(r)
	return m
}

// Call emits a non-virtual call.
func (m *MethodBuilder) Call(method *Ref) *MethodBuilder {
	return m.OpRef(Call, method)
}

// CallVirtual emits a vtable call. numParams includes this.
func (m *MethodBuilder) CallVirtual(vidx uint16, numParams uint8) *MethodBuilder {
	m.b.u1(byte(CallVirtual))
	m.b.u2(vidx)
	m.b.u1(numParams)
	return m
}

// CallNative emits CallNative, CallNativeWide or CallNativeVoid.
func (m *MethodBuilder) CallNative(op Opcode, kit, method, argc uint8) *MethodBuilder {
	m.b.buf = append(m.b.buf, byte(op), kit, method, argc)
	return m
}

// Assert emits an assert for the given source line.
func (m *MethodBuilder) Assert(line uint16) *MethodBuilder {
	return m.OpU2(Assert, line)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

type labelRef struct {
	insn int // instruction start; offsets are relative to it
	at   int // operand position
	far  bool
}

// Label is a jump target inside a method.
type Label struct {
	resolved bool
	position int
	refs     []labelRef
}

// NewLabel creates an unresolved label.
func (m *MethodBuilder) NewLabel() *Label {
	return &Label{refs: make([]labelRef, 0, 2)}
}

// Mark resolves a label to the current position.
func (m *MethodBuilder) Mark(label *Label) *MethodBuilder {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(m.b.buf)
	for _, ref := range label.refs {
		m.patch(ref, label.position)
	}
	label.refs = nil
	return m
}

func (m *MethodBuilder) patch(ref labelRef, target int) {
	offset := target - ref.insn
	if ref.far {
		if offset < math.MinInt16 || offset > math.MaxInt16 {
			panic(fmt.Sprintf("far jump offset %d out of range", offset))
		}
		binary.LittleEndian.PutUint16(m.b.buf[ref.at:], uint16(int16(offset)))
		return
	}
	if offset < math.MinInt8 || offset > math.MaxInt8 {
		panic(fmt.Sprintf("near jump offset %d out of range", offset))
	}
	m.b.buf[ref.at] = byte(int8(offset))
}

func (m *MethodBuilder) target(label *Label, insn int, far bool) {
	ref := labelRef{insn: insn, at: len(m.b.buf), far: far}
	if far {
		m.b.u2(0)
	} else {
		m.b.u1(0)
	}
	if label.resolved {
		m.patch(ref, label.position)
	} else {
		label.refs = append(label.refs, ref)
	}
}

// Jump emits a jump-family instruction (including Foreach and the int
// compare jumps) targeting label. The operand width follows op.
func (m *MethodBuilder) Jump(op Opcode, label *Label) *MethodBuilder {
	insn := len(m.b.buf)
	m.b.u1(byte(op))
	m.target(label, insn, op.Info().OperandBytes == 2)
	return m
}

// Switch emits a jump table. Out-of-range values fall through to the
// instruction after the table.
func (m *MethodBuilder) Switch(labels ...*Label) *MethodBuilder {
	insn := len(m.b.buf)
	m.b.u1(byte(Switch))
	m.b.u2(uint16(len(labels)))
	for _, l := range labels {
		m.target(l, insn, true)
	}
	return m
}
