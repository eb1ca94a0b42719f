package scode

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Instruction is one decoded instruction.
type Instruction struct {
	Pos     int    // image offset of the opcode byte
	Op      Opcode // opcode
	Size    int    // encoded size including the opcode
	Targets []int  // absolute jump targets, if any
	Text    string // rendered operands
}

func (in Instruction) String() string {
	if in.Text == "" {
		return fmt.Sprintf("%06x  %s", in.Pos, in.Op.Name())
	}
	return fmt.Sprintf("%06x  %s %s", in.Pos, in.Op.Name(), in.Text)
}

// Decode decodes the instruction at img[pc]. It returns an error if the
// instruction runs past the end of the image.
func Decode(img []byte, pc int) (Instruction, error) {
	if pc < 0 || pc >= len(img) {
		return Instruction{}, fmt.Errorf("decode at %#x: outside image", pc)
	}
	op := Opcode(img[pc])
	if op == Switch && pc+3 > len(img) {
		return Instruction{}, fmt.Errorf("decode %s at %#x: truncated", op, pc)
	}
	size := Size(img, pc)
	if pc+size > len(img) {
		return Instruction{}, fmt.Errorf("decode %s at %#x: truncated", op, pc)
	}
	in := Instruction{Pos: pc, Op: op, Size: size}
	le := binary.LittleEndian
	operands := img[pc+1 : pc+size]

	switch op {
	case Jump, JumpZero, JumpNonZero, Foreach,
		JumpIntEq, JumpIntNotEq, JumpIntGt, JumpIntGtEq, JumpIntLt, JumpIntLtEq:
		t := pc + int(int8(operands[0]))
		in.Targets = []int{t}
		in.Text = fmt.Sprintf("%d (-> %06x)", int8(operands[0]), t)

	case JumpFar, JumpFarZero, JumpFarNonZero, ForeachFar,
		JumpFarIntEq, JumpFarIntNotEq, JumpFarIntGt, JumpFarIntGtEq, JumpFarIntLt, JumpFarIntLtEq:
		off := int16(le.Uint16(operands))
		t := pc + int(off)
		in.Targets = []int{t}
		in.Text = fmt.Sprintf("%d (-> %06x)", off, t)

	case Switch:
		n := int(le.Uint16(operands))
		parts := make([]string, 0, n)
		for i := 0; i < n; i++ {
			t := pc + int(int16(le.Uint16(operands[2+2*i:])))
			in.Targets = append(in.Targets, t)
			parts = append(parts, fmt.Sprintf("%06x", t))
		}
		in.Text = fmt.Sprintf("%d [%s]", n, strings.Join(parts, " "))

	case CallVirtual:
		in.Text = fmt.Sprintf("vidx=%d params=%d", le.Uint16(operands), operands[2])

	case CallNative, CallNativeWide, CallNativeVoid:
		in.Text = fmt.Sprintf("%d::%d argc=%d", operands[0], operands[1], operands[2])

	case Call, LoadParam0Call:
		in.Text = fmt.Sprintf("bix=%d", le.Uint16(operands))

	default:
		switch len(operands) {
		case 1:
			in.Text = fmt.Sprintf("%d", operands[0])
		case 2:
			in.Text = fmt.Sprintf("%d", le.Uint16(operands))
		case 4:
			in.Text = fmt.Sprintf("%d", le.Uint32(operands))
		}
	}
	return in, nil
}

// MethodListing is the decoded body of one method.
type MethodListing struct {
	Bix          uint16
	NumParams    int
	NumLocals    int
	Instructions []Instruction
	Calls        []uint16 // non-virtual call targets
}

func isReturn(op Opcode) bool {
	return op == ReturnPop || op == ReturnPopWide || op == ReturnVoid
}

// DisassembleMethod decodes the method at block bix. Decoding stops at the
// first return past every jump target seen so far, or at an undefined
// opcode.
func DisassembleMethod(img []byte, bix uint16) (MethodListing, error) {
	off := BlockOffset(bix)
	if off < HeaderSize || off+2 > len(img) {
		return MethodListing{}, fmt.Errorf("method bix %d outside image", bix)
	}
	ml := MethodListing{Bix: bix, NumParams: int(img[off]), NumLocals: int(img[off+1])}
	furthest := 0
	for pc := off + 2; pc < len(img); {
		in, err := Decode(img, pc)
		if err != nil {
			return ml, err
		}
		ml.Instructions = append(ml.Instructions, in)
		for _, t := range in.Targets {
			if t > furthest {
				furthest = t
			}
		}
		if in.Op == Call || in.Op == LoadParam0Call {
			ml.Calls = append(ml.Calls, binary.LittleEndian.Uint16(img[pc+1:]))
		}
		pc += in.Size
		if !in.Op.Valid() || (isReturn(in.Op) && pc > furthest) {
			break
		}
	}
	return ml, nil
}

// Disassemble lists every method reachable by non-virtual calls from the
// image's main, resume and test methods.
func Disassemble(img []byte) (string, error) {
	h, err := ParseHeader(img)
	if err != nil {
		return "", err
	}
	var roots []uint16
	for _, bix := range []uint16{h.Main, h.Resume} {
		if bix != 0 {
			roots = append(roots, bix)
		}
	}
	if h.Tests != 0 {
		t := BlockOffset(h.Tests)
		if t+2 <= len(img) {
			n := int(binary.LittleEndian.Uint16(img[t:]))
			for i := 0; i < n && t+6+4*i <= len(img); i++ {
				roots = append(roots, binary.LittleEndian.Uint16(img[t+4+4*i:]))
			}
		}
	}

	seen := map[uint16]MethodListing{}
	for len(roots) > 0 {
		bix := roots[len(roots)-1]
		roots = roots[:len(roots)-1]
		if _, ok := seen[bix]; ok {
			continue
		}
		ml, err := DisassembleMethod(img, bix)
		if err != nil {
			return "", err
		}
		seen[bix] = ml
		roots = append(roots, ml.Calls...)
	}

	order := make([]uint16, 0, len(seen))
	for bix := range seen {
		order = append(order, bix)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var sb strings.Builder
	for i, bix := range order {
		ml := seen[bix]
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "method bix=%d params=%d locals=%d\n", ml.Bix, ml.NumParams, ml.NumLocals)
		for _, in := range ml.Instructions {
			sb.WriteString("  ")
			sb.WriteString(in.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
