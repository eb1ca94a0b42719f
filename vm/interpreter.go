package vm

import (
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/chazu/svm/scode"
)

// ---------------------------------------------------------------------------
// Interpreter: one entry call's frame engine and dispatch loop
// ---------------------------------------------------------------------------

// interp holds the registers of a single VM.Call. Stack cursors are
// indices into s; cp is an offset into the image.
type interp struct {
	vm    *VM
	s     []Cell
	code  []byte
	mem   *Memory
	data  Addr
	prof  *Profiler
	debug bool
	maxSP int

	sp, cp, fp, pp, lp int
	np, nl             int
	op                 scode.Opcode
}

func (vm *VM) newInterp() *interp {
	return &interp{
		vm:    vm,
		s:     vm.stack,
		code:  vm.image,
		mem:   vm.mem,
		data:  vm.dataAddr,
		prof:  vm.opts.Profiler,
		debug: vm.opts.Debug,
		maxSP: len(vm.stack) - stackHeadroom,
		sp:    vm.sp,
	}
}

func u2(code []byte, i int) uint16 { return uint16(code[i]) | uint16(code[i+1])<<8 }

func u4(code []byte, i int) uint32 { return le.Uint32(code[i:]) }

func (in *interp) wide(i int) int64 { return Wide(in.s[i], in.s[i+1]) }

func (in *interp) setWide(i int, v int64) { in.s[i], in.s[i+1] = SplitWide(v) }

func (in *interp) double(i int) float64 { return math.Float64frombits(uint64(in.wide(i))) }

func (in *interp) setDouble(i int, v float64) { in.setWide(i, int64(math.Float64bits(v))) }

func (in *interp) push(c Cell) {
	in.sp++
	in.s[in.sp] = c
}

// start pushes args and enters the method at bix with a zero return cp.
func (in *interp) start(bix uint16, args []Cell) (int32, error) {
	off := scode.BlockOffset(bix)
	if off < scode.HeaderSize || off+2 > len(in.code) {
		return 0, in.fault(ErrMemoryFault, in.vm.BlockAddr(bix))
	}
	if int(in.code[off]) != len(args) {
		return 0, ErrInvalidMethodParams
	}
	if in.sp+len(args) >= in.maxSP {
		return 0, in.fault(ErrStackOverflow, 0)
	}
	for _, a := range args {
		in.push(a)
	}
	in.fp = 0
	if err := in.enter(bix, 0); err != nil {
		return 0, err
	}
	return in.run()
}

// enter pushes a frame for the method at bix. ret is the caller's return
// address, 0 for an entry call.
func (in *interp) enter(bix uint16, ret Cell) error {
	off := scode.BlockOffset(bix)
	if off+2 > len(in.code) {
		return in.fault(ErrMemoryFault, in.vm.BlockAddr(bix))
	}
	nl := int(in.code[off+1])
	if in.sp+3+nl >= in.maxSP {
		return in.fault(ErrStackOverflow, 0)
	}
	s := in.s
	s[in.sp+1] = ret
	s[in.sp+2] = Cell(in.fp)
	s[in.sp+3] = AddrCell(CodeBase + Addr(off))
	in.sp += 3
	in.fp = in.sp - 2
	in.np = int(in.code[off])
	in.nl = nl
	in.pp = in.fp - in.np
	in.lp = in.fp + 3
	in.sp += nl
	in.cp = off + 2
	if in.prof != nil {
		in.prof.RecordMethod(bix)
	}
	return nil
}

// leave restores the caller's frame after the callee's frame at fp has
// been popped.
func (in *interp) leave(ret Cell) {
	in.fp = int(in.s[in.fp+1])
	off := int(in.s[in.fp+2].Addr() - CodeBase)
	in.np = int(in.code[off])
	in.nl = int(in.code[off+1])
	in.pp = in.fp - in.np
	in.lp = in.fp + 3
	in.cp = int(ret.Addr() - CodeBase)
}

func (in *interp) retAddr(n int) Cell {
	return AddrCell(CodeBase + Addr(in.cp+n))
}

// fieldOffset decodes the U1/U2/U4 operand of the current instruction and
// returns it with the instruction size.
func (in *interp) fieldOffset() (Addr, int) {
	switch in.op.Info().OperandBytes {
	case 1:
		return Addr(in.code[in.cp+1]), 2
	case 2:
		return Addr(u2(in.code, in.cp+1)), 3
	default:
		return Addr(u4(in.code, in.cp+1)), 5
	}
}

// jump applies a conditional jump with an i8 (near) or i16 (far) offset.
func (in *interp) jump(taken, far bool) {
	switch {
	case taken && far:
		in.cp += int(int16(u2(in.code, in.cp+1)))
	case taken:
		in.cp += int(int8(in.code[in.cp+1]))
	case far:
		in.cp += 3
	default:
		in.cp += 2
	}
}

func floatEq(a, b float32) bool {
	if a != a && b != b {
		return true
	}
	return a == b
}

func doubleEq(a, b float64) bool {
	if a != a && b != b {
		return true
	}
	return a == b
}

// run executes until the entry frame returns.
func (in *interp) run() (int32, error) {
	s := in.s
	code := in.code
	mem := in.mem

	for {
		op := scode.Opcode(code[in.cp])
		in.op = op

		if in.debug {
			if off := scode.PointerOffset(op); off >= 0 && s[in.sp-off] == 0 {
				return 0, in.fault(ErrNullPointer, 0)
			}
			if in.sp >= in.maxSP {
				return 0, in.fault(ErrStackOverflow, 0)
			}
		}

		switch op {
		case scode.Nop:
			in.cp++

		// ---- literals ----

		case scode.LoadIM1, scode.LoadI0, scode.LoadI1, scode.LoadI2,
			scode.LoadI3, scode.LoadI4, scode.LoadI5:
			in.push(IntCell(int32(op) - int32(scode.LoadI0)))
			in.cp++
		case scode.LoadIntU1:
			in.push(Cell(code[in.cp+1]))
			in.cp += 2
		case scode.LoadIntU2:
			in.push(Cell(u2(code, in.cp+1)))
			in.cp += 3
		case scode.LoadL0, scode.LoadL1:
			in.setWide(in.sp+1, int64(op-scode.LoadL0))
			in.sp += 2
			in.cp++
		case scode.LoadF0:
			in.push(FloatCell(0))
			in.cp++
		case scode.LoadF1:
			in.push(FloatCell(1))
			in.cp++
		case scode.LoadD0:
			in.setDouble(in.sp+1, 0)
			in.sp += 2
			in.cp++
		case scode.LoadD1:
			in.setDouble(in.sp+1, 1)
			in.sp += 2
			in.cp++
		case scode.LoadNull:
			in.push(NullCell)
			in.cp++
		case scode.LoadNullBool:
			in.push(NullBool)
			in.cp++
		case scode.LoadNullFloat:
			in.push(NullFloat)
			in.cp++
		case scode.LoadNullDouble:
			in.setWide(in.sp+1, int64(NullDouble))
			in.sp += 2
			in.cp++
		case scode.LoadInt, scode.LoadFloat:
			in.push(Cell(mem.Uint32(in.vm.BlockAddr(u2(code, in.cp+1)))))
			in.cp += 3
		case scode.LoadLong, scode.LoadDouble:
			in.setWide(in.sp+1, mem.Int64(in.vm.BlockAddr(u2(code, in.cp+1))))
			in.sp += 2
			in.cp += 3
		case scode.LoadStr, scode.LoadBuf, scode.LoadType, scode.LoadSlot:
			in.push(AddrCell(in.vm.BlockAddr(u2(code, in.cp+1))))
			in.cp += 3

		// ---- params and locals ----

		case scode.LoadParam0, scode.LoadParam1, scode.LoadParam2, scode.LoadParam3:
			in.push(s[in.pp+int(op-scode.LoadParam0)])
			in.cp++
		case scode.LoadParam:
			in.push(s[in.pp+int(code[in.cp+1])])
			in.cp += 2
		case scode.LoadParamWide:
			i := in.pp + int(code[in.cp+1])
			s[in.sp+1], s[in.sp+2] = s[i], s[i+1]
			in.sp += 2
			in.cp += 2
		case scode.StoreParam:
			s[in.pp+int(code[in.cp+1])] = s[in.sp]
			in.sp--
			in.cp += 2
		case scode.StoreParamWide:
			i := in.pp + int(code[in.cp+1])
			s[i], s[i+1] = s[in.sp-1], s[in.sp]
			in.sp -= 2
			in.cp += 2

		case scode.LoadLocal0, scode.LoadLocal1, scode.LoadLocal2, scode.LoadLocal3,
			scode.LoadLocal4, scode.LoadLocal5, scode.LoadLocal6, scode.LoadLocal7:
			in.push(s[in.lp+int(op-scode.LoadLocal0)])
			in.cp++
		case scode.LoadLocal:
			in.push(s[in.lp+int(code[in.cp+1])])
			in.cp += 2
		case scode.LoadLocalWide:
			i := in.lp + int(code[in.cp+1])
			s[in.sp+1], s[in.sp+2] = s[i], s[i+1]
			in.sp += 2
			in.cp += 2
		case scode.StoreLocal0, scode.StoreLocal1, scode.StoreLocal2, scode.StoreLocal3,
			scode.StoreLocal4, scode.StoreLocal5, scode.StoreLocal6, scode.StoreLocal7:
			s[in.lp+int(op-scode.StoreLocal0)] = s[in.sp]
			in.sp--
			in.cp++
		case scode.StoreLocal:
			s[in.lp+int(code[in.cp+1])] = s[in.sp]
			in.sp--
			in.cp += 2
		case scode.StoreLocalWide:
			i := in.lp + int(code[in.cp+1])
			s[i], s[i+1] = s[in.sp-1], s[in.sp]
			in.sp -= 2
			in.cp += 2

		// ---- int ----

		case scode.IntEq, scode.IntNotEq, scode.IntGt, scode.IntGtEq, scode.IntLt, scode.IntLtEq:
			in.sp--
			a, b := s[in.sp].Int(), s[in.sp+1].Int()
			s[in.sp] = BoolCell(compareInt(op-scode.IntEq, int64(a), int64(b)))
			in.cp++
		case scode.IntMul, scode.IntDiv, scode.IntMod, scode.IntAdd, scode.IntSub,
			scode.IntOr, scode.IntXor, scode.IntAnd, scode.IntShiftL, scode.IntShiftR:
			in.sp--
			s[in.sp] = IntCell(intMath(op, s[in.sp].Int(), s[in.sp+1].Int()))
			in.cp++
		case scode.IntNot:
			s[in.sp] = ^s[in.sp]
			in.cp++
		case scode.IntNeg:
			s[in.sp] = IntCell(-s[in.sp].Int())
			in.cp++
		case scode.IntInc:
			s[in.sp]++
			in.cp++
		case scode.IntDec:
			s[in.sp]--
			in.cp++

		// ---- long ----

		case scode.LongEq, scode.LongNotEq, scode.LongGt, scode.LongGtEq, scode.LongLt, scode.LongLtEq:
			in.sp -= 3
			s[in.sp] = BoolCell(compareInt(op-scode.LongEq, in.wide(in.sp), in.wide(in.sp+2)))
			in.cp++
		case scode.LongMul, scode.LongDiv, scode.LongMod, scode.LongAdd, scode.LongSub,
			scode.LongOr, scode.LongXor, scode.LongAnd:
			in.sp -= 2
			in.setWide(in.sp-1, longMath(op, in.wide(in.sp-1), in.wide(in.sp+1)))
			in.cp++
		case scode.LongShiftL:
			in.sp--
			in.setWide(in.sp-1, in.wide(in.sp-1)<<(s[in.sp+1]&63))
			in.cp++
		case scode.LongShiftR:
			in.sp--
			in.setWide(in.sp-1, in.wide(in.sp-1)>>(s[in.sp+1]&63))
			in.cp++
		case scode.LongNot:
			in.setWide(in.sp-1, ^in.wide(in.sp-1))
			in.cp++
		case scode.LongNeg:
			in.setWide(in.sp-1, -in.wide(in.sp-1))
			in.cp++

		// ---- float ----

		case scode.FloatEq, scode.FloatNotEq, scode.FloatGt, scode.FloatGtEq, scode.FloatLt, scode.FloatLtEq:
			in.sp--
			a, b := s[in.sp].Float(), s[in.sp+1].Float()
			s[in.sp] = BoolCell(compareFloat(op-scode.FloatEq, float64(a), float64(b), floatEq(a, b)))
			in.cp++
		case scode.FloatMul, scode.FloatDiv, scode.FloatAdd, scode.FloatSub:
			in.sp--
			a, b := s[in.sp].Float(), s[in.sp+1].Float()
			var r float32
			switch op {
			case scode.FloatMul:
				r = a * b
			case scode.FloatDiv:
				r = a / b
			case scode.FloatAdd:
				r = a + b
			default:
				r = a - b
			}
			s[in.sp] = FloatCell(r)
			in.cp++
		case scode.FloatNeg:
			s[in.sp] = FloatCell(-s[in.sp].Float())
			in.cp++

		// ---- double ----

		case scode.DoubleEq, scode.DoubleNotEq, scode.DoubleGt, scode.DoubleGtEq, scode.DoubleLt, scode.DoubleLtEq:
			in.sp -= 3
			a, b := in.double(in.sp), in.double(in.sp+2)
			s[in.sp] = BoolCell(compareFloat(op-scode.DoubleEq, a, b, doubleEq(a, b)))
			in.cp++
		case scode.DoubleMul, scode.DoubleDiv, scode.DoubleAdd, scode.DoubleSub:
			in.sp -= 2
			a, b := in.double(in.sp-1), in.double(in.sp+1)
			var r float64
			switch op {
			case scode.DoubleMul:
				r = a * b
			case scode.DoubleDiv:
				r = a / b
			case scode.DoubleAdd:
				r = a + b
			default:
				r = a - b
			}
			in.setDouble(in.sp-1, r)
			in.cp++
		case scode.DoubleNeg:
			in.setDouble(in.sp-1, -in.double(in.sp-1))
			in.cp++

		// ---- objects and general purpose ----

		case scode.ObjEq:
			in.sp--
			s[in.sp] = BoolCell(s[in.sp] == s[in.sp+1])
			in.cp++
		case scode.ObjNotEq:
			in.sp--
			s[in.sp] = BoolCell(s[in.sp] != s[in.sp+1])
			in.cp++
		case scode.EqZero:
			s[in.sp] = BoolCell(s[in.sp] == 0)
			in.cp++
		case scode.NotEqZero:
			s[in.sp] = BoolCell(s[in.sp] != 0)
			in.cp++

		// ---- casts ----

		case scode.LongToInt:
			in.sp--
			in.cp++
		case scode.FloatToInt:
			s[in.sp] = IntCell(int32(s[in.sp].Float()))
			in.cp++
		case scode.DoubleToInt:
			in.sp--
			s[in.sp] = IntCell(int32(in.double(in.sp)))
			in.cp++
		case scode.IntToLong:
			in.setWide(in.sp, int64(s[in.sp].Int()))
			in.sp++
			in.cp++
		case scode.FloatToLong:
			in.setWide(in.sp, int64(s[in.sp].Float()))
			in.sp++
			in.cp++
		case scode.DoubleToLong:
			in.setWide(in.sp-1, int64(in.double(in.sp-1)))
			in.cp++
		case scode.IntToFloat:
			s[in.sp] = FloatCell(float32(s[in.sp].Int()))
			in.cp++
		case scode.LongToFloat:
			in.sp--
			s[in.sp] = FloatCell(float32(in.wide(in.sp)))
			in.cp++
		case scode.DoubleToFloat:
			in.sp--
			s[in.sp] = FloatCell(float32(in.double(in.sp)))
			in.cp++
		case scode.IntToDouble:
			in.setDouble(in.sp, float64(s[in.sp].Int()))
			in.sp++
			in.cp++
		case scode.LongToDouble:
			in.setDouble(in.sp-1, float64(in.wide(in.sp-1)))
			in.cp++
		case scode.FloatToDouble:
			in.setDouble(in.sp, float64(s[in.sp].Float()))
			in.sp++
			in.cp++

		// ---- stack manipulation ----

		case scode.Dup:
			in.push(s[in.sp])
			in.cp++
		case scode.Dup2:
			s[in.sp+1], s[in.sp+2] = s[in.sp-1], s[in.sp]
			in.sp += 2
			in.cp++
		case scode.DupDown2:
			in.sp++
			sp := in.sp
			s[sp] = s[sp-1]
			s[sp-1] = s[sp-2]
			s[sp-2] = s[sp]
			in.cp++
		case scode.DupDown3:
			in.sp++
			sp := in.sp
			s[sp] = s[sp-1]
			s[sp-1] = s[sp-2]
			s[sp-2] = s[sp-3]
			s[sp-3] = s[sp]
			in.cp++
		case scode.Dup2Down2:
			in.sp += 2
			sp := in.sp
			s[sp] = s[sp-2]
			s[sp-1] = s[sp-3]
			s[sp-2] = s[sp-4]
			s[sp-3] = s[sp]
			s[sp-4] = s[sp-1]
			in.cp++
		case scode.Dup2Down3:
			in.sp += 2
			sp := in.sp
			s[sp] = s[sp-2]
			s[sp-1] = s[sp-3]
			s[sp-2] = s[sp-4]
			s[sp-3] = s[sp-5]
			s[sp-4] = s[sp]
			s[sp-5] = s[sp-1]
			in.cp++
		case scode.Pop:
			in.sp--
			in.cp++
		case scode.Pop2:
			in.sp -= 2
			in.cp++
		case scode.Pop3:
			in.sp -= 3
			in.cp++

		// ---- jumps ----

		case scode.Jump:
			in.jump(true, false)
		case scode.JumpFar:
			in.jump(true, true)
		case scode.JumpZero, scode.JumpFarZero:
			v := s[in.sp]
			in.sp--
			in.jump(v == 0, op == scode.JumpFarZero)
		case scode.JumpNonZero, scode.JumpFarNonZero:
			v := s[in.sp]
			in.sp--
			in.jump(v != 0, op == scode.JumpFarNonZero)
		case scode.Foreach, scode.ForeachFar:
			far := op == scode.ForeachFar
			if in.debug {
				next := in.cp + 2
				if far {
					next++
				}
				if next >= len(code) || !scode.IsArrayLoad(scode.Opcode(code[next])) {
					return 0, in.fault(ErrMalformedCode, 0)
				}
			}
			s[in.sp]++
			if s[in.sp].Int() >= s[in.sp-1].Int() {
				in.jump(true, far)
			} else {
				in.sp++
				s[in.sp] = s[in.sp-3]
				in.sp++
				s[in.sp] = s[in.sp-2]
				in.jump(false, far)
			}
		case scode.JumpIntEq, scode.JumpIntNotEq, scode.JumpIntGt,
			scode.JumpIntGtEq, scode.JumpIntLt, scode.JumpIntLtEq:
			a, b := s[in.sp-1].Int(), s[in.sp].Int()
			in.sp -= 2
			in.jump(compareInt(op-scode.JumpIntEq, int64(a), int64(b)), false)
		case scode.JumpFarIntEq, scode.JumpFarIntNotEq, scode.JumpFarIntGt,
			scode.JumpFarIntGtEq, scode.JumpFarIntLt, scode.JumpFarIntLtEq:
			a, b := s[in.sp-1].Int(), s[in.sp].Int()
			in.sp -= 2
			in.jump(compareInt(op-scode.JumpFarIntEq, int64(a), int64(b)), true)

		// ---- storage ----

		case scode.LoadDataAddr:
			in.push(AddrCell(in.data))
			in.cp++

		case scode.Load8BitFieldU1, scode.Load8BitFieldU2, scode.Load8BitFieldU4:
			off, n := in.fieldOffset()
			s[in.sp] = Cell(mem.Uint8(s[in.sp].Addr() + off))
			in.cp += n
		case scode.Load8BitArray:
			in.sp--
			s[in.sp] = Cell(mem.Uint8(s[in.sp].Addr() + Addr(s[in.sp+1])))
			in.cp++
		case scode.Add8BitArray:
			in.sp--
			s[in.sp] = AddrCell(s[in.sp].Addr() + Addr(s[in.sp+1]))
			in.cp++
		case scode.Store8BitFieldU1, scode.Store8BitFieldU2, scode.Store8BitFieldU4:
			off, n := in.fieldOffset()
			mem.SetUint8(s[in.sp-1].Addr()+off, uint8(s[in.sp]))
			in.sp -= 2
			in.cp += n
		case scode.Store8BitArray:
			mem.SetUint8(s[in.sp-2].Addr()+Addr(s[in.sp-1]), uint8(s[in.sp]))
			in.sp -= 3
			in.cp++

		case scode.Load16BitFieldU1, scode.Load16BitFieldU2, scode.Load16BitFieldU4:
			off, n := in.fieldOffset()
			s[in.sp] = Cell(mem.Uint16(s[in.sp].Addr() + off))
			in.cp += n
		case scode.Load16BitArray:
			in.sp--
			s[in.sp] = Cell(mem.Uint16(s[in.sp].Addr() + Addr(s[in.sp+1])*2))
			in.cp++
		case scode.Add16BitArray:
			in.sp--
			s[in.sp] = AddrCell(s[in.sp].Addr() + Addr(s[in.sp+1])*2)
			in.cp++
		case scode.Store16BitFieldU1, scode.Store16BitFieldU2, scode.Store16BitFieldU4:
			off, n := in.fieldOffset()
			mem.SetUint16(s[in.sp-1].Addr()+off, uint16(s[in.sp]))
			in.sp -= 2
			in.cp += n
		case scode.Store16BitArray:
			mem.SetUint16(s[in.sp-2].Addr()+Addr(s[in.sp-1])*2, uint16(s[in.sp]))
			in.sp -= 3
			in.cp++

		case scode.Load32BitFieldU1, scode.Load32BitFieldU2, scode.Load32BitFieldU4,
			scode.LoadRefFieldU1, scode.LoadRefFieldU2, scode.LoadRefFieldU4:
			off, n := in.fieldOffset()
			s[in.sp] = Cell(mem.Uint32(s[in.sp].Addr() + off))
			in.cp += n
		case scode.Load32BitArray, scode.LoadRefArray:
			in.sp--
			s[in.sp] = Cell(mem.Uint32(s[in.sp].Addr() + Addr(s[in.sp+1])*4))
			in.cp++
		case scode.Add32BitArray, scode.AddRefArray:
			in.sp--
			s[in.sp] = AddrCell(s[in.sp].Addr() + Addr(s[in.sp+1])*4)
			in.cp++
		case scode.Store32BitFieldU1, scode.Store32BitFieldU2, scode.Store32BitFieldU4,
			scode.StoreRefFieldU1, scode.StoreRefFieldU2, scode.StoreRefFieldU4:
			off, n := in.fieldOffset()
			mem.SetUint32(s[in.sp-1].Addr()+off, uint32(s[in.sp]))
			in.sp -= 2
			in.cp += n
		case scode.Store32BitArray, scode.StoreRefArray:
			mem.SetUint32(s[in.sp-2].Addr()+Addr(s[in.sp-1])*4, uint32(s[in.sp]))
			in.sp -= 3
			in.cp++

		case scode.Load64BitFieldU1, scode.Load64BitFieldU2, scode.Load64BitFieldU4:
			off, n := in.fieldOffset()
			in.setWide(in.sp, mem.Int64(s[in.sp].Addr()+off))
			in.sp++
			in.cp += n
		case scode.Load64BitArray:
			in.sp--
			in.setWide(in.sp, mem.Int64(s[in.sp].Addr()+Addr(s[in.sp+1])*8))
			in.sp++
			in.cp++
		case scode.Add64BitArray:
			in.sp--
			s[in.sp] = AddrCell(s[in.sp].Addr() + Addr(s[in.sp+1])*8)
			in.cp++
		case scode.Store64BitFieldU1, scode.Store64BitFieldU2, scode.Store64BitFieldU4:
			off, n := in.fieldOffset()
			mem.SetInt64(s[in.sp-2].Addr()+off, in.wide(in.sp-1))
			in.sp -= 3
			in.cp += n
		case scode.Store64BitArray:
			mem.SetInt64(s[in.sp-3].Addr()+Addr(s[in.sp-2])*8, in.wide(in.sp-1))
			in.sp -= 4
			in.cp++

		case scode.LoadConstFieldU1, scode.LoadConstFieldU2:
			off, n := in.fieldOffset()
			s[in.sp] = AddrCell(in.vm.ConstAddr(mem.Uint16(s[in.sp].Addr() + off)))
			in.cp += n
		case scode.LoadConstArray:
			in.sp--
			s[in.sp] = AddrCell(in.vm.ConstAddr(mem.Uint16(s[in.sp].Addr() + Addr(s[in.sp+1])*2)))
			in.cp++
		case scode.LoadConstStatic:
			in.push(AddrCell(in.vm.ConstAddr(u2(code, in.cp+1))))
			in.cp += 3

		case scode.LoadInlineFieldU1, scode.LoadInlineFieldU2, scode.LoadInlineFieldU4:
			off, n := in.fieldOffset()
			s[in.sp] = AddrCell(s[in.sp].Addr() + off)
			in.cp += n
		case scode.LoadParam0InlineFieldU1, scode.LoadParam0InlineFieldU2, scode.LoadParam0InlineFieldU4:
			off, n := in.fieldOffset()
			in.push(AddrCell(s[in.pp].Addr() + off))
			in.cp += n
		case scode.LoadDataInlineFieldU1, scode.LoadDataInlineFieldU2, scode.LoadDataInlineFieldU4:
			off, n := in.fieldOffset()
			in.push(AddrCell(in.data + off))
			in.cp += n

		// ---- method calls ----

		case scode.LoadParam0Call:
			in.push(s[in.pp])
			if err := in.enter(u2(code, in.cp+1), in.retAddr(3)); err != nil {
				return 0, err
			}
		case scode.Call:
			if err := in.enter(u2(code, in.cp+1), in.retAddr(3)); err != nil {
				return 0, err
			}
		case scode.CallVirtual:
			vidx := u2(code, in.cp+1)
			self := s[in.sp-int(code[in.cp+3])+1].Addr()
			if in.debug && self == 0 {
				return 0, in.fault(ErrNullPointer, 0)
			}
			vt := in.vm.BlockAddr(mem.Uint16(self))
			bix := mem.Uint16(vt + 2*Addr(vidx))
			if err := in.enter(bix, in.retAddr(4)); err != nil {
				return 0, err
			}
		case scode.CallNative, scode.CallNativeWide, scode.CallNativeVoid:
			if err := in.callNative(op); err != nil {
				return 0, err
			}

		case scode.ReturnPop:
			if in.debug && in.sp-in.nl != in.lp {
				in.imbalance(in.sp - in.nl)
			}
			cell := s[in.sp]
			in.sp = in.fp - in.np
			ret := s[in.fp]
			if ret == 0 {
				return cell.Int(), nil
			}
			in.leave(ret)
			s[in.sp] = cell
		case scode.ReturnPopWide:
			if in.debug && in.sp-1-in.nl != in.lp {
				in.imbalance(in.sp - 1 - in.nl)
			}
			lo, hi := s[in.sp-1], s[in.sp]
			in.sp = in.fp - in.np
			ret := s[in.fp]
			if ret == 0 {
				return 0, nil
			}
			in.leave(ret)
			s[in.sp], s[in.sp+1] = lo, hi
			in.sp++
		case scode.ReturnVoid:
			if in.debug && in.sp-in.nl+1 != in.lp {
				in.imbalance(in.sp - in.nl + 1)
			}
			in.sp = in.fp - in.np - 1
			ret := s[in.fp]
			if ret == 0 {
				return s[in.sp].Int(), nil
			}
			in.leave(ret)

		// ---- misc ----

		case scode.InitArray:
			base := s[in.sp-2].Addr()
			n := int(s[in.sp-1].Int())
			size := Addr(s[in.sp])
			objs := base + Addr(scode.RefSize*n)
			for i := 0; i < n; i++ {
				mem.SetRef(base+Addr(scode.RefSize*i), objs+size*Addr(i))
			}
			in.sp -= 3
			in.cp++
		case scode.InitVirt:
			mem.SetUint16(s[in.sp].Addr()+scode.CompVtable, u2(code, in.cp+1))
			in.sp--
			in.cp += 3
		case scode.InitComp:
			mem.SetUint16(s[in.sp].Addr()+scode.CompType, u2(code, in.cp+1))
			in.sp--
			in.cp += 3
		case scode.Assert:
			v := s[in.sp]
			in.sp--
			if v == 0 {
				in.assertFailed(u2(code, in.cp+1))
			} else {
				in.vm.assertSuccesses++
			}
			in.cp += 3
		case scode.Switch:
			v := uint32(s[in.sp])
			in.sp--
			n := uint32(u2(code, in.cp+1))
			if v >= n {
				in.cp += 3 + 2*int(n)
			} else {
				in.cp += int(int16(u2(code, in.cp+3+2*int(v))))
			}
		case scode.MetaSlot:
			in.cp += 3

		default:
			return 0, in.fault(ErrUnknownOpcode, 0)
		}
	}
}

// callNative dispatches CallNative, CallNativeWide and CallNativeVoid.
func (in *interp) callNative(op scode.Opcode) error {
	kit, id, argc := int(in.code[in.cp+1]), int(in.code[in.cp+2]), int(in.code[in.cp+3])
	nat, ok := in.vm.natives.Lookup(kit, id)
	if ok && op == scode.CallNativeWide {
		ok = nat.Wide != nil
	} else if ok {
		ok = nat.Call != nil
	}
	if !ok {
		in.vm.log.Errorf("missing native method %d::%d", kit, id)
		return in.fault(ErrMissingNative, 0)
	}

	base := in.sp - argc + 1
	params := in.s[base : in.sp+1 : in.sp+1]
	in.vm.sp = in.sp
	var start time.Time
	if in.prof != nil {
		start = time.Now()
	}

	switch op {
	case scode.CallNative:
		r := nat.Call(in.vm, params)
		in.sp = base
		in.s[in.sp] = r
	case scode.CallNativeWide:
		r := nat.Wide(in.vm, params)
		in.sp = base
		in.setWide(in.sp, r)
		in.sp++
	default:
		nat.Call(in.vm, params)
		in.sp = base - 1
	}

	if in.prof != nil {
		in.prof.RecordNative(kit, id, nat.Name, time.Since(start))
	}
	in.cp += 4
	return nil
}

func (in *interp) assertFailed(line uint16) {
	in.vm.assertFailures++
	method := "?"
	if in.debug {
		method = in.vm.methodName(in.s, in.fp)
	}
	if f := in.vm.opts.OnAssertFailure; f != nil {
		f(in.vm, method, line)
		return
	}
	in.vm.log.Errorf("assert failure: %s line %d", method, line)
}

func (in *interp) imbalance(got int) {
	in.vm.imbalances++
	in.vm.log.Warningf("stack imbalance in %s: lp=%d sp-locals=%d", in.vm.methodName(in.s, in.fp), in.lp, got)
}

// recovered converts a panic raised while running into an error code.
func (in *interp) recovered(p any) error {
	switch e := p.(type) {
	case memFault:
		if e.null() {
			return in.fault(ErrNullPointer, e.addr)
		}
		return in.fault(ErrMemoryFault, e.addr)
	case runtime.Error:
		if strings.Contains(e.Error(), "divide by zero") {
			return in.fault(ErrArithmetic, 0)
		}
		return in.fault(ErrMemoryFault, 0)
	}
	panic(p)
}

// ---------------------------------------------------------------------------
// Arithmetic helpers
// ---------------------------------------------------------------------------

// compareInt evaluates the rel-th comparison of the Eq, NotEq, Gt, GtEq,
// Lt, LtEq sequence.
func compareInt(rel scode.Opcode, a, b int64) bool {
	switch rel {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a > b
	case 3:
		return a >= b
	case 4:
		return a < b
	default:
		return a <= b
	}
}

// compareFloat is compareInt for floating point, with eq supplying the
// NaN-aware equality.
func compareFloat(rel scode.Opcode, a, b float64, eq bool) bool {
	switch rel {
	case 0:
		return eq
	case 1:
		return !eq
	case 2:
		return a > b
	case 3:
		return a >= b
	case 4:
		return a < b
	default:
		return a <= b
	}
}

func intMath(op scode.Opcode, a, b int32) int32 {
	switch op {
	case scode.IntMul:
		return a * b
	case scode.IntDiv:
		return a / b
	case scode.IntMod:
		return a % b
	case scode.IntAdd:
		return a + b
	case scode.IntSub:
		return a - b
	case scode.IntOr:
		return a | b
	case scode.IntXor:
		return a ^ b
	case scode.IntAnd:
		return a & b
	case scode.IntShiftL:
		return a << (uint32(b) & 31)
	default:
		return a >> (uint32(b) & 31)
	}
}

func longMath(op scode.Opcode, a, b int64) int64 {
	switch op {
	case scode.LongMul:
		return a * b
	case scode.LongDiv:
		return a / b
	case scode.LongMod:
		return a % b
	case scode.LongAdd:
		return a + b
	case scode.LongSub:
		return a - b
	case scode.LongOr:
		return a | b
	case scode.LongXor:
		return a ^ b
	default:
		return a & b
	}
}
