package scode

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is a single scode instruction byte.
type Opcode byte

const (
	// literals
	Nop            Opcode = iota // no operation
	LoadIM1                      // push -1
	LoadI0                       // push 0
	LoadI1                       // push 1
	LoadI2                       // push 2
	LoadI3                       // push 3
	LoadI4                       // push 4
	LoadI5                       // push 5
	LoadIntU1                    // push u1 operand
	LoadIntU2                    // push u2 operand
	LoadL0                       // push 0L (wide)
	LoadL1                       // push 1L (wide)
	LoadF0                       // push 0.0f
	LoadF1                       // push 1.0f
	LoadD0                       // push 0.0d (wide)
	LoadD1                       // push 1.0d (wide)
	LoadNull                     // push null
	LoadNullBool                 // push null bool (2)
	LoadNullFloat                // push null float (NaN bits)
	LoadNullDouble               // push null double (wide NaN bits)
	LoadInt                      // push i32 at block u2
	LoadFloat                    // push f32 at block u2
	LoadLong                     // push i64 at block u2 (wide)
	LoadDouble                   // push f64 at block u2 (wide)
	LoadStr                      // push address of block u2
	LoadBuf                      // push address of block u2
	LoadType                     // push address of block u2
	LoadSlot                     // push address of block u2
	LoadDefine                   // IR only

	// params
	LoadParam0
	LoadParam1
	LoadParam2
	LoadParam3
	LoadParam
	LoadParamWide
	StoreParam
	StoreParamWide

	// locals
	LoadLocal0
	LoadLocal1
	LoadLocal2
	LoadLocal3
	LoadLocal4
	LoadLocal5
	LoadLocal6
	LoadLocal7
	LoadLocal
	LoadLocalWide
	StoreLocal0
	StoreLocal1
	StoreLocal2
	StoreLocal3
	StoreLocal4
	StoreLocal5
	StoreLocal6
	StoreLocal7
	StoreLocal
	StoreLocalWide

	// int
	IntEq
	IntNotEq
	IntGt
	IntGtEq
	IntLt
	IntLtEq
	IntMul
	IntDiv
	IntMod
	IntAdd
	IntSub
	IntOr
	IntXor
	IntAnd
	IntNot
	IntNeg
	IntShiftL
	IntShiftR
	IntInc
	IntDec

	// long
	LongEq
	LongNotEq
	LongGt
	LongGtEq
	LongLt
	LongLtEq
	LongMul
	LongDiv
	LongMod
	LongAdd
	LongSub
	LongOr
	LongXor
	LongAnd
	LongNot
	LongNeg
	LongShiftL
	LongShiftR

	// float
	FloatEq
	FloatNotEq
	FloatGt
	FloatGtEq
	FloatLt
	FloatLtEq
	FloatMul
	FloatDiv
	FloatAdd
	FloatSub
	FloatNeg

	// double
	DoubleEq
	DoubleNotEq
	DoubleGt
	DoubleGtEq
	DoubleLt
	DoubleLtEq
	DoubleMul
	DoubleDiv
	DoubleAdd
	DoubleSub
	DoubleNeg

	// objects and general purpose
	ObjEq
	ObjNotEq
	EqZero
	NotEqZero

	// casts
	LongToInt
	FloatToInt
	DoubleToInt
	IntToLong
	FloatToLong
	DoubleToLong
	IntToFloat
	LongToFloat
	DoubleToFloat
	IntToDouble
	LongToDouble
	FloatToDouble

	// stack manipulation
	Dup
	Dup2
	DupDown2
	DupDown3
	Dup2Down2
	Dup2Down3
	Pop
	Pop2
	Pop3

	// near jumps (i1 offset)
	Jump
	JumpZero
	JumpNonZero
	Foreach

	// far jumps (i2 offset)
	JumpFar
	JumpFarZero
	JumpFarNonZero
	ForeachFar

	// int compare jumps
	JumpIntEq
	JumpIntNotEq
	JumpIntGt
	JumpIntGtEq
	JumpIntLt
	JumpIntLtEq
	JumpFarIntEq
	JumpFarIntNotEq
	JumpFarIntGt
	JumpFarIntGtEq
	JumpFarIntLt
	JumpFarIntLtEq

	// storage
	LoadDataAddr
	Load8BitFieldU1
	Load8BitFieldU2
	Load8BitFieldU4
	Load8BitArray
	Add8BitArray
	Store8BitFieldU1
	Store8BitFieldU2
	Store8BitFieldU4
	Store8BitArray
	Load16BitFieldU1
	Load16BitFieldU2
	Load16BitFieldU4
	Load16BitArray
	Add16BitArray
	Store16BitFieldU1
	Store16BitFieldU2
	Store16BitFieldU4
	Store16BitArray
	Load32BitFieldU1
	Load32BitFieldU2
	Load32BitFieldU4
	Load32BitArray
	Add32BitArray
	Store32BitFieldU1
	Store32BitFieldU2
	Store32BitFieldU4
	Store32BitArray
	Load64BitFieldU1
	Load64BitFieldU2
	Load64BitFieldU4
	Load64BitArray
	Add64BitArray
	Store64BitFieldU1
	Store64BitFieldU2
	Store64BitFieldU4
	Store64BitArray
	LoadRefFieldU1
	LoadRefFieldU2
	LoadRefFieldU4
	LoadRefArray
	AddRefArray
	LoadConstFieldU1
	LoadConstFieldU2
	LoadConstArray
	LoadConstStatic
	StoreRefFieldU1
	StoreRefFieldU2
	StoreRefFieldU4
	StoreRefArray
	LoadInlineFieldU1
	LoadInlineFieldU2
	LoadInlineFieldU4
	LoadParam0InlineFieldU1
	LoadParam0InlineFieldU2
	LoadParam0InlineFieldU4
	LoadDataInlineFieldU1
	LoadDataInlineFieldU2
	LoadDataInlineFieldU4

	// method calls
	LoadParam0Call
	Call
	CallVirtual
	CallNative
	CallNativeWide
	CallNativeVoid
	ReturnPop
	ReturnPopWide
	ReturnVoid

	// misc
	InitArray
	InitVirt
	InitComp
	Assert
	Switch
	MetaSlot

	// never valid in scode: alternate targets and IR
	LoadArrayLiteral
	Cast
	SizeOf

	NumOpcodes
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // operand bytes following the opcode (-1 = variable)
	PtrOffset    int    // stack depth of a pointer operand checked for null (-1 = none)
}

func op(name string, operands int) OpcodeInfo { return OpcodeInfo{name, operands, -1} }

func ptr(name string, operands, offset int) OpcodeInfo { return OpcodeInfo{name, operands, offset} }

var opcodeTable = [NumOpcodes]OpcodeInfo{
	Nop:            op("Nop", 0),
	LoadIM1:        op("LoadIM1", 0),
	LoadI0:         op("LoadI0", 0),
	LoadI1:         op("LoadI1", 0),
	LoadI2:         op("LoadI2", 0),
	LoadI3:         op("LoadI3", 0),
	LoadI4:         op("LoadI4", 0),
	LoadI5:         op("LoadI5", 0),
	LoadIntU1:      op("LoadIntU1", 1),
	LoadIntU2:      op("LoadIntU2", 2),
	LoadL0:         op("LoadL0", 0),
	LoadL1:         op("LoadL1", 0),
	LoadF0:         op("LoadF0", 0),
	LoadF1:         op("LoadF1", 0),
	LoadD0:         op("LoadD0", 0),
	LoadD1:         op("LoadD1", 0),
	LoadNull:       op("LoadNull", 0),
	LoadNullBool:   op("LoadNullBool", 0),
	LoadNullFloat:  op("LoadNullFloat", 0),
	LoadNullDouble: op("LoadNullDouble", 0),
	LoadInt:        op("LoadInt", 2),
	LoadFloat:      op("LoadFloat", 2),
	LoadLong:       op("LoadLong", 2),
	LoadDouble:     op("LoadDouble", 2),
	LoadStr:        op("LoadStr", 2),
	LoadBuf:        op("LoadBuf", 2),
	LoadType:       op("LoadType", 2),
	LoadSlot:       op("LoadSlot", 2),
	LoadDefine:     op("LoadDefine", 2),

	LoadParam0:     op("LoadParam0", 0),
	LoadParam1:     op("LoadParam1", 0),
	LoadParam2:     op("LoadParam2", 0),
	LoadParam3:     op("LoadParam3", 0),
	LoadParam:      op("LoadParam", 1),
	LoadParamWide:  op("LoadParamWide", 1),
	StoreParam:     op("StoreParam", 1),
	StoreParamWide: op("StoreParamWide", 1),

	LoadLocal0:     op("LoadLocal0", 0),
	LoadLocal1:     op("LoadLocal1", 0),
	LoadLocal2:     op("LoadLocal2", 0),
	LoadLocal3:     op("LoadLocal3", 0),
	LoadLocal4:     op("LoadLocal4", 0),
	LoadLocal5:     op("LoadLocal5", 0),
	LoadLocal6:     op("LoadLocal6", 0),
	LoadLocal7:     op("LoadLocal7", 0),
	LoadLocal:      op("LoadLocal", 1),
	LoadLocalWide:  op("LoadLocalWide", 1),
	StoreLocal0:    op("StoreLocal0", 0),
	StoreLocal1:    op("StoreLocal1", 0),
	StoreLocal2:    op("StoreLocal2", 0),
	StoreLocal3:    op("StoreLocal3", 0),
	StoreLocal4:    op("StoreLocal4", 0),
	StoreLocal5:    op("StoreLocal5", 0),
	StoreLocal6:    op("StoreLocal6", 0),
	StoreLocal7:    op("StoreLocal7", 0),
	StoreLocal:     op("StoreLocal", 1),
	StoreLocalWide: op("StoreLocalWide", 1),

	IntEq:     op("IntEq", 0),
	IntNotEq:  op("IntNotEq", 0),
	IntGt:     op("IntGt", 0),
	IntGtEq:   op("IntGtEq", 0),
	IntLt:     op("IntLt", 0),
	IntLtEq:   op("IntLtEq", 0),
	IntMul:    op("IntMul", 0),
	IntDiv:    op("IntDiv", 0),
	IntMod:    op("IntMod", 0),
	IntAdd:    op("IntAdd", 0),
	IntSub:    op("IntSub", 0),
	IntOr:     op("IntOr", 0),
	IntXor:    op("IntXor", 0),
	IntAnd:    op("IntAnd", 0),
	IntNot:    op("IntNot", 0),
	IntNeg:    op("IntNeg", 0),
	IntShiftL: op("IntShiftL", 0),
	IntShiftR: op("IntShiftR", 0),
	IntInc:    op("IntInc", 0),
	IntDec:    op("IntDec", 0),

	LongEq:     op("LongEq", 0),
	LongNotEq:  op("LongNotEq", 0),
	LongGt:     op("LongGt", 0),
	LongGtEq:   op("LongGtEq", 0),
	LongLt:     op("LongLt", 0),
	LongLtEq:   op("LongLtEq", 0),
	LongMul:    op("LongMul", 0),
	LongDiv:    op("LongDiv", 0),
	LongMod:    op("LongMod", 0),
	LongAdd:    op("LongAdd", 0),
	LongSub:    op("LongSub", 0),
	LongOr:     op("LongOr", 0),
	LongXor:    op("LongXor", 0),
	LongAnd:    op("LongAnd", 0),
	LongNot:    op("LongNot", 0),
	LongNeg:    op("LongNeg", 0),
	LongShiftL: op("LongShiftL", 0),
	LongShiftR: op("LongShiftR", 0),

	FloatEq:    op("FloatEq", 0),
	FloatNotEq: op("FloatNotEq", 0),
	FloatGt:    op("FloatGt", 0),
	FloatGtEq:  op("FloatGtEq", 0),
	FloatLt:    op("FloatLt", 0),
	FloatLtEq:  op("FloatLtEq", 0),
	FloatMul:   op("FloatMul", 0),
	FloatDiv:   op("FloatDiv", 0),
	FloatAdd:   op("FloatAdd", 0),
	FloatSub:   op("FloatSub", 0),
	FloatNeg:   op("FloatNeg", 0),

	DoubleEq:    op("DoubleEq", 0),
	DoubleNotEq: op("DoubleNotEq", 0),
	DoubleGt:    op("DoubleGt", 0),
	DoubleGtEq:  op("DoubleGtEq", 0),
	DoubleLt:    op("DoubleLt", 0),
	DoubleLtEq:  op("DoubleLtEq", 0),
	DoubleMul:   op("DoubleMul", 0),
	DoubleDiv:   op("DoubleDiv", 0),
	DoubleAdd:   op("DoubleAdd", 0),
	DoubleSub:   op("DoubleSub", 0),
	DoubleNeg:   op("DoubleNeg", 0),

	ObjEq:     op("ObjEq", 0),
	ObjNotEq:  op("ObjNotEq", 0),
	EqZero:    op("EqZero", 0),
	NotEqZero: op("NotEqZero", 0),

	LongToInt:     op("LongToInt", 0),
	FloatToInt:    op("FloatToInt", 0),
	DoubleToInt:   op("DoubleToInt", 0),
	IntToLong:     op("IntToLong", 0),
	FloatToLong:   op("FloatToLong", 0),
	DoubleToLong:  op("DoubleToLong", 0),
	IntToFloat:    op("IntToFloat", 0),
	LongToFloat:   op("LongToFloat", 0),
	DoubleToFloat: op("DoubleToFloat", 0),
	IntToDouble:   op("IntToDouble", 0),
	LongToDouble:  op("LongToDouble", 0),
	FloatToDouble: op("FloatToDouble", 0),

	Dup:       op("Dup", 0),
	Dup2:      op("Dup2", 0),
	DupDown2:  op("DupDown2", 0),
	DupDown3:  op("DupDown3", 0),
	Dup2Down2: op("Dup2Down2", 0),
	Dup2Down3: op("Dup2Down3", 0),
	Pop:       op("Pop", 0),
	Pop2:      op("Pop2", 0),
	Pop3:      op("Pop3", 0),

	Jump:           op("Jump", 1),
	JumpZero:       op("JumpZero", 1),
	JumpNonZero:    op("JumpNonZero", 1),
	Foreach:        op("Foreach", 1),
	JumpFar:        op("JumpFar", 2),
	JumpFarZero:    op("JumpFarZero", 2),
	JumpFarNonZero: op("JumpFarNonZero", 2),
	ForeachFar:     op("ForeachFar", 2),

	JumpIntEq:       op("JumpIntEq", 1),
	JumpIntNotEq:    op("JumpIntNotEq", 1),
	JumpIntGt:       op("JumpIntGt", 1),
	JumpIntGtEq:     op("JumpIntGtEq", 1),
	JumpIntLt:       op("JumpIntLt", 1),
	JumpIntLtEq:     op("JumpIntLtEq", 1),
	JumpFarIntEq:    op("JumpFarIntEq", 2),
	JumpFarIntNotEq: op("JumpFarIntNotEq", 2),
	JumpFarIntGt:    op("JumpFarIntGt", 2),
	JumpFarIntGtEq:  op("JumpFarIntGtEq", 2),
	JumpFarIntLt:    op("JumpFarIntLt", 2),
	JumpFarIntLtEq:  op("JumpFarIntLtEq", 2),

	LoadDataAddr: op("LoadDataAddr", 0),

	Load8BitFieldU1:  ptr("Load8BitFieldU1", 1, 0),
	Load8BitFieldU2:  ptr("Load8BitFieldU2", 2, 0),
	Load8BitFieldU4:  ptr("Load8BitFieldU4", 4, 0),
	Load8BitArray:    ptr("Load8BitArray", 0, 1),
	Add8BitArray:     ptr("Add8BitArray", 0, 1),
	Store8BitFieldU1: ptr("Store8BitFieldU1", 1, 1),
	Store8BitFieldU2: ptr("Store8BitFieldU2", 2, 1),
	Store8BitFieldU4: ptr("Store8BitFieldU4", 4, 1),
	Store8BitArray:   ptr("Store8BitArray", 0, 2),

	Load16BitFieldU1:  ptr("Load16BitFieldU1", 1, 0),
	Load16BitFieldU2:  ptr("Load16BitFieldU2", 2, 0),
	Load16BitFieldU4:  ptr("Load16BitFieldU4", 4, 0),
	Load16BitArray:    ptr("Load16BitArray", 0, 1),
	Add16BitArray:     ptr("Add16BitArray", 0, 1),
	Store16BitFieldU1: ptr("Store16BitFieldU1", 1, 1),
	Store16BitFieldU2: ptr("Store16BitFieldU2", 2, 1),
	Store16BitFieldU4: ptr("Store16BitFieldU4", 4, 1),
	Store16BitArray:   ptr("Store16BitArray", 0, 2),

	Load32BitFieldU1:  ptr("Load32BitFieldU1", 1, 0),
	Load32BitFieldU2:  ptr("Load32BitFieldU2", 2, 0),
	Load32BitFieldU4:  ptr("Load32BitFieldU4", 4, 0),
	Load32BitArray:    ptr("Load32BitArray", 0, 1),
	Add32BitArray:     ptr("Add32BitArray", 0, 1),
	Store32BitFieldU1: ptr("Store32BitFieldU1", 1, 1),
	Store32BitFieldU2: ptr("Store32BitFieldU2", 2, 1),
	Store32BitFieldU4: ptr("Store32BitFieldU4", 4, 1),
	Store32BitArray:   ptr("Store32BitArray", 0, 2),

	Load64BitFieldU1:  ptr("Load64BitFieldU1", 1, 0),
	Load64BitFieldU2:  ptr("Load64BitFieldU2", 2, 0),
	Load64BitFieldU4:  ptr("Load64BitFieldU4", 4, 0),
	Load64BitArray:    ptr("Load64BitArray", 0, 1),
	Add64BitArray:     ptr("Add64BitArray", 0, 1),
	Store64BitFieldU1: ptr("Store64BitFieldU1", 1, 2),
	Store64BitFieldU2: ptr("Store64BitFieldU2", 2, 2),
	Store64BitFieldU4: ptr("Store64BitFieldU4", 4, 2),
	Store64BitArray:   ptr("Store64BitArray", 0, 3),

	LoadRefFieldU1:   ptr("LoadRefFieldU1", 1, 0),
	LoadRefFieldU2:   ptr("LoadRefFieldU2", 2, 0),
	LoadRefFieldU4:   ptr("LoadRefFieldU4", 4, 0),
	LoadRefArray:     ptr("LoadRefArray", 0, 1),
	AddRefArray:      ptr("AddRefArray", 0, 1),
	LoadConstFieldU1: ptr("LoadConstFieldU1", 1, 0),
	LoadConstFieldU2: ptr("LoadConstFieldU2", 2, 0),
	LoadConstArray:   ptr("LoadConstArray", 0, 1),
	LoadConstStatic:  op("LoadConstStatic", 2),
	StoreRefFieldU1:  ptr("StoreRefFieldU1", 1, 1),
	StoreRefFieldU2:  ptr("StoreRefFieldU2", 2, 1),
	StoreRefFieldU4:  ptr("StoreRefFieldU4", 4, 1),
	StoreRefArray:    ptr("StoreRefArray", 0, 2),

	LoadInlineFieldU1:       ptr("LoadInlineFieldU1", 1, 0),
	LoadInlineFieldU2:       ptr("LoadInlineFieldU2", 2, 0),
	LoadInlineFieldU4:       ptr("LoadInlineFieldU4", 4, 0),
	LoadParam0InlineFieldU1: op("LoadParam0InlineFieldU1", 1),
	LoadParam0InlineFieldU2: op("LoadParam0InlineFieldU2", 2),
	LoadParam0InlineFieldU4: op("LoadParam0InlineFieldU4", 4),
	LoadDataInlineFieldU1:   op("LoadDataInlineFieldU1", 1),
	LoadDataInlineFieldU2:   op("LoadDataInlineFieldU2", 2),
	LoadDataInlineFieldU4:   op("LoadDataInlineFieldU4", 4),

	LoadParam0Call: op("LoadParam0Call", 2),
	Call:           op("Call", 2),
	CallVirtual:    op("CallVirtual", 3),
	CallNative:     op("CallNative", 3),
	CallNativeWide: op("CallNativeWide", 3),
	CallNativeVoid: op("CallNativeVoid", 3),
	ReturnPop:      op("ReturnPop", 0),
	ReturnPopWide:  op("ReturnPopWide", 0),
	ReturnVoid:     op("ReturnVoid", 0),

	InitArray: ptr("InitArray", 0, 2),
	InitVirt:  ptr("InitVirt", 2, 0),
	InitComp:  ptr("InitComp", 2, 0),
	Assert:    op("Assert", 2),
	Switch:    op("Switch", -1),
	MetaSlot:  op("MetaSlot", 2),

	LoadArrayLiteral: op("LoadArrayLiteral", 2),
	Cast:             op("Cast", 2),
	SizeOf:           op("SizeOf", 2),
}

// Info returns the metadata for an opcode. Unknown opcodes report a
// hex name, no operands and no pointer operand.
func (op Opcode) Info() OpcodeInfo {
	if op < NumOpcodes {
		return opcodeTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("0x%x", byte(op)), PtrOffset: -1}
}

// Name returns the opcode's human-readable name.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	return op.Name()
}

// Valid reports whether op is executable scode. Opcodes reserved for
// other targets or for the compiler's intermediate form are not.
func (op Opcode) Valid() bool {
	switch op {
	case LoadDefine, LoadArrayLiteral, Cast, SizeOf:
		return false
	}
	return op < NumOpcodes
}

// PointerOffset returns how far below the stack top the pointer operand
// of op sits, or -1 if op does not dereference a stack operand.
func PointerOffset(op Opcode) int {
	if op < NumOpcodes {
		return opcodeTable[op].PtrOffset
	}
	return -1
}

// IsArrayLoad reports whether op consumes an (array, index) pair from the
// stack top, which is what a continuing Foreach leaves behind.
func IsArrayLoad(op Opcode) bool {
	switch op {
	case Load8BitArray, Load16BitArray, Load32BitArray, Load64BitArray,
		LoadRefArray, LoadConstArray,
		Add8BitArray, Add16BitArray, Add32BitArray, Add64BitArray, AddRefArray:
		return true
	}
	return false
}

// Size returns the encoded size in bytes of the instruction starting at
// code[pc], including the opcode byte. Switch tables are sized from their
// entry count.
func Size(code []byte, pc int) int {
	op := Opcode(code[pc])
	n := op.Info().OperandBytes
	if n >= 0 {
		return 1 + n
	}
	count := int(code[pc+1]) | int(code[pc+2])<<8
	return 3 + 2*count
}
