package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/svm/scode"
)

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

const (
	maxTraceDepth = 64
	faultTopCells = 16
)

// fault builds, logs and records a Fault at the current instruction.
func (in *interp) fault(code ErrorCode, addr Addr) *Fault {
	f := &Fault{Code: code, Opcode: in.op.Name(), Addr: addr}
	if in.fp > 0 {
		f.Method = in.vm.methodName(in.s, in.fp)
		f.Stack = in.vm.callStack(in.s, in.fp)
	}
	if in.sp >= 0 && in.sp < len(in.s) {
		lo := in.sp - faultTopCells + 1
		if lo < 0 {
			lo = 0
		}
		f.Top = append([]Cell(nil), in.s[lo:in.sp+1]...)
	}
	in.vm.lastFault = f
	in.vm.log.Errorf("vm %s: %s", in.vm.ID, f)
	for _, m := range f.Stack {
		in.vm.log.Errorf("    %s", m)
	}
	return f
}

// methodName returns the qualified name of the method running in the
// frame at fp. It relies on the MetaSlot a debug build places at the
// start of every method.
func (vm *VM) methodName(s []Cell, fp int) (name string) {
	defer func() {
		if recover() != nil {
			name = "unknown"
		}
	}()
	addr := s[fp+2].Addr()
	cp := int(addr-CodeBase) + 2
	code := vm.image
	for cp < len(code) && scode.Opcode(code[cp]) == scode.Nop {
		cp++
	}
	if cp+2 >= len(code) || scode.Opcode(code[cp]) != scode.MetaSlot {
		return "unknown"
	}
	return vm.QnameSlot(u2(code, cp+1))
}

// callStack lists the methods of the frames from fp outward.
func (vm *VM) callStack(s []Cell, fp int) []string {
	var out []string
	for fp > 0 && len(out) < maxTraceDepth {
		out = append(out, vm.methodName(s, fp))
		fp = int(s[fp+1])
	}
	return out
}

// QnameType formats the [kitName, typeName] pair at block bix as
// kit::Type.
func (vm *VM) QnameType(bix uint16) string {
	a := vm.BlockAddr(bix)
	kit := vm.mem.CString(vm.BlockAddr(vm.mem.Uint16(a)))
	typ := vm.mem.CString(vm.BlockAddr(vm.mem.Uint16(a + 2)))
	return kit + "::" + typ
}

// QnameSlot formats the [typeQname, slotName] pair at block bix as
// kit::Type.slot.
func (vm *VM) QnameSlot(bix uint16) string {
	a := vm.BlockAddr(bix)
	typ := vm.QnameType(vm.mem.Uint16(a))
	slot := vm.mem.CString(vm.BlockAddr(vm.mem.Uint16(a + 2)))
	return typ + "." + slot
}

// DumpStack formats the stack cells from index 1 to top, one per line.
func (vm *VM) DumpStack(top int) string {
	var sb strings.Builder
	if top >= len(vm.stack) {
		top = len(vm.stack) - 1
	}
	for i := 1; i <= top; i++ {
		c := vm.stack[i]
		fmt.Fprintf(&sb, "  [%d] 0x%08x %d\n", i, uint32(c), c.Int())
	}
	return sb.String()
}
