package sys

import (
	"github.com/chazu/svm/scode"
	"github.com/chazu/svm/vm"
)

// Component natives take (self, slot, value...). Type mismatches are
// logged and counted by the VM and the native returns a null value.

func componentGetBool(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.GetBool(p[0].Addr(), p[1].Addr())
}

func componentGetInt(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.GetInt(p[0].Addr(), p[1].Addr())
}

func componentGetLong(v *vm.VM, p []vm.Cell) int64 {
	return v.GetLong(p[0].Addr(), p[1].Addr())
}

func componentGetFloat(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.GetFloat(p[0].Addr(), p[1].Addr())
}

func componentGetDouble(v *vm.VM, p []vm.Cell) int64 {
	return v.GetDouble(p[0].Addr(), p[1].Addr())
}

func componentGetBuf(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.GetBuf(p[0].Addr(), p[1].Addr())
}

// The setters return true only when the stored value changed.

func componentSetBool(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.SetBool(p[0].Addr(), p[1].Addr(), uint8(p[2]))
}

func componentSetInt(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.SetInt(p[0].Addr(), p[1].Addr(), p[2].Int())
}

func componentSetLong(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.SetLong(p[0].Addr(), p[1].Addr(), vm.WideArg(p, 2))
}

func componentSetFloat(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.SetFloat(p[0].Addr(), p[1].Addr(), p[2])
}

func componentSetDouble(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.SetDouble(p[0].Addr(), p[1].Addr(), vm.WideArg(p, 2))
}

func componentInvokeVoid(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.Invoke("invokeVoid", scode.VoidID, p[0].Addr(), p[1].Addr())
}

func componentInvokeBool(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.Invoke("invokeBool", scode.BoolID, p[0].Addr(), p[1].Addr(), vm.Cell(uint8(p[2])))
}

func componentInvokeInt(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.Invoke("invokeInt", scode.IntID, p[0].Addr(), p[1].Addr(), p[2])
}

func componentInvokeLong(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.Invoke("invokeLong", scode.LongID, p[0].Addr(), p[1].Addr(), p[2], p[3])
}

func componentInvokeFloat(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.Invoke("invokeFloat", scode.FloatID, p[0].Addr(), p[1].Addr(), p[2])
}

func componentInvokeDouble(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.Invoke("invokeDouble", scode.DoubleID, p[0].Addr(), p[1].Addr(), p[2], p[3])
}

func componentInvokeBuf(v *vm.VM, p []vm.Cell) vm.Cell {
	return v.Invoke("invokeBuf", scode.BufID, p[0].Addr(), p[1].Addr(), p[2])
}

// typeMalloc allocates a zeroed instance of the type and runs its init
// method.
func typeMalloc(v *vm.VM, p []vm.Cell) vm.Cell {
	return vm.AddrCell(v.NewInstance(p[0].Addr()))
}
