package sys

import "github.com/chazu/svm/vm"

// Program output is buffered per VM and flushed at each newline, on
// doFlush and when the VM closes.

func stdoutWrite(v *vm.VM, p []vm.Cell) vm.Cell {
	out := stateOf(v).out
	b := byte(p[0])
	if err := out.WriteByte(b); err != nil {
		return vm.FalseCell
	}
	if b == '\n' {
		if err := out.Flush(); err != nil {
			return vm.FalseCell
		}
	}
	return vm.TrueCell
}

// stdoutWriteBytes is doWriteBytes(buf, off, len).
func stdoutWriteBytes(v *vm.VM, p []vm.Cell) vm.Cell {
	n := int(p[2].Int())
	if n <= 0 {
		return vm.TrueCell
	}
	buf := v.Memory().Bytes(p[0].Addr()+vm.Addr(p[1].Int()), n)
	if _, err := stateOf(v).out.Write(buf); err != nil {
		return vm.FalseCell
	}
	return vm.TrueCell
}

func stdoutFlush(v *vm.VM, _ []vm.Cell) vm.Cell {
	if err := stateOf(v).out.Flush(); err != nil {
		log.Errorf("stdout: %v", err)
	}
	return vm.NullCell
}

// strFromBytes is Str.fromBytes(buf, off): the string starting at buf+off.
func strFromBytes(_ *vm.VM, p []vm.Cell) vm.Cell {
	return vm.AddrCell(p[0].Addr() + vm.Addr(p[1].Int()))
}
