package vm

import (
	"github.com/chazu/svm/scode"
)

// ---------------------------------------------------------------------------
// Descriptor accessors
// ---------------------------------------------------------------------------

// CompType returns the type descriptor of the component at self.
func (vm *VM) CompType(self Addr) Addr {
	return vm.BlockAddr(vm.mem.Uint16(self + scode.CompType))
}

// TypeID returns the primitive id of the type descriptor at t.
func (vm *VM) TypeID(t Addr) int { return int(vm.mem.Uint8(t + scode.TypeID)) }

// TypeName returns the name of the type descriptor at t.
func (vm *VM) TypeName(t Addr) string {
	return vm.mem.CString(vm.BlockAddr(vm.mem.Uint16(t + scode.TypeName)))
}

// TypeKit returns the kit descriptor owning the type at t.
func (vm *VM) TypeKit(t Addr) Addr {
	return vm.BlockAddr(vm.mem.Uint16(t + scode.TypeKit))
}

// TypeSizeOf returns the instance size of the type at t.
func (vm *VM) TypeSizeOf(t Addr) int { return int(vm.mem.Uint16(t + scode.TypeSizeOf)) }

// KitName returns the name of the kit descriptor at k.
func (vm *VM) KitName(k Addr) string {
	return vm.mem.CString(vm.BlockAddr(vm.mem.Uint16(k + scode.KitName)))
}

// SlotName returns the name of the slot descriptor at slot.
func (vm *VM) SlotName(slot Addr) string {
	return vm.mem.CString(vm.BlockAddr(vm.mem.Uint16(slot + scode.SlotName)))
}

// SlotType returns the type descriptor of the slot at slot.
func (vm *VM) SlotType(slot Addr) Addr {
	return vm.BlockAddr(vm.mem.Uint16(slot + scode.SlotType))
}

// SlotHandle returns a property's field offset or an action's vtable
// index.
func (vm *VM) SlotHandle(slot Addr) Addr { return Addr(vm.mem.Uint16(slot + scode.SlotHandle)) }

func (vm *VM) slotTypeID(slot Addr) int { return vm.TypeID(vm.SlotType(slot)) }

// ActionMethod resolves vtable index vidx through the vtable of self.
func (vm *VM) ActionMethod(self Addr, vidx uint16) uint16 {
	vt := vm.BlockAddr(vm.mem.Uint16(self + scode.CompVtable))
	return vm.mem.Uint16(vt + 2*Addr(vidx))
}

// accessError reports a slot used through the wrong accessor.
func (vm *VM) accessError(method string, self, slot Addr) Cell {
	vm.accessErrors++
	if vm.opts.Debug {
		t := vm.CompType(self)
		vm.log.Errorf("%s: %s::%s.%s %s", ErrSlotType, vm.KitName(vm.TypeKit(t)), vm.TypeName(t), vm.SlotName(slot), method)
	}
	return ZeroCell
}

// ---------------------------------------------------------------------------
// Getters
// ---------------------------------------------------------------------------

// GetBool reads a bool property.
func (vm *VM) GetBool(self, slot Addr) Cell {
	if vm.slotTypeID(slot) != scode.BoolID {
		return vm.accessError("getBool", self, slot)
	}
	return Cell(vm.mem.Uint8(self + vm.SlotHandle(slot)))
}

// GetInt reads a byte, short or int property.
func (vm *VM) GetInt(self, slot Addr) Cell {
	a := self + vm.SlotHandle(slot)
	switch vm.slotTypeID(slot) {
	case scode.ByteID:
		return Cell(vm.mem.Uint8(a))
	case scode.ShortID:
		return Cell(vm.mem.Uint16(a))
	case scode.IntID:
		return Cell(vm.mem.Uint32(a))
	}
	return vm.accessError("getInt", self, slot)
}

// GetLong reads a long property.
func (vm *VM) GetLong(self, slot Addr) int64 {
	if vm.slotTypeID(slot) != scode.LongID {
		vm.accessError("getLong", self, slot)
		return 0
	}
	return vm.mem.Int64(self + vm.SlotHandle(slot))
}

// GetFloat reads a float property as raw bits.
func (vm *VM) GetFloat(self, slot Addr) Cell {
	if vm.slotTypeID(slot) != scode.FloatID {
		return vm.accessError("getFloat", self, slot)
	}
	return Cell(vm.mem.Uint32(self + vm.SlotHandle(slot)))
}

// GetDouble reads a double property as raw bits.
func (vm *VM) GetDouble(self, slot Addr) int64 {
	if vm.slotTypeID(slot) != scode.DoubleID {
		vm.accessError("getDouble", self, slot)
		return 0
	}
	return vm.mem.Int64(self + vm.SlotHandle(slot))
}

// GetBuf returns the address of an inline Buf property.
func (vm *VM) GetBuf(self, slot Addr) Cell {
	if vm.slotTypeID(slot) != scode.BufID {
		return vm.accessError("getBuf", self, slot)
	}
	return AddrCell(self + vm.SlotHandle(slot))
}

// ---------------------------------------------------------------------------
// Setters: TrueCell when the stored value changed, FalseCell otherwise
// ---------------------------------------------------------------------------

// SetBool writes a bool property.
func (vm *VM) SetBool(self, slot Addr, v uint8) Cell {
	if vm.slotTypeID(slot) != scode.BoolID {
		return vm.accessError("setBool", self, slot)
	}
	a := self + vm.SlotHandle(slot)
	if vm.mem.Uint8(a) == v {
		return FalseCell
	}
	vm.mem.SetUint8(a, v)
	return TrueCell
}

// SetInt writes a byte, short or int property.
func (vm *VM) SetInt(self, slot Addr, v int32) Cell {
	a := self + vm.SlotHandle(slot)
	switch vm.slotTypeID(slot) {
	case scode.ByteID:
		if int32(vm.mem.Uint8(a)) == v {
			return FalseCell
		}
		vm.mem.SetUint8(a, uint8(v))
	case scode.ShortID:
		if int32(vm.mem.Uint16(a)) == v {
			return FalseCell
		}
		vm.mem.SetUint16(a, uint16(v))
	case scode.IntID:
		if vm.mem.Int32(a) == v {
			return FalseCell
		}
		vm.mem.SetUint32(a, uint32(v))
	default:
		return vm.accessError("setInt", self, slot)
	}
	return TrueCell
}

// SetLong writes a long property.
func (vm *VM) SetLong(self, slot Addr, v int64) Cell {
	return vm.setWide("setLong", scode.LongID, self, slot, v)
}

// SetFloat writes a float property given as raw bits. Values are compared
// by bits, so storing NaN over the same NaN is not a change.
func (vm *VM) SetFloat(self, slot Addr, bits Cell) Cell {
	if vm.slotTypeID(slot) != scode.FloatID {
		return vm.accessError("setFloat", self, slot)
	}
	a := self + vm.SlotHandle(slot)
	if Cell(vm.mem.Uint32(a)) == bits {
		return FalseCell
	}
	vm.mem.SetUint32(a, uint32(bits))
	return TrueCell
}

// SetDouble writes a double property given as raw bits.
func (vm *VM) SetDouble(self, slot Addr, bits int64) Cell {
	return vm.setWide("setDouble", scode.DoubleID, self, slot, bits)
}

func (vm *VM) setWide(method string, typeID int, self, slot Addr, v int64) Cell {
	if vm.slotTypeID(slot) != typeID {
		return vm.accessError(method, self, slot)
	}
	a := self + vm.SlotHandle(slot)
	if vm.mem.Int64(a) == v {
		return FalseCell
	}
	vm.mem.SetInt64(a, v)
	return TrueCell
}

// ---------------------------------------------------------------------------
// Invokes
// ---------------------------------------------------------------------------

// Invoke calls the action slot on self with args. typeID is the argument
// type the caller expects (VoidID for no argument); a mismatch is logged
// and nothing is called.
func (vm *VM) Invoke(method string, typeID int, self, slot Addr, args ...Cell) Cell {
	if vm.slotTypeID(slot) != typeID {
		return vm.accessError(method, self, slot)
	}
	bix := vm.ActionMethod(self, uint16(vm.SlotHandle(slot)))
	call := append([]Cell{AddrCell(self)}, args...)
	if _, err := vm.Call(bix, call); err != nil {
		vm.log.Errorf("%s: %v", method, err)
	}
	return NullCell
}

// NewInstance allocates and initializes an instance of the type at t:
// sizeof bytes are zeroed and the type's init method is called with the
// new instance. It returns 0 if allocation fails.
func (vm *VM) NewInstance(t Addr) Addr {
	self := vm.mem.Malloc(vm.TypeSizeOf(t))
	if self == 0 {
		return 0
	}
	if init := vm.mem.Uint16(t + scode.TypeInit); init != 0 {
		if _, err := vm.Call(init, []Cell{AddrCell(self)}); err != nil {
			vm.log.Errorf("type init %s: %v", vm.TypeName(t), err)
		}
	}
	return self
}
