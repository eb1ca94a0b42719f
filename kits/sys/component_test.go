package sys

import (
	"testing"

	"github.com/chazu/svm/scode"
	"github.com/chazu/svm/vm"
)

// Native ids used by the counter program.
const (
	nGetInt     = 23
	nSetInt     = 29
	nInvokeInt  = 35
	nInvokeVoid = 33
	nTypeMalloc = 40
)

const offCount = 4

// counterImage builds a Counter component with an int slot and two
// actions, and a main that drives it entirely through sys natives:
//
//	c := Type.malloc(Counter)
//	c.doSetInt(count, 5)
//	c.invokeInt(bump, 7)
//	return c.getInt(count)
//
// reset, when true, appends c.invokeVoid(reset) before the final read.
// The Counter type and count slot refs are returned for direct calls.
func counterImage(reset bool) (b *scode.Builder, typ, count *scode.Ref) {
	b, m := newImage(1)

	typ, count = b.NewRef("Counter"), b.NewRef("count")
	vt, init := b.NewRef("vtable"), b.NewRef("init")
	kit, intType, voidType := b.NewRef("kit"), b.NewRef("int"), b.NewRef("void")
	bump, resetSlot := b.NewRef("bump"), b.NewRef("reset")
	bumpM, resetM := b.NewRef("Counter.bump"), b.NewRef("Counter.reset")

	m.OpRef(scode.LoadType, typ).CallNative(scode.CallNative, KitID, nTypeMalloc, 1).OpU1(scode.StoreLocal, 0)
	m.OpU1(scode.LoadLocal, 0).OpRef(scode.LoadSlot, count).Op(scode.LoadI5).
		CallNative(scode.CallNative, KitID, nSetInt, 3).Op(scode.Pop)
	m.OpU1(scode.LoadLocal, 0).OpRef(scode.LoadSlot, bump).OpU1(scode.LoadIntU1, 7).
		CallNative(scode.CallNativeVoid, KitID, nInvokeInt, 3)
	if reset {
		m.OpU1(scode.LoadLocal, 0).OpRef(scode.LoadSlot, resetSlot).
			CallNative(scode.CallNativeVoid, KitID, nInvokeVoid, 2)
	}
	m.OpU1(scode.LoadLocal, 0).OpRef(scode.LoadSlot, count).
		CallNative(scode.CallNative, KitID, nGetInt, 2).Op(scode.ReturnPop)

	b.Method(init, 1, 0).
		Op(scode.LoadParam0).OpRef(scode.InitVirt, vt).
		Op(scode.LoadParam0).OpRef(scode.InitComp, typ).Op(scode.ReturnVoid)
	b.Method(bumpM, 2, 0).Op(scode.LoadParam0, scode.Dup).OpU1(scode.Load32BitFieldU1, offCount).
		Op(scode.LoadParam1, scode.IntAdd).OpU1(scode.Store32BitFieldU1, offCount).Op(scode.ReturnVoid)
	b.Method(resetM, 1, 0).Op(scode.LoadParam0, scode.LoadI0).
		OpU1(scode.Store32BitFieldU1, offCount).Op(scode.ReturnVoid)
	b.Vtable(vt, nil, bumpM, resetM)

	b.Kit(kit, scode.KitDesc{ID: 1, Name: b.Str("demo"), Version: b.Str("1.0"), Types: []*scode.Ref{typ}})
	b.Type(intType, scode.TypeDesc{ID: scode.IntID, Name: b.Str("int"), Kit: kit})
	b.Type(voidType, scode.TypeDesc{ID: scode.VoidID, Name: b.Str("void"), Kit: kit})
	b.Slot(count, scode.SlotDesc{ID: 0, Name: b.Str("count"), Type: intType, Handle: offCount})
	b.Slot(bump, scode.SlotDesc{ID: 1, Name: b.Str("bump"), Type: intType, Handle: 1})
	b.Slot(resetSlot, scode.SlotDesc{ID: 2, Name: b.Str("reset"), Type: voidType, Handle: 2})
	b.Type(typ, scode.TypeDesc{
		ID: 9, Name: b.Str("Counter"), Kit: kit, SizeOf: 8, Init: init,
		Slots: []*scode.Ref{count, bump, resetSlot},
	})
	return b, typ, count
}

func TestComponentNatives(t *testing.T) {
	for _, debug := range []bool{false, true} {
		b, _, _ := counterImage(false)
		v := newVM(t, b, vm.Options{Debug: debug})
		r, err := v.Run()
		if err != nil {
			t.Fatalf("debug=%v: %v", debug, err)
		}
		if r != 12 {
			t.Errorf("debug=%v: count = %d, want 12", debug, r)
		}
		if v.AccessErrors() != 0 || v.Imbalances() != 0 {
			t.Errorf("debug=%v: access errors %d, imbalances %d", debug, v.AccessErrors(), v.Imbalances())
		}
	}
}

func TestComponentInvokeVoid(t *testing.T) {
	b, _, _ := counterImage(true)
	v := newVM(t, b, vm.Options{Debug: true})
	if r, err := v.Run(); err != nil || r != 0 {
		t.Errorf("Run = %d, %v; want 0 after reset", r, err)
	}
}

func TestComponentSetterResults(t *testing.T) {
	b, typ, countRef := counterImage(false)
	v := newVM(t, b, vm.Options{})

	self := typeMalloc(v, []vm.Cell{vm.AddrCell(v.BlockAddr(typ.Bix()))}).Addr()
	if self == 0 {
		t.Fatal("Type.malloc returned null")
	}
	if got := v.Memory().Uint16(self + scode.CompType); got != typ.Bix() {
		t.Errorf("init did not stamp the type: %d", got)
	}
	count := v.BlockAddr(countRef.Bix())
	set := func(n int32) vm.Cell {
		return componentSetInt(v, []vm.Cell{vm.AddrCell(self), vm.AddrCell(count), vm.IntCell(n)})
	}
	if set(3) != vm.TrueCell || set(3) != vm.FalseCell {
		t.Error("setter change detection")
	}
	if got := componentGetInt(v, []vm.Cell{vm.AddrCell(self), vm.AddrCell(count)}).Int(); got != 3 {
		t.Errorf("getInt = %d", got)
	}
	// a long read of an int slot is an access error, not a crash
	if got := componentGetLong(v, []vm.Cell{vm.AddrCell(self), vm.AddrCell(count)}); got != 0 {
		t.Errorf("getLong = %d", got)
	}
	if v.AccessErrors() != 1 {
		t.Errorf("access errors = %d", v.AccessErrors())
	}
}
