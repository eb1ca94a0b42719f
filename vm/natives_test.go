package vm

import (
	"errors"
	"testing"

	"github.com/chazu/svm/scode"
)

const demoKit = 2

// demoNatives returns a kit exercising each native flavor. helper is
// read at call time so it can be filled in after the image is built.
func demoNatives(noted *[]int32, helper *uint16) *Kit {
	return &Kit{
		ID:   demoKit,
		Name: "demo",
		Methods: []Native{
			{Name: "demo::Demo.add", Call: func(_ *VM, p []Cell) Cell {
				return IntCell(p[0].Int() + p[1].Int())
			}},
			{Name: "demo::Demo.big", Wide: func(_ *VM, p []Cell) int64 {
				return int64(p[0].Int()) << 33
			}},
			{Name: "demo::Demo.note", Call: func(_ *VM, p []Cell) Cell {
				*noted = append(*noted, p[0].Int())
				return NullCell
			}},
			{Name: "demo::Demo.reenter", Call: func(vm *VM, p []Cell) Cell {
				r, err := vm.Call(*helper, []Cell{p[0]})
				if err != nil {
					return NegOneCell
				}
				return IntCell(r)
			}},
		},
	}
}

func TestNatives(t *testing.T) {
	b, m := newImage(0)
	helper := b.NewRef("helper")
	m.Op(scode.LoadI2, scode.LoadI3).CallNative(scode.CallNative, demoKit, 0, 2)
	m.Op(scode.LoadI1).CallNative(scode.CallNativeWide, demoKit, 1, 1)
	m.OpU1(scode.LoadIntU1, 33).Op(scode.LongShiftR, scode.LongToInt, scode.IntAdd)
	m.Op(scode.LoadI4).CallNative(scode.CallNativeVoid, demoKit, 2, 1)
	m.Op(scode.LoadI5).CallNative(scode.CallNative, demoKit, 3, 1)
	m.Op(scode.IntAdd, scode.ReturnPop)
	b.Method(helper, 1, 0).Op(scode.LoadParam0, scode.LoadParam0, scode.IntAdd, scode.ReturnPop)
	img := mustBuild(t, b)

	var noted []int32
	helperBix := helper.Bix()
	table, err := NewNativeTable(demoNatives(&noted, &helperBix))
	if err != nil {
		t.Fatal(err)
	}
	prof := NewProfiler()
	r, err, v := runImage(t, img, Options{Debug: true, Natives: table, Profiler: prof})
	if err != nil {
		t.Fatal(err)
	}
	// (2+3) + (1<<33)>>33 + helper(5)
	if r != 16 {
		t.Errorf("got %d, want 16", r)
	}
	if len(noted) != 1 || noted[0] != 4 {
		t.Errorf("void native saw %v", noted)
	}
	if v.Imbalances() != 0 {
		t.Errorf("imbalances = %d", v.Imbalances())
	}
	stats := prof.Natives()
	if len(stats) != 4 {
		t.Fatalf("profiled %d natives, want 4", len(stats))
	}
	for i, s := range stats {
		if s.Kit != demoKit || s.Method != i || s.Calls != 1 {
			t.Errorf("stats[%d] = %+v", i, s)
		}
	}
	if got := prof.MethodCount(helper.Bix()); got != 1 {
		t.Errorf("helper invoked %d times through reentry", got)
	}
}

func TestMissingNative(t *testing.T) {
	tests := []struct {
		name string
		op   scode.Opcode
		kit  uint8
		id   uint8
		argc uint8
	}{
		{"unknown method", scode.CallNative, demoKit, 9, 0},
		{"unknown kit", scode.CallNative, 7, 0, 0},
		{"wide call of narrow native", scode.CallNativeWide, demoKit, 0, 2},
		{"void call of wide native", scode.CallNativeVoid, demoKit, 1, 1},
	}
	var noted []int32
	var helper uint16
	table, err := NewNativeTable(demoNatives(&noted, &helper))
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, m := newImage(0)
			for i := 0; i < int(tt.argc); i++ {
				m.Op(scode.LoadI1)
			}
			m.CallNative(tt.op, tt.kit, tt.id, tt.argc).Op(scode.ReturnPop)
			for _, debug := range []bool{false, true} {
				_, err, _ := runImage(t, mustBuild(t, b), Options{Debug: debug, Natives: table})
				if !errors.Is(err, ErrMissingNative) {
					t.Errorf("debug=%v: err = %v, want ErrMissingNative", debug, err)
				}
			}
		})
	}
}

func TestNativeTable(t *testing.T) {
	var noted []int32
	var helper uint16
	demo := demoNatives(&noted, &helper)
	table, err := NewNativeTable(&Kit{ID: 0, Name: "sys"}, demo)
	if err != nil {
		t.Fatal(err)
	}
	if got := table.Name(demoKit, 1); got != "demo::Demo.big" {
		t.Errorf("Name = %q", got)
	}
	if got := table.Name(demoKit, 9); got != "2::9" {
		t.Errorf("Name of missing = %q", got)
	}
	if got := len(table.Kits()); got != 2 {
		t.Errorf("Kits = %d", got)
	}
	if _, ok := table.Lookup(1, 0); ok {
		t.Error("Lookup found a native in an empty kit slot")
	}

	if _, err := NewNativeTable(demo, &Kit{ID: demoKit, Name: "other"}); !errors.Is(err, ErrDuplicateKit) {
		t.Errorf("duplicate kit err = %v", err)
	}
	if _, err := NewNativeTable(&Kit{ID: 256}); err == nil {
		t.Error("kit id 256 accepted")
	}
}

func TestContextClosedOnClose(t *testing.T) {
	v := mustVM(t, simpleImage(t), Options{})
	c := &closer{}
	type key struct{}
	got := v.Context(key{}, func() any { return c })
	if got != c || v.Context(key{}, func() any { return &closer{} }) != c {
		t.Fatal("Context did not keep the first value")
	}
	if err := v.Close(); err != nil {
		t.Fatal(err)
	}
	if !c.closed {
		t.Error("context value not closed")
	}
}

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}
