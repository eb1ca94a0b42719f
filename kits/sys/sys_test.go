package sys

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/svm/scode"
	"github.com/chazu/svm/vm"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newImage(locals int) (*scode.Builder, *scode.MethodBuilder) {
	b := scode.NewBuilder()
	main := b.NewRef("main")
	b.SetMain(main)
	return b, b.Method(main, 2, locals)
}

func newVM(t *testing.T, b *scode.Builder, opts vm.Options) *vm.VM {
	t.Helper()
	img, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if opts.Natives == nil {
		table, err := NativeTable()
		if err != nil {
			t.Fatal(err)
		}
		opts.Natives = table
	}
	v, err := vm.New(img, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	if err := v.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return v
}

// idle returns a validated VM whose main does nothing, for calling
// natives directly.
func idle(t *testing.T) *vm.VM {
	b, m := newImage(0)
	m.Op(scode.LoadI0, scode.ReturnPop)
	return newVM(t, b, vm.Options{})
}

// native looks up a sys native by its qualified name.
func native(t *testing.T, qname string) vm.Native {
	t.Helper()
	for _, n := range Kit().Methods {
		if n.Name == qname {
			return n
		}
	}
	t.Fatalf("no native %s", qname)
	return vm.Native{}
}

func wide(v int64) []vm.Cell {
	lo, hi := vm.SplitWide(v)
	return []vm.Cell{lo, hi}
}

// ---------------------------------------------------------------------------
// Kit table
// ---------------------------------------------------------------------------

func TestKitTable(t *testing.T) {
	k := Kit()
	if k.ID != KitID || k.Name != "sys" {
		t.Fatalf("kit = %d %s", k.ID, k.Name)
	}
	if len(k.Methods) != 50 {
		t.Errorf("%d natives, want 50", len(k.Methods))
	}
	for i, n := range k.Methods {
		if !n.Defined() || !strings.HasPrefix(n.Name, "sys::") {
			t.Errorf("native %d = %q, defined %v", i, n.Name, n.Defined())
		}
	}
	for _, name := range []string{"sys::Sys.ticks", "sys::Component.getLong", "sys::PlatformService.getNativeMemAvailable"} {
		if native(t, name).Wide == nil {
			t.Errorf("%s is not wide", name)
		}
	}
	if _, err := NativeTable(&vm.Kit{ID: 0, Name: "other"}); !errors.Is(err, vm.ErrDuplicateKit) {
		t.Errorf("second kit 0 err = %v", err)
	}
	if len(NativeChecksum) != 8 {
		t.Errorf("NativeChecksum = %q", NativeChecksum)
	}
}

// ---------------------------------------------------------------------------
// Sys
// ---------------------------------------------------------------------------

func TestNumberStrings(t *testing.T) {
	v := idle(t)
	tests := []struct {
		qname  string
		params []vm.Cell
		want   string
	}{
		{"sys::Sys.intStr", []vm.Cell{vm.IntCell(-42)}, "-42"},
		{"sys::Sys.hexStr", []vm.Cell{vm.NegOneCell}, "ffffffff"},
		{"sys::Sys.hexStr", []vm.Cell{vm.IntCell(0xbeef)}, "beef"},
		{"sys::Sys.longStr", wide(1 << 40), "1099511627776"},
		{"sys::Sys.longStr", wide(math.MinInt64), "-9223372036854775808"},
		{"sys::Sys.longHexStr", wide(-1), "ffffffffffffffff"},
		{"sys::Sys.floatStr", []vm.Cell{vm.FloatCell(1.5)}, "1.500000"},
		{"sys::Sys.floatStr", []vm.Cell{vm.NullFloat}, "nan"},
		{"sys::Sys.doubleStr", wide(vm.DoubleBits(-2.25)), "-2.250000"},
		{"sys::Sys.doubleStr", wide(vm.DoubleBits(math.Inf(1))), "inf"},
	}
	for _, tt := range tests {
		a := native(t, tt.qname).Call(v, tt.params).Addr()
		if a == 0 {
			t.Errorf("%s returned null", tt.qname)
			continue
		}
		if got := v.Memory().CString(a); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.qname, got, tt.want)
		}
	}
}

func TestBitCasts(t *testing.T) {
	v := idle(t)
	if got := sysFloatToBits(v, []vm.Cell{vm.FloatCell(1)}); got != 0x3f800000 {
		t.Errorf("floatToBits = %#x", uint32(got))
	}
	if got := sysBitsToFloat(v, []vm.Cell{0x3f800000}).Float(); got != 1 {
		t.Errorf("bitsToFloat = %v", got)
	}
	bits := vm.DoubleBits(0.5)
	if got := sysDoubleToBits(v, wide(bits)); got != bits {
		t.Errorf("doubleToBits = %#x", got)
	}
	if got := sysBitsToDouble(v, wide(bits)); got != bits {
		t.Errorf("bitsToDouble = %#x", got)
	}
}

func TestByteNatives(t *testing.T) {
	v := idle(t)
	mem := v.Memory()
	buf := sysMalloc(v, []vm.Cell{vm.IntCell(8)}).Addr()
	if buf == 0 {
		t.Fatal("malloc returned null")
	}
	a := vm.AddrCell(buf)

	sysSetBytes(v, []vm.Cell{0xff, a, vm.IntCell(2), vm.IntCell(4)})
	sysAndBytes(v, []vm.Cell{0x0f, a, vm.IntCell(3), vm.IntCell(2)})
	sysOrBytes(v, []vm.Cell{0x30, a, vm.IntCell(0), vm.IntCell(1)})
	want := []byte{0x30, 0, 0xff, 0x0f, 0x0f, 0xff, 0, 0}
	if got := mem.Bytes(buf, 8); !bytes.Equal(got, want) {
		t.Fatalf("bytes = % x, want % x", got, want)
	}

	// overlapping copy moves bytes 2..5 to 3..6
	sysCopy(v, []vm.Cell{a, vm.IntCell(2), a, vm.IntCell(3), vm.IntCell(4)})
	want = []byte{0x30, 0, 0xff, 0xff, 0x0f, 0x0f, 0xff, 0}
	if got := mem.Bytes(buf, 8); !bytes.Equal(got, want) {
		t.Fatalf("after copy = % x, want % x", got, want)
	}

	cmp := func(aoff, boff, n int32) int32 {
		return sysCompareBytes(v, []vm.Cell{a, vm.IntCell(aoff), a, vm.IntCell(boff), vm.IntCell(n)}).Int()
	}
	if cmp(2, 3, 1) != 0 || cmp(0, 2, 2) != -1 || cmp(2, 0, 2) != 1 || cmp(0, 2, 0) != 0 {
		t.Error("compareBytes disagrees")
	}

	used := mem.Used()
	sysFree(v, []vm.Cell{a})
	sysFree(v, []vm.Cell{vm.NullCell})
	if mem.Used() != used-8 {
		t.Errorf("free did not release the block")
	}
}

func TestScodeAddrAndPlatform(t *testing.T) {
	v := idle(t)
	if got := sysScodeAddr(v, nil).Addr(); got != vm.CodeBase {
		t.Errorf("scodeAddr = %#x", uint32(got))
	}
	mem := v.Memory()
	if got := mem.CString(sysPlatformType(v, nil).Addr()); got != "sys::Platform" {
		t.Errorf("platformType = %q", got)
	}
	if got := mem.CString(platformID(v, nil).Addr()); got != PlatformID {
		t.Errorf("platformId = %q", got)
	}
	if platformID(v, nil) != platformID(v, nil) {
		t.Error("constant strings not cached")
	}
	if got := mem.CString(platformNativeChecksum(v, nil).Addr()); got != NativeChecksum {
		t.Errorf("nativeChecksum = %q", got)
	}
	if platformMemAvailable(v, nil) < 0 {
		t.Error("negative free memory")
	}
}

func TestTicksAndSleep(t *testing.T) {
	v := idle(t)
	t0 := sysTicks(v, nil)
	sysSleep(v, wide(2_000_000))
	sysSleep(v, wide(-1))
	if d := sysTicks(v, nil) - t0; d < 2_000_000 {
		t.Errorf("ticks advanced %dns across a 2ms sleep", d)
	}
}

// ---------------------------------------------------------------------------
// StdOutStream
// ---------------------------------------------------------------------------

func TestStdOutStream(t *testing.T) {
	var out bytes.Buffer
	b, m := newImage(0)
	for _, c := range "hi\nx" {
		m.OpU1(scode.LoadIntU1, uint8(c)).CallNative(scode.CallNative, KitID, 41, 1).Op(scode.Pop)
	}
	msg := b.Str("..abc")
	m.OpRef(scode.LoadStr, msg).Op(scode.LoadI2, scode.LoadI3).CallNative(scode.CallNative, KitID, 42, 3)
	m.Op(scode.ReturnPop)
	v := newVM(t, b, vm.Options{Stdout: &out, Debug: true})

	r, err := v.Run()
	if err != nil || r != 1 {
		t.Fatalf("Run = %d, %v", r, err)
	}
	if got := out.String(); got != "hi\n" {
		t.Errorf("before close = %q, want flushed line only", got)
	}
	if err := v.Close(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "hi\nxabc" {
		t.Errorf("after close = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Test.doMain
// ---------------------------------------------------------------------------

func testImage(withTests bool) *scode.Builder {
	b, m := newImage(0)
	m.Op(scode.LoadNull).CallNative(scode.CallNative, KitID, 45, 1).Op(scode.ReturnPop)
	if !withTests {
		return b
	}
	typ := b.QnameType(b.Str("demo"), b.Str("DemoTest"))
	alpha, beta := b.NewRef("testAlpha"), b.NewRef("testBeta")
	b.Method(alpha, 0, 0).Op(scode.LoadI1).Assert(10).Op(scode.LoadI1).Assert(11).Op(scode.ReturnVoid)
	b.Method(beta, 0, 0).Op(scode.LoadI0).Assert(20).Op(scode.ReturnVoid)
	b.SetTests(b.TestTable(
		scode.TestEntry{Qname: b.QnameSlot(typ, b.Str("testAlpha")), Method: alpha},
		scode.TestEntry{Qname: b.QnameSlot(typ, b.Str("testBeta")), Method: beta},
	))
	return b
}

func TestDoMain(t *testing.T) {
	var failed []uint16
	v := newVM(t, testImage(true), vm.Options{
		Debug:           true,
		OnAssertFailure: func(_ *vm.VM, _ string, line uint16) { failed = append(failed, line) },
	})
	r, err := v.Run()
	if err != nil {
		t.Fatal(err)
	}
	if r != 1 || v.AssertSuccesses() != 2 {
		t.Errorf("failures = %d, successes = %d", r, v.AssertSuccesses())
	}
	if len(failed) != 1 || failed[0] != 20 {
		t.Errorf("failed lines = %v", failed)
	}
	if v.Imbalances() != 0 {
		t.Errorf("imbalances = %d", v.Imbalances())
	}
}

func TestDoMainFilter(t *testing.T) {
	v := newVM(t, testImage(true), vm.Options{})
	filter := stateOf(v).constStr(v, "Alpha")
	if got := testDoMain(v, []vm.Cell{filter}); got != 0 {
		t.Errorf("filtered run failures = %d", got)
	}
	if v.AssertSuccesses() != 2 {
		t.Errorf("successes = %d, want only testAlpha's 2", v.AssertSuccesses())
	}
}

func TestDoMainWithoutTests(t *testing.T) {
	v := newVM(t, testImage(false), vm.Options{})
	r, err := v.Run()
	if err != nil || r != -1 {
		t.Errorf("Run = %d, %v; want -1", r, err)
	}
}
