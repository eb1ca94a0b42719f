package vm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chazu/svm/scode"
)

func TestErrorCodeClasses(t *testing.T) {
	tests := []struct {
		code                                ErrorCode
		unrecoverable, recoverable, special bool
	}{
		{ErrMallocImage, true, false, false},
		{ErrBadImageCodeSize, true, false, false},
		{ErrMalformedCode, true, false, false},
		{ErrNullPointer, false, true, false},
		{ErrArithmetic, false, true, false},
		{ErrorCode(249), false, true, false},
		{ErrYield, false, false, true},
		{ErrRestart, false, false, true},
		{ErrHibernate, false, false, true},
		{ErrorCode(0), false, false, false},
	}
	for _, tt := range tests {
		if got := tt.code.Unrecoverable(); got != tt.unrecoverable {
			t.Errorf("%d.Unrecoverable() = %v", tt.code, got)
		}
		if got := tt.code.Recoverable(); got != tt.recoverable {
			t.Errorf("%d.Recoverable() = %v", tt.code, got)
		}
		if got := tt.code.Special(); got != tt.special {
			t.Errorf("%d.Special() = %v", tt.code, got)
		}
	}
}

func TestErrorStrings(t *testing.T) {
	if got := ErrStackOverflow.Error(); got != "stack overflow (101)" {
		t.Errorf("got %q", got)
	}
	if got := ErrorCode(77).Error(); got != "vm error 77" {
		t.Errorf("got %q", got)
	}
	f := &Fault{Code: ErrMemoryFault, Opcode: "Load8BitArray", Method: "sys::Sys.main", Addr: 0x2000}
	want := "memory fault (103) at Load8BitArray in sys::Sys.main [addr 0x2000]"
	if got := f.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStatus(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", &Fault{Code: ErrNullPointer})
	tests := []struct {
		name   string
		result int32
		err    error
		want   int
	}{
		{"ok", 7, nil, 7},
		{"code", 0, ErrBadImageMagic, 6},
		{"wrapped fault", 0, wrapped, 100},
		{"hibernate", 0, ErrHibernate, 255},
		{"foreign error", 3, errors.New("boom"), int(ErrMemoryFault)},
	}
	for _, tt := range tests {
		if got := Status(tt.result, tt.err); got != tt.want {
			t.Errorf("%s: Status = %d, want %d", tt.name, got, tt.want)
		}
	}
	if CodeOf(wrapped) != ErrNullPointer {
		t.Error("CodeOf did not unwrap the fault")
	}
}

func TestCrashReport(t *testing.T) {
	b, m := newImage(0)
	m.Op(scode.LoadI1).Assert(3)
	m.Op(scode.LoadI4, scode.LoadI0, scode.IntDiv, scode.ReturnPop)
	_, err, v := runImage(t, mustBuild(t, b), Options{Debug: true})
	if !errors.Is(err, ErrArithmetic) {
		t.Fatalf("err = %v", err)
	}

	r := v.NewCrashReport(err)
	if r.Code != int(ErrArithmetic) || r.Opcode != "IntDiv" || !r.Debug {
		t.Errorf("report = %+v", r)
	}
	if r.Asserts != [2]int{1, 0} {
		t.Errorf("asserts = %v", r.Asserts)
	}
	// the divisor is already popped when the division faults
	if len(r.Stack) == 0 || r.Stack[len(r.Stack)-1] != 4 {
		t.Errorf("stack top = %v, want ... 4", r.Stack)
	}

	data, err := MarshalCrashReport(r)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalCrashReport(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.VMID != v.ID.String() || got.Code != r.Code || got.Name != r.Name || got.Opcode != r.Opcode {
		t.Errorf("round trip = %+v", got)
	}
	if !got.Time.Equal(r.Time.Truncate(time.Second)) && !got.Time.Equal(r.Time) {
		t.Errorf("time = %v, want %v", got.Time, r.Time)
	}
	if len(got.Stack) != len(r.Stack) {
		t.Errorf("stack length %d, want %d", len(got.Stack), len(r.Stack))
	}

	if _, err := UnmarshalCrashReport([]byte{0xff}); err == nil {
		t.Error("garbage accepted")
	}
}

func TestProfiler(t *testing.T) {
	p := NewProfiler()
	for i := 0; i < 3; i++ {
		p.RecordMethod(10)
	}
	p.RecordMethod(20)
	p.RecordNative(0, 4, "sys::Sys.ticks", 2*time.Microsecond)
	p.RecordNative(0, 4, "sys::Sys.ticks", 0)

	top := p.TopMethods(1)
	if len(top) != 1 || top[0].Bix != 10 || top[0].InvocationCount != 3 {
		t.Errorf("TopMethods = %+v", top)
	}
	stats := p.Stats()
	if stats.TotalMethods != 2 || stats.MethodInvocations != 4 || stats.NativeCalls != 2 {
		t.Errorf("Stats = %+v", stats)
	}
	n := p.Natives()
	if len(n) != 1 || n[0].Calls != 2 || n[0].Max < time.Microsecond {
		t.Errorf("Natives = %+v", n)
	}

	p.Reset()
	if p.MethodCount(10) != 0 || len(p.Natives()) != 0 {
		t.Error("Reset left data behind")
	}
}
