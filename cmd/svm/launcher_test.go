package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/svm/kits/sys"
	"github.com/chazu/svm/manifest"
	"github.com/chazu/svm/scode"
	"github.com/chazu/svm/vm"
)

// image builds an image whose main returns mainResult and whose resume
// method, if resumeResult is non-negative, returns resumeResult.
func image(t *testing.T, mainResult uint8, resumeResult int) []byte {
	t.Helper()
	b := scode.NewBuilder()
	main := b.NewRef("main")
	b.SetMain(main)
	b.Method(main, 2, 0).OpU1(scode.LoadIntU1, mainResult).Op(scode.ReturnPop)
	if resumeResult >= 0 {
		resume := b.NewRef("resume")
		b.SetResume(resume)
		b.Method(resume, 2, 0).OpU1(scode.LoadIntU1, uint8(resumeResult)).Op(scode.ReturnPop)
	}
	img, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func divideByZero(t *testing.T) []byte {
	t.Helper()
	b := scode.NewBuilder()
	main := b.NewRef("main")
	b.SetMain(main)
	b.Method(main, 2, 0).Op(scode.LoadI1, scode.LoadI0, scode.IntDiv, scode.ReturnPop)
	img, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func testLauncher(t *testing.T, images ...[]byte) (*launcher, *int) {
	t.Helper()
	table, err := sys.NativeTable()
	if err != nil {
		t.Fatal(err)
	}
	l := newLauncher(manifest.Default(), table, &bytes.Buffer{})
	loads := 0
	l.load = func() ([]byte, error) {
		img := images[min(loads, len(images)-1)]
		loads++
		return img, nil
	}
	l.sleep = func(time.Duration) {}
	return l, &loads
}

func TestRunStatus(t *testing.T) {
	l, loads := testLauncher(t, image(t, 7, -1))
	if got := l.run(); got != 7 {
		t.Errorf("status = %d, want 7", got)
	}
	if *loads != 1 {
		t.Errorf("image loaded %d times", *loads)
	}
}

func TestYieldAndHibernateResume(t *testing.T) {
	for _, special := range []vm.ErrorCode{vm.ErrYield, vm.ErrHibernate} {
		l, _ := testLauncher(t, image(t, uint8(special), 5))
		slept := 0
		l.sleep = func(time.Duration) { slept++ }
		if got := l.run(); got != 5 {
			t.Errorf("%v: status = %d, want resume result 5", special, got)
		}
		if want := map[bool]int{true: 1, false: 0}[special == vm.ErrHibernate]; slept != want {
			t.Errorf("%v: slept %d times, want %d", special, slept, want)
		}
	}
}

func TestRestartReloadsImage(t *testing.T) {
	l, loads := testLauncher(t, image(t, uint8(vm.ErrRestart), -1), image(t, 3, -1))
	if got := l.run(); got != 3 {
		t.Errorf("status = %d, want 3 from the reloaded image", got)
	}
	if *loads != 2 {
		t.Errorf("image loaded %d times, want 2", *loads)
	}
}

func TestAutoRestartAndCrashReports(t *testing.T) {
	dir := t.TempDir()
	l, loads := testLauncher(t, divideByZero(t))
	l.cfg.Restart.Auto = true
	l.cfg.Restart.Max = 2
	l.cfg.Crash.Dir = dir

	if got := l.run(); got != int(vm.ErrArithmetic) {
		t.Errorf("status = %d, want %d", got, vm.ErrArithmetic)
	}
	if *loads != 3 || l.restarts != 2 {
		t.Errorf("loads = %d, restarts = %d", *loads, l.restarts)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("%d crash reports, want 3", len(entries))
	}
	maxRestarts := 0
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		r, err := vm.UnmarshalCrashReport(data)
		if err != nil {
			t.Fatal(err)
		}
		if r.Code != int(vm.ErrArithmetic) || e.Name() != crashFileName(r.VMID) {
			t.Errorf("%s: report = %+v", e.Name(), r)
		}
		maxRestarts = max(maxRestarts, r.Restarts)
	}
	if maxRestarts != 2 {
		t.Errorf("last report restarts = %d, want 2", maxRestarts)
	}
}

func TestNoRestartWithoutAuto(t *testing.T) {
	l, loads := testLauncher(t, divideByZero(t))
	if got := l.run(); got != int(vm.ErrArithmetic) || *loads != 1 {
		t.Errorf("status = %d after %d loads", got, *loads)
	}
}

func TestMissingImage(t *testing.T) {
	cfg := manifest.Default()
	cfg.VM.Image = filepath.Join(t.TempDir(), "missing.scode")
	l := newLauncher(cfg, nil, &bytes.Buffer{})
	if got := l.run(); got != int(vm.ErrInputFileNotFound) {
		t.Errorf("status = %d, want %d", got, vm.ErrInputFileNotFound)
	}
}

func TestPrintProfile(t *testing.T) {
	l, _ := testLauncher(t, image(t, 1, -1))
	l.profiler = vm.NewProfiler()
	l.run()
	var out bytes.Buffer
	printProfile(&out, l.profiler, 5)
	if !bytes.Contains(out.Bytes(), []byte("BLOCK")) || !bytes.Contains(out.Bytes(), []byte("1 calls")) {
		t.Errorf("profile output:\n%s", out.String())
	}
}
