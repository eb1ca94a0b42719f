package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/chazu/svm/manifest"
	"github.com/chazu/svm/vm"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("svm")

// launcher runs one image under the restart policy of a manifest.
type launcher struct {
	cfg      *manifest.Manifest
	natives  *vm.NativeTable
	stdout   io.Writer
	profiler *vm.Profiler
	load     func() ([]byte, error)
	sleep    func(time.Duration)

	restarts int
}

func newLauncher(cfg *manifest.Manifest, natives *vm.NativeTable, stdout io.Writer) *launcher {
	l := &launcher{cfg: cfg, natives: natives, stdout: stdout, sleep: time.Sleep}
	l.load = l.loadImage
	if cfg.Profile.Enabled {
		l.profiler = vm.NewProfiler()
	}
	return l
}

// loadImage reads the configured image, mapping failures to the bootstrap
// error codes.
func (l *launcher) loadImage() ([]byte, error) {
	path := l.cfg.ImagePath()
	img, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", vm.ErrInputFileNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %v", vm.ErrCannotReadInputFile, path, err)
	}
	return img, nil
}

// run loads and runs the image until it stops for good, and returns the
// process exit status.
func (l *launcher) run() int {
	for {
		img, err := l.load()
		if err != nil {
			log.Errorf("%v", err)
			return vm.Status(0, err)
		}
		status, err := l.runOnce(img)
		code := vm.ErrorCode(status)

		switch {
		case code == vm.ErrRestart:
			log.Notice("restart requested, reloading image")
			continue
		case err != nil && code.Recoverable() && l.cfg.Restart.Auto && l.restarts < l.cfg.Restart.Max:
			l.restarts++
			log.Warningf("restarting after %v (%d of %d)", err, l.restarts, l.cfg.Restart.Max)
			l.sleep(l.cfg.RestartDelay())
			continue
		}
		return status
	}
}

// runOnce runs main on a fresh VM and resumes it for as long as it yields
// or hibernates.
func (l *launcher) runOnce(img []byte) (int, error) {
	v, err := vm.New(img, vm.Options{
		StackSize:   l.cfg.VM.StackSize,
		MemoryLimit: l.cfg.MemoryLimit(),
		Debug:       l.cfg.VM.Debug,
		Args:        l.cfg.VM.Args,
		Natives:     l.natives,
		Stdout:      l.stdout,
		Profiler:    l.profiler,
	})
	if err != nil {
		log.Errorf("%v", err)
		return vm.Status(0, err), err
	}
	defer func() {
		if err := v.Close(); err != nil {
			log.Errorf("close: %v", err)
		}
	}()
	log.Infof("vm %s: running %d byte image", v.ID, len(img))

	result, err := v.Run()
	for err == nil {
		switch vm.ErrorCode(result) {
		case vm.ErrYield:
			log.Debug("yield")
		case vm.ErrHibernate:
			log.Info("hibernating")
			l.sleep(l.cfg.RestartDelay())
		default:
			return int(result), nil
		}
		result, err = v.Resume()
	}

	status := vm.Status(result, err)
	log.Errorf("vm %s stopped: %v", v.ID, err)
	l.writeCrashReport(v, err)
	return status, err
}

func (l *launcher) writeCrashReport(v *vm.VM, err error) {
	dir := l.cfg.CrashDir()
	if dir == "" {
		return
	}
	r := v.NewCrashReport(err)
	r.Restarts = l.restarts
	data, merr := vm.MarshalCrashReport(r)
	if merr != nil {
		log.Errorf("crash report: %v", merr)
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Errorf("crash report: %v", err)
		return
	}
	path := filepath.Join(dir, crashFileName(r.VMID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Errorf("crash report: %v", err)
		return
	}
	log.Noticef("crash report written to %s", path)
}

func crashFileName(vmID string) string {
	return "svm-" + vmID + ".crash"
}

// printProfile writes the hottest methods and every native's latency.
func printProfile(w io.Writer, p *vm.Profiler, top int) {
	stats := p.Stats()
	fmt.Fprintf(w, "methods: %d distinct, %d calls; natives: %d calls\n",
		stats.TotalMethods, stats.MethodInvocations, stats.NativeCalls)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tCALLS")
	for _, m := range p.TopMethods(top) {
		fmt.Fprintf(tw, "%d\t%d\n", m.Bix, m.InvocationCount)
	}
	tw.Flush()

	natives := p.Natives()
	if len(natives) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(tw, "NATIVE\tCALLS\tP50\tP99\tMAX")
	for _, n := range natives {
		fmt.Fprintf(tw, "%s\t%d\t%v\t%v\t%v\n", n.Name, n.Calls, n.P50, n.P99, n.Max)
	}
	tw.Flush()
}
