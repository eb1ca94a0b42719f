// svm - runs scode images
//
// Usage:
//
//	svm [options] image.scode [args...]
//	svm -disasm image.scode
//	svm -crash svm-<id>.crash
//
// Settings come from the nearest svm.toml (or -config); flags override it.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/svm/kits/sys"
	"github.com/chazu/svm/manifest"
	"github.com/chazu/svm/scode"
	"github.com/chazu/svm/vm"
	"github.com/davecgh/go-spew/spew"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var (
	configPath  = flag.String("config", "", "configuration file (default: nearest svm.toml)")
	debug       = flag.Bool("debug", false, "enable debug checks")
	stackSize   = flag.Int("stack", 0, "stack size in cells")
	memoryMB    = flag.Int("memory", 0, "memory limit in MiB")
	verbosity   = flag.Int("v", 0, "log verbosity (0 keeps the configured level)")
	logFile     = flag.String("log", "", "log file (default stderr)")
	crashDir    = flag.String("crash-dir", "", "directory for crash reports")
	autoRestart = flag.Bool("restart", false, "restart after recoverable errors")
	profile     = flag.Bool("profile", false, "print method and native profile on exit")
	disasm      = flag.Bool("disasm", false, "disassemble the image and exit")
	crashFile   = flag.String("crash", "", "print a crash report and exit")
	showHeader  = flag.Bool("header", false, "print the image header before running")
	version     = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "svm - scode virtual machine\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  svm [options] image.scode [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Printf("svm version %s (%s)\n", sys.PlatformVersion, sys.PlatformID)
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)

	var logPath *string
	if f := cfg.LogFile(); f != "" {
		logPath = &f
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	if *crashFile != "" {
		os.Exit(dumpCrash(*crashFile))
	}
	if cfg.VM.Image == "" {
		flag.Usage()
		os.Exit(1)
	}

	l := newLauncher(cfg, mustNatives(), os.Stdout)
	if *disasm || *showHeader {
		img, err := l.loadImage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(vm.Status(0, err))
		}
		if *disasm {
			os.Exit(printDisasm(img))
		}
		if h, err := scode.ParseHeader(img); err == nil {
			spew.Fdump(os.Stderr, h)
		}
	}

	status := l.run()
	if l.profiler != nil {
		printProfile(os.Stdout, l.profiler, cfg.Profile.Top)
	}
	os.Exit(status)
}

func loadConfig() (*manifest.Manifest, error) {
	if *configPath != "" {
		return manifest.LoadFile(*configPath)
	}
	cfg, err := manifest.FindAndLoad(".")
	if err != nil || cfg != nil {
		return cfg, err
	}
	return manifest.Default(), nil
}

// applyFlags overrides cfg with the flags that were set. The first
// positional argument is the image; the rest are passed to main.
func applyFlags(cfg *manifest.Manifest) {
	if args := flag.Args(); len(args) > 0 {
		if abs, err := filepath.Abs(args[0]); err == nil {
			cfg.VM.Image = abs
		}
		cfg.VM.Args = args[1:]
	}
	if *debug {
		cfg.VM.Debug = true
	}
	if *stackSize > 0 {
		cfg.VM.StackSize = *stackSize
	}
	if *memoryMB > 0 {
		cfg.VM.MemoryMB = *memoryMB
	}
	if *verbosity != 0 {
		cfg.Log.Verbosity = *verbosity
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *crashDir != "" {
		cfg.Crash.Dir = *crashDir
	}
	if *autoRestart {
		cfg.Restart.Auto = true
	}
	if *profile {
		cfg.Profile.Enabled = true
	}
}

func mustNatives() *vm.NativeTable {
	table, err := sys.NativeTable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return table
}

func printDisasm(img []byte) int {
	text, err := scode.Disassemble(img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return vm.Status(0, err)
	}
	fmt.Print(text)
	return 0
}

func dumpCrash(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	r, err := vm.UnmarshalCrashReport(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	spew.Fdump(os.Stdout, r)
	return 0
}
