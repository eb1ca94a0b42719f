// Package manifest handles svm.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "svm.toml"

// Defaults applied to fields left unset.
const (
	DefaultStackSize   = 16 * 1024
	DefaultMaxRestarts = 5
	DefaultRestartMS   = 1000
	DefaultVerbosity   = 1
)

// Manifest represents an svm.toml configuration.
type Manifest struct {
	VM      VMConfig      `toml:"vm"`
	Restart RestartConfig `toml:"restart"`
	Log     LogConfig     `toml:"log"`
	Crash   CrashConfig   `toml:"crash"`
	Profile ProfileConfig `toml:"profile"`

	// Dir is the directory containing the svm.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig configures the image and the VM that runs it.
type VMConfig struct {
	Image     string   `toml:"image"`
	StackSize int      `toml:"stack-size"` // cells
	MemoryMB  int      `toml:"memory-mb"`
	Debug     bool     `toml:"debug"`
	Args      []string `toml:"args"`
}

// RestartConfig controls what the launcher does after the VM stops.
// Auto restarts after recoverable errors, at most Max times.
type RestartConfig struct {
	Auto    bool `toml:"auto"`
	Max     int  `toml:"max"`
	DelayMS int  `toml:"delay-ms"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// CrashConfig selects where crash reports are written. Empty disables
// them.
type CrashConfig struct {
	Dir string `toml:"dir"`
}

// ProfileConfig enables the method and native profiler.
type ProfileConfig struct {
	Enabled bool `toml:"enabled"`
	Top     int  `toml:"top"`
}

// Default returns a manifest with every default applied and Dir unset.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses the svm.toml file in dir.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Relative paths inside
// the file are resolved against its directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find an svm.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.VM.StackSize <= 0 {
		m.VM.StackSize = DefaultStackSize
	}
	if m.Restart.Max <= 0 {
		m.Restart.Max = DefaultMaxRestarts
	}
	if m.Restart.DelayMS <= 0 {
		m.Restart.DelayMS = DefaultRestartMS
	}
	if m.Log.Verbosity == 0 {
		m.Log.Verbosity = DefaultVerbosity
	}
	if m.Profile.Top <= 0 {
		m.Profile.Top = 10
	}
}

// ImagePath returns the image path, resolved against Dir when relative.
func (m *Manifest) ImagePath() string {
	return m.resolve(m.VM.Image)
}

// CrashDir returns the crash report directory, or "" if disabled.
func (m *Manifest) CrashDir() string {
	return m.resolve(m.Crash.Dir)
}

// LogFile returns the log file path, or "" for stderr.
func (m *Manifest) LogFile() string {
	return m.resolve(m.Log.File)
}

// MemoryLimit returns the VM memory limit in bytes; 0 means the VM
// default.
func (m *Manifest) MemoryLimit() int {
	return m.VM.MemoryMB << 20
}

// RestartDelay returns the pause between restarts.
func (m *Manifest) RestartDelay() time.Duration {
	return time.Duration(m.Restart.DelayMS) * time.Millisecond
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
