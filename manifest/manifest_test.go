package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[vm]
image = "build/kits.scode"
stack-size = 4096
memory-mb = 8
debug = true
args = ["-x", "demo"]

[restart]
auto = true
max = 3
delay-ms = 250

[log]
verbosity = 2
file = "svm.log"

[crash]
dir = "/var/crash/svm"

[profile]
enabled = true
`
	if err := os.WriteFile(filepath.Join(dir, "svm.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := m.ImagePath(); got != filepath.Join(dir, "build", "kits.scode") {
		t.Errorf("image path = %q", got)
	}
	if m.VM.StackSize != 4096 || !m.VM.Debug || len(m.VM.Args) != 2 {
		t.Errorf("vm = %+v", m.VM)
	}
	if m.MemoryLimit() != 8<<20 {
		t.Errorf("memory limit = %d", m.MemoryLimit())
	}
	if !m.Restart.Auto || m.Restart.Max != 3 || m.RestartDelay() != 250*time.Millisecond {
		t.Errorf("restart = %+v", m.Restart)
	}
	if m.Log.Verbosity != 2 || m.LogFile() != filepath.Join(dir, "svm.log") {
		t.Errorf("log = %+v, file %q", m.Log, m.LogFile())
	}
	if m.CrashDir() != "/var/crash/svm" {
		t.Errorf("crash dir = %q, want absolute path kept", m.CrashDir())
	}
	if !m.Profile.Enabled || m.Profile.Top != 10 {
		t.Errorf("profile = %+v", m.Profile)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "svm.toml"), []byte("[vm]\nimage = \"a.scode\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	d := Default()
	if m.VM.StackSize != d.VM.StackSize || m.VM.StackSize != DefaultStackSize {
		t.Errorf("stack size = %d", m.VM.StackSize)
	}
	if m.Restart.Max != DefaultMaxRestarts || m.RestartDelay() != time.Second {
		t.Errorf("restart = %+v", m.Restart)
	}
	if m.Log.Verbosity != DefaultVerbosity || m.LogFile() != "" {
		t.Errorf("log = %+v", m.Log)
	}
	if m.CrashDir() != "" || m.MemoryLimit() != 0 {
		t.Errorf("crash dir %q, memory %d", m.CrashDir(), m.MemoryLimit())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Error("expected error for missing svm.toml")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[vm\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected parse error")
	}

	unknown := filepath.Join(dir, "unknown.toml")
	if err := os.WriteFile(unknown, []byte("[vm]\nstak-size = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(unknown); err == nil {
		t.Error("expected error for misspelled key")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "svm.toml"), []byte("[restart]\nmax = 9\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("expected manifest, got nil")
	}
	if m.Restart.Max != 9 {
		t.Errorf("restart max = %d, want 9", m.Restart.Max)
	}
	abs, _ := filepath.Abs(root)
	if m.Dir != abs {
		t.Errorf("dir = %q, want %q", m.Dir, abs)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil manifest, got %+v", m)
	}
}
