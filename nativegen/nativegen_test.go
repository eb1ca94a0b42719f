package nativegen

import (
	"errors"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const demoDecl = `
package = "demo"
kit = "demo"
id = 3

[[native]]
id = 2
qname = "demo::Demo.ticks"
func = "demoTicks"
wide = true

[[native]]
id = 0
qname = "demo::Demo.add"
func = "demoAdd"
`

func TestParse(t *testing.T) {
	k, err := Parse([]byte(demoDecl))
	if err != nil {
		t.Fatal(err)
	}
	if k.Package != "demo" || k.ID != 3 || len(k.Natives) != 2 {
		t.Fatalf("decl = %+v", k)
	}
	if !k.Natives[0].Wide || k.Natives[1].Wide {
		t.Errorf("wide flags = %v %v", k.Natives[0].Wide, k.Natives[1].Wide)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad toml", `kit = `},
		{"unknown key", "package = \"demo\"\nkit = \"demo\"\ncolour = 1\n"},
		{"bad package", "package = \"de mo\"\nkit = \"demo\"\n"},
		{"missing kit", "package = \"demo\"\n"},
		{"kit id", "package = \"demo\"\nkit = \"demo\"\nid = 256\n"},
		{"duplicate id", demoDecl + "[[native]]\nid = 0\nqname = \"demo::Demo.sub\"\nfunc = \"demoSub\"\n"},
		{"foreign qname", demoDecl + "[[native]]\nid = 1\nqname = \"sys::Sys.rand\"\nfunc = \"sysRand\"\n"},
		{"bad func", demoDecl + "[[native]]\nid = 1\nqname = \"demo::Demo.x\"\nfunc = \"1x\"\n"},
	}
	for _, tt := range tests {
		if _, err := Parse([]byte(tt.src)); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
	_, err := Parse([]byte("package = \"demo\"\n"))
	if !errors.Is(err, ErrInvalidDecl) {
		t.Errorf("err = %v, want ErrInvalidDecl", err)
	}
}

func TestChecksum(t *testing.T) {
	a, _ := Parse([]byte(demoDecl))
	b, _ := Parse([]byte(demoDecl))
	if a.Checksum() != b.Checksum() || len(a.Checksum()) != 8 {
		t.Fatalf("checksums %q %q", a.Checksum(), b.Checksum())
	}
	b.Natives[0].Wide = false
	if a.Checksum() == b.Checksum() {
		t.Error("flavor change did not change the checksum")
	}
	// declaration order does not matter
	b.Natives[0].Wide = true
	b.Natives[0], b.Natives[1] = b.Natives[1], b.Natives[0]
	if a.Checksum() != b.Checksum() {
		t.Error("checksum depends on declaration order")
	}
}

func TestGenerate(t *testing.T) {
	k, err := Parse([]byte(demoDecl))
	if err != nil {
		t.Fatal(err)
	}
	src, err := Generate(k)
	if err != nil {
		t.Fatal(err)
	}
	out := string(src)
	for _, want := range []string{
		"// Code generated by svm-nativegen. DO NOT EDIT.",
		"package demo",
		`"github.com/chazu/svm/vm"`,
		"const KitID = 3",
		`const NativeChecksum = "` + k.Checksum() + `"`,
		"func nativeKit() *vm.Kit",
		"Call: demoAdd",
		"Wide: demoTicks",
		`Name: "demo::Demo.ticks"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	// id 1 is unused and must leave an empty entry
	if strings.Index(out, "demoAdd") > strings.Index(out, "{}") || !strings.Contains(out, "{}") {
		t.Errorf("missing placeholder for id 1:\n%s", out)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, 0); err != nil {
		t.Errorf("generated code does not parse: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "natives.toml")
	if err := os.WriteFile(path, []byte(demoDecl), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestSysKitDecl(t *testing.T) {
	k, err := Load(filepath.Join("..", "kits", "sys", "natives.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if k.ID != 0 || len(k.Natives) != 50 {
		t.Errorf("sys kit = id %d, %d natives", k.ID, len(k.Natives))
	}
	gen, err := os.ReadFile(filepath.Join("..", "kits", "sys", "natives_gen.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(gen), `"`+k.Checksum()+`"`) {
		t.Error("kits/sys/natives_gen.go is stale; run go generate ./kits/sys")
	}
}
