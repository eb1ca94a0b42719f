// Package nativegen generates the Go native table of a kit from its
// natives.toml declarations.
package nativegen

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"hash/fnv"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dave/jennifer/jen"
)

// VMPath is the import path of the vm package the generated code uses.
const VMPath = "github.com/chazu/svm/vm"

// KitDecl is the contents of a natives.toml file.
type KitDecl struct {
	Package string       `toml:"package"`
	Kit     string       `toml:"kit"`
	ID      int          `toml:"id"`
	Natives []NativeDecl `toml:"native"`
}

// NativeDecl declares one native method. Func names the Go function that
// implements it; Wide marks natives returning a long or double.
type NativeDecl struct {
	ID    int    `toml:"id"`
	Qname string `toml:"qname"`
	Func  string `toml:"func"`
	Wide  bool   `toml:"wide"`
}

// ErrInvalidDecl is wrapped by every validation error.
var ErrInvalidDecl = errors.New("invalid native declaration")

// Load reads and validates the declarations at path.
func Load(path string) (*KitDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	k, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return k, nil
}

// Parse decodes and validates declarations. Unknown keys are an error.
func Parse(data []byte) (*KitDecl, error) {
	var k KitDecl
	md, err := toml.Decode(string(data), &k)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %s", ErrInvalidDecl, undecoded[0])
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return &k, nil
}

// Validate checks ids, names and function identifiers.
func (k *KitDecl) Validate() error {
	if !token.IsIdentifier(k.Package) {
		return fmt.Errorf("%w: package %q", ErrInvalidDecl, k.Package)
	}
	if k.Kit == "" {
		return fmt.Errorf("%w: missing kit name", ErrInvalidDecl)
	}
	if k.ID < 0 || k.ID > 255 {
		return fmt.Errorf("%w: kit id %d out of range", ErrInvalidDecl, k.ID)
	}
	seen := make(map[int]string)
	prefix := k.Kit + "::"
	for _, n := range k.Natives {
		switch {
		case n.ID < 0 || n.ID > 255:
			return fmt.Errorf("%w: %s: id %d out of range", ErrInvalidDecl, n.Qname, n.ID)
		case seen[n.ID] != "":
			return fmt.Errorf("%w: id %d used by %s and %s", ErrInvalidDecl, n.ID, seen[n.ID], n.Qname)
		case !strings.HasPrefix(n.Qname, prefix):
			return fmt.Errorf("%w: %s is not in kit %s", ErrInvalidDecl, n.Qname, k.Kit)
		case !token.IsIdentifier(n.Func):
			return fmt.Errorf("%w: %s: func %q", ErrInvalidDecl, n.Qname, n.Func)
		}
		seen[n.ID] = n.Qname
	}
	return nil
}

func (k *KitDecl) sorted() []NativeDecl {
	out := append([]NativeDecl(nil), k.Natives...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Checksum hashes the kit identity and every native's id, name and
// flavor. Images built against a different table have a different sum.
func (k *KitDecl) Checksum() string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s %d\n", k.Kit, k.ID)
	for _, n := range k.sorted() {
		fmt.Fprintf(h, "%d %s %t\n", n.ID, n.Qname, n.Wide)
	}
	return fmt.Sprintf("%08x", h.Sum32())
}

// Generate renders the native table source for k: KitID, NativeChecksum
// and an unexported nativeKit constructor. Unused ids below the highest
// declared id are left as empty entries.
func Generate(k *KitDecl) ([]byte, error) {
	f := jen.NewFile(k.Package)
	f.HeaderComment("Code generated by svm-nativegen. DO NOT EDIT.")
	f.ImportName(VMPath, "vm")

	f.Comment(fmt.Sprintf("KitID is the id of the %s kit.", k.Kit))
	f.Const().Id("KitID").Op("=").Lit(k.ID)
	f.Line()
	f.Comment("NativeChecksum identifies the declarations this table was generated from.")
	f.Const().Id("NativeChecksum").Op("=").Lit(k.Checksum())
	f.Line()

	var methods []jen.Code
	next := 0
	for _, n := range k.sorted() {
		for ; next < n.ID; next++ {
			methods = append(methods, jen.Values())
		}
		impl := "Call"
		if n.Wide {
			impl = "Wide"
		}
		methods = append(methods, jen.Values(jen.Dict{
			jen.Id("Name"): jen.Lit(n.Qname),
			jen.Id(impl):   jen.Id(n.Func),
		}))
		next++
	}

	f.Func().Id("nativeKit").Params().Op("*").Qual(VMPath, "Kit").Block(
		jen.Return(jen.Op("&").Qual(VMPath, "Kit").Values(jen.Dict{
			jen.Id("ID"):      jen.Id("KitID"),
			jen.Id("Name"):    jen.Lit(k.Kit),
			jen.Id("Methods"): jen.Index().Qual(VMPath, "Native").Values(methods...),
		})),
	)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", k.Kit, err)
	}
	return buf.Bytes(), nil
}
