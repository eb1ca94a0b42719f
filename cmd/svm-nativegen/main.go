// svm-nativegen - generates a kit's Go native table from natives.toml
//
// Usage:
//
//	svm-nativegen -in natives.toml -out natives_gen.go
//	svm-nativegen -in natives.toml -checksum
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/svm/nativegen"
)

var (
	in       = flag.String("in", "natives.toml", "kit declaration file")
	out      = flag.String("out", "", "output file (default stdout)")
	checksum = flag.Bool("checksum", false, "print the native checksum and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "svm-nativegen - generate a kit native table\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  svm-nativegen [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	decl, err := nativegen.Load(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *checksum {
		fmt.Println(decl.Checksum())
		return
	}

	src, err := nativegen.Generate(decl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating %s: %v\n", *in, err)
		os.Exit(1)
	}
	if *out == "" {
		os.Stdout.Write(src)
		return
	}
	if err := os.WriteFile(*out, src, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}
