package sys

import (
	"bufio"
	"math/rand/v2"
	"time"

	"github.com/chazu/svm/vm"
)

// strbufSize is the size of the scratch buffer the number formatting
// natives write into. Each call overwrites the previous result.
const strbufSize = 32

type stateKey struct{}

// state is the per-VM native state of the sys kit. It is stored in the
// VM context and flushed when the VM closes.
type state struct {
	strbuf vm.Addr
	consts map[string]vm.Addr
	rng    *rand.Rand
	out    *bufio.Writer
}

func stateOf(v *vm.VM) *state {
	return v.Context(stateKey{}, func() any {
		seed := uint64(time.Now().UnixNano())
		return &state{
			consts: make(map[string]vm.Addr),
			rng:    rand.New(rand.NewPCG(seed, seed>>17|1)),
			out:    bufio.NewWriter(v.Stdout()),
		}
	}).(*state)
}

// Close flushes buffered program output.
func (s *state) Close() error {
	return s.out.Flush()
}

// scratch writes text into the VM's scratch buffer, truncating it to
// fit, and returns the buffer address.
func (s *state) scratch(v *vm.VM, text string) vm.Cell {
	mem := v.Memory()
	if s.strbuf == 0 {
		if s.strbuf = mem.Malloc(strbufSize); s.strbuf == 0 {
			return vm.NullCell
		}
	}
	mem.WriteCString(s.strbuf, text, strbufSize)
	return vm.AddrCell(s.strbuf)
}

// constStr returns a VM copy of text that lives as long as the VM.
func (s *state) constStr(v *vm.VM, text string) vm.Cell {
	if a, ok := s.consts[text]; ok {
		return vm.AddrCell(a)
	}
	mem := v.Memory()
	a := mem.Malloc(len(text) + 1)
	if a == 0 {
		return vm.NullCell
	}
	mem.WriteCString(a, text, len(text)+1)
	s.consts[text] = a
	return vm.AddrCell(a)
}
