package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/chazu/svm/scode"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: one loaded image and its execution state
// ---------------------------------------------------------------------------

const (
	// DefaultStackSize is the stack depth in cells when Options.StackSize
	// is unset.
	DefaultStackSize = 4096

	// stackHeadroom cells past the stack limit absorb the temporaries an
	// instruction may push before the next frame-entry check.
	stackHeadroom = 256
)

// AssertFunc is called for every failed Assert with the current method
// name and the source line.
type AssertFunc func(vm *VM, method string, line uint16)

// Options configures a VM.
type Options struct {
	StackSize       int // stack depth in cells
	MemoryLimit     int // bytes the VM may map, image included
	Debug           bool
	Args            []string
	Natives         *NativeTable
	OnAssertFailure AssertFunc
	Stdout          io.Writer
	Profiler        *Profiler
}

// VM executes one scode image. A VM is not safe for concurrent use.
type VM struct {
	ID uuid.UUID

	image   []byte
	header  scode.Header
	opts    Options
	natives *NativeTable
	mem     *Memory
	stack   []Cell
	sp      int // stack top published to natives

	dataAddr  Addr
	argv      Addr
	validated bool
	closed    bool

	assertSuccesses int
	assertFailures  int
	accessErrors    int
	imbalances      int
	lastFault       *Fault

	context map[any]any
	log     commonlog.Logger
}

// New maps image into a fresh VM. The image is not validated until
// Validate or Run is called.
func New(image []byte, opts Options) (*VM, error) {
	if opts.StackSize <= 0 {
		opts.StackSize = DefaultStackSize
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	natives := opts.Natives
	if natives == nil {
		natives = &NativeTable{}
	}

	mem := NewMemory(opts.MemoryLimit)
	if mem.MapCode(image) != CodeBase {
		return nil, fmt.Errorf("%w: %d bytes", ErrMallocImage, len(image))
	}

	v := &VM{
		ID:      uuid.New(),
		image:   image,
		opts:    opts,
		natives: natives,
		mem:     mem,
		stack:   make([]Cell, opts.StackSize+stackHeadroom),
		context: make(map[any]any),
		log:     commonlog.GetLogger("svm.vm"),
	}
	return v, nil
}

// Validate checks the image header and prepares the static data block and
// argument array. Calling it again re-checks the header only.
func (vm *VM) Validate() error {
	if vm.closed {
		return ErrNotInitialized
	}
	img := vm.image
	if len(img) < 4 || le.Uint32(img) != scode.Magic {
		return ErrBadImageMagic
	}
	h, err := scode.ParseHeader(img)
	if err != nil {
		return ErrBadImageCodeSize
	}
	switch {
	case h.Major != scode.MajorVersion || h.Minor != scode.MinorVersion:
		return ErrBadImageVersion
	case h.BlockSize != scode.BlockSize:
		return ErrBadImageBlockSize
	case h.RefSize != scode.RefSize:
		return ErrBadImageRefSize
	case int(h.CodeSize) != len(img):
		return ErrBadImageCodeSize
	}
	vm.header = h

	if !vm.validated {
		vm.dataAddr = vm.mem.Malloc(int(h.DataSize))
		if vm.dataAddr == 0 {
			return ErrMallocStaticData
		}
		if err := vm.mapArgs(); err != nil {
			return err
		}
		vm.validated = true
		vm.log.Debugf("vm %s: image %d bytes, data %d bytes", vm.ID, len(img), h.DataSize)
	}
	return nil
}

// mapArgs builds the Str[] argv array in VM memory.
func (vm *VM) mapArgs() error {
	args := vm.opts.Args
	vm.argv = vm.mem.Malloc(scode.RefSize * len(args))
	if vm.argv == 0 {
		return ErrMallocStaticData
	}
	for i, arg := range args {
		s := vm.mem.Malloc(len(arg) + 1)
		if s == 0 {
			return ErrMallocStaticData
		}
		vm.mem.WriteCString(s, arg, len(arg)+1)
		vm.mem.SetRef(vm.argv+Addr(scode.RefSize*i), s)
	}
	return nil
}

// Run validates the image, clears the assert counters and calls its main
// method with (argv, argc).
func (vm *VM) Run() (int32, error) {
	if err := vm.Validate(); err != nil {
		return 0, err
	}
	vm.assertSuccesses = 0
	vm.assertFailures = 0
	return vm.entry(scode.OffMain)
}

// Resume calls the image's resume method. The image is validated first if
// that has not happened yet.
func (vm *VM) Resume() (int32, error) {
	if !vm.validated {
		if err := vm.Validate(); err != nil {
			return 0, err
		}
	}
	return vm.entry(scode.OffResume)
}

func (vm *VM) entry(headerOffset int) (int32, error) {
	vm.sp = 0
	vm.stack[0] = NegOneCell
	bix := le.Uint16(vm.image[headerOffset:])
	return vm.Call(bix, []Cell{AddrCell(vm.argv), IntCell(int32(len(vm.opts.Args)))})
}

// Call invokes the method at block bix with args and runs it to
// completion. It may be called re-entrantly from a native. The result is
// the int returned by the method.
func (vm *VM) Call(bix uint16, args []Cell) (result int32, err error) {
	if vm.closed || !vm.validated {
		return 0, ErrNotInitialized
	}
	in := vm.newInterp()
	defer func() {
		if p := recover(); p != nil {
			result, err = 0, in.recovered(p)
		}
	}()
	return in.start(bix, args)
}

// Close releases the VM's memory and closes any native context values
// that hold resources.
func (vm *VM) Close() error {
	if vm.closed {
		return nil
	}
	var firstErr error
	for _, v := range vm.context {
		if c, ok := v.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	vm.context = nil
	vm.mem = nil
	vm.stack = nil
	vm.closed = true
	vm.validated = false
	return firstErr
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Memory returns the VM's address space.
func (vm *VM) Memory() *Memory { return vm.mem }

// Header returns the validated image header.
func (vm *VM) Header() scode.Header { return vm.header }

// Image returns the raw image bytes.
func (vm *VM) Image() []byte { return vm.image }

// Debug reports whether debug checks are enabled.
func (vm *VM) Debug() bool { return vm.opts.Debug }

// Stdout returns the writer program output goes to.
func (vm *VM) Stdout() io.Writer { return vm.opts.Stdout }

// Log returns the VM logger.
func (vm *VM) Log() commonlog.Logger { return vm.log }

// DataAddr returns the address of the static data block.
func (vm *VM) DataAddr() Addr { return vm.dataAddr }

// BlockAddr converts a block index to an address in the code segment.
func (vm *VM) BlockAddr(bix uint16) Addr {
	return CodeBase + Addr(bix)*scode.BlockSize
}

// ConstAddr is BlockAddr, except that block 0 is null.
func (vm *VM) ConstAddr(bix uint16) Addr {
	if bix == 0 {
		return 0
	}
	return vm.BlockAddr(bix)
}

// StackTop returns the stack index published at the last native call.
func (vm *VM) StackTop() int { return vm.sp }

// Stack returns the raw stack.
func (vm *VM) Stack() []Cell { return vm.stack }

// AssertSuccesses returns the number of passed asserts since the last Run.
func (vm *VM) AssertSuccesses() int { return vm.assertSuccesses }

// AssertFailures returns the number of failed asserts since the last Run.
func (vm *VM) AssertFailures() int { return vm.assertFailures }

// AccessErrors returns the number of reflection type mismatches.
func (vm *VM) AccessErrors() int { return vm.accessErrors }

// Imbalances returns the number of stack imbalances seen at return.
func (vm *VM) Imbalances() int { return vm.imbalances }

// LastFault returns the most recent fault, or nil.
func (vm *VM) LastFault() *Fault { return vm.lastFault }

// Profiler returns the attached profiler, or nil.
func (vm *VM) Profiler() *Profiler { return vm.opts.Profiler }

// Context returns the native state stored under key, creating it with
// init on first use. Values implementing io.Closer are closed by Close.
func (vm *VM) Context(key any, init func() any) any {
	if v, ok := vm.context[key]; ok {
		return v
	}
	v := init()
	vm.context[key] = v
	return v
}
