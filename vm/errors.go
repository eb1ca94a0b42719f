package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Error codes
// ---------------------------------------------------------------------------

// ErrorCode is a numeric VM status. Codes 1-39 are unrecoverable scode
// errors, 40-99 unrecoverable application errors, 100-139 recoverable VM
// errors and 140-249 recoverable application errors. 253-255 are special
// results, not failures.
type ErrorCode int

const (
	ErrMallocImage         ErrorCode = 1
	ErrMallocStack         ErrorCode = 2
	ErrMallocStaticData    ErrorCode = 3
	ErrInputFileNotFound   ErrorCode = 4
	ErrCannotReadInputFile ErrorCode = 5
	ErrBadImageMagic       ErrorCode = 6
	ErrBadImageVersion     ErrorCode = 7
	ErrBadImageBlockSize   ErrorCode = 8
	ErrBadImageRefSize     ErrorCode = 9
	ErrBadImageCodeSize    ErrorCode = 10
	ErrUnknownOpcode       ErrorCode = 11
	ErrMissingNative       ErrorCode = 12
	ErrMalformedCode       ErrorCode = 13

	ErrNullPointer         ErrorCode = 100
	ErrStackOverflow       ErrorCode = 101
	ErrInvalidMethodParams ErrorCode = 102
	ErrMemoryFault         ErrorCode = 103
	ErrArithmetic          ErrorCode = 104

	ErrYield     ErrorCode = 253
	ErrRestart   ErrorCode = 254
	ErrHibernate ErrorCode = 255
)

var errorNames = map[ErrorCode]string{
	ErrMallocImage:         "cannot malloc image",
	ErrMallocStack:         "cannot malloc stack",
	ErrMallocStaticData:    "cannot malloc static data",
	ErrInputFileNotFound:   "input file not found",
	ErrCannotReadInputFile: "cannot read input file",
	ErrBadImageMagic:       "bad image magic",
	ErrBadImageVersion:     "bad image version",
	ErrBadImageBlockSize:   "bad image block size",
	ErrBadImageRefSize:     "bad image ref size",
	ErrBadImageCodeSize:    "bad image code size",
	ErrUnknownOpcode:       "unknown opcode",
	ErrMissingNative:       "missing native",
	ErrMalformedCode:       "malformed code",
	ErrNullPointer:         "null pointer",
	ErrStackOverflow:       "stack overflow",
	ErrInvalidMethodParams: "invalid method params",
	ErrMemoryFault:         "memory fault",
	ErrArithmetic:          "arithmetic error",
	ErrYield:               "yield",
	ErrRestart:             "restart",
	ErrHibernate:           "hibernate",
}

func (c ErrorCode) Error() string {
	if name, ok := errorNames[c]; ok {
		return fmt.Sprintf("%s (%d)", name, int(c))
	}
	return fmt.Sprintf("vm error %d", int(c))
}

// Unrecoverable reports whether the VM cannot be restarted after c.
func (c ErrorCode) Unrecoverable() bool { return c > 0 && c < 100 }

// Recoverable reports whether a restart may clear c.
func (c ErrorCode) Recoverable() bool { return c >= 100 && c < 250 }

// Special reports whether c is a yield, restart or hibernate request.
func (c ErrorCode) Special() bool { return c >= 253 && c <= 255 }

var (
	// ErrNotInitialized is returned when running a closed VM.
	ErrNotInitialized = errors.New("vm not initialized")

	// ErrSlotType is counted when a reflection accessor is used on a slot
	// of the wrong type.
	ErrSlotType = errors.New("slot type mismatch")
)

// ---------------------------------------------------------------------------
// Fault: an error code with execution context
// ---------------------------------------------------------------------------

// Fault describes where execution stopped. It unwraps to its ErrorCode.
type Fault struct {
	Code   ErrorCode
	Method string   // qualified name of the current method, if known
	Opcode string   // name of the faulting opcode
	Addr   Addr     // faulting address for memory errors
	Stack  []string // call stack, innermost first
	Top    []Cell   // top of the operand stack, last cell is the top
}

func (f *Fault) Error() string {
	var sb strings.Builder
	sb.WriteString(f.Code.Error())
	if f.Opcode != "" {
		fmt.Fprintf(&sb, " at %s", f.Opcode)
	}
	if f.Method != "" {
		fmt.Fprintf(&sb, " in %s", f.Method)
	}
	if f.Addr != 0 {
		fmt.Fprintf(&sb, " [addr 0x%x]", uint32(f.Addr))
	}
	return sb.String()
}

func (f *Fault) Unwrap() error { return f.Code }

// CodeOf extracts the ErrorCode carried by err, or 0 if there is none.
func CodeOf(err error) ErrorCode {
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return 0
}

// Status folds the outcome of Run, Resume or Call into the integer a host
// process reports: the error code when err carries one, otherwise result.
func Status(result int32, err error) int {
	if err == nil {
		return int(result)
	}
	if code := CodeOf(err); code != 0 {
		return int(code)
	}
	return int(ErrMemoryFault)
}
