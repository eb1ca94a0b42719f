package vm

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CrashReport is the persisted record of a failed run.
type CrashReport struct {
	VMID      string    `cbor:"1,keyasint"`
	Time      time.Time `cbor:"2,keyasint"`
	Code      int       `cbor:"3,keyasint"`
	Name      string    `cbor:"4,keyasint"`
	Method    string    `cbor:"5,keyasint,omitempty"`
	Opcode    string    `cbor:"6,keyasint,omitempty"`
	Addr      uint32    `cbor:"7,keyasint,omitempty"`
	CallStack []string  `cbor:"8,keyasint,omitempty"`
	Stack     []uint32  `cbor:"9,keyasint,omitempty"`
	ImageSize int       `cbor:"10,keyasint"`
	DataSize  uint32    `cbor:"11,keyasint"`
	Debug     bool      `cbor:"12,keyasint"`
	Asserts   [2]int    `cbor:"13,keyasint"` // successes, failures
	Restarts  int       `cbor:"14,keyasint,omitempty"`
}

var crashEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	crashEncMode = em
}

// NewCrashReport describes err as returned by a run of vm.
func (vm *VM) NewCrashReport(err error) *CrashReport {
	code := CodeOf(err)
	r := &CrashReport{
		VMID:      vm.ID.String(),
		Time:      time.Now().UTC(),
		Code:      int(code),
		Name:      err.Error(),
		ImageSize: len(vm.image),
		DataSize:  vm.header.DataSize,
		Debug:     vm.opts.Debug,
		Asserts:   [2]int{vm.assertSuccesses, vm.assertFailures},
	}
	if f := vm.lastFault; f != nil && f.Code == code {
		r.Method = f.Method
		r.Opcode = f.Opcode
		r.Addr = uint32(f.Addr)
		r.CallStack = f.Stack
		for _, c := range f.Top {
			r.Stack = append(r.Stack, uint32(c))
		}
	}
	return r
}

// MarshalCrashReport serializes a CrashReport to canonical CBOR.
func MarshalCrashReport(r *CrashReport) ([]byte, error) {
	return crashEncMode.Marshal(r)
}

// UnmarshalCrashReport deserializes a CrashReport from CBOR bytes.
func UnmarshalCrashReport(data []byte) (*CrashReport, error) {
	var r CrashReport
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("vm: unmarshal crash report: %w", err)
	}
	return &r, nil
}
