package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Native method table
// ---------------------------------------------------------------------------

// NativeFunc implements a native returning one cell, or nothing for void
// natives. params aliases the VM stack and must not be retained.
type NativeFunc func(vm *VM, params []Cell) Cell

// NativeWideFunc implements a native returning a long or double.
type NativeWideFunc func(vm *VM, params []Cell) int64

// Native is one entry of a kit's native table.
type Native struct {
	Name string // qualified name, e.g. sys::Sys.malloc
	Call NativeFunc
	Wide NativeWideFunc
}

// Defined reports whether the entry has an implementation.
func (n Native) Defined() bool { return n.Call != nil || n.Wide != nil }

// Kit is the native methods of one kit, indexed by method id.
type Kit struct {
	ID      int
	Name    string
	Methods []Native
}

// ErrDuplicateKit is returned when two kits share an id.
var ErrDuplicateKit = errors.New("duplicate native kit id")

// NativeTable maps (kit id, method id) to natives. It is immutable once
// built and may be shared by many VMs.
type NativeTable struct {
	kits []*Kit
}

// NewNativeTable builds a table from kits.
func NewNativeTable(kits ...*Kit) (*NativeTable, error) {
	t := &NativeTable{}
	for _, k := range kits {
		if k.ID < 0 || k.ID > 255 {
			return nil, fmt.Errorf("kit %s: id %d out of range", k.Name, k.ID)
		}
		for len(t.kits) <= k.ID {
			t.kits = append(t.kits, nil)
		}
		if t.kits[k.ID] != nil {
			return nil, fmt.Errorf("%w: %d (%s and %s)", ErrDuplicateKit, k.ID, t.kits[k.ID].Name, k.Name)
		}
		t.kits[k.ID] = k
	}
	return t, nil
}

// Lookup returns the native for kit::method. The second result is false
// when the id pair has no implementation.
func (t *NativeTable) Lookup(kit, method int) (Native, bool) {
	if kit < 0 || kit >= len(t.kits) || t.kits[kit] == nil {
		return Native{}, false
	}
	methods := t.kits[kit].Methods
	if method < 0 || method >= len(methods) || !methods[method].Defined() {
		return Native{}, false
	}
	return methods[method], true
}

// Name returns a printable name for kit::method.
func (t *NativeTable) Name(kit, method int) string {
	if n, ok := t.Lookup(kit, method); ok && n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("%d::%d", kit, method)
}

// Kits returns the registered kits in id order.
func (t *NativeTable) Kits() []*Kit {
	out := make([]*Kit, 0, len(t.kits))
	for _, k := range t.kits {
		if k != nil {
			out = append(out, k)
		}
	}
	return out
}
