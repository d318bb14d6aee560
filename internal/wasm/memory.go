package wasm

import (
	"fmt"

	"github.com/MaxDesiatov/wasminspect/api"
)

// PageSize is the unit memories grow by: 64KiB, per the Wasm spec.
const PageSize = 65536

// MemoryInstance is a Store-owned linear memory. It is shared between every
// module that imports it: mutation is always routed through its methods,
// which is what lets multiple module-local aliases observe each other's
// writes (spec.md §5 Shared-resource policy).
type MemoryInstance struct {
	Bytes       []byte
	InitialPages uint32
	MaxPages     *uint32
}

func NewMemoryInstance(t api.MemoryType) *MemoryInstance {
	return &MemoryInstance{
		Bytes:        make([]byte, uint64(t.Limits.Min)*PageSize),
		InitialPages: t.Limits.Min,
		MaxPages:     t.Limits.Max,
	}
}

// MemoryError is returned by region validation and writes that would run
// outside the memory's current bounds.
type MemoryError struct {
	Offset, Length, Size int
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("out of bounds memory access: offset=%d length=%d size=%d", e.Offset, e.Length, e.Size)
}

// ValidateRegion reports whether [offset, offset+length) fits within the
// memory's current byte length, without mutating anything. The Store calls
// this for every data segment before writing any of them, so a module with
// multiple data segments either applies all of them or none (spec.md §4.3
// step 7).
func (m *MemoryInstance) ValidateRegion(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(m.Bytes) {
		return &MemoryError{Offset: offset, Length: length, Size: len(m.Bytes)}
	}
	return nil
}

// Store writes value into the memory at offset, after validating the
// region fits.
func (m *MemoryInstance) Store(offset int, value []byte) error {
	if err := m.ValidateRegion(offset, len(value)); err != nil {
		return err
	}
	copy(m.Bytes[offset:], value)
	return nil
}

// SizeInBytes returns the memory's current size.
func (m *MemoryInstance) SizeInBytes() int {
	return len(m.Bytes)
}
