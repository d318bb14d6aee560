package wasm

import (
	"fmt"

	"github.com/MaxDesiatov/wasminspect/api"
)

// TableInstance is a Store-owned table of function references. Like
// MemoryInstance, it is shared between every module that imports it.
type TableInstance struct {
	Elements []*FuncAddr // nil entry means the slot is uninitialized
	Initial  uint32
	Max      *uint32
}

func NewTableInstance(t api.TableType) *TableInstance {
	return &TableInstance{
		Elements: make([]*FuncAddr, t.Limits.Min),
		Initial:  t.Limits.Min,
		Max:      t.Limits.Max,
	}
}

// TableError is returned when an element segment does not fit within a
// table's current size.
type TableError struct {
	Offset, Length, Size int
}

func (e *TableError) Error() string {
	return fmt.Sprintf("elements segment does not fit: offset=%d length=%d size=%d", e.Offset, e.Length, e.Size)
}

// Initialize writes data into the table starting at offset. A segment that
// overruns the table's current size fails instantiation (spec.md §4.3 step 6)
// rather than growing the table implicitly.
func (t *TableInstance) Initialize(offset int, data []FuncAddr) error {
	if offset < 0 || offset+len(data) > len(t.Elements) {
		return &TableError{Offset: offset, Length: len(data), Size: len(t.Elements)}
	}
	for i, addr := range data {
		a := addr
		t.Elements[offset+i] = &a
	}
	return nil
}

// Get returns the function address stored at index, if any.
func (t *TableInstance) Get(index uint32) (FuncAddr, bool) {
	if int(index) >= len(t.Elements) || t.Elements[index] == nil {
		return FuncAddr{}, false
	}
	return *t.Elements[index], true
}
