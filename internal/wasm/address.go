package wasm

// ModuleIndex identifies a module instance within a Store, in load order.
type ModuleIndex uint32

// FuncAddr, TableAddr, MemAddr and GlobalAddr are module-local addresses: a
// (module, local index) pair. They are resolved to a global handle exactly
// once per instantiation via the owning LinkableCollection (spec.md §3,
// Invariant 1).
type FuncAddr struct {
	Module ModuleIndex
	Index  uint32
}

type TableAddr struct {
	Module ModuleIndex
	Index  uint32
}

type MemAddr struct {
	Module ModuleIndex
	Index  uint32
}

type GlobalAddr struct {
	Module ModuleIndex
	Index  uint32
}

// FuncHandle, TableHandle, MemHandle and GlobalHandle are opaque,
// globally-unique handles into a LinkableCollection's global item list.
// Unlike the Addr types above, a handle is stable regardless of which
// module(s) import it.
type FuncHandle int
type TableHandle int
type MemHandle int
type GlobalHandle int
