package wasm

import (
	"fmt"

	"github.com/MaxDesiatov/wasminspect/api"
)

// ExportKind discriminates which index space an export or import entry
// refers to. It is shared between DefinedModuleInstance's export map and
// HostModuleInstance's.
type ExportKind = api.ExternalKind

const (
	ExportFunc   = api.ExternalFunc
	ExportTable  = api.ExternalTable
	ExportMemory = api.ExternalMemory
	ExportGlobal = api.ExternalGlobal
)

// ModuleInstance is either a Defined module (produced from a parsed Wasm
// module by Store.LoadModule) or a Host module (produced from registered
// host values by Store.LoadHostModule). Both are addressable by name for
// later import resolution.
type ModuleInstance interface {
	moduleInstance()
}

// exportEntry is one entry of a Defined module's export map: a kind and a
// local index into the corresponding index space.
type exportEntry struct {
	Kind  ExportKind
	Index uint32
}

// DefinedModuleInstance is a module instance produced from a parsed Wasm
// module: it carries its type section and its export map, resolved to local
// indices in each of the four index spaces.
type DefinedModuleInstance struct {
	Index   ModuleIndex
	Types   []*api.FunctionType
	Exports map[string]exportEntry
	Start   *uint32
}

func NewDefinedModuleInstance(index ModuleIndex, types []*api.FunctionType) *DefinedModuleInstance {
	return &DefinedModuleInstance{Index: index, Types: types, Exports: map[string]exportEntry{}}
}

func (*DefinedModuleInstance) moduleInstance() {}

// DefinedModuleError reports that a requested export name exists but refers
// to a different kind (e.g. an import asks for a function under a name the
// module exports as a memory).
type DefinedModuleError struct {
	Reason string
}

func (e *DefinedModuleError) Error() string { return e.Reason }

func (m *DefinedModuleInstance) exported(name string, kind ExportKind) (uint32, bool, error) {
	e, ok := m.Exports[name]
	if !ok {
		return 0, false, nil
	}
	if e.Kind != kind {
		return 0, false, &DefinedModuleError{Reason: fmt.Sprintf("export %q is not a %v", name, kind)}
	}
	return e.Index, true, nil
}

func (m *DefinedModuleInstance) ExportedFunc(name string) (FuncAddr, bool, error) {
	idx, ok, err := m.exported(name, ExportFunc)
	return FuncAddr{Module: m.Index, Index: idx}, ok, err
}

func (m *DefinedModuleInstance) ExportedTable(name string) (TableAddr, bool, error) {
	idx, ok, err := m.exported(name, ExportTable)
	return TableAddr{Module: m.Index, Index: idx}, ok, err
}

func (m *DefinedModuleInstance) ExportedMemory(name string) (MemAddr, bool, error) {
	idx, ok, err := m.exported(name, ExportMemory)
	return MemAddr{Module: m.Index, Index: idx}, ok, err
}

func (m *DefinedModuleInstance) ExportedGlobal(name string) (GlobalAddr, bool, error) {
	idx, ok, err := m.exported(name, ExportGlobal)
	return GlobalAddr{Module: m.Index, Index: idx}, ok, err
}

// HostExport is one entry of a host module's export map: a kind and a
// global handle directly into the relevant LinkableCollection (host exports
// have no local index of their own, since they were never imported into
// any module).
type HostExport struct {
	Kind   ExportKind
	Func   FuncHandle
	Table  TableHandle
	Mem    MemHandle
	Global GlobalHandle
}

// HostModuleError reports a host export map referencing the wrong kind for
// a requested name.
type HostModuleError struct {
	Reason string
}

func (e *HostModuleError) Error() string { return e.Reason }

// HostModuleInstance is a module instance produced from a registered host
// module: it has exports but no import slots of its own.
type HostModuleInstance struct {
	Exports map[string]HostExport
}

func NewHostModuleInstance(exports map[string]HostExport) *HostModuleInstance {
	return &HostModuleInstance{Exports: exports}
}

func (*HostModuleInstance) moduleInstance() {}

func (m *HostModuleInstance) hostExport(name string, kind ExportKind) (HostExport, bool, error) {
	e, ok := m.Exports[name]
	if !ok {
		return HostExport{}, false, nil
	}
	if e.Kind != kind {
		return HostExport{}, false, &HostModuleError{Reason: fmt.Sprintf("export %q is not a %v", name, kind)}
	}
	return e, true, nil
}

func (m *HostModuleInstance) FuncByName(name string) (FuncHandle, bool, error) {
	e, ok, err := m.hostExport(name, ExportFunc)
	return e.Func, ok, err
}

func (m *HostModuleInstance) TableByName(name string) (TableHandle, bool, error) {
	e, ok, err := m.hostExport(name, ExportTable)
	return e.Table, ok, err
}

func (m *HostModuleInstance) MemoryByName(name string) (MemHandle, bool, error) {
	e, ok, err := m.hostExport(name, ExportMemory)
	return e.Mem, ok, err
}

func (m *HostModuleInstance) GlobalByName(name string) (GlobalHandle, bool, error) {
	e, ok, err := m.hostExport(name, ExportGlobal)
	return e.Global, ok, err
}
