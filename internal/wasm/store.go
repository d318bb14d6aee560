package wasm

import (
	"fmt"
	"reflect"

	"github.com/MaxDesiatov/wasminspect/api"
)

// Store is the process-wide registry owning every runtime entity: it links
// imports, builds module instances, and guarantees rollback on failed
// instantiation (spec.md §2, §4.2, §4.3).
type Store struct {
	funcs   *LinkableCollection[FunctionInstance]
	tables  *LinkableCollection[*TableInstance]
	mems    *LinkableCollection[*MemoryInstance]
	globals *LinkableCollection[*GlobalInstance]

	modules           []ModuleInstance
	moduleIndexByName map[string]ModuleIndex

	embedContexts map[reflect.Type]interface{}
}

func NewStore() *Store {
	return &Store{
		funcs:             NewLinkableCollection[FunctionInstance](),
		tables:            NewLinkableCollection[*TableInstance](),
		mems:              NewLinkableCollection[*MemoryInstance](),
		globals:           NewLinkableCollection[*GlobalInstance](),
		moduleIndexByName: map[string]ModuleIndex{},
		embedContexts:     map[reflect.Type]interface{}{},
	}
}

// --- lookup accessors (§4.2) ---

func (s *Store) funcAt(addr FuncAddr) (FunctionInstance, bool) {
	h, ok := s.funcs.Resolve(addr.Module, addr.Index)
	if !ok {
		return nil, false
	}
	return s.funcs.GetGlobal(h), true
}

func (s *Store) tableAt(addr TableAddr) (*TableInstance, bool) {
	h, ok := s.tables.Resolve(addr.Module, addr.Index)
	if !ok {
		return nil, false
	}
	return s.tables.GetGlobal(h), true
}

func (s *Store) memAt(addr MemAddr) (*MemoryInstance, bool) {
	h, ok := s.mems.Resolve(addr.Module, addr.Index)
	if !ok {
		return nil, false
	}
	return s.mems.GetGlobal(h), true
}

func (s *Store) globalAt(addr GlobalAddr) (*GlobalInstance, bool) {
	h, ok := s.globals.Resolve(addr.Module, addr.Index)
	if !ok {
		return nil, false
	}
	return s.globals.GetGlobal(h), true
}

// SetGlobal is the Executor's only mutating entry point for globals: it
// rejects writes to an immutable global rather than silently applying them
// (spec.md §3 Invariant 3, §4.6).
func (s *Store) SetGlobal(addr GlobalAddr, v api.Value) error {
	g, ok := s.globalAt(addr)
	if !ok {
		return &Trap{Kind: TrapInvalidStackState, Detail: "undefined global address"}
	}
	if !g.Type.Mutable {
		return &Trap{Kind: TrapInvariantViolation, Detail: "SetGlobal on an immutable global"}
	}
	g.Value = v
	return nil
}

// Module returns the module instance at index.
func (s *Store) Module(index ModuleIndex) ModuleInstance {
	return s.modules[index]
}

// ModuleByName looks up a module registered under name, either because it
// was loaded with that name or RegisterName bound it as an alias.
func (s *Store) ModuleByName(name string) (ModuleIndex, ModuleInstance, bool) {
	idx, ok := s.moduleIndexByName[name]
	if !ok {
		return 0, nil, false
	}
	return idx, s.modules[idx], true
}

// RegisterName makes a later-loaded module addressable by an additional
// name, so it can satisfy imports under an alias distinct from its
// load-time name (spec.md §4.2, ported from store.rs register_name).
func (s *Store) RegisterName(name string, module ModuleIndex) {
	s.moduleIndexByName[name] = module
}

// GlobalByName resolves a Defined module's exported global directly to its
// address, without the caller needing to know its local index ahead of
// time. Ported from store.rs scan_global_by_name, but returns ok=false
// instead of panicking on a bad name (SPEC_FULL.md §13).
func (s *Store) GlobalByName(module ModuleIndex, field string) (GlobalAddr, bool) {
	if int(module) >= len(s.modules) {
		return GlobalAddr{}, false
	}
	defined, ok := s.modules[module].(*DefinedModuleInstance)
	if !ok {
		return GlobalAddr{}, false
	}
	addr, found, err := defined.ExportedGlobal(field)
	if err != nil || !found {
		return GlobalAddr{}, false
	}
	return addr, true
}

// MemoryCount returns how many memories module owns locally (imported or
// defined), used by debuggers inspecting a module without guessing indices.
func (s *Store) MemoryCount(module ModuleIndex) int {
	return len(s.mems.Items(module))
}

// AddEmbedContext stashes a host-provided value reachable later by its own
// type, so host callables can retrieve state specific to the embedding
// without the Store needing to know its shape (spec.md §6 Embed-context
// registry).
func AddEmbedContext[T any](s *Store, v T) {
	var zero T
	s.embedContexts[reflect.TypeOf(&zero).Elem()] = v
}

// EmbedContext retrieves a value previously stored with AddEmbedContext,
// keyed by T.
func EmbedContext[T any](s *Store) (T, bool) {
	var zero T
	v, ok := s.embedContexts[reflect.TypeOf(&zero).Elem()]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// --- host module registration (§4.2) ---

// LoadHostModule registers a host-provided module: every field of values is
// appended to the appropriate collection via PushGlobal (no local import
// slots, since a host module never imports anything itself).
func (s *Store) LoadHostModule(name string, values map[string]api.HostValue) ModuleIndex {
	moduleIndex := ModuleIndex(len(s.modules))
	exports := map[string]HostExport{}
	for field, v := range values {
		switch v.Kind {
		case api.HostValueFunc:
			instance := &HostFunctionInstance{
				FuncType:   v.Func.Type,
				ModuleName: name,
				FieldName:  field,
				Callable:   v.Func.Callable,
			}
			h := s.funcs.PushGlobal(FunctionInstance(instance))
			exports[field] = HostExport{Kind: ExportFunc, Func: FuncHandle(h)}
		case api.HostValueGlobal:
			g := NewGlobalInstance(v.Global.Value, v.Global.Type)
			h := s.globals.PushGlobal(g)
			exports[field] = HostExport{Kind: ExportGlobal, Global: GlobalHandle(h)}
		case api.HostValueTable:
			t := NewTableInstance(v.Table.Type)
			h := s.tables.PushGlobal(t)
			exports[field] = HostExport{Kind: ExportTable, Table: TableHandle(h)}
		case api.HostValueMemory:
			m := NewMemoryInstance(v.Memory.Type)
			h := s.mems.PushGlobal(m)
			exports[field] = HostExport{Kind: ExportMemory, Mem: MemHandle(h)}
		}
	}
	s.modules = append(s.modules, NewHostModuleInstance(exports))
	s.moduleIndexByName[name] = moduleIndex
	return moduleIndex
}

// --- module instantiation (§4.3) ---

// LoadModule runs the full instantiation protocol for mod: import
// resolution, own-function/global/table/memory construction, element/data
// segment application, and (if present) the start function. Any failure
// rolls the Store back to its pre-call state before returning the error
// (spec.md §4.3, Invariant 1).
func (s *Store) LoadModule(name string, mod *api.Module) (ModuleIndex, error) {
	moduleIndex := ModuleIndex(len(s.modules))
	prevIndex, hadPrev := s.moduleIndexByName[name]

	err := s.loadModuleInternal(name, mod, moduleIndex)
	if err == nil && mod.Start != nil {
		addr := FuncAddr{Module: moduleIndex, Index: *mod.Start}
		if trapErr := s.invokeFunc(addr, nil); trapErr != nil {
			err = &InstantiationError{Kind: ErrFailedEntryFunction, Wrapped: trapErr}
		}
	}
	if err != nil {
		s.funcs.RemoveModule(moduleIndex)
		s.tables.RemoveModule(moduleIndex)
		s.mems.RemoveModule(moduleIndex)
		s.globals.RemoveModule(moduleIndex)
		if len(s.modules) > int(moduleIndex) {
			s.modules = s.modules[:moduleIndex]
		}
		if name != "" {
			if hadPrev {
				s.moduleIndexByName[name] = prevIndex
			} else {
				delete(s.moduleIndexByName, name)
			}
		}
		return 0, err
	}
	return moduleIndex, nil
}

func (s *Store) loadModuleInternal(name string, mod *api.Module, moduleIndex ModuleIndex) error {
	if err := s.loadImports(mod, moduleIndex); err != nil {
		return err
	}
	if err := s.loadFunctions(mod, moduleIndex); err != nil {
		return err
	}
	if err := s.loadGlobals(mod, moduleIndex); err != nil {
		return err
	}
	if err := s.loadTables(mod, moduleIndex); err != nil {
		return err
	}
	if err := s.loadMems(mod, moduleIndex); err != nil {
		return err
	}

	instance := NewDefinedModuleInstance(moduleIndex, mod.Types)
	instance.Start = mod.Start
	for _, exp := range mod.Exports {
		instance.Exports[exp.Name] = exportEntry{Kind: exp.Kind, Index: exp.Index}
	}
	s.modules = append(s.modules, instance)
	if name != "" {
		s.moduleIndexByName[name] = moduleIndex
	}
	return nil
}

func (s *Store) resolveImportSource(imp api.Import) (ModuleInstance, bool) {
	_, inst, ok := s.ModuleByName(imp.Module)
	return inst, ok
}

func (s *Store) loadImports(mod *api.Module, moduleIndex ModuleIndex) error {
	for _, imp := range mod.Imports {
		var err error
		switch imp.Kind {
		case api.ExternalFunc:
			err = s.loadImportFunction(moduleIndex, imp, mod.Types)
		case api.ExternalMemory:
			err = s.loadImportMemory(moduleIndex, imp)
		case api.ExternalTable:
			err = s.loadImportTable(moduleIndex, imp)
		case api.ExternalGlobal:
			err = s.loadImportGlobal(moduleIndex, imp)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadImportFunction(moduleIndex ModuleIndex, imp api.Import, types []*api.FunctionType) error {
	if int(imp.FuncTypeIndex) >= len(types) {
		return &InstantiationError{Kind: ErrUnknownType, TypeIndex: imp.FuncTypeIndex}
	}
	funcType := types[imp.FuncTypeIndex]
	undefined := func() error {
		return &InstantiationError{Kind: ErrUndefinedFunction, ImportModule: imp.Module, ImportField: imp.Name}
	}
	src, ok := s.resolveImportSource(imp)
	if !ok {
		return undefined()
	}

	var handle FuncHandle
	switch m := src.(type) {
	case *DefinedModuleInstance:
		addr, found, err := m.ExportedFunc(imp.Name)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidImport, Wrapped: err}
		}
		if !found {
			return undefined()
		}
		h, resolved := s.funcs.Resolve(addr.Module, addr.Index)
		if !resolved {
			return undefined()
		}
		handle = FuncHandle(h)
	case *HostModuleInstance:
		h, found, err := m.FuncByName(imp.Name)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidHostImport, Wrapped: err}
		}
		if !found {
			return undefined()
		}
		handle = h
	}

	actual := s.funcs.GetGlobal(int(handle)).Type()
	if !actual.EqualsSignature(funcType) {
		return &InstantiationError{
			Kind: ErrIncompatibleImportFuncType, ImportField: imp.Name,
			ExpectedFuncType: funcType, ActualFuncType: actual,
		}
	}
	s.funcs.Link(int(handle), moduleIndex)
	return nil
}

func (s *Store) loadImportMemory(moduleIndex ModuleIndex, imp api.Import) error {
	undefined := func() error {
		return &InstantiationError{Kind: ErrUndefinedMemory, ImportModule: imp.Module, ImportField: imp.Name}
	}
	src, ok := s.resolveImportSource(imp)
	if !ok {
		return undefined()
	}
	var handle MemHandle
	switch m := src.(type) {
	case *DefinedModuleInstance:
		addr, found, err := m.ExportedMemory(imp.Name)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidImport, Wrapped: err}
		}
		if !found {
			return undefined()
		}
		h, resolved := s.mems.Resolve(addr.Module, addr.Index)
		if !resolved {
			return undefined()
		}
		handle = MemHandle(h)
	case *HostModuleInstance:
		h, found, err := m.MemoryByName(imp.Name)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidHostImport, Wrapped: err}
		}
		if !found {
			return undefined()
		}
		handle = h
	}

	mem := s.mems.GetGlobal(int(handle))
	if mem.InitialPages < imp.Memory.Limits.Min {
		return &InstantiationError{Kind: ErrIncompatibleImportMemoryType}
	}
	if imp.Memory.Limits.Max != nil {
		if mem.MaxPages == nil || *mem.MaxPages > *imp.Memory.Limits.Max {
			return &InstantiationError{Kind: ErrIncompatibleImportMemoryType}
		}
	}
	s.mems.Link(int(handle), moduleIndex)
	return nil
}

func (s *Store) loadImportTable(moduleIndex ModuleIndex, imp api.Import) error {
	undefined := func() error {
		return &InstantiationError{Kind: ErrUndefinedTable, ImportModule: imp.Module, ImportField: imp.Name}
	}
	src, ok := s.resolveImportSource(imp)
	if !ok {
		return undefined()
	}
	var handle TableHandle
	switch m := src.(type) {
	case *DefinedModuleInstance:
		addr, found, err := m.ExportedTable(imp.Name)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidImport, Wrapped: err}
		}
		if !found {
			return undefined()
		}
		h, resolved := s.tables.Resolve(addr.Module, addr.Index)
		if !resolved {
			return undefined()
		}
		handle = TableHandle(h)
	case *HostModuleInstance:
		h, found, err := m.TableByName(imp.Name)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidHostImport, Wrapped: err}
		}
		if !found {
			return undefined()
		}
		handle = h
	}

	table := s.tables.GetGlobal(int(handle))
	if table.Initial < imp.Table.Limits.Min {
		return &InstantiationError{Kind: ErrIncompatibleImportTableType}
	}
	if imp.Table.Limits.Max != nil {
		if table.Max == nil || *table.Max > *imp.Table.Limits.Max {
			return &InstantiationError{Kind: ErrIncompatibleImportTableType}
		}
	}
	s.tables.Link(int(handle), moduleIndex)
	return nil
}

func (s *Store) loadImportGlobal(moduleIndex ModuleIndex, imp api.Import) error {
	undefined := func() error {
		return &InstantiationError{Kind: ErrUndefinedGlobal, ImportModule: imp.Module, ImportField: imp.Name}
	}
	src, ok := s.resolveImportSource(imp)
	if !ok {
		return undefined()
	}
	var handle GlobalHandle
	switch m := src.(type) {
	case *DefinedModuleInstance:
		addr, found, err := m.ExportedGlobal(imp.Name)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidImport, Wrapped: err}
		}
		if !found {
			return undefined()
		}
		h, resolved := s.globals.Resolve(addr.Module, addr.Index)
		if !resolved {
			return undefined()
		}
		handle = GlobalHandle(h)
	case *HostModuleInstance:
		h, found, err := m.GlobalByName(imp.Name)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidHostImport, Wrapped: err}
		}
		if !found {
			return undefined()
		}
		handle = h
	}

	g := s.globals.GetGlobal(int(handle))
	if g.Type.Mutable != imp.Global.Mutable {
		return &InstantiationError{Kind: ErrIncompatibleImportGlobalMutability}
	}
	if g.Type.ValType != imp.Global.ValType {
		return &InstantiationError{
			Kind: ErrIncompatibleImportGlobalType,
			ExpectedValType: imp.Global.ValType, ActualValType: g.Type.ValType,
		}
	}
	s.globals.Link(int(handle), moduleIndex)
	return nil
}

func (s *Store) loadFunctions(mod *api.Module, moduleIndex ModuleIndex) error {
	importedFuncs := uint32(0)
	for _, imp := range mod.Imports {
		if imp.Kind == api.ExternalFunc {
			importedFuncs++
		}
	}
	for i, typeIndex := range mod.Functions {
		if int(typeIndex) >= len(mod.Types) {
			return &InstantiationError{Kind: ErrUnknownType, TypeIndex: typeIndex}
		}
		funcType := mod.Types[typeIndex]
		code := mod.Code[i]
		name := "unknown"
		if mod.Names != nil {
			if n, ok := mod.Names.FunctionNames[importedFuncs+uint32(i)]; ok {
				name = n
			}
		}
		if name == "unknown" {
			name = fmt.Sprintf("<module defined func #%d>", s.funcs.Len())
		}
		instance := &DefinedFunctionInstance{
			Name: name, FuncType: funcType, Module: moduleIndex,
			Locals: code.Locals, Body: code.Body,
		}
		s.funcs.Push(moduleIndex, FunctionInstance(instance))
	}
	return nil
}

func (s *Store) loadGlobals(mod *api.Module, moduleIndex ModuleIndex) error {
	for _, g := range mod.Globals {
		v, err := evalConstExpr(s, moduleIndex, g.Init)
		if err != nil {
			return &InstantiationError{Kind: ErrInvalidImport, Wrapped: err}
		}
		s.globals.Push(moduleIndex, NewGlobalInstance(v, g.Type))
	}
	return nil
}

func (s *Store) loadTables(mod *api.Module, moduleIndex ModuleIndex) error {
	if len(mod.Tables) == 0 && s.tables.IsEmpty(moduleIndex) {
		return nil
	}
	for _, t := range mod.Tables {
		s.tables.Push(moduleIndex, NewTableInstance(t))
	}

	segsByTable := map[uint32][]api.ElementSegment{}
	for _, seg := range mod.Elements {
		segsByTable[seg.TableIndex] = append(segsByTable[seg.TableIndex], seg)
	}
	items := s.tables.Items(moduleIndex)
	for index, handle := range items {
		segs, ok := segsByTable[uint32(index)]
		if !ok {
			continue
		}
		table := s.tables.GetGlobal(handle)
		for _, seg := range segs {
			offsetVal, err := evalConstExpr(s, moduleIndex, seg.Offset)
			if err != nil {
				return &InstantiationError{Kind: ErrInvalidElementSegments, Wrapped: err}
			}
			offset := int(offsetVal.I32())
			data := make([]FuncAddr, len(seg.FuncIndices))
			for i, fi := range seg.FuncIndices {
				data[i] = FuncAddr{Module: moduleIndex, Index: fi}
			}
			if err := table.Initialize(offset, data); err != nil {
				return &InstantiationError{Kind: ErrInvalidElementSegments, Wrapped: err}
			}
		}
	}
	return nil
}

func (s *Store) loadMems(mod *api.Module, moduleIndex ModuleIndex) error {
	if len(mod.Memories) == 0 && s.mems.IsEmpty(moduleIndex) {
		return nil
	}
	for _, m := range mod.Memories {
		s.mems.Push(moduleIndex, NewMemoryInstance(m))
	}

	segsByMem := map[uint32][]api.DataSegment{}
	for _, seg := range mod.Data {
		segsByMem[seg.MemoryIndex] = append(segsByMem[seg.MemoryIndex], seg)
	}

	type pendingWrite struct {
		mem    *MemoryInstance
		offset int
		bytes  []byte
	}
	var toWrite []pendingWrite

	items := s.mems.Items(moduleIndex)
	for index, handle := range items {
		segs, ok := segsByMem[uint32(index)]
		if !ok {
			continue
		}
		mem := s.mems.GetGlobal(handle)
		for _, seg := range segs {
			offsetVal, err := evalConstExpr(s, moduleIndex, seg.Offset)
			if err != nil {
				return &InstantiationError{Kind: ErrInvalidDataSegments, Wrapped: err}
			}
			offset := int(offsetVal.I32())
			if err := mem.ValidateRegion(offset, len(seg.Bytes)); err != nil {
				return &InstantiationError{Kind: ErrInvalidDataSegments, Wrapped: err}
			}
			toWrite = append(toWrite, pendingWrite{mem, offset, seg.Bytes})
		}
	}
	// Only write once every segment across every memory has validated, so a
	// module with multiple data segments applies all of them or none
	// (spec.md §4.3 step 7).
	for _, p := range toWrite {
		if err := p.mem.Store(p.offset, p.bytes); err != nil {
			return &InstantiationError{Kind: ErrInvalidDataSegments, Wrapped: err}
		}
	}
	return nil
}

// invokeFunc runs addr to completion, used for the module start function.
func (s *Store) invokeFunc(addr FuncAddr, args []api.Value) error {
	exec, err := NewExecutor(s, addr, args)
	if err != nil {
		return err
	}
	for {
		status, err := exec.ExecuteStep()
		if err != nil {
			return err
		}
		if status == ExecEnd {
			return nil
		}
	}
}
