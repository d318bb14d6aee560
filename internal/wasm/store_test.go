package wasm

import (
	"errors"
	"testing"

	"github.com/MaxDesiatov/wasminspect/api"
	"github.com/stretchr/testify/require"
)

func i32Type() *api.FunctionType {
	return &api.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
}

// constModule returns a module with a single zero-argument, one-result
// function that returns I32Const(v), exported under name.
func constModule(name string, v int32) *api.Module {
	return &api.Module{
		Types:     []*api.FunctionType{i32Type()},
		Functions: []uint32{0},
		Code: []api.Code{
			{Body: []api.Instruction{api.I32Const(v), api.End()}},
		},
		Exports: []api.Export{{Name: name, Kind: api.ExternalFunc, Index: 0}},
	}
}

func TestStore_LoadModule_DefinesAndExportsAFunction(t *testing.T) {
	store := NewStore()
	idx, err := store.LoadModule("m", constModule("get", 7))
	require.NoError(t, err)

	defined := store.Module(idx).(*DefinedModuleInstance)
	addr, ok, err := defined.ExportedFunc("get")
	require.NoError(t, err)
	require.True(t, ok)

	inst, ok := store.funcAt(addr)
	require.True(t, ok)
	require.True(t, i32Type().EqualsSignature(inst.Type()))
}

func TestStore_LoadModule_ImportFunctionFromAnotherModule(t *testing.T) {
	store := NewStore()
	_, err := store.LoadModule("producer", constModule("get", 41))
	require.NoError(t, err)

	importer := &api.Module{
		Types: []*api.FunctionType{i32Type()},
		Imports: []api.Import{
			{Module: "producer", Name: "get", Kind: api.ExternalFunc, FuncTypeIndex: 0},
		},
		Exports: []api.Export{{Name: "reexported", Kind: api.ExternalFunc, Index: 0}},
	}
	idx, err := store.LoadModule("importer", importer)
	require.NoError(t, err)

	defined := store.Module(idx).(*DefinedModuleInstance)
	addr, ok, err := defined.ExportedFunc("reexported")
	require.NoError(t, err)
	require.True(t, ok)

	inst, ok := store.funcAt(addr)
	require.True(t, ok)
	require.True(t, i32Type().EqualsSignature(inst.Type()))
}

func TestStore_LoadModule_UndefinedImportFailsAndRollsBack(t *testing.T) {
	store := NewStore()
	funcsBefore := store.funcs.Len()

	bad := &api.Module{
		Types: []*api.FunctionType{i32Type()},
		Imports: []api.Import{
			{Module: "nope", Name: "missing", Kind: api.ExternalFunc, FuncTypeIndex: 0},
		},
	}
	_, err := store.LoadModule("bad", bad)
	require.Error(t, err)

	instErr, ok := err.(*InstantiationError)
	require.True(t, ok)
	require.Equal(t, ErrUndefinedFunction, instErr.Kind)

	require.Equal(t, funcsBefore, store.funcs.Len())
	_, _, ok = store.ModuleByName("bad")
	require.False(t, ok)
}

func TestStore_LoadModule_IncompatibleImportSignatureFailsAndRollsBack(t *testing.T) {
	store := NewStore()
	_, err := store.LoadModule("producer", constModule("get", 1))
	require.NoError(t, err)

	modulesBefore := len(store.modules)
	mismatched := &api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	bad := &api.Module{
		Types: []*api.FunctionType{mismatched},
		Imports: []api.Import{
			{Module: "producer", Name: "get", Kind: api.ExternalFunc, FuncTypeIndex: 0},
		},
	}
	_, err = store.LoadModule("bad", bad)
	require.Error(t, err)

	instErr, ok := err.(*InstantiationError)
	require.True(t, ok)
	require.Equal(t, ErrIncompatibleImportFuncType, instErr.Kind)
	require.Len(t, store.modules, modulesBefore)
}

func TestStore_LoadModule_RollbackPreservesEarlierModuleAddresses(t *testing.T) {
	store := NewStore()
	idxA, err := store.LoadModule("a", constModule("get", 5))
	require.NoError(t, err)
	definedA := store.Module(idxA).(*DefinedModuleInstance)
	addrA, _, _ := definedA.ExportedFunc("get")

	bad := &api.Module{
		Types: []*api.FunctionType{i32Type()},
		Imports: []api.Import{
			{Module: "nowhere", Name: "nothing", Kind: api.ExternalFunc, FuncTypeIndex: 0},
		},
	}
	_, err = store.LoadModule("bad", bad)
	require.Error(t, err)

	inst, ok := store.funcAt(addrA)
	require.True(t, ok)
	require.NotNil(t, inst)

	exec, err := NewExecutor(store, addrA, nil)
	require.NoError(t, err)
	for !exec.IsFinished() {
		_, err := exec.ExecuteStep()
		require.NoError(t, err)
	}
	result, err := exec.PeekResult()
	require.NoError(t, err)
	require.Equal(t, int32(5), result.I32())
}

func TestStore_LoadModule_DataSegmentOutOfBoundsRollsBackWithoutPartialWrites(t *testing.T) {
	store := NewStore()
	min := uint32(1)
	mod := &api.Module{
		Memories: []api.MemoryType{{Limits: api.Limits{Min: min}}},
		Data: []api.DataSegment{
			{MemoryIndex: 0, Offset: api.I32Const(0), Bytes: []byte{1, 2, 3}},
			{MemoryIndex: 0, Offset: api.I32Const(int32(PageSize)), Bytes: []byte{9}}, // out of bounds
		},
	}
	_, err := store.LoadModule("m", mod)
	require.Error(t, err)

	instErr, ok := err.(*InstantiationError)
	require.True(t, ok)
	require.Equal(t, ErrInvalidDataSegments, instErr.Kind)
	// The module's own memory was appended to the global pool before the
	// second segment failed validation, but RemoveModule drops its local
	// index, so nothing can reach it any more (spec.md §4.1 rollback).
	require.True(t, store.mems.IsEmpty(0))
	// The first, valid segment was never written either: every segment is
	// validated before any byte is stored.
	require.Equal(t, byte(0), store.mems.GetGlobal(0).Bytes[0])
}

func TestStore_LoadModule_ElementSegmentPopulatesTable(t *testing.T) {
	store := NewStore()
	producerIdx, err := store.LoadModule("producer", constModule("get", 9))
	require.NoError(t, err)
	defined := store.Module(producerIdx).(*DefinedModuleInstance)
	addr, _, _ := defined.ExportedFunc("get")

	mod := &api.Module{
		Tables: []api.TableType{{Limits: api.Limits{Min: 4}}},
		Elements: []api.ElementSegment{
			{TableIndex: 0, Offset: api.I32Const(1), FuncIndices: []uint32{addr.Index}},
		},
	}
	idx, err := store.LoadModule("m", mod)
	require.NoError(t, err)

	tableAddr := TableAddr{Module: idx, Index: 0}
	table, ok := store.tableAt(tableAddr)
	require.True(t, ok)

	_, ok = table.Get(0)
	require.False(t, ok)
	got, ok := table.Get(1)
	require.True(t, ok)
	require.Equal(t, addr.Index, got.Index)
}

func TestStore_LoadModule_ElementSegmentOutOfBoundsRollsBack(t *testing.T) {
	store := NewStore()
	mod := &api.Module{
		Functions: []uint32{0},
		Types:     []*api.FunctionType{{}},
		Code:      []api.Code{{Body: []api.Instruction{api.End()}}},
		Tables:    []api.TableType{{Limits: api.Limits{Min: 2}}},
		Elements: []api.ElementSegment{
			{TableIndex: 0, Offset: api.I32Const(0), FuncIndices: []uint32{0}},
			{TableIndex: 0, Offset: api.I32Const(5), FuncIndices: []uint32{0}}, // out of bounds
		},
	}
	_, err := store.LoadModule("m", mod)
	require.Error(t, err)

	instErr, ok := err.(*InstantiationError)
	require.True(t, ok)
	require.Equal(t, ErrInvalidElementSegments, instErr.Kind)
	require.True(t, store.tables.IsEmpty(0))
}

func TestStore_LoadModule_StartFunctionRunsDuringInstantiation(t *testing.T) {
	store := NewStore()
	var called []int32
	record := api.FuncValue(
		&api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}},
		func(args []api.Value) ([]api.Value, error) {
			called = append(called, args[0].I32())
			return nil, nil
		},
	)
	store.LoadHostModule("env", map[string]api.HostValue{"record": record})

	start := uint32(1)
	mod := &api.Module{
		Types: []*api.FunctionType{{Params: []api.ValueType{api.ValueTypeI32}}},
		Imports: []api.Import{
			{Module: "env", Name: "record", Kind: api.ExternalFunc, FuncTypeIndex: 0},
		},
		Functions: []uint32{0},
		Code: []api.Code{{Body: []api.Instruction{
			api.I32Const(99), api.Call(0), api.End(),
		}}},
		Start: &start,
	}
	_, err := store.LoadModule("m", mod)
	require.NoError(t, err)
	require.Equal(t, []int32{99}, called)
}

func TestStore_LoadModule_FailingStartFunctionRollsBack(t *testing.T) {
	store := NewStore()
	failing := api.FuncValue(&api.FunctionType{}, func([]api.Value) ([]api.Value, error) {
		return nil, errors.New("boom")
	})
	store.LoadHostModule("env", map[string]api.HostValue{"fail": failing})

	start := uint32(1)
	mod := &api.Module{
		Types: []*api.FunctionType{{}},
		Imports: []api.Import{
			{Module: "env", Name: "fail", Kind: api.ExternalFunc, FuncTypeIndex: 0},
		},
		Functions: []uint32{0},
		Code:      []api.Code{{Body: []api.Instruction{api.Call(0), api.End()}}},
		Start:     &start,
	}
	_, err := store.LoadModule("m", mod)
	require.Error(t, err)

	instErr, ok := err.(*InstantiationError)
	require.True(t, ok)
	require.Equal(t, ErrFailedEntryFunction, instErr.Kind)
	_, _, ok = store.ModuleByName("m")
	require.False(t, ok)
}

func TestStore_GlobalByName(t *testing.T) {
	store := NewStore()
	mod := &api.Module{
		Globals: []api.Global{
			{Type: api.GlobalType{ValType: api.ValueTypeI32, Mutable: false}, Init: api.I32Const(3)},
		},
		Exports: []api.Export{{Name: "count", Kind: api.ExternalGlobal, Index: 0}},
	}
	idx, err := store.LoadModule("m", mod)
	require.NoError(t, err)

	addr, ok := store.GlobalByName(idx, "count")
	require.True(t, ok)
	g, ok := store.globalAt(addr)
	require.True(t, ok)
	require.Equal(t, int32(3), g.Value.I32())

	_, ok = store.GlobalByName(idx, "missing")
	require.False(t, ok)
}

func TestStore_LoadHostModule_HostFunctionIsImportableAndCallable(t *testing.T) {
	store := NewStore()
	values := map[string]api.HostValue{
		"double": api.FuncValue(
			&api.FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
			func(args []api.Value) ([]api.Value, error) {
				return []api.Value{api.I32(args[0].I32() * 2)}, nil
			},
		),
		"counter": api.GlobalValue(api.GlobalType{ValType: api.ValueTypeI32, Mutable: true}, api.I32(0)),
	}
	hostIdx := store.LoadHostModule("env", values)

	mod := &api.Module{
		Types: []*api.FunctionType{
			{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		},
		Imports: []api.Import{
			{Module: "env", Name: "double", Kind: api.ExternalFunc, FuncTypeIndex: 0},
		},
		Exports: []api.Export{{Name: "double", Kind: api.ExternalFunc, Index: 0}},
	}
	idx, err := store.LoadModule("m", mod)
	require.NoError(t, err)
	require.NotEqual(t, hostIdx, idx)

	defined := store.Module(idx).(*DefinedModuleInstance)
	addr, ok, err := defined.ExportedFunc("double")
	require.NoError(t, err)
	require.True(t, ok)

	exec, err := NewExecutor(store, addr, []api.Value{api.I32(21)})
	require.NoError(t, err)
	status, err := exec.ExecuteStep()
	require.NoError(t, err)
	require.Equal(t, ExecEnd, status)
	result, err := exec.PeekResult()
	require.NoError(t, err)
	require.Equal(t, int32(42), result.I32())
}
