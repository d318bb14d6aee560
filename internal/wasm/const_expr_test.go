package wasm

import (
	"testing"

	"github.com/MaxDesiatov/wasminspect/api"
	"github.com/stretchr/testify/require"
)

// TestEvalConstExpr_MutableImportedGlobalIsRejected locks in spec.md §4.4:
// GetGlobal in a constant expression must reference an immutable global.
// A mutable host global used as a global initializer's own const-expr is
// rejected rather than silently read.
func TestEvalConstExpr_MutableImportedGlobalIsRejected(t *testing.T) {
	store := NewStore()
	store.LoadHostModule("env", map[string]api.HostValue{
		"counter": api.GlobalValue(api.GlobalType{ValType: api.ValueTypeI32, Mutable: true}, api.I32(1)),
	})

	mod := &api.Module{
		Imports: []api.Import{
			{Module: "env", Name: "counter", Kind: api.ExternalGlobal, Global: api.GlobalType{ValType: api.ValueTypeI32, Mutable: true}},
		},
		Globals: []api.Global{
			{Type: api.GlobalType{ValType: api.ValueTypeI32, Mutable: false}, Init: api.GetGlobal(0)},
		},
	}
	_, err := store.LoadModule("m", mod)
	require.Error(t, err)

	instErr, ok := err.(*InstantiationError)
	require.True(t, ok)
	require.Equal(t, ErrInvalidImport, instErr.Kind)
	_, ok = instErr.Wrapped.(*MutableGlobalConstExprError)
	require.True(t, ok)
}

// TestEvalConstExpr_MutableImportedGlobalIsRejectedAsElementOffset covers the
// same rejection when the mutable global is used as an element segment's
// offset expression instead of a global initializer.
func TestEvalConstExpr_MutableImportedGlobalIsRejectedAsElementOffset(t *testing.T) {
	store := NewStore()
	store.LoadHostModule("env", map[string]api.HostValue{
		"counter": api.GlobalValue(api.GlobalType{ValType: api.ValueTypeI32, Mutable: true}, api.I32(0)),
	})

	mod := &api.Module{
		Imports: []api.Import{
			{Module: "env", Name: "counter", Kind: api.ExternalGlobal, Global: api.GlobalType{ValType: api.ValueTypeI32, Mutable: true}},
		},
		Tables: []api.TableType{{Limits: api.Limits{Min: 2}}},
		Elements: []api.ElementSegment{
			{TableIndex: 0, Offset: api.GetGlobal(0), FuncIndices: nil},
		},
	}
	_, err := store.LoadModule("m", mod)
	require.Error(t, err)

	instErr, ok := err.(*InstantiationError)
	require.True(t, ok)
	require.Equal(t, ErrInvalidElementSegments, instErr.Kind)
	_, ok = instErr.Wrapped.(*MutableGlobalConstExprError)
	require.True(t, ok)
}
