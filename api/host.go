package api

// HostFunction is a host-implemented function a Wasm module can import.
// Callable receives the post-reversal argument vector (declaration order)
// and returns a value vector whose arity and types must match Type. It must
// not itself reenter the Executor (spec.md §6 host function contract).
type HostFunction struct {
	Type     *FunctionType
	Callable func(args []Value) ([]Value, error)
}

// HostGlobalValue, HostTableValue and HostMemoryValue describe the initial
// state of a host-provided global, table, or memory, in the same shape the
// Store uses for module-defined ones.
type HostGlobalValue struct {
	Type  GlobalType
	Value Value
}

type HostTableValue struct {
	Type TableType
}

type HostMemoryValue struct {
	Type MemoryType
}

// HostValueKind discriminates the variants of HostValue.
type HostValueKind uint8

const (
	HostValueFunc HostValueKind = iota
	HostValueGlobal
	HostValueTable
	HostValueMemory
)

// HostValue is one field of a host module's export map, as passed to
// wasm.Store.LoadHostModule. Exactly one field is meaningful, selected by
// Kind.
type HostValue struct {
	Kind   HostValueKind
	Func   *HostFunction
	Global *HostGlobalValue
	Table  *HostTableValue
	Memory *HostMemoryValue
}

func FuncValue(t *FunctionType, fn func(args []Value) ([]Value, error)) HostValue {
	return HostValue{Kind: HostValueFunc, Func: &HostFunction{Type: t, Callable: fn}}
}

func GlobalValue(t GlobalType, v Value) HostValue {
	return HostValue{Kind: HostValueGlobal, Global: &HostGlobalValue{Type: t, Value: v}}
}

func TableValue(t TableType) HostValue {
	return HostValue{Kind: HostValueTable, Table: &HostTableValue{Type: t}}
}

func MemoryValue(t MemoryType) HostValue {
	return HostValue{Kind: HostValueMemory, Memory: &HostMemoryValue{Type: t}}
}
