package api

// FunctionType is the signature of a function: the value types of its
// parameters and results. Per this project's scope (spec.md Non-goals) a
// function has at most one result.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// EqualsSignature reports whether t and o declare the same parameter and
// result value types, in order. Used by import linking (Store) to validate
// that a host or Wasm export matches the importing module's declared type.
func (t *FunctionType) EqualsSignature(o *FunctionType) bool {
	if t == nil || o == nil {
		return t == o
	}
	return valueTypesEqual(t.Params, o.Params) && valueTypesEqual(t.Results, o.Results)
}

func valueTypesEqual(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ResultType returns the function's single result type, if any.
func (t *FunctionType) ResultType() (ValueType, bool) {
	if len(t.Results) == 0 {
		return 0, false
	}
	return t.Results[0], true
}

// Limits describes the initial and optional maximum size of a memory or
// table, in their respective units (pages for memory, elements for table).
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded
}

// TableType is the declared shape of a table import or definition.
type TableType struct {
	Limits Limits
}

// MemoryType is the declared shape of a memory import or definition.
type MemoryType struct {
	Limits Limits
}

// GlobalType is the declared shape of a global import or definition.
type GlobalType struct {
	ValType   ValueType
	Mutable bool
}
