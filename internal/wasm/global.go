package wasm

import "github.com/MaxDesiatov/wasminspect/api"

// GlobalInstance is a Store-owned global value. SetGlobal (the Executor's
// only mutating entry point for globals) is the single place that writes to
// it, and it rejects the write if the global was declared immutable
// (spec.md §3 Invariant 3).
type GlobalInstance struct {
	Value Value
	Type  api.GlobalType
}

// Value is an alias kept local to this package so call sites read
// wasm.GlobalInstance rather than reaching back into api for every field;
// it is exactly api.Value.
type Value = api.Value

func NewGlobalInstance(v Value, t api.GlobalType) *GlobalInstance {
	return &GlobalInstance{Value: v, Type: t}
}
