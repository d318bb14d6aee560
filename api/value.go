// Package api holds the types an embedder or a Wasm decoder needs to share
// with the interpreter: value types, function signatures, and the decoded
// module structures a byte-level Wasm decoder would hand to the Store.
package api

import "fmt"

// ValueType is one of the four numeric types the interpreter operates on.
type ValueType uint8

const (
	ValueTypeI32 ValueType = iota
	ValueTypeI64
	ValueTypeF32
	ValueTypeF64
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return fmt.Sprintf("valuetype(%d)", uint8(t))
	}
}

// Value is a tagged numeric value. Only the field matching Type is
// meaningful; the others are zero.
type Value struct {
	Type ValueType
	i32  int32
	i64  int64
	f32  float32
	f64  float64
}

func I32(v int32) Value { return Value{Type: ValueTypeI32, i32: v} }
func I64(v int64) Value { return Value{Type: ValueTypeI64, i64: v} }
func F32(v float32) Value { return Value{Type: ValueTypeF32, f32: v} }
func F64(v float64) Value { return Value{Type: ValueTypeF64, f64: v} }

// I32 extracts the value as an int32. It panics if Type is not ValueTypeI32;
// callers that accept arbitrary types should check Type first.
func (v Value) I32() int32 {
	if v.Type != ValueTypeI32 {
		panic(fmt.Sprintf("value is %s, not i32", v.Type))
	}
	return v.i32
}

func (v Value) I64() int64 {
	if v.Type != ValueTypeI64 {
		panic(fmt.Sprintf("value is %s, not i64", v.Type))
	}
	return v.i64
}

func (v Value) F32() float32 {
	if v.Type != ValueTypeF32 {
		panic(fmt.Sprintf("value is %s, not f32", v.Type))
	}
	return v.f32
}

func (v Value) F64() float64 {
	if v.Type != ValueTypeF64 {
		panic(fmt.Sprintf("value is %s, not f64", v.Type))
	}
	return v.f64
}

func (v Value) String() string {
	switch v.Type {
	case ValueTypeI32:
		return fmt.Sprintf("i32:%d", v.i32)
	case ValueTypeI64:
		return fmt.Sprintf("i64:%d", v.i64)
	case ValueTypeF32:
		return fmt.Sprintf("f32:%g", v.f32)
	case ValueTypeF64:
		return fmt.Sprintf("f64:%g", v.f64)
	default:
		return "invalid"
	}
}
