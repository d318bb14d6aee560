package wasm

import (
	"fmt"
	"math"

	"github.com/MaxDesiatov/wasminspect/api"
)

// UnsupportedInitExprError is returned when a constant expression uses an
// operator other than the handful spec.md §4.4 allows.
type UnsupportedInitExprError struct {
	Opcode api.Opcode
}

func (e *UnsupportedInitExprError) Error() string {
	return fmt.Sprintf("unsupported init expression operator: %s", e.Opcode)
}

// MutableGlobalConstExprError is returned when a constant expression's
// GetGlobal names a mutable global. Only an immutable global is accepted as
// a const-expr source.
type MutableGlobalConstExprError struct {
	Addr GlobalAddr
}

func (e *MutableGlobalConstExprError) Error() string {
	return fmt.Sprintf("const expression referenced mutable global at %+v", e.Addr)
}

// evalConstExpr evaluates a constant expression (spec.md §4.4), used for
// global initializers and element/data segment offsets. GetGlobal must
// reference an immutable global that already resolves for module. Whether
// that global is imported is not checked: one of the module's own globals
// defined earlier (or any of its globals, for segment offsets) is accepted
// as well.
func evalConstExpr(store *Store, module ModuleIndex, inst api.Instruction) (api.Value, error) {
	switch inst.Opcode {
	case api.OpI32Const:
		return api.I32(int32(inst.Imm)), nil
	case api.OpI64Const:
		return api.I64(inst.Imm), nil
	case api.OpF32Const:
		return api.F32(math.Float32frombits(uint32(inst.Bits))), nil
	case api.OpF64Const:
		return api.F64(math.Float64frombits(inst.Bits)), nil
	case api.OpGetGlobal:
		addr := GlobalAddr{Module: module, Index: uint32(inst.Imm)}
		global, ok := store.globalAt(addr)
		if !ok {
			return api.Value{}, &UnsupportedInitExprError{Opcode: inst.Opcode}
		}
		if global.Type.Mutable {
			return api.Value{}, &MutableGlobalConstExprError{Addr: addr}
		}
		return global.Value, nil
	default:
		return api.Value{}, &UnsupportedInitExprError{Opcode: inst.Opcode}
	}
}
