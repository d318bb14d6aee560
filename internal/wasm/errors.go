package wasm

import (
	"fmt"

	"github.com/MaxDesiatov/wasminspect/api"
)

// InstantiationErrorKind enumerates the ways Store.LoadModule can fail
// (spec.md §7). Every failure triggers rollback (§4.3) before the caller
// ever sees the error.
type InstantiationErrorKind uint8

const (
	ErrUnknownType InstantiationErrorKind = iota
	ErrUndefinedFunction
	ErrUndefinedMemory
	ErrUndefinedTable
	ErrUndefinedGlobal
	ErrIncompatibleImportFuncType
	ErrIncompatibleImportGlobalType
	ErrIncompatibleImportGlobalMutability
	ErrIncompatibleImportTableType
	ErrIncompatibleImportMemoryType
	ErrInvalidElementSegments
	ErrInvalidDataSegments
	ErrInvalidHostImport
	ErrInvalidImport
	ErrFailedEntryFunction
)

// InstantiationError is returned by Store.LoadModule. Kind selects which of
// the fields below are meaningful.
type InstantiationError struct {
	Kind InstantiationErrorKind

	TypeIndex        uint32
	ImportModule     string
	ImportField      string
	ExpectedFuncType *api.FunctionType
	ActualFuncType   *api.FunctionType
	ExpectedValType  api.ValueType
	ActualValType    api.ValueType
	Wrapped          error
}

func (e *InstantiationError) Unwrap() error { return e.Wrapped }

func (e *InstantiationError) Error() string {
	switch e.Kind {
	case ErrUnknownType:
		return fmt.Sprintf("unknown type index used: %d", e.TypeIndex)
	case ErrUndefinedFunction:
		return fmt.Sprintf("unknown import: undefined function %q in %q", e.ImportField, e.ImportModule)
	case ErrUndefinedMemory:
		return fmt.Sprintf("unknown import: undefined memory %q in %q", e.ImportField, e.ImportModule)
	case ErrUndefinedTable:
		return fmt.Sprintf("unknown import: undefined table %q in %q", e.ImportField, e.ImportModule)
	case ErrUndefinedGlobal:
		return fmt.Sprintf("unknown import: undefined global %q in %q", e.ImportField, e.ImportModule)
	case ErrIncompatibleImportFuncType:
		return fmt.Sprintf("incompatible import type, %q expected %v but got %v", e.ImportField, e.ExpectedFuncType, e.ActualFuncType)
	case ErrIncompatibleImportGlobalType:
		return fmt.Sprintf("incompatible import type, expected %v but got %v", e.ExpectedValType, e.ActualValType)
	case ErrIncompatibleImportGlobalMutability:
		return "incompatible import type: global mutability mismatch"
	case ErrIncompatibleImportTableType:
		return "incompatible import type: table limits mismatch"
	case ErrIncompatibleImportMemoryType:
		return "incompatible import type: memory limits mismatch"
	case ErrInvalidElementSegments:
		return fmt.Sprintf("elements segment does not fit: %v", e.Wrapped)
	case ErrInvalidDataSegments:
		return fmt.Sprintf("data segment does not fit: %v", e.Wrapped)
	case ErrInvalidHostImport:
		return fmt.Sprintf("invalid host import: %v", e.Wrapped)
	case ErrInvalidImport:
		return fmt.Sprintf("invalid import: %v", e.Wrapped)
	case ErrFailedEntryFunction:
		return fmt.Sprintf("start function trapped: %v", e.Wrapped)
	default:
		return "instantiation error"
	}
}

// TrapKind enumerates the ways Executor.ExecuteStep can abort mid-function
// (spec.md §7). A trap leaves the stack as-is, so the debugger can inspect
// it before deciding whether to resume.
type TrapKind uint8

const (
	TrapUnreachable TrapKind = iota
	TrapUnsupportedInstruction
	TrapTypeMismatch
	TrapInvalidStackState
	TrapHostCallError
	TrapInvariantViolation
)

// Trap is an execution-time error: every non-nil error ExecuteStep returns
// is a *Trap.
type Trap struct {
	Kind    TrapKind
	Detail  string
	Wrapped error
}

func (t *Trap) Unwrap() error { return t.Wrapped }

func (t *Trap) Error() string {
	switch t.Kind {
	case TrapUnreachable:
		return "unreachable executed"
	case TrapUnsupportedInstruction:
		return fmt.Sprintf("unsupported instruction: %s", t.Detail)
	case TrapTypeMismatch:
		return fmt.Sprintf("type mismatch: %s", t.Detail)
	case TrapInvalidStackState:
		return fmt.Sprintf("invalid stack state: %s", t.Detail)
	case TrapHostCallError:
		return fmt.Sprintf("host call error: %s", t.Detail)
	case TrapInvariantViolation:
		return fmt.Sprintf("invariant violation: %s", t.Detail)
	default:
		return "trap"
	}
}

// ReturnValueErrorKind enumerates the ways Executor.PeekResult can fail
// (spec.md §7). These only arise after an apparently clean function end.
type ReturnValueErrorKind uint8

const (
	ErrTypeMismatchReturnValue ReturnValueErrorKind = iota
	ErrNoValue
	ErrNoCallFrame
)

type ReturnValueError struct {
	Kind     ReturnValueErrorKind
	Got      api.Value
	Expected api.ValueType
}

func (e *ReturnValueError) Error() string {
	switch e.Kind {
	case ErrTypeMismatchReturnValue:
		return fmt.Sprintf("type mismatch for return value: got %s, expected %s", e.Got, e.Expected)
	case ErrNoValue:
		return fmt.Sprintf("no value on stack, expected %s", e.Expected)
	case ErrNoCallFrame:
		return "no call frame to report a return value for"
	default:
		return "return value error"
	}
}
