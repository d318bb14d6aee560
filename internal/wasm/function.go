package wasm

import "github.com/MaxDesiatov/wasminspect/api"

// FunctionInstance is either a Defined function (compiled from a parsed
// Wasm module's code section) or a Host function (backed by a Go
// callable). Both variants carry enough to validate import compatibility
// and to execute or invoke the function.
type FunctionInstance interface {
	Type() *api.FunctionType
	functionInstance()
}

// DefinedFunctionInstance is a function defined by a loaded Wasm module.
type DefinedFunctionInstance struct {
	Name       string
	FuncType   *api.FunctionType
	Module     ModuleIndex
	Locals     []api.ValueType // declared local types, beyond the parameters
	Body       []api.Instruction
}

func (f *DefinedFunctionInstance) Type() *api.FunctionType { return f.FuncType }
func (*DefinedFunctionInstance) functionInstance()         {}

// HostFunctionInstance is a function backed by a host (Go) callable,
// registered via Store.LoadHostModule.
type HostFunctionInstance struct {
	FuncType   *api.FunctionType
	ModuleName string
	FieldName  string
	Callable   func(args []api.Value) ([]api.Value, error)
}

func (f *HostFunctionInstance) Type() *api.FunctionType { return f.FuncType }
func (*HostFunctionInstance) functionInstance()         {}
