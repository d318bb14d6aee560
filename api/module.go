package api

// The types below describe a decoded Wasm module: the in-memory structure a
// byte-level Wasm decoder hands to Store.LoadModule. Decoding the binary
// format itself is out of scope for this project (spec.md §1); these types
// exist so the Store and Executor have something concrete to consume, and so
// tests can build modules directly the way the decoder would.

// Opcode identifies a Wasm instruction. Only the subset the interpreter
// implements (spec.md §4.6) is named; anything else traps as
// wasm.TrapUnsupportedInstruction when executed.
type Opcode uint8

const (
	OpUnreachable Opcode = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpReturn
	OpCall
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpSetGlobal
	OpI32Const
	OpI64Const
	OpF32Const
	OpF64Const
	OpI32Add
	OpI32LtS
)

func (o Opcode) String() string {
	switch o {
	case OpUnreachable:
		return "unreachable"
	case OpNop:
		return "nop"
	case OpBlock:
		return "block"
	case OpLoop:
		return "loop"
	case OpIf:
		return "if"
	case OpElse:
		return "else"
	case OpEnd:
		return "end"
	case OpBr:
		return "br"
	case OpBrIf:
		return "br_if"
	case OpReturn:
		return "return"
	case OpCall:
		return "call"
	case OpGetLocal:
		return "local.get"
	case OpSetLocal:
		return "local.set"
	case OpGetGlobal:
		return "global.get"
	case OpSetGlobal:
		return "global.set"
	case OpI32Const:
		return "i32.const"
	case OpI64Const:
		return "i64.const"
	case OpF32Const:
		return "f32.const"
	case OpF64Const:
		return "f64.const"
	case OpI32Add:
		return "i32.add"
	case OpI32LtS:
		return "i32.lt_s"
	default:
		return "unknown"
	}
}

// Instruction is a single decoded Wasm instruction. Imm carries a signed
// immediate (branch depth, local/global/function index, or the value of an
// I32Const/I64Const); Bits carries the canonical bit pattern of an
// F32Const/F64Const, decoded via math.Float32frombits/Float64frombits at
// evaluation time (spec.md §4.6).
type Instruction struct {
	Opcode Opcode
	Imm    int64
	Bits   uint64
}

func Unreachable() Instruction { return Instruction{Opcode: OpUnreachable} }
func Nop() Instruction         { return Instruction{Opcode: OpNop} }
func Block() Instruction       { return Instruction{Opcode: OpBlock} }
func Loop() Instruction        { return Instruction{Opcode: OpLoop} }
func If() Instruction          { return Instruction{Opcode: OpIf} }
func Else() Instruction        { return Instruction{Opcode: OpElse} }
func End() Instruction         { return Instruction{Opcode: OpEnd} }
func Br(depth uint32) Instruction   { return Instruction{Opcode: OpBr, Imm: int64(depth)} }
func BrIf(depth uint32) Instruction { return Instruction{Opcode: OpBrIf, Imm: int64(depth)} }
func Return() Instruction           { return Instruction{Opcode: OpReturn} }
func Call(funcIndex uint32) Instruction {
	return Instruction{Opcode: OpCall, Imm: int64(funcIndex)}
}
func GetLocal(index uint32) Instruction { return Instruction{Opcode: OpGetLocal, Imm: int64(index)} }
func SetLocal(index uint32) Instruction { return Instruction{Opcode: OpSetLocal, Imm: int64(index)} }
func GetGlobal(index uint32) Instruction {
	return Instruction{Opcode: OpGetGlobal, Imm: int64(index)}
}
func SetGlobal(index uint32) Instruction {
	return Instruction{Opcode: OpSetGlobal, Imm: int64(index)}
}
func I32Const(v int32) Instruction { return Instruction{Opcode: OpI32Const, Imm: int64(v)} }
func I64Const(v int64) Instruction { return Instruction{Opcode: OpI64Const, Imm: v} }
func F32ConstBits(bits uint32) Instruction {
	return Instruction{Opcode: OpF32Const, Bits: uint64(bits)}
}
func F64ConstBits(bits uint64) Instruction {
	return Instruction{Opcode: OpF64Const, Bits: bits}
}
func I32Add() Instruction { return Instruction{Opcode: OpI32Add} }
func I32LtS() Instruction { return Instruction{Opcode: OpI32LtS} }

// ExternalKind identifies which index space an import or export refers to.
type ExternalKind uint8

const (
	ExternalFunc ExternalKind = iota
	ExternalTable
	ExternalMemory
	ExternalGlobal
)

func (k ExternalKind) String() string {
	switch k {
	case ExternalFunc:
		return "func"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Import is a single entry of the module's import section. Exactly one of
// FuncTypeIndex/Table/Memory/Global is meaningful, selected by Kind.
type Import struct {
	Module string
	Name   string
	Kind   ExternalKind

	FuncTypeIndex uint32
	Table         TableType
	Memory        MemoryType
	Global        GlobalType
}

// Export is a single entry of the module's export section. Index is a local
// index into the index space named by Kind (which includes both imported
// and locally defined items, per Wasm's unified index space convention).
type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// Global is a single entry of the module's global section.
type Global struct {
	Type GlobalType
	Init Instruction
}

// ElementSegment initializes a contiguous region of a table with function
// references, active at instantiation time.
type ElementSegment struct {
	TableIndex  uint32
	Offset      Instruction
	FuncIndices []uint32
}

// DataSegment initializes a contiguous region of a memory with bytes,
// active at instantiation time.
type DataSegment struct {
	MemoryIndex uint32
	Offset      Instruction
	Bytes       []byte
}

// Code is a defined function's body: its local declarations (beyond its
// parameters, which are locals 0..len(Params)-1) and its instruction
// sequence.
type Code struct {
	Locals []ValueType
	Body   []Instruction
}

// NameSection carries optional debug names, as produced by a decoder reading
// the "name" custom section. Used only to make the debugger's output
// readable; absence never affects execution.
type NameSection struct {
	FunctionNames map[uint32]string
}

// Module is the fully decoded representation of a Wasm binary. Building one
// from bytes is the job of a decoder, out of scope here (spec.md §1); tests
// and embedders construct Module values directly.
type Module struct {
	Types     []*FunctionType
	Imports   []Import
	Functions []uint32 // type index per defined function, parallel to Code
	Tables    []TableType
	Memories  []MemoryType
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Elements  []ElementSegment
	Data      []DataSegment
	Code      []Code
	Names     *NameSection
}
