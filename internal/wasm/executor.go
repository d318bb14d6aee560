package wasm

import (
	"fmt"
	"math"

	"github.com/MaxDesiatov/wasminspect/api"
)

// ProgramCounter names a single executable position: an instruction index
// within a specific function's body. The debugger's "step" command advances
// exactly one ProgramCounter at a time (spec.md §4.6, §6).
type ProgramCounter struct {
	Func FuncAddr
	Inst int
}

// ExecStatus reports whether ExecuteStep has more work to do.
type ExecStatus uint8

const (
	ExecContinue ExecStatus = iota
	ExecEnd
)

// Executor interprets a single function invocation one instruction at a
// time. It owns the Stack for the call and advances pc on every successful
// step, so an external debugger can pause between any two instructions
// (spec.md §4.6).
type Executor struct {
	store    *Store
	stack    *Stack
	pc       ProgramCounter
	finished bool
}

func zeroValue(t api.ValueType) api.Value {
	switch t {
	case api.ValueTypeI32:
		return api.I32(0)
	case api.ValueTypeI64:
		return api.I64(0)
	case api.ValueTypeF32:
		return api.F32(0)
	case api.ValueTypeF64:
		return api.F64(0)
	default:
		return api.Value{}
	}
}

// NewExecutor prepares invocation of addr with args. A Host function runs
// to completion immediately, since it has no instruction stream to step
// through; ExecuteStep on it just reports ExecEnd.
func NewExecutor(store *Store, addr FuncAddr, args []api.Value) (*Executor, error) {
	inst, ok := store.funcAt(addr)
	if !ok {
		return nil, &Trap{Kind: TrapInvalidStackState, Detail: "call to undefined function address"}
	}
	stack := NewStack()
	switch f := inst.(type) {
	case *HostFunctionInstance:
		results, err := f.Callable(args)
		if err != nil {
			return nil, &Trap{Kind: TrapHostCallError, Detail: f.FieldName, Wrapped: err}
		}
		for _, r := range results {
			stack.PushValue(r)
		}
		return &Executor{store: store, stack: stack, finished: true}, nil
	case *DefinedFunctionInstance:
		locals := make([]api.Value, len(f.FuncType.Params)+len(f.Locals))
		copy(locals, args)
		for i := len(f.FuncType.Params); i < len(locals); i++ {
			locals[i] = zeroValue(f.Locals[i-len(f.FuncType.Params)])
		}
		stack.SetFrame(NewCallFrame(addr, locals, nil))
		stack.PushLabel(NewReturnLabel())
		return &Executor{store: store, stack: stack, pc: ProgramCounter{Func: addr, Inst: 0}}, nil
	default:
		return nil, &Trap{Kind: TrapInvalidStackState, Detail: "unknown function instance kind"}
	}
}

// CurrentFuncInsts returns the instruction stream of the function the
// program counter currently points into, used by both the dispatcher and
// the debugger's disassembly display.
func (e *Executor) CurrentFuncInsts() []api.Instruction {
	inst, ok := e.store.funcAt(e.pc.Func)
	if !ok {
		panic("wasm: current function address no longer resolves")
	}
	defined, ok := inst.(*DefinedFunctionInstance)
	if !ok {
		panic("wasm: program counter refers to a host function")
	}
	return defined.Body
}

// PC reports the executor's current position, for debugger display.
func (e *Executor) PC() ProgramCounter { return e.pc }

// IsFinished reports whether the call has run to completion.
func (e *Executor) IsFinished() bool { return e.finished }

// StackDepth and StackValueAt expose the raw stack for the debugger's
// "stack" command (spec.md §6); ValueAt panics on a non-value entry, so
// callers should treat a mismatch as evidence the index landed on a label
// or activation marker instead.
func (e *Executor) StackDepth() int { return e.stack.Depth() }

func (e *Executor) StackValueAt(index int) api.Value { return e.stack.ValueAt(index) }

// ExecuteStep runs exactly one instruction. Any internal inconsistency
// (stack underflow, a dangling address) is recovered here and reported as a
// Trap rather than propagating a panic to the caller.
func (e *Executor) ExecuteStep() (status ExecStatus, err error) {
	if e.finished {
		return ExecEnd, nil
	}
	defer func() {
		if r := recover(); r != nil {
			status = ExecContinue
			err = &Trap{Kind: TrapInvalidStackState, Detail: fmt.Sprintf("%v", r)}
		}
	}()
	return e.step()
}

func (e *Executor) step() (ExecStatus, error) {
	insts := e.CurrentFuncInsts()
	if e.pc.Inst >= len(insts) {
		panic("wasm: program counter ran past the end of the function body")
	}
	inst := insts[e.pc.Inst]

	switch inst.Opcode {
	case api.OpUnreachable:
		return ExecContinue, &Trap{Kind: TrapUnreachable}

	case api.OpNop:
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpBlock:
		e.stack.PushLabel(NewBlockLabel())
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpLoop:
		e.stack.PushLabel(NewLoopLabel(e.pc.Inst))
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpIf:
		cond := e.stack.PopValue()
		e.stack.PushLabel(NewIfLabel())
		if cond.I32() == 0 {
			if err := e.skipToElseOrEnd(); err != nil {
				return ExecContinue, err
			}
			return ExecContinue, nil
		}
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpElse:
		// Reached by falling off the end of the "then" arm: skip the "else"
		// arm entirely, landing on its matching End.
		if err := e.skipToMatchingEnd(); err != nil {
			return ExecContinue, err
		}
		return ExecContinue, nil

	case api.OpEnd:
		return e.execEnd()

	case api.OpBr:
		return e.branch(uint32(inst.Imm))

	case api.OpBrIf:
		cond := e.stack.PopValue()
		if cond.I32() != 0 {
			return e.branch(uint32(inst.Imm))
		}
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpReturn:
		return e.execReturn()

	case api.OpCall:
		return e.execCall(uint32(inst.Imm))

	case api.OpGetLocal:
		e.stack.PushValue(e.stack.Local(uint32(inst.Imm)))
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpSetLocal:
		v := e.stack.PopValue()
		e.stack.SetLocal(uint32(inst.Imm), v)
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpGetGlobal:
		frame := e.stack.CurrentFrame()
		addr := GlobalAddr{Module: frame.FuncAddr.Module, Index: uint32(inst.Imm)}
		g, ok := e.store.globalAt(addr)
		if !ok {
			return ExecContinue, &Trap{Kind: TrapInvalidStackState, Detail: "undefined global address"}
		}
		e.stack.PushValue(g.Value)
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpSetGlobal:
		frame := e.stack.CurrentFrame()
		addr := GlobalAddr{Module: frame.FuncAddr.Module, Index: uint32(inst.Imm)}
		v := e.stack.PopValue()
		if err := e.store.SetGlobal(addr, v); err != nil {
			return ExecContinue, err
		}
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpI32Const:
		e.stack.PushValue(api.I32(int32(inst.Imm)))
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpI64Const:
		e.stack.PushValue(api.I64(inst.Imm))
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpF32Const:
		e.stack.PushValue(api.F32(math.Float32frombits(uint32(inst.Bits))))
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpF64Const:
		e.stack.PushValue(api.F64(math.Float64frombits(inst.Bits)))
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpI32Add:
		rhs := e.stack.PopValue()
		lhs := e.stack.PopValue()
		e.stack.PushValue(api.I32(lhs.I32() + rhs.I32()))
		e.pc.Inst++
		return ExecContinue, nil

	case api.OpI32LtS:
		rhs := e.stack.PopValue()
		lhs := e.stack.PopValue()
		var result int32
		if lhs.I32() < rhs.I32() {
			result = 1
		}
		e.stack.PushValue(api.I32(result))
		e.pc.Inst++
		return ExecContinue, nil

	default:
		return ExecContinue, &Trap{Kind: TrapUnsupportedInstruction, Detail: inst.Opcode.String()}
	}
}

// skipToElseOrEnd scans forward from an If whose condition was false,
// landing just past a same-level Else, or exactly on a same-level End if
// there is no Else. No jump table is precomputed; every branch re-scans
// (spec.md §4.6).
func (e *Executor) skipToElseOrEnd() error {
	insts := e.CurrentFuncInsts()
	depth := 0
	for i := e.pc.Inst + 1; i < len(insts); i++ {
		switch insts[i].Opcode {
		case api.OpBlock, api.OpLoop, api.OpIf:
			depth++
		case api.OpElse:
			if depth == 0 {
				e.pc.Inst = i + 1
				return nil
			}
		case api.OpEnd:
			if depth == 0 {
				e.pc.Inst = i
				return nil
			}
			depth--
		}
	}
	return &Trap{Kind: TrapInvalidStackState, Detail: "if has no matching else or end"}
}

// skipToMatchingEnd scans forward past the current construct's Else arm,
// landing exactly on its End.
func (e *Executor) skipToMatchingEnd() error {
	insts := e.CurrentFuncInsts()
	depth := 0
	for i := e.pc.Inst + 1; i < len(insts); i++ {
		switch insts[i].Opcode {
		case api.OpBlock, api.OpLoop, api.OpIf:
			depth++
		case api.OpEnd:
			if depth == 0 {
				e.pc.Inst = i
				return nil
			}
			depth--
		}
	}
	return &Trap{Kind: TrapInvalidStackState, Detail: "block has no matching end"}
}

// skipForwardPastEnds scans forward counting n unmatched Ends at the
// current nesting level, landing just past the nth one. Used by Br/BrIf
// targeting a Block or If label, which exits rather than re-enters.
func (e *Executor) skipForwardPastEnds(n int) error {
	insts := e.CurrentFuncInsts()
	depth := 0
	remaining := n
	for i := e.pc.Inst + 1; i < len(insts); i++ {
		switch insts[i].Opcode {
		case api.OpBlock, api.OpLoop, api.OpIf:
			depth++
		case api.OpEnd:
			if depth == 0 {
				remaining--
				if remaining == 0 {
					e.pc.Inst = i + 1
					return nil
				}
			} else {
				depth--
			}
		}
	}
	return &Trap{Kind: TrapInvalidStackState, Detail: "branch target has no matching end"}
}

// branch implements Br/BrIf: it never harvests or re-pushes values itself
// (spec.md §9 Design Notes). A Block/If target is exited by scanning
// forward to its matching End; a Loop target is re-entered by jumping back
// to just after its own Loop instruction, leaving the loop's label in
// place so each iteration doesn't grow the label stack.
func (e *Executor) branch(depth uint32) (ExecStatus, error) {
	labels := e.stack.CurrentFrameLabels()
	if int(depth) >= len(labels) {
		return ExecContinue, &Trap{Kind: TrapInvalidStackState, Detail: "branch depth exceeds enclosing label count"}
	}
	target := labels[depth]

	if target.Kind == LabelLoop {
		e.stack.PopLabels(int(depth))
		e.pc.Inst = target.LoopStart + 1
		return ExecContinue, nil
	}

	e.stack.PopLabels(int(depth) + 1)
	if err := e.skipForwardPastEnds(int(depth) + 1); err != nil {
		return ExecContinue, err
	}
	return ExecContinue, nil
}

// execEnd closes either a nested Block/Loop/If (if CurrentFrameLabels is
// non-empty) or, once every nested label has already closed, the current
// function call itself. Closing a nested construct keeps the values it left
// above its label: they are harvested with PopWhile, the label is popped,
// and the values are pushed back bottom-first in their original order.
func (e *Executor) execEnd() (ExecStatus, error) {
	if len(e.stack.CurrentFrameLabels()) > 0 {
		results := e.stack.PopWhile(func(en stackEntry) bool { return en.kind == entryValue })
		e.stack.PopLabel()
		for i := len(results) - 1; i >= 0; i-- {
			e.stack.PushValue(results[i].value)
		}
		e.pc.Inst++
		return ExecContinue, nil
	}
	return e.unwindFrame()
}

// execReturn implements an explicit early return: it must protect the
// result value (sitting above any still-open nested labels) before
// discarding those labels, since PopLabels otherwise treats it as ordinary
// intervening garbage.
func (e *Executor) execReturn() (ExecStatus, error) {
	frame := e.stack.CurrentFrame()
	if frame == nil {
		return ExecContinue, &Trap{Kind: TrapInvalidStackState, Detail: "return with no current call frame"}
	}
	funcInst, ok := e.store.funcAt(frame.FuncAddr)
	if !ok {
		return ExecContinue, &Trap{Kind: TrapInvalidStackState, Detail: "current function address no longer resolves"}
	}
	resultType, hasResult := funcInst.Type().ResultType()
	var result api.Value
	if hasResult {
		result = e.stack.PopValue()
		if result.Type != resultType {
			return ExecContinue, &Trap{Kind: TrapTypeMismatch, Detail: "function result type mismatch"}
		}
	}

	if labels := e.stack.CurrentFrameLabels(); len(labels) > 0 {
		e.stack.PopLabels(len(labels))
	}

	return e.finishFrame(frame, hasResult, result)
}

// unwindFrame closes the current call frame once no nested label remains
// open: it pops the function's result value (if any) before popping the
// Return sentinel label and the activation itself, so a function with a
// result type never leaves the stack imbalanced (spec.md §9 Design Notes,
// Open Question 1).
func (e *Executor) unwindFrame() (ExecStatus, error) {
	frame := e.stack.CurrentFrame()
	if frame == nil {
		e.finished = true
		return ExecEnd, nil
	}
	funcInst, ok := e.store.funcAt(frame.FuncAddr)
	if !ok {
		return ExecContinue, &Trap{Kind: TrapInvalidStackState, Detail: "current function address no longer resolves"}
	}
	resultType, hasResult := funcInst.Type().ResultType()
	var result api.Value
	if hasResult {
		result = e.stack.PopValue()
		if result.Type != resultType {
			return ExecContinue, &Trap{Kind: TrapTypeMismatch, Detail: "function result type mismatch"}
		}
	}
	return e.finishFrame(frame, hasResult, result)
}

func (e *Executor) finishFrame(frame *CallFrame, hasResult bool, result api.Value) (ExecStatus, error) {
	returnPC := frame.ReturnPC
	e.stack.PopLabel() // the Return sentinel
	e.stack.PopFrame()
	if hasResult {
		e.stack.PushValue(result)
	}
	if returnPC == nil {
		e.finished = true
		return ExecEnd, nil
	}
	e.pc = *returnPC
	return ExecContinue, nil
}

// execCall pops the callee's arguments (in reverse, since they were pushed
// left-to-right), then either runs a host function to completion inline or
// pushes a new call frame and jumps into a defined function's body.
func (e *Executor) execCall(localIndex uint32) (ExecStatus, error) {
	frame := e.stack.CurrentFrame()
	addr := FuncAddr{Module: frame.FuncAddr.Module, Index: localIndex}
	target, ok := e.store.funcAt(addr)
	if !ok {
		return ExecContinue, &Trap{Kind: TrapInvalidStackState, Detail: "call to undefined function address"}
	}
	funcType := target.Type()
	args := make([]api.Value, len(funcType.Params))
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = e.stack.PopValue()
	}

	switch f := target.(type) {
	case *HostFunctionInstance:
		results, err := f.Callable(args)
		if err != nil {
			return ExecContinue, &Trap{Kind: TrapHostCallError, Detail: f.FieldName, Wrapped: err}
		}
		for _, r := range results {
			e.stack.PushValue(r)
		}
		e.pc.Inst++
		return ExecContinue, nil

	case *DefinedFunctionInstance:
		locals := make([]api.Value, len(f.FuncType.Params)+len(f.Locals))
		copy(locals, args)
		for i := len(f.FuncType.Params); i < len(locals); i++ {
			locals[i] = zeroValue(f.Locals[i-len(f.FuncType.Params)])
		}
		returnPC := e.pc
		returnPC.Inst++
		e.stack.SetFrame(NewCallFrame(addr, locals, &returnPC))
		e.stack.PushLabel(NewReturnLabel())
		e.pc = ProgramCounter{Func: addr, Inst: 0}
		return ExecContinue, nil

	default:
		return ExecContinue, &Trap{Kind: TrapInvalidStackState, Detail: "unknown function instance kind"}
	}
}

// PeekResult reports the value left behind by the most recently completed
// call without removing it, for a debugger inspecting a finished step
// (spec.md §6).
func (e *Executor) PeekResult() (result api.Value, err error) {
	if !e.stack.IsOverTopLevel() {
		return api.Value{}, &ReturnValueError{Kind: ErrNoCallFrame}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &ReturnValueError{Kind: ErrNoValue}
		}
	}()
	result = e.stack.PeekLastValue()
	return result, nil
}
