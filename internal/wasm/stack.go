package wasm

import "github.com/MaxDesiatov/wasminspect/api"

// LabelKind discriminates the variants of Label.
type LabelKind uint8

const (
	LabelBlock LabelKind = iota
	LabelIf
	LabelLoop
	LabelReturn
)

// Label is a stack marker denoting a structured-control scope. LoopStart is
// only meaningful when Kind is LabelLoop: it is the instruction index of the
// Loop instruction itself; a branch targeting this label resumes at the
// instruction just after it (spec.md §4.6).
type Label struct {
	Kind      LabelKind
	LoopStart int
}

func NewBlockLabel() Label          { return Label{Kind: LabelBlock} }
func NewIfLabel() Label             { return Label{Kind: LabelIf} }
func NewLoopLabel(start int) Label  { return Label{Kind: LabelLoop, LoopStart: start} }
func NewReturnLabel() Label         { return Label{Kind: LabelReturn} }

// CallFrame is a call-frame boundary marker (an Activation entry). ReturnPC
// is nil only for the outermost (entry) frame; End/Return at that frame
// terminates execution rather than resuming a caller.
type CallFrame struct {
	FuncAddr FuncAddr
	Locals   []api.Value
	ReturnPC *ProgramCounter
}

func NewCallFrame(addr FuncAddr, locals []api.Value, returnPC *ProgramCounter) *CallFrame {
	return &CallFrame{FuncAddr: addr, Locals: locals, ReturnPC: returnPC}
}

type entryKind uint8

const (
	entryValue entryKind = iota
	entryLabel
	entryActivation
)

type stackEntry struct {
	kind  entryKind
	value api.Value
	label Label
	frame *CallFrame
}

// Stack is the unified runtime stack: a single ordered sequence of value,
// label, and activation entries (spec.md §3 Stack entry, §4.5).
type Stack struct {
	entries []stackEntry
}

func NewStack() *Stack { return &Stack{} }

func (s *Stack) PushValue(v api.Value) {
	s.entries = append(s.entries, stackEntry{kind: entryValue, value: v})
}

func (s *Stack) PopValue() api.Value {
	last := len(s.entries) - 1
	e := s.entries[last]
	s.entries = s.entries[:last]
	if e.kind != entryValue {
		panic("wasm: popValue on a non-value stack entry")
	}
	return e.value
}

func (s *Stack) PeekLastValue() api.Value {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].kind == entryValue {
			return s.entries[i].value
		}
	}
	panic("wasm: peekLastValue on an empty stack")
}

func (s *Stack) PushLabel(l Label) {
	s.entries = append(s.entries, stackEntry{kind: entryLabel, label: l})
}

func (s *Stack) PopLabel() Label {
	last := len(s.entries) - 1
	e := s.entries[last]
	s.entries = s.entries[:last]
	if e.kind != entryLabel {
		panic("wasm: popLabel on a non-label stack entry")
	}
	return e.label
}

// PopLabels pops n labels, discarding any value entries encountered between
// them (spec.md §4.5).
func (s *Stack) PopLabels(n int) {
	for n > 0 {
		last := len(s.entries) - 1
		e := s.entries[last]
		s.entries = s.entries[:last]
		if e.kind == entryLabel {
			n--
		}
	}
}

func (s *Stack) PeekLastLabel() Label {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].kind == entryLabel {
			return s.entries[i].label
		}
	}
	panic("wasm: peekLastLabel found no label above the current activation")
}

// currentFrameIndex returns the index of the nearest Activation entry
// scanning from the top, or -1 if there is none.
func (s *Stack) currentFrameIndex() int {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].kind == entryActivation {
			return i
		}
	}
	return -1
}

// SetFrame pushes an Activation entry.
func (s *Stack) SetFrame(frame *CallFrame) {
	s.entries = append(s.entries, stackEntry{kind: entryActivation, frame: frame})
}

// PopFrame removes everything down to and including the current Activation.
func (s *Stack) PopFrame() {
	i := s.currentFrameIndex()
	if i < 0 {
		panic("wasm: popFrame with no current activation")
	}
	s.entries = s.entries[:i]
}

// CurrentFrame returns the nearest Activation's CallFrame, or nil if there
// is none (i.e. execution has unwound past the entry frame).
func (s *Stack) CurrentFrame() *CallFrame {
	i := s.currentFrameIndex()
	if i < 0 {
		return nil
	}
	return s.entries[i].frame
}

// CurrentFrameLabels enumerates the labels pushed above the current
// activation, not counting the Label(Return) sentinel pushed when the
// frame was entered: that sentinel marks the floor of the function's own
// body, not a branchable nested block (spec.md §4.5, §4.6 End).
func (s *Stack) CurrentFrameLabels() []Label {
	start := s.currentFrameIndex()
	var labels []Label
	for i := len(s.entries) - 1; i > start; i-- {
		e := s.entries[i]
		if e.kind == entryLabel {
			if e.label.Kind == LabelReturn {
				break
			}
			labels = append(labels, e.label)
		}
	}
	return labels
}

func (s *Stack) SetLocal(index uint32, v api.Value) {
	frame := s.CurrentFrame()
	frame.Locals[index] = v
}

func (s *Stack) Local(index uint32) api.Value {
	frame := s.CurrentFrame()
	return frame.Locals[index]
}

// PopWhile returns and removes the contiguous run of top entries
// satisfying predicate, in the order they were popped (top-first). Callers
// harvesting block results must push them back bottom-first to preserve
// their original order (spec.md §9 Design Notes).
func (s *Stack) PopWhile(predicate func(stackEntry) bool) []stackEntry {
	var popped []stackEntry
	for len(s.entries) > 0 && predicate(s.entries[len(s.entries)-1]) {
		last := len(s.entries) - 1
		popped = append(popped, s.entries[last])
		s.entries = s.entries[:last]
	}
	return popped
}

// IsOverTopLevel reports whether execution has unwound past the entry
// frame's own activation: true once there is no current activation left on
// the stack at all.
func (s *Stack) IsOverTopLevel() bool {
	return s.currentFrameIndex() < 0
}

// Depth returns the total number of entries currently on the stack, used
// only for debugger display (the "stack" command, spec.md §6).
func (s *Stack) Depth() int { return len(s.entries) }

// ValueAt returns the raw entry at position index, counting from the
// bottom, formatted for the debugger's "stack" command. It panics if index
// does not name a value entry.
func (s *Stack) ValueAt(index int) api.Value {
	e := s.entries[index]
	if e.kind != entryValue {
		panic("wasm: ValueAt on a non-value stack entry")
	}
	return e.value
}
