package wasm

import (
	"testing"

	"github.com/MaxDesiatov/wasminspect/api"
	"github.com/stretchr/testify/require"
)

func TestStack_ValuePushPop(t *testing.T) {
	s := NewStack()
	s.PushValue(api.I32(1))
	s.PushValue(api.I32(2))

	require.Equal(t, int32(2), s.PopValue().I32())
	require.Equal(t, int32(1), s.PopValue().I32())
}

func TestStack_CurrentFrameLabelsExcludesTheReturnSentinel(t *testing.T) {
	s := NewStack()
	s.SetFrame(NewCallFrame(FuncAddr{Index: 0}, nil, nil))
	s.PushLabel(NewReturnLabel())

	require.Empty(t, s.CurrentFrameLabels())

	s.PushLabel(NewBlockLabel())
	s.PushLabel(NewLoopLabel(3))

	labels := s.CurrentFrameLabels()
	require.Len(t, labels, 2)
	require.Equal(t, LabelLoop, labels[0].Kind) // innermost first
	require.Equal(t, LabelBlock, labels[1].Kind)
}

func TestStack_PopLabelsDiscardsInterveningValues(t *testing.T) {
	s := NewStack()
	s.PushLabel(NewBlockLabel())
	s.PushValue(api.I32(1))
	s.PushValue(api.I32(2))
	s.PushLabel(NewBlockLabel())
	s.PushValue(api.I32(3))

	s.PopLabels(2)

	require.Equal(t, 0, s.Depth())
}

func TestStack_LocalsAreScopedToTheCurrentFrame(t *testing.T) {
	s := NewStack()
	s.SetFrame(NewCallFrame(FuncAddr{Index: 0}, []api.Value{api.I32(10), api.I32(20)}, nil))

	require.Equal(t, int32(20), s.Local(1).I32())
	s.SetLocal(1, api.I32(99))
	require.Equal(t, int32(99), s.Local(1).I32())
}

func TestStack_PopFrameRemovesEverythingAboveAndIncludingTheActivation(t *testing.T) {
	s := NewStack()
	s.SetFrame(NewCallFrame(FuncAddr{Index: 0}, nil, nil))
	s.PushLabel(NewReturnLabel())
	s.PushValue(api.I32(1))

	require.False(t, s.IsOverTopLevel())
	s.PopFrame()
	require.True(t, s.IsOverTopLevel())
	require.Equal(t, 0, s.Depth())
}
