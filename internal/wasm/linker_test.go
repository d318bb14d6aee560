package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinkableCollection_PushAssignsLocalIndicesPerModule(t *testing.T) {
	c := NewLinkableCollection[string]()

	i0 := c.Push(0, "a")
	i1 := c.Push(0, "b")
	require.Equal(t, uint32(0), i0)
	require.Equal(t, uint32(1), i1)

	// A second module's local indices start over at zero; they don't share
	// the first module's numbering even though both land in the same
	// global pool.
	j0 := c.Push(1, "c")
	require.Equal(t, uint32(0), j0)

	require.Equal(t, 3, c.Len())
}

func TestLinkableCollection_LinkSharesTheUnderlyingItem(t *testing.T) {
	c := NewLinkableCollection[*int]()
	v := 42
	handle := c.PushGlobal(&v)

	localIndex := c.Link(handle, 5)
	require.Equal(t, uint32(0), localIndex)

	resolved, ok := c.Resolve(5, localIndex)
	require.True(t, ok)
	require.Same(t, &v, c.GetGlobal(resolved))
}

func TestLinkableCollection_RemoveModuleDoesNotRenumberOthers(t *testing.T) {
	c := NewLinkableCollection[string]()
	c.Push(0, "owned-by-0")
	h1 := c.PushGlobal("owned-by-1")
	c.Link(h1, 1)
	h2 := c.PushGlobal("owned-by-2")
	c.Link(h2, 2)

	c.RemoveModule(1)

	require.True(t, c.IsEmpty(1))
	require.False(t, c.IsEmpty(2))

	resolved, ok := c.Resolve(2, 0)
	require.True(t, ok)
	require.Equal(t, "owned-by-2", c.GetGlobal(resolved))

	_, ok = c.Resolve(1, 0)
	require.False(t, ok)
}

func TestLinkableCollection_ResolveOutOfRangeReturnsFalse(t *testing.T) {
	c := NewLinkableCollection[int]()
	c.Push(0, 7)

	_, ok := c.Resolve(0, 1)
	require.False(t, ok)

	_, ok = c.Resolve(9, 0)
	require.False(t, ok)
}
