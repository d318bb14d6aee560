package wasm

// LinkableCollection is a two-level mapping giving every module stable
// local indices into a shared pool of globally-owned items, without copying
// the items themselves. It backs each of the Store's four item kinds
// (functions, tables, memories, globals): see spec.md §3/§4.1.
//
// The global list is append-only for the Store's lifetime. Per-module
// local lists are append-only during instantiation but can be discarded
// wholesale on rollback (RemoveModule) without disturbing any other
// module's addresses, which is the entire reason this indirection exists.
type LinkableCollection[T any] struct {
	global []T
	locals map[ModuleIndex][]int
}

func NewLinkableCollection[T any]() *LinkableCollection[T] {
	return &LinkableCollection[T]{locals: make(map[ModuleIndex][]int)}
}

// Push appends item to the global pool and to module's local list, as
// happens when a module defines its own function/table/memory/global. The
// returned local index is what a FuncAddr/TableAddr/MemAddr/GlobalAddr
// would carry for this item within module.
func (c *LinkableCollection[T]) Push(module ModuleIndex, item T) (localIndex uint32) {
	handle := len(c.global)
	c.global = append(c.global, item)
	localIndex = uint32(len(c.locals[module]))
	c.locals[module] = append(c.locals[module], handle)
	return localIndex
}

// PushGlobal appends item to the global pool only, with no owning module.
// Used for host module exports, which have no local import slot of their
// own to resolve through.
func (c *LinkableCollection[T]) PushGlobal(item T) int {
	handle := len(c.global)
	c.global = append(c.global, item)
	return handle
}

// Link appends an existing global handle to module's local list, without
// copying the underlying item. This is how an import is satisfied: the
// importing module gets a new local index that resolves to the same
// globally-owned item as the exporter.
func (c *LinkableCollection[T]) Link(handle int, module ModuleIndex) (localIndex uint32) {
	localIndex = uint32(len(c.locals[module]))
	c.locals[module] = append(c.locals[module], handle)
	return localIndex
}

// Resolve returns the global handle a module's local index maps to.
func (c *LinkableCollection[T]) Resolve(module ModuleIndex, localIndex uint32) (int, bool) {
	locals := c.locals[module]
	if int(localIndex) >= len(locals) {
		return 0, false
	}
	return locals[localIndex], true
}

// GetGlobal returns the item a global handle names.
func (c *LinkableCollection[T]) GetGlobal(handle int) T {
	return c.global[handle]
}

// RemoveModule discards module's local index list. Globally-owned items
// the module itself pushed remain in the global pool: they are simply no
// longer reachable through any module's local indices, which is enough to
// make rollback observably equivalent to the pre-instantiation state (no
// other module's addresses are renumbered).
func (c *LinkableCollection[T]) RemoveModule(module ModuleIndex) {
	delete(c.locals, module)
}

// Items enumerates module's local list as global handles, in local-index
// order. Used to walk a module's own tables/memories right after defining
// them, to apply element/data segments.
func (c *LinkableCollection[T]) Items(module ModuleIndex) []int {
	return c.locals[module]
}

// IsEmpty reports whether module has no local entries in this collection.
func (c *LinkableCollection[T]) IsEmpty(module ModuleIndex) bool {
	return len(c.locals[module]) == 0
}

// Len returns the number of globally-owned items, across all modules.
func (c *LinkableCollection[T]) Len() int {
	return len(c.global)
}
