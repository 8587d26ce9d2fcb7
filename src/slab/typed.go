package slab

import (
	"unsafe"

	"github.com/farberbrodsky/tinylittleos/src/lock"
	"github.com/farberbrodsky/tinylittleos/src/mem"
)

// Typed is a generic object cache: Alloc/Free hand back live *T values
// instead of raw addresses, running a constructor/destructor around the
// underlying Cache_t the way biscuit initializes pooled structs in place
// before handing them to a caller.
type Typed[T any] struct {
	cache *Cache_t
	ctor  func(*T)
	dtor  func(*T)
}

// NewTyped builds a Typed[T] sized to fit T exactly; ctor/dtor may be nil.
func NewTyped[T any](k *mem.Kmem_t, arch lock.Arch, ctor, dtor func(*T)) *Typed[T] {
	var zero T
	size := int(unsafe.Sizeof(zero))
	return &Typed[T]{cache: NewCache(k, arch, size), ctor: ctor, dtor: dtor}
}

// Alloc returns a freshly constructed object and the address backing it
// (needed to Free it later, since the object itself may outlive any
// particular Go pointer to the same backing bytes).
func (t *Typed[T]) Alloc() (*T, mem.Pa_t, bool) {
	addr, ok := t.cache.Alloc()
	if !ok {
		return nil, 0, false
	}
	b := t.cache.k.Bytes(addr, t.cache.objSize)
	obj := (*T)(unsafe.Pointer(&b[0]))
	if t.ctor != nil {
		t.ctor(obj)
	}
	return obj, addr, true
}

// Free destructs obj and returns its cell to the cache.
func (t *Typed[T]) Free(addr mem.Pa_t, obj *T) {
	if t.dtor != nil {
		t.dtor(obj)
	}
	t.cache.Free(addr)
}
