package mem

import (
	"unsafe"

	"github.com/farberbrodsky/tinylittleos/src/lock"
	"github.com/farberbrodsky/tinylittleos/src/structs"
)

// Buddy_t is the metadata for one 512 KiB region: four bitmaps (one per
// granule, bit set means free) and four intrusive freelist links (one per
// granule). A buddy is redundantly represented at every granularity: the
// same bytes are "free at 32K" and "free at 4K" simultaneously until an
// allocation narrows the redundancy down. This matches spec's own
// conservation check, which sums free bits per granule independently
// rather than expecting the granules to partition the region once.
type Buddy_t struct {
	base  Pa_t
	bits  [numGranules]structs.Bitset_t
	links [numGranules]structs.List_t[Buddy_t]
}

func newBuddy(base Pa_t) *Buddy_t {
	b := &Buddy_t{base: base}
	for g := 0; g < numGranules; g++ {
		b.bits[g] = structs.MkBitset(granuleBits[g])
		b.bits[g].SetAll()
		b.links[g].Init(b)
	}
	return b
}

// Kmem_t is the buddy allocator over identity-mapped physical memory.
// base is the first byte of the kmem window; the backing arena grows one
// RegionSize chunk at a time as regions are needed, mirroring
// kmem_phys_end bumping forward in the original design.
type Kmem_t struct {
	arch    lock.Arch
	base    Pa_t
	arena   []byte
	buddies []*Buddy_t
	heads   [numGranules]*structs.List_t[Buddy_t]
}

// NewKmem creates an empty kmem allocator starting at base. No regions are
// carved out until the first allocation demands one.
func NewKmem(arch lock.Arch, base Pa_t) *Kmem_t {
	return &Kmem_t{arch: arch, base: base}
}

func (k *Kmem_t) growRegion() *Buddy_t {
	regionBase := k.base + Pa_t(len(k.arena))
	k.arena = append(k.arena, make([]byte, RegionSize)...)
	b := newBuddy(regionBase)
	k.buddies = append(k.buddies, b)
	for g := 0; g < numGranules; g++ {
		k.freelistAdd(g, b)
	}
	return b
}

func (k *Kmem_t) freelistAdd(g int, b *Buddy_t) {
	link := &b.links[g]
	if k.heads[g] == nil {
		k.heads[g] = link
		return
	}
	if link.Linked() {
		return
	}
	k.heads[g].InsertAfter(link)
}

func (k *Kmem_t) freelistRemove(g int, b *Buddy_t) {
	link := &b.links[g]
	if k.heads[g] == link {
		nxt := link.Next()
		if nxt == link {
			k.heads[g] = nil
		} else {
			k.heads[g] = nxt
		}
	}
	link.Remove()
}

func (k *Kmem_t) clearBit(b *Buddy_t, g, i int) {
	b.bits[g].Clear(i)
	if b.bits[g].Empty() {
		k.freelistRemove(g, b)
	}
}

func (k *Kmem_t) setBit(b *Buddy_t, g, i int) {
	wasEmpty := b.bits[g].Empty()
	b.bits[g].Set(i)
	if wasEmpty {
		k.freelistAdd(g, b)
	}
}

// allocInBuddy picks the lowest free bit at granule g, clears it, and
// propagates the clear upward (a coarser bit can no longer be set once one
// of its halves is gone) and downward (an N>4K allocation consumes every
// finer granule contained in it too).
func (k *Kmem_t) allocInBuddy(b *Buddy_t, g int) (int, bool) {
	idx := b.bits[g].FirstSet()
	if idx < 0 {
		return -1, false
	}
	k.clearBit(b, g, idx)

	ci := idx
	for gg := g + 1; gg < numGranules; gg++ {
		ci /= 2
		if !b.bits[gg].Test(ci) {
			break
		}
		k.clearBit(b, gg, ci)
	}

	for gg := g - 1; gg >= 0; gg-- {
		shift := uint(g - gg)
		base := idx << shift
		n := 1 << shift
		for j := 0; j < n; j++ {
			if b.bits[gg].Test(base + j) {
				k.clearBit(b, gg, base+j)
			}
		}
	}
	return idx, true
}

// freeInBuddy sets the bit at granule g and every finer granule contained
// in it (mirroring allocInBuddy's downward clear), then merges upward:
// whenever both halves of a coarser granule are free, that coarser bit is
// set too, and the merge check continues one level up.
func (k *Kmem_t) freeInBuddy(b *Buddy_t, g, idx int) {
	if b.bits[g].Test(idx) {
		panic("mem: double free")
	}
	k.setBit(b, g, idx)

	for gg := g - 1; gg >= 0; gg-- {
		shift := uint(g - gg)
		base := idx << shift
		for j := 0; j < 1<<shift; j++ {
			if !b.bits[gg].Test(base + j) {
				k.setBit(b, gg, base+j)
			}
		}
	}

	ci := idx
	for gg := g; gg < numGranules-1; gg++ {
		sibling := ci ^ 1
		if !b.bits[gg].Test(sibling) {
			break
		}
		parent := ci / 2
		k.setBit(b, gg+1, parent)
		ci = parent
	}
}

func (k *Kmem_t) locate(addr Pa_t, g int) (*Buddy_t, int) {
	off := int(addr - k.base)
	if off < 0 {
		panic("mem: address below kmem base")
	}
	bn := off / RegionSize
	if bn >= len(k.buddies) {
		panic("mem: address outside kmem region")
	}
	within := off % RegionSize
	return k.buddies[bn], within / granuleSize[g]
}

// AllocN allocates N bytes (N must be one of 4K/8K/16K/32K), virtually
// contiguous and identity-mapped, debug-filling the result with 0x41.
func (k *Kmem_t) AllocN(n int) (Pa_t, bool) {
	il := lock.NewIntlock(k.arch)
	defer il.Release()

	g := granuleIndex(n)
	head := k.heads[g]
	if head == nil {
		k.growRegion()
		head = k.heads[g]
		if head == nil {
			return 0, false
		}
	}
	b := head.Owner
	idx, ok := k.allocInBuddy(b, g)
	if !ok {
		return 0, false
	}
	addr := b.base + Pa_t(idx*granuleSize[g])
	view := k.bytesLocked(addr, n)
	for i := range view {
		view[i] = 0x41
	}
	return addr, true
}

// FreeN returns an N-byte allocation previously returned by AllocN.
func (k *Kmem_t) FreeN(addr Pa_t, n int) {
	il := lock.NewIntlock(k.arch)
	defer il.Release()

	g := granuleIndex(n)
	b, idx := k.locate(addr, g)
	k.freeInBuddy(b, g, idx)
}

func (k *Kmem_t) bytesLocked(addr Pa_t, n int) []byte {
	off := int(addr - k.base)
	return k.arena[off : off+n]
}

// Bytes returns the live backing storage for an N-byte kmem allocation,
// the identity-map equivalent of biscuit's Dmap8.
func (k *Kmem_t) Bytes(addr Pa_t, n int) []byte {
	il := lock.NewIntlock(k.arch)
	defer il.Release()
	return k.bytesLocked(addr, n)
}

// PageTableAt returns a typed view over a page-sized kmem allocation.
func (k *Kmem_t) PageTableAt(addr Pa_t) *PageTable {
	b := k.Bytes(addr, PageSize)
	return (*PageTable)(unsafe.Pointer(&b[0]))
}

// PageDirectoryAt returns a typed view over a page-sized kmem allocation.
func (k *Kmem_t) PageDirectoryAt(addr Pa_t) *PageDirectory {
	b := k.Bytes(addr, PageSize)
	return (*PageDirectory)(unsafe.Pointer(&b[0]))
}
