package mem

import (
	"encoding/binary"

	"github.com/farberbrodsky/tinylittleos/src/lock"
)

// noPage is the hmem free-list terminator, the same ^uint32(0) sentinel
// convention biscuit's Physmem_t uses for pmaps/freei.
const noPage Pa_t = ^Pa_t(0)

// Hmem_t is a free-list pool of physical pages that require an explicit
// scoped mapping before they can be read or written (see ScopedHmemMapping).
// The free-list linkage is stored in the first word of each freed page
// itself, per spec: alloc pops the head and reads its first word as the
// new head, free pushes by writing the old head into the freed page.
type Hmem_t struct {
	arch     lock.Arch
	arena    []byte
	nextFree Pa_t
	freeHead Pa_t
}

// NewHmem creates an hmem pool of npages pages.
func NewHmem(arch lock.Arch, npages int) *Hmem_t {
	return &Hmem_t{
		arch:     arch,
		arena:    make([]byte, npages*PageSize),
		nextFree: Pa_t(npages * PageSize),
		freeHead: noPage,
	}
}

func (h *Hmem_t) page(addr Pa_t) []byte {
	off := int(addr)
	return h.arena[off : off+PageSize]
}

// AllocPage returns a fresh physical page, bumping hmem_phys_end downward
// if the free list is empty. Must not be called from interrupt context in
// the real kernel (it requires a scoped mapping, which requires a current
// task); the host model doesn't enforce that restriction since it has no
// interrupt context of its own.
func (h *Hmem_t) AllocPage() (Pa_t, bool) {
	il := lock.NewIntlock(h.arch)
	defer il.Release()

	if h.freeHead == noPage {
		if h.nextFree == 0 {
			return 0, false
		}
		h.nextFree -= Pa_t(PageSize)
		return h.nextFree, true
	}
	addr := h.freeHead
	next := binary.LittleEndian.Uint32(h.page(addr)[:4])
	h.freeHead = Pa_t(next)
	return addr, true
}

// FreePage returns a page to the free list.
func (h *Hmem_t) FreePage(addr Pa_t) {
	il := lock.NewIntlock(h.arch)
	defer il.Release()

	p := h.page(addr)
	binary.LittleEndian.PutUint32(p[:4], uint32(h.freeHead))
	h.freeHead = addr
}
