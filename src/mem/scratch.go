package mem

// HmemCursor_t is the per-task scratch-mapping state: the hmem_end cursor
// and the stack of currently outstanding scoped mappings, used only to
// assert LIFO release order. sched.Task_t embeds one in its
// task-internal area at the top of the kernel stack.
type HmemCursor_t struct {
	hmemEnd int
	stack   []Pa_t
}

// ScopedHmemMapping is a scratch mapping of one hmem page, sharing the
// per-task scratch page table (the last PDE) in the real kernel. Here it
// just tracks LIFO discipline and hands back a byte view of the page.
type ScopedHmemMapping struct {
	cur      *HmemCursor_t
	h        *Hmem_t
	addr     Pa_t
	released bool
}

// NewScopedHmemMapping pushes a new scratch mapping of phys onto cur's
// stack, bumping hmemEnd down by one slot.
func NewScopedHmemMapping(cur *HmemCursor_t, h *Hmem_t, phys Pa_t) *ScopedHmemMapping {
	cur.hmemEnd--
	cur.stack = append(cur.stack, phys)
	return &ScopedHmemMapping{cur: cur, h: h, addr: phys}
}

// Addr returns the physical address backing the mapping.
func (m *ScopedHmemMapping) Addr() Pa_t { return m.addr }

// Bytes returns the mapped page's contents.
func (m *ScopedHmemMapping) Bytes() []byte { return m.h.page(m.addr) }

// Release tears down the mapping. Release order must match construction
// order (LIFO); violating it, or releasing twice, panics.
func (m *ScopedHmemMapping) Release() {
	if m.released {
		panic("mem: ScopedHmemMapping released twice")
	}
	n := len(m.cur.stack)
	if n == 0 || m.cur.stack[n-1] != m.addr {
		panic("mem: scoped hmem mapping destroyed out of LIFO order")
	}
	m.cur.stack = m.cur.stack[:n-1]
	m.cur.hmemEnd++
	m.released = true
}
