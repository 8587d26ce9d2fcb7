package mem

import "testing"

type fakeArch struct {
	enabled bool
}

func (f *fakeArch) IntsEnabled() bool { return f.enabled }
func (f *fakeArch) EnableInts()       { f.enabled = true }
func (f *fakeArch) DisableInts()      { f.enabled = false }

// S1: buddy round-trip. Allocate 4K at A, 8K at B (expect B == A+4096).
// Free A, allocate 4K at C (expect C == A). Free B and C, then a 32K
// allocation succeeds and is 32K-aligned.
func TestKmemBuddyRoundTrip(t *testing.T) {
	k := NewKmem(&fakeArch{enabled: true}, 0)

	a, ok := k.AllocN(4 * 1024)
	if !ok {
		t.Fatalf("alloc A failed")
	}
	b, ok := k.AllocN(8 * 1024)
	if !ok {
		t.Fatalf("alloc B failed")
	}
	if b != a+4096 {
		t.Fatalf("B = %#x; want A+4096 = %#x", b, a+4096)
	}

	k.FreeN(a, 4*1024)
	c, ok := k.AllocN(4 * 1024)
	if !ok {
		t.Fatalf("alloc C failed")
	}
	if c != a {
		t.Fatalf("C = %#x; want A = %#x", c, a)
	}

	k.FreeN(b, 8*1024)
	k.FreeN(c, 4*1024)

	d, ok := k.AllocN(32 * 1024)
	if !ok {
		t.Fatalf("32K alloc failed")
	}
	if d%(32*1024) != 0 {
		t.Fatalf("32K alloc %#x not 32K-aligned", d)
	}
}

func TestKmemDebugFill(t *testing.T) {
	k := NewKmem(&fakeArch{enabled: true}, 0)
	addr, ok := k.AllocN(4 * 1024)
	if !ok {
		t.Fatalf("alloc failed")
	}
	for _, byt := range k.Bytes(addr, 4*1024) {
		if byt != 0x41 {
			t.Fatalf("debug-fill byte = %#x; want 0x41", byt)
		}
	}
}

func TestKmemConservation(t *testing.T) {
	k := NewKmem(&fakeArch{enabled: true}, 0)
	var allocs []Pa_t
	for i := 0; i < 10; i++ {
		a, ok := k.AllocN(4 * 1024)
		if !ok {
			t.Fatalf("alloc %d failed", i)
		}
		for _, prior := range allocs {
			if prior == a {
				t.Fatalf("two live allocations overlap at %#x", a)
			}
		}
		allocs = append(allocs, a)
	}
	for _, a := range allocs {
		k.FreeN(a, 4*1024)
	}
	// fully freed region merges back to one 512K-region's worth of 32K
	// granules; conservation means all of them are allocatable again.
	for i := 0; i < RegionSize/(32*1024); i++ {
		if _, ok := k.AllocN(32 * 1024); !ok {
			t.Fatalf("32K alloc %d failed after full free", i)
		}
	}
}

func TestKmemDoubleFreePanics(t *testing.T) {
	k := NewKmem(&fakeArch{enabled: true}, 0)
	a, _ := k.AllocN(4 * 1024)
	k.FreeN(a, 4*1024)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double free")
		}
	}()
	k.FreeN(a, 4*1024)
}

// A freed hmem page is the next one AllocPage hands out.
func TestHmemAllocFreeRoundTrip(t *testing.T) {
	h := NewHmem(&fakeArch{enabled: true}, 4)
	a, ok := h.AllocPage()
	if !ok {
		t.Fatalf("alloc A failed")
	}
	b, ok := h.AllocPage()
	if !ok {
		t.Fatalf("alloc B failed")
	}
	if a == b {
		t.Fatalf("A and B collide at %#x", a)
	}
	h.FreePage(a)
	c, ok := h.AllocPage()
	if !ok || c != a {
		t.Fatalf("expected freed page A = %#x to be reissued, got %#x ok=%v", a, c, ok)
	}
	h.FreePage(b)
	h.FreePage(c)
}

func TestScopedHmemMappingLIFO(t *testing.T) {
	h := NewHmem(&fakeArch{enabled: true}, 4)
	var cur HmemCursor_t

	p1, _ := h.AllocPage()
	p2, _ := h.AllocPage()
	m1 := NewScopedHmemMapping(&cur, h, p1)
	m2 := NewScopedHmemMapping(&cur, h, p2)

	if cur.hmemEnd != -2 {
		t.Fatalf("hmemEnd = %d; want -2", cur.hmemEnd)
	}

	// releasing out of order must panic
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic releasing out of LIFO order")
			}
		}()
		m1.Release()
	}()

	m2.Release()
	m1.Release()

	if cur.hmemEnd != 0 {
		t.Fatalf("hmemEnd = %d; want 0 after matched release", cur.hmemEnd)
	}
}

func TestScopedHmemMappingDoubleReleasePanics(t *testing.T) {
	h := NewHmem(&fakeArch{enabled: true}, 4)
	var cur HmemCursor_t
	p, _ := h.AllocPage()
	m := NewScopedHmemMapping(&cur, h, p)
	m.Release()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double release")
		}
	}()
	m.Release()
}

func TestNewPageDirectoryCopiesKernelPDEs(t *testing.T) {
	k := NewKmem(&fakeArch{enabled: true}, 0)
	KernelDirectory[5] = Pte(0x1000) | PteP | PteW
	pd, _ := NewPageDirectory(k)
	if pd[5] != KernelDirectory[5] {
		t.Fatalf("kernel PDE not copied into new directory")
	}
	if pd[ScratchPDE] != 0 {
		t.Fatalf("scratch PDE should start empty")
	}
}

func TestMapUserPage(t *testing.T) {
	k := NewKmem(&fakeArch{enabled: true}, 0)
	pd, _ := NewPageDirectory(k)
	phys, _ := k.AllocN(4 * 1024)

	MapUserPage(k, pd, 0x08048000, phys, true)

	pdeIdx := uint32(0x08048000) >> 22 & 0x3ff
	pteIdx := uint32(0x08048000) >> 12 & 0x3ff
	if pd[pdeIdx]&PteP == 0 {
		t.Fatalf("PDE not marked present")
	}
	pt := k.PageTableAt(Pa_t(pd[pdeIdx] & pteAddrMask))
	pte := pt[pteIdx]
	if pte&PteP == 0 || pte&PteU == 0 || pte&PteW == 0 {
		t.Fatalf("PTE flags wrong: %#x", pte)
	}
	if Pa_t(pte&pteAddrMask) != phys {
		t.Fatalf("PTE address = %#x; want %#x", pte&pteAddrMask, phys)
	}
}
