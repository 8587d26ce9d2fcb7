package mem

// Pte is one page-table or page-directory entry: a physical address in
// the top 20 bits, flags in the low 12, the standard i386 layout.
type Pte Pa_t

const (
	PteP Pte = 1 << 0 // present
	PteW Pte = 1 << 1 // writable
	PteU Pte = 1 << 2 // user-accessible
)

const pteAddrMask Pte = ^Pte(PageSize - 1)

// PdeCount/PteCount are the number of entries in a directory/table: a
// standard x86 32-bit two-level page table has 1024 of each.
const PdeCount = 1024
const PteCount = 1024

// ScratchPDE is the last page-directory entry (0x3FF), reserved per-task
// for the scratch hmem mapping page table.
const ScratchPDE = 0x3FF

type PageTable [PteCount]Pte
type PageDirectory [PdeCount]Pte

// KernelDirectory holds the shared kernel PDEs, installed once before any
// task is created. NewPageDirectory copies every entry from it except the
// per-task scratch slot.
var KernelDirectory PageDirectory

// NewPageDirectory allocates a fresh page directory, seeded with the
// shared kernel mappings and an empty scratch slot.
func NewPageDirectory(k *Kmem_t) (*PageDirectory, Pa_t) {
	addr, ok := k.AllocN(PageSize)
	if !ok {
		panic("mem: out of kmem for page directory")
	}
	pd := k.PageDirectoryAt(addr)
	*pd = KernelDirectory
	pd[ScratchPDE] = 0
	return pd, addr
}

// MapUserPage installs a user-accessible PTE for vaddr in pd, allocating a
// page table from k if one doesn't already cover that PDE slot.
func MapUserPage(k *Kmem_t, pd *PageDirectory, vaddr uint32, phys Pa_t, writable bool) {
	pdeIdx := (vaddr >> 22) & 0x3ff
	pteIdx := (vaddr >> 12) & 0x3ff

	pde := &pd[pdeIdx]
	var pt *PageTable
	if *pde&PteP == 0 {
		ptAddr, ok := k.AllocN(PageSize)
		if !ok {
			panic("mem: out of kmem for page table")
		}
		pt = k.PageTableAt(ptAddr)
		*pde = Pte(ptAddr) | PteP | PteW | PteU
	} else {
		pt = k.PageTableAt(Pa_t(*pde & pteAddrMask))
	}

	flags := PteP | PteU
	if writable {
		flags |= PteW
	}
	pt[pteIdx] = Pte(phys) | flags
}

// UnmapUserPage clears the PTE covering vaddr in pd, if one is installed.
// It leaves the surrounding page table itself allocated: other entries in
// it may still be in use, and a fully torn-down address space frees the
// table along with everything else when the whole directory goes away.
func UnmapUserPage(k *Kmem_t, pd *PageDirectory, vaddr uint32) {
	pdeIdx := (vaddr >> 22) & 0x3ff
	pteIdx := (vaddr >> 12) & 0x3ff

	pde := pd[pdeIdx]
	if pde&PteP == 0 {
		return
	}
	pt := k.PageTableAt(Pa_t(pde & pteAddrMask))
	pt[pteIdx] = 0
}
