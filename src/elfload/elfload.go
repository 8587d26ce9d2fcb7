// Package elfload maps a 32-bit ELF executable's PT_LOAD segments into a
// fresh user address space. Header parsing goes through the stdlib
// debug/elf package exactly the way the teacher's own chentry command
// does; this package only adds the PT_LOAD-to-page-table wiring chentry
// never needed.
package elfload

import (
	"debug/elf"
	"io"

	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/mem"
	"github.com/farberbrodsky/tinylittleos/src/util"
)

// mappedPages tracks every physical page a Load call has allocated and
// installed so far, so a failure partway through one segment (or a later
// segment) can unmap everything already done instead of leaking pages
// into a half-loaded address space.
type mappedPage struct {
	vaddr uint32
	phys  mem.Pa_t
}

type mappedPages struct {
	k    *mem.Kmem_t
	pd   *mem.PageDirectory
	list []mappedPage
}

func (m *mappedPages) add(vaddr uint32, phys mem.Pa_t) {
	m.list = append(m.list, mappedPage{vaddr, phys})
}

// release clears every PTE this call installed and frees the backing
// pages. Only the error path calls this; a successful Load leaves the
// pages mapped, owned from then on by the address space they were mapped
// into.
func (m *mappedPages) release() {
	for _, p := range m.list {
		mem.UnmapUserPage(m.k, m.pd, p.vaddr)
		m.k.FreeN(p.phys, mem.PageSize)
	}
}

// Load parses a 32-bit ELF executable from r, maps its PT_LOAD segments
// into pd (allocating backing pages from k), and returns the entry point.
// Any failure - a malformed header, a truncated segment read, or running
// out of physical pages - unmaps everything this call itself mapped and
// returns defs.Invalid or defs.NoMemory; the caller never has to clean up
// a partially-populated address space.
func Load(k *mem.Kmem_t, pd *mem.PageDirectory, r io.ReaderAt) (uint32, defs.Err_t) {
	f, ferr := elf.NewFile(r)
	if ferr != nil {
		return 0, defs.Invalid
	}
	if err := checkHeader(&f.FileHeader); err != defs.Ok {
		return 0, err
	}

	pages := &mappedPages{k: k, pd: pd}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := loadSegment(k, pd, pages, prog); err != defs.Ok {
			pages.release()
			return 0, err
		}
	}
	return uint32(f.Entry), defs.Ok
}

func checkHeader(eh *elf.FileHeader) defs.Err_t {
	if eh.Class != elf.ELFCLASS32 {
		return defs.Invalid
	}
	if eh.Data != elf.ELFDATA2LSB {
		return defs.Invalid
	}
	if eh.Type != elf.ET_EXEC {
		return defs.Invalid
	}
	if eh.Machine != elf.EM_386 {
		return defs.Invalid
	}
	return defs.Ok
}

func loadSegment(k *mem.Kmem_t, pd *mem.PageDirectory, pages *mappedPages, prog *elf.Prog) defs.Err_t {
	writable := prog.Flags&elf.PF_W != 0
	vaddr := uint32(prog.Vaddr)
	memsz := uint32(prog.Memsz)
	filesz := uint32(prog.Filesz)
	if filesz > memsz {
		return defs.Invalid
	}

	pageVaddr := util.Rounddown(vaddr, uint32(mem.PageSize))
	endVaddr := vaddr + memsz
	for pv := pageVaddr; pv < endVaddr; pv += mem.PageSize {
		phys, ok := k.AllocN(mem.PageSize)
		if !ok {
			return defs.NoMemory
		}
		pages.add(pv, phys)

		buf := k.Bytes(phys, mem.PageSize)
		for i := range buf {
			buf[i] = 0
		}

		copyStart := util.Max(pv, vaddr)
		copyEnd := util.Min(pv+mem.PageSize, vaddr+filesz)
		if copyEnd > copyStart {
			dst := buf[copyStart-pv : copyEnd-pv]
			n, rerr := prog.ReadAt(dst, int64(copyStart-vaddr))
			if rerr != nil && rerr != io.EOF {
				return defs.Invalid
			}
			if n != len(dst) {
				return defs.Invalid
			}
		}

		mem.MapUserPage(k, pd, pv, phys, writable)
	}
	return defs.Ok
}
