// Package slab is the fixed-size object allocator layered over mem: each
// slab is a kmem page whose leading bytes are a next-slab pointer and a
// free-cell bitmap (bit set means free), followed by the cells themselves.
// A single free list links every not-fully-allocated slab.
package slab

import (
	"encoding/binary"
	"math/bits"

	"github.com/farberbrodsky/tinylittleos/src/lock"
	"github.com/farberbrodsky/tinylittleos/src/mem"
	"github.com/farberbrodsky/tinylittleos/src/util"
)

var granules = [4]int{4 * 1024, 8 * 1024, 16 * 1024, 32 * 1024}

// noSlab marks an empty free list, the same ^uint32(0) sentinel biscuit and
// mem.Hmem_t use.
const noSlab mem.Pa_t = ^mem.Pa_t(0)

// Cache_t is an allocator for fixed-size objects of one size.
type Cache_t struct {
	k         *mem.Kmem_t
	arch      lock.Arch
	objSize   int
	granule   int
	numCells  int
	headerLen int
	bitmapLen int
	free      mem.Pa_t
}

// NewCache selects the slab granule (among 4K/8K/16K/32K) that wastes the
// fewest bytes on header and padding for objSize-byte objects, and returns
// an empty cache over that granule.
func NewCache(k *mem.Kmem_t, arch lock.Arch, objSize int) *Cache_t {
	if objSize <= 0 {
		panic("slab: bad object size")
	}
	bestWaste := -1
	var bestG, bestCells, bestHdr int
	for _, g := range granules {
		cells, hdr := fitCells(g, objSize)
		if cells == 0 {
			continue
		}
		waste := g - hdr - cells*objSize
		if bestWaste == -1 || waste < bestWaste {
			bestWaste, bestG, bestCells, bestHdr = waste, g, cells, hdr
		}
	}
	if bestCells == 0 {
		panic("slab: object too large for any slab granule")
	}
	return &Cache_t{
		k: k, arch: arch, objSize: objSize,
		granule: bestG, numCells: bestCells, headerLen: bestHdr,
		bitmapLen: bestHdr - 4,
		free:      noSlab,
	}
}

// fitCells returns the number of objSize cells that fit in a granule-byte
// slab alongside a 4-byte next pointer and a free bitmap for those cells,
// and the total header length (4 + bitmap bytes).
func fitCells(granule, objSize int) (cells, hdr int) {
	n := (granule - 4) / objSize
	for n > 0 {
		h := 4 + (n+7)/8
		if h+n*objSize <= granule {
			return n, h
		}
		n--
	}
	return 0, 0
}

func (c *Cache_t) growSlab() bool {
	addr, ok := c.k.AllocN(c.granule)
	if !ok {
		return false
	}
	b := c.k.Bytes(addr, c.granule)
	bm := b[4 : 4+c.bitmapLen]
	for i := range bm {
		bm[i] = 0xff
	}
	for i := c.numCells; i < c.bitmapLen*8; i++ {
		clearBit(bm, i)
	}
	binary.LittleEndian.PutUint32(b[0:4], uint32(c.free))
	c.free = addr
	return true
}

// Alloc returns the address of a fresh, uninitialized object.
func (c *Cache_t) Alloc() (mem.Pa_t, bool) {
	il := lock.NewIntlock(c.arch)
	defer il.Release()

	if c.free == noSlab {
		if !c.growSlab() {
			return 0, false
		}
	}
	slabAddr := c.free
	b := c.k.Bytes(slabAddr, c.granule)
	bm := b[4 : 4+c.bitmapLen]
	idx := firstSet(bm)
	if idx < 0 || idx >= c.numCells {
		panic("slab: free slab has no free cell")
	}
	clearBit(bm, idx)
	if !anySet(bm) {
		c.free = mem.Pa_t(binary.LittleEndian.Uint32(b[0:4]))
	}
	return slabAddr + mem.Pa_t(c.headerLen+idx*c.objSize), true
}

// Free returns an object to its slab, relinking the slab onto the free
// list if it had been fully allocated.
func (c *Cache_t) Free(ptr mem.Pa_t) {
	il := lock.NewIntlock(c.arch)
	defer il.Release()

	slabAddr := mem.Pa_t(util.Rounddown(uint32(ptr), uint32(c.granule)))
	b := c.k.Bytes(slabAddr, c.granule)
	bm := b[4 : 4+c.bitmapLen]
	wasFull := !anySet(bm)

	off := int(ptr - slabAddr - mem.Pa_t(c.headerLen))
	if off < 0 || off%c.objSize != 0 {
		panic("slab: free of pointer not owned by this cache")
	}
	idx := off / c.objSize
	if idx >= c.numCells {
		panic("slab: free of pointer not owned by this cache")
	}
	if testBit(bm, idx) {
		panic("slab: double free")
	}
	setBit(bm, idx)

	if wasFull {
		binary.LittleEndian.PutUint32(b[0:4], uint32(c.free))
		c.free = slabAddr
	}
}

func testBit(bm []byte, i int) bool { return bm[i/8]&(1<<uint(i%8)) != 0 }
func setBit(bm []byte, i int)       { bm[i/8] |= 1 << uint(i%8) }
func clearBit(bm []byte, i int)     { bm[i/8] &^= 1 << uint(i%8) }

func anySet(bm []byte) bool {
	for _, x := range bm {
		if x != 0 {
			return true
		}
	}
	return false
}

func firstSet(bm []byte) int {
	for i, x := range bm {
		if x != 0 {
			return i*8 + bits.TrailingZeros8(x)
		}
	}
	return -1
}
