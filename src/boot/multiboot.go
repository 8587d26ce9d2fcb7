package boot

import "github.com/farberbrodsky/tinylittleos/src/defs"

// MultibootMagic is the value the bootloader passes in EAX; anything else
// means this wasn't loaded by a multiboot-1 compliant loader.
const MultibootMagic = 0x2BADB002

// memoryMapFlag is bit 6 of the info structure's flags word: set when
// mmap_addr/mmap_length are valid.
const memoryMapFlag = 1 << 6

// usableRegionPhysAddr is the physical address of the RAM region whose
// length this kernel cares about; everything below 1 MiB is reserved for
// the BIOS/bootloader and never counted.
const usableRegionPhysAddr = 0x100000

const (
	offFlags      = 0
	offMmapLength = 44
	offMmapAddr   = 48
	infoMinLen    = 52
)

const mmapEntrySize = 24 // size(4) + addr(8) + len(8) + type(4)

func le32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func le64(b []byte, off int) uint64 {
	return uint64(le32(b, off)) | uint64(le32(b, off+4))<<32
}

// ParseMultiboot reads the total usable RAM out of a multiboot-1 info
// structure and its memory map, given as two separately-addressed byte
// slices (mmap_addr points elsewhere in physical memory, not inline in
// info) already mapped into the caller's address space. It returns the
// byte length of the RAM region starting at 0x100000, or defs.Invalid if
// the magic doesn't match, the memory-map flag isn't set, or no such
// region is present.
//
// The memory map is walked in fixed 24-byte strides, not by each entry's
// own leading size field: that's what the kernel this is ported from does,
// even though the real multiboot spec allows variably-sized entries.
func ParseMultiboot(magic uint32, info []byte, mmap []byte) (uint64, defs.Err_t) {
	if magic != MultibootMagic {
		return 0, defs.Invalid
	}
	if len(info) < infoMinLen {
		return 0, defs.Invalid
	}
	if le32(info, offFlags)&memoryMapFlag == 0 {
		return 0, defs.Invalid
	}

	mmapLength := le32(info, offMmapLength)
	if uint64(mmapLength) > uint64(len(mmap)) {
		mmapLength = uint32(len(mmap))
	}

	var ramBytes uint64
	for off := uint32(0); off+mmapEntrySize <= mmapLength; off += mmapEntrySize {
		addr := le64(mmap, int(off+4))
		length := le64(mmap, int(off+12))
		if addr == usableRegionPhysAddr {
			ramBytes = length
		}
	}
	if ramBytes == 0 {
		return 0, defs.Invalid
	}
	return ramBytes, defs.Ok
}
