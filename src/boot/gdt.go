package boot

// gdtEntry is one packed 8-byte x86 segment descriptor.
type gdtEntry [8]byte

// encodeGDTEntry packs base/limit/access/flags into the standard x86
// descriptor layout: limit[15:0], base[23:0], access byte, limit[19:16] |
// flags<<4, base[31:24].
func encodeGDTEntry(base, limit uint32, access, flags uint8) gdtEntry {
	var e gdtEntry
	e[0] = byte(limit)
	e[1] = byte(limit >> 8)
	e[2] = byte(base)
	e[3] = byte(base >> 8)
	e[4] = byte(base >> 16)
	e[5] = access
	e[6] = byte((limit>>16)&0x0F) | flags<<4
	e[7] = byte(base >> 24)
	return e
}

// Selector values, fixed by the x86 contract: index*8 | RPL.
const (
	SelNull     = 0x00
	SelKernelCS = 0x08
	SelKernelDS = 0x10
	SelUserCS   = 0x1B
	SelUserDS   = 0x23
	SelTSS      = 0x28
)

// GDT access bytes and flags. Bit layout: present(7), DPL(6:5),
// S(4, 1=code/data), executable(3), direction/conforming(2), RW(1),
// accessed(0). Flags: granularity(3, 1=page), size(2, 1=32-bit).
const (
	accessKernelCode uint8 = 0b10011010
	accessKernelData uint8 = 0b10010010
	accessUserCode   uint8 = 0b11111010
	accessUserData   uint8 = 0b11110010
	accessTSS        uint8 = 0b10001001
	flagsPage32      uint8 = 0b1100
)

// GDTEntryCount is the number of descriptors in the table GDTEntries
// returns: null, kernel CS/DS, user CS/DS, TSS.
const GDTEntryCount = 6

// GDTEntries builds the flat-segmentation GDT the x86 contract specifies:
// a null descriptor, full 4 GiB kernel and user code/data segments, and a
// TSS descriptor sized for tssSize bytes at tssBase. Flat segmentation
// means every selector but the TSS covers all 4 GiB of linear address
// space; paging does the real address translation.
func GDTEntries(tssBase, tssSize uint32) [GDTEntryCount]gdtEntry {
	return [GDTEntryCount]gdtEntry{
		encodeGDTEntry(0, 0, 0, 0),
		encodeGDTEntry(0, 0xFFFFF, accessKernelCode, flagsPage32),
		encodeGDTEntry(0, 0xFFFFF, accessKernelData, flagsPage32),
		encodeGDTEntry(0, 0xFFFFF, accessUserCode, flagsPage32),
		encodeGDTEntry(0, 0xFFFFF, accessUserData, flagsPage32),
		encodeGDTEntry(tssBase, tssSize, accessTSS, 0),
	}
}

// EncodeGDT flattens a descriptor table into the contiguous byte buffer
// Arch.LoadGDT expects, in selector order.
func EncodeGDT(entries [GDTEntryCount]gdtEntry) []byte {
	buf := make([]byte, 0, GDTEntryCount*8)
	for _, e := range entries {
		buf = append(buf, e[:]...)
	}
	return buf
}
