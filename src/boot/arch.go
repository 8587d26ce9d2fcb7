package boot

import "github.com/farberbrodsky/tinylittleos/src/lock"

// Arch is the hardware surface the multiboot/GDT/IDT/PIC/PIT wiring in this
// package needs: lgdt/lidt, port I/O, interrupt enable/disable, and halt.
// Kept as an interface, the same seam lock.Arch and sched.Arch use, so the
// table-building and programming sequences below are exercised by go test
// without ring-0 access. A real kernel build backs this with the forked
// Go runtime's hardware intrinsics (outb/inb, lgdt/lidt, cli/sti/hlt);
// nothing in this package depends on how those intrinsics are reached.
type Arch interface {
	lock.Arch
	LoadGDT(table []byte)
	LoadIDT(table []byte)
	Out8(port uint16, val uint8)
	In8(port uint16) uint8
	Halt()
}
