// Command kernel is tinylittleos's entry point: a multiboot-loaded 32-bit
// kernel image. Everything past constructing the console and the hardware
// Arch is delegated to package kernel, which wires subsystems together in
// the fixed boot order.
package main

import (
	"runtime"

	"github.com/farberbrodsky/tinylittleos/src/boot"
	"github.com/farberbrodsky/tinylittleos/src/console"
	"github.com/farberbrodsky/tinylittleos/src/kernel"
	"github.com/farberbrodsky/tinylittleos/src/sched"
)

// multibootMagic/multibootInfo and initrdImage are populated by the
// assembly bootstrap stub before jumping into Go code: the loader leaves
// the magic number in EAX and the info pointer in EBX, and the initrd is
// linked into the image at a fixed offset. That handoff is, like GDT/IDT
// byte encoding and the multiboot parser itself, outside this repository:
// these are declared here as the seam the stub writes into.
var (
	multibootMagic uint32
	multibootInfo  []byte
	multibootMmap  []byte
	initrdImage    []byte
	tssBase        uint32
	tssSize        uint32
	idtHandlers    [boot.IDTEntryCount]uint32
)

// hwArch backs kernel.Arch with the forked runtime's hardware intrinsics,
// the same indirection biscuit's own mem/dmap.go relies on for
// runtime.Cpuid/runtime.Rcr4/runtime.Vtop: every primitive this kernel
// needs that isn't expressible in portable Go goes through runtime calls
// that exist only in that fork, called here matter-of-factly.
type hwArch struct{}

func (hwArch) IntsEnabled() bool { return runtime.Eflags()&(1<<9) != 0 }
func (hwArch) EnableInts()       { runtime.Sti() }
func (hwArch) DisableInts()      { runtime.Cli() }
func (hwArch) Halt()             { runtime.Hlt() }
func (hwArch) WaitForInterrupt() { runtime.Hlt() }
func (hwArch) LoadGDT(table []byte)        { runtime.Lgdt(table) }
func (hwArch) LoadIDT(table []byte)        { runtime.Lidt(table) }
func (hwArch) Out8(port uint16, val uint8) { runtime.Outb(port, val) }
func (hwArch) In8(port uint16) uint8       { return runtime.Inb(port) }
func (hwArch) BuildFrame(t *sched.Task_t, entry func()) { runtime.Buildframe(t, entry) }
func (hwArch) SwitchTo(prev, next *sched.Task_t)        { runtime.Switchto(prev, next) }

func main() {
	initSerial()
	con := console.NewConsole(vgaDevice{}, serialDevice{})
	arch := hwArch{}

	in := kernel.BootInputs{
		MultibootMagic: multibootMagic,
		MultibootInfo:  multibootInfo,
		MultibootMmap:  multibootMmap,
		TSSBase:        tssBase,
		TSSSize:        tssSize,
		IDTHandlers:    idtHandlers,
		Initrd:         initrdImage,
	}

	k, err := kernel.Boot(arch, con, in)
	if err != 0 {
		con.Panicf(arch, "boot failed: %v", err)
	}
	k.Start()
}
