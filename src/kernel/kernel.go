// Package kernel wires every other package together in the boot order
// spec.md fixes: console, multiboot, GDT, page allocator, IDT, PIC/PIT,
// root filesystem, scheduler init, initial tasks, scheduler start. Boot
// does everything up to and including "create initial tasks"; Start hands control to
// the scheduler and never returns. Splitting the two is what makes setup
// exercisable by go test at all: nothing here ever drives a real timer
// interrupt.
package kernel

import (
	"github.com/farberbrodsky/tinylittleos/src/boot"
	"github.com/farberbrodsky/tinylittleos/src/console"
	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/elfload"
	"github.com/farberbrodsky/tinylittleos/src/mem"
	"github.com/farberbrodsky/tinylittleos/src/sched"
	"github.com/farberbrodsky/tinylittleos/src/tarfs"
	"github.com/farberbrodsky/tinylittleos/src/vfs"
)

// Arch is the complete hardware surface the kernel needs, composed from
// the narrower seams each subsystem already defines: boot.Arch covers
// segmentation/interrupts/port I/O/halt, sched.Arch covers the
// hand-crafted context switch. One concrete type satisfies both in a
// real build; tests can satisfy them independently.
type Arch interface {
	boot.Arch
	sched.Arch
	// WaitForInterrupt parks the CPU (hlt) until the next interrupt fires;
	// Start's idle loop uses it instead of busy-waiting.
	WaitForInterrupt()
}

// BootInputs bundles everything the boot-time assembly stub would hand a
// real kernel entry point: the multiboot info/memory-map bytes, the TSS
// descriptor's base/size for the GDT, the per-vector ISR trampoline
// addresses for the IDT, and the init ramdisk image. None of this is
// produced by this package - it comes from the linker/bootstrap glue
// that is, like GDT/IDT encoding itself, out of this repository's scope.
type BootInputs struct {
	MultibootMagic uint32
	MultibootInfo  []byte
	MultibootMmap  []byte
	TSSBase        uint32
	TSSSize        uint32
	IDTHandlers    [boot.IDTEntryCount]uint32
	Initrd         []byte
}

// Kernel holds every subsystem handle Boot constructs, for Start (and
// tests) to use afterward.
type Kernel struct {
	Arch    Arch
	Console *console.Console_t
	Kmem    *mem.Kmem_t
	Hmem    *mem.Hmem_t
	Runq    *sched.Runqueue_t
	VFS     *vfs.VFS_t
	RootFs  *vfs.FileSystem_t
}

// Boot performs every step up to and including creating the initial
// tasks, in spec.md's fixed order: console is assumed already
// constructed by the caller (it's needed before anything else can log a
// failure), multiboot next, then GDT, the page allocator, IDT, PIC/PIT,
// the root filesystem, scheduler init, and finally the initial tasks.
func Boot(arch Arch, con *console.Console_t, in BootInputs) (*Kernel, defs.Err_t) {
	ramBytes, err := boot.ParseMultiboot(in.MultibootMagic, in.MultibootInfo, in.MultibootMmap)
	if err != defs.Ok {
		return nil, err
	}

	gdt := boot.GDTEntries(in.TSSBase, in.TSSSize)
	arch.LoadGDT(boot.EncodeGDT(gdt))

	k := mem.NewKmem(arch, 0)
	h := mem.NewHmem(arch, int(ramBytes/mem.PageSize))

	idt := boot.IDTEntries(in.IDTHandlers)
	arch.LoadIDT(boot.EncodeIDT(idt))

	boot.InitPIC(arch)
	boot.InitPIT(arch, 1000)

	tfs := tarfs.New(in.Initrd)
	rootFs, err := vfs.NewFileSystem(tfs)
	if err != defs.Ok {
		con.Panicf(arch, "failed to mount initrd: %v", err)
	}

	rq := sched.NewRunqueue(arch)

	v := vfs.NewVFS(rq.Preemptcnt())
	if err := v.Mount("/", rootFs); err != defs.Ok {
		con.Panicf(arch, "failed to register root filesystem: %v", err)
	}

	kern := &Kernel{Arch: arch, Console: con, Kmem: k, Hmem: h, Runq: rq, VFS: v, RootFs: rootFs}
	if err := kern.spawnInit(); err != defs.Ok {
		return nil, err
	}
	return kern, defs.Ok
}

// spawnInit loads /init from the root filesystem and spawns a task whose
// synthetic frame enters it. A missing or malformed /init is surfaced to
// Boot's caller as an error rather than panicking here, so the decision
// of whether that's fatal stays with whoever constructed BootInputs.
func (k *Kernel) spawnInit() defs.Err_t {
	inode, err := k.VFS.Traverse("/init")
	if err != defs.Ok {
		return err
	}
	fd := vfs.Open(inode)
	vfs.ReleaseInode(inode) // vfs.Open already took its own reference

	pd, _ := mem.NewPageDirectory(k.Kmem)
	entry, err := elfload.Load(k.Kmem, pd, elfload.FileReaderAt(fd))
	fd.Release()
	if err != defs.Ok {
		return err
	}

	k.Runq.SpawnTask(func() {
		// The real entry trampoline drops to ring 3 at entry using pd as
		// the task's address space; both are out of this package's
		// reach without real hardware, so the closure only records them.
		_ = entry
		_ = pd
	})
	return defs.Ok
}

// Start hands control to the scheduler. It never returns: the timer
// interrupt drives every future context switch, and the idle task keeps
// the processor busy whenever nothing else is runnable.
func (k *Kernel) Start() {
	k.Arch.EnableInts()
	for {
		k.Arch.WaitForInterrupt()
	}
}
