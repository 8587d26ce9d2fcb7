// Package sched is the round-robin preemptive scheduler and its blocking
// mutex. The synthetic interrupt frame and hand-crafted context switch
// spec.md requires are an x86-specific contract kept behind the Arch
// interface; everything else here is pure, hardware-independent Go,
// exactly the split spec.md's design notes call for.
package sched

import (
	"sync/atomic"

	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/mem"
	"github.com/farberbrodsky/tinylittleos/src/structs"
)

// Accnt_t is per-task user/system time accounting, kept even though no
// scheduling decision in this kernel depends on it, matching biscuit's own
// practice of tracking it unconditionally.
type Accnt_t struct {
	Userns int64
	Sysns  int64
}

func (a *Accnt_t) Utadd(deltaNs int64)  { atomic.AddInt64(&a.Userns, deltaNs) }
func (a *Accnt_t) Systadd(deltaNs int64) { atomic.AddInt64(&a.Sysns, deltaNs) }

// VMArea_t is one mapped region of a task's address space, indexed by
// starting address in Task_t.vmas.
type VMArea_t struct {
	Start, End uintptr
	Writable   bool
}

// TaskInternal_t is the state that in the real kernel lives at the top of
// the task's 8 KiB kernel stack, recovered by masking the current stack
// pointer; here it's just a struct field since there is no real stack.
type TaskInternal_t struct {
	Hmem mem.HmemCursor_t
}

// Task_t is a refcounted schedulable unit: a pid, a virtual-memory
// descriptor (vm_areas keyed by start address), a scheduling-subsystem
// link (the runqueue node) and a distinct blocking-subsystem link (the
// node used for a mutex's wait list), per spec.md's explicit "don't merge
// these roles" design note.
type Task_t struct {
	Pid      defs.Tid_t
	Internal TaskInternal_t
	Accnt    Accnt_t

	vmas *structs.RBTree_t[uintptr, VMArea_t]

	runq     structs.List_t[Task_t]
	blocking structs.List_t[Task_t]
	blocked  bool

	refcnt int32
}

func newTask(pid defs.Tid_t) *Task_t {
	t := &Task_t{
		Pid:    pid,
		vmas:   structs.MkRBTree[uintptr, VMArea_t](func(a, b uintptr) bool { return a < b }),
		refcnt: 1,
	}
	t.runq.Init(t)
	t.blocking.Init(t)
	return t
}

// Ref increments the task's reference count.
func (t *Task_t) Ref() {
	atomic.AddInt32(&t.refcnt, 1)
}

// Unref decrements the task's reference count and reports whether it
// reached zero.
func (t *Task_t) Unref() bool {
	c := atomic.AddInt32(&t.refcnt, -1)
	if c < 0 {
		panic("sched: task refcount went negative")
	}
	return c == 0
}

// AddVMArea inserts a vm_area keyed by its start address.
func (t *Task_t) AddVMArea(v VMArea_t) {
	t.vmas.Insert(v.Start, v)
}

// VMArea looks up the vm_area starting at addr.
func (t *Task_t) VMArea(addr uintptr) (VMArea_t, bool) {
	return t.vmas.Get(addr)
}
