package sched

import (
	"github.com/farberbrodsky/tinylittleos/src/defs"
	"github.com/farberbrodsky/tinylittleos/src/lock"
	"github.com/farberbrodsky/tinylittleos/src/structs"
)

// Arch is the hand-crafted context-switch contract spec.md requires be
// kept separate from the pure scheduling logic: building the synthetic
// interrupt frame for a freshly created task, and switching the live
// machine context from one task to another. A host test's fake just
// records which task it was told to run.
type Arch interface {
	BuildFrame(t *Task_t, entry func())
	SwitchTo(prev, next *Task_t)
}

// Runqueue_t is a circular intrusive list of schedulable tasks plus an
// always-present idle task, guaranteeing the list is never empty. Access
// to current/runq membership is protected by the preemption lock, per
// spec.md's shared-resource policy.
type Runqueue_t struct {
	arch    Arch
	pcnt    lock.Preemptcnt_t
	current *structs.List_t[Task_t]
	idle    *Task_t
	nextPid defs.Tid_t
	count   int
}

// NewRunqueue creates a runqueue containing only the idle task.
func NewRunqueue(arch Arch) *Runqueue_t {
	idle := newTask(0)
	rq := &Runqueue_t{arch: arch, idle: idle, nextPid: 1, count: 1}
	rq.current = &idle.runq
	return rq
}

// CurrentTask returns the task the runqueue currently considers running.
func (rq *Runqueue_t) CurrentTask() *Task_t {
	return rq.current.Owner
}

// Preemptcnt exposes the runqueue's preemption counter so callers can
// raise/lower it with lock.Preemptlock_t around critical sections.
func (rq *Runqueue_t) Preemptcnt() *lock.Preemptcnt_t {
	return &rq.pcnt
}

// NewTask allocates a pid (monotonic, bounded by defs.MaxPid) and links a
// fresh task into the runqueue immediately after the current task.
func (rq *Runqueue_t) NewTask() *Task_t {
	if rq.nextPid >= defs.MaxPid {
		panic("sched: pid space exhausted")
	}
	pid := rq.nextPid
	rq.nextPid++
	t := newTask(pid)
	rq.current.InsertAfter(&t.runq)
	rq.count++
	return t
}

// SpawnTask allocates a task exactly as NewTask does, then asks the
// hand-crafted-context-switch seam to build the synthetic interrupt frame
// that will make it start executing entry the first time it's switched
// to. This is the only place in the package that calls Arch.BuildFrame:
// every other Arch method (SwitchTo) is invoked from inside a tick/yield,
// never at task-creation time.
func (rq *Runqueue_t) SpawnTask(entry func()) *Task_t {
	t := rq.NewTask()
	rq.arch.BuildFrame(t, entry)
	return t
}

// RemoveTask unlinks t from the runqueue. It panics if t is the idle task
// or the currently running task, so a task cannot remove itself while it
// is current.
func (rq *Runqueue_t) RemoveTask(t *Task_t) {
	if t == rq.idle {
		panic("sched: idle task cannot be removed")
	}
	if rq.current == &t.runq {
		panic("sched: cannot remove the currently running task")
	}
	t.runq.Remove()
	rq.count--
}

// PickNext advances current, skipping any task whose blocking subsystem
// reports it blocked, and returns the next runnable task. The idle task is
// never blocked, so termination is guaranteed within one full traversal.
func (rq *Runqueue_t) PickNext() *Task_t {
	cur := rq.current
	for i := 0; i <= rq.count; i++ {
		cur = cur.Next()
		if !cur.Owner.blocked {
			rq.current = cur
			return cur.Owner
		}
	}
	panic("sched: no runnable task found despite idle task invariant")
}

// TimesliceTicked is the timer ISR's entry point. It performs a context
// switch iff the preemption counter is zero; nested-interrupt suppression
// is the caller's responsibility (the real ISR checks its own nesting
// counter before calling this at all).
func (rq *Runqueue_t) TimesliceTicked() {
	if rq.pcnt.Load() != 0 {
		return
	}
	prev := rq.CurrentTask()
	next := rq.PickNext()
	if next != prev {
		rq.arch.SwitchTo(prev, next)
	}
}

// Yield voluntarily gives up the CPU. Forbidden with preemption held.
func (rq *Runqueue_t) Yield() {
	if rq.pcnt.Load() != 0 {
		panic("sched: yield with preemption held")
	}
	prev := rq.CurrentTask()
	next := rq.PickNext()
	if next != prev {
		rq.arch.SwitchTo(prev, next)
	}
}
