package sched

import (
	"github.com/farberbrodsky/tinylittleos/src/lock"
	"github.com/farberbrodsky/tinylittleos/src/structs"
)

// Mutex_t is a blocking mutex built directly on the runqueue's blocking
// subsystem: the wait list is a ring of the same Task_t.blocking nodes
// PickNext consults to skip blocked tasks, so unblocking a waiter and
// making it schedulable again is the same operation (unlink it).
type Mutex_t struct {
	rq    *Runqueue_t
	owner *Task_t
	wait  *structs.List_t[Task_t]
}

// NewMutex creates an unlocked mutex served by rq's runqueue.
func NewMutex(rq *Runqueue_t) *Mutex_t {
	return &Mutex_t{rq: rq}
}

// Lock is forbidden in interrupt context (there is none to forbid it from
// in this host model; the real boot/ISR code enforces it). If the mutex is
// free, t becomes the owner immediately. Otherwise t is spliced onto the
// wait list and yields; on resumption it observes itself as owner,
// established by whoever called Unlock.
func (m *Mutex_t) Lock(t *Task_t) {
	pl := lock.NewPreemptlock(&m.rq.pcnt)
	if m.owner == nil {
		m.owner = t
		pl.Release()
		return
	}
	t.blocked = true
	if m.wait == nil {
		m.wait = &t.blocking
	} else {
		m.wait.InsertAfter(&t.blocking)
	}
	pl.Release()
	m.rq.Yield()
}

// Unlock asserts t is the current owner. With an empty wait list, the
// mutex becomes free; otherwise the head waiter is popped, unblocked, and
// handed ownership directly, with no race since preemption is held
// throughout.
func (m *Mutex_t) Unlock(t *Task_t) {
	pl := lock.NewPreemptlock(&m.rq.pcnt)
	defer pl.Release()

	if m.owner != t {
		panic("sched: unlock by non-owner")
	}
	if m.wait == nil {
		m.owner = nil
		return
	}
	head := m.wait
	next := head.Next()
	if next == head {
		m.wait = nil
	} else {
		m.wait = next
	}
	head.Remove()
	winner := head.Owner
	winner.blocked = false
	m.owner = winner
}
