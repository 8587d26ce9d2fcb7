// Package structs holds the intrusive data structures the scheduler and
// VFS are built on: a circular doubly-linked list, a fixed-bucket hash
// table with inline-first-entry buckets, a red-black tree, and a bitset.
// None of these know anything about tasks or inodes; the owning package
// embeds the node types and supplies comparison/hash functions.
package structs

// List_t is a node in a circular intrusive doubly-linked list. A task
// embeds two of these (one for the runqueue, one for whatever blocking
// list it may be on) as named fields rather than sharing one node type,
// since the two roles are distinct (see the scheduler design notes).
//
// Unlike a classic C intrusive list, List_t carries a pointer back to its
// owner so callers don't need unsafe container_of arithmetic to recover
// the owning struct from a node reached by list traversal.
type List_t[T any] struct {
	prev, next *List_t[T]
	Owner      *T
}

/// Init makes l a single-element circular list owned by owner. A node must
/// be Init'd before it is used; calling Init a second time is only valid
/// while the node is not linked into any other list.
func (l *List_t[T]) Init(owner *T) {
	l.Owner = owner
	l.prev = l
	l.next = l
}

/// Linked reports whether l is currently spliced into a list with more
/// than one element. A node fresh from Init, or just removed, is linked
/// only to itself and reports false.
func (l *List_t[T]) Linked() bool {
	return l.next != l
}

/// Next returns the next node in the circular list, which is l itself if
/// l is the only element.
func (l *List_t[T]) Next() *List_t[T] {
	return l.next
}

/// Prev returns the previous node in the circular list.
func (l *List_t[T]) Prev() *List_t[T] {
	return l.prev
}

/// InsertAfter splices n into the list immediately after l. n must not
/// already be linked into any list besides itself.
func (l *List_t[T]) InsertAfter(n *List_t[T]) {
	if n.next != n || n.prev != n {
		panic("structs: insert of already-linked node")
	}
	n.prev = l
	n.next = l.next
	l.next.prev = n
	l.next = n
}

/// Remove splices l out of whatever list it is in and re-initializes it
/// as a singleton list owned by its previous owner.
func (l *List_t[T]) Remove() {
	l.prev.next = l.next
	l.next.prev = l.prev
	l.prev = l
	l.next = l
}

/// Each calls f on every node in the circular list starting at l and
/// continuing until it returns to l or f returns false. It tolerates f
/// removing the current node from the list before advancing.
func (l *List_t[T]) Each(f func(*List_t[T]) bool) {
	cur := l
	for {
		nxt := cur.next
		if !f(cur) {
			return
		}
		if nxt == l {
			return
		}
		cur = nxt
	}
}
