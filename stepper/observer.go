package stepper

import (
	"container/heap"

	"github.com/notargets/hiparstencil/cell"
	"github.com/notargets/hiparstencil/patch"
)

// observerEntry pairs an INNER_SET accepter with its last-known
// nextRequiredNanoStep, so the heap can reorder without calling back
// into the accepter just to compare.
type observerEntry[T cell.Cell[T]] struct {
	accepter patch.Accepter[T]
	next     uint64
}

// observerHeap is the min-priority queue keyed by nextRequiredNanoStep
// spec.md §9 calls for, so the Stepper finds the observers due at the
// current nano-step in O(log k) instead of scanning every registered
// observer every nano-step.
type observerHeap[T cell.Cell[T]] struct {
	entries []*observerEntry[T]
}

func newObserverHeap[T cell.Cell[T]]() *observerHeap[T] {
	h := &observerHeap[T]{}
	heap.Init(h)
	return h
}

func (h *observerHeap[T]) push(a patch.Accepter[T], next uint64) {
	heap.Push(h, &observerEntry[T]{accepter: a, next: next})
}

func (h *observerHeap[T]) pop() *observerEntry[T] {
	return heap.Pop(h).(*observerEntry[T])
}

func (h *observerHeap[T]) peekNext() uint64 {
	return h.entries[0].next
}

func (h *observerHeap[T]) Len() int { return len(h.entries) }

func (h *observerHeap[T]) Less(i, j int) bool { return h.entries[i].next < h.entries[j].next }

func (h *observerHeap[T]) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *observerHeap[T]) Push(x any) { h.entries = append(h.entries, x.(*observerEntry[T])) }

func (h *observerHeap[T]) Pop() any {
	old := h.entries
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	return item
}
