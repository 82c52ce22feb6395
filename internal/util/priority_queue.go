package util

import (
	"container/heap"
	"errors"
	"sync"
)

var (
	ErrPriorityQueueClosed = errors.New("priority queue closed")
	ErrPriorityQueueEmpty  = errors.New("priority queue empty")
)

// PriorityItem is a queued value. Higher Priority pops first; equal priorities
// pop in insertion order.
type PriorityItem[T any] struct {
	Value    T
	Priority int
	seq      uint64
	index    int
}

type itemHeap[T any] []*PriorityItem[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[T]) Push(x any) {
	item := x.(*PriorityItem[T])
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// PriorityQueue is a mutex-guarded heap. Ready receives a signal whenever an
// item is pushed, so consumers can wait without polling.
type PriorityQueue[T any] struct {
	mu     sync.Mutex
	items  itemHeap[T]
	next   uint64
	closed bool
	ready  chan struct{}
}

func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{ready: make(chan struct{}, 1)}
}

// PushItem queues value with priority.
func (pq *PriorityQueue[T]) PushItem(value T, priority int) error {
	pq.mu.Lock()
	if pq.closed {
		pq.mu.Unlock()
		return ErrPriorityQueueClosed
	}
	heap.Push(&pq.items, &PriorityItem[T]{Value: value, Priority: priority, seq: pq.next})
	pq.next++
	pq.mu.Unlock()

	select {
	case pq.ready <- struct{}{}:
	default:
	}
	return nil
}

// TryPop removes the highest priority item without blocking. Items still
// queued at Close remain poppable so they can be drained.
func (pq *PriorityQueue[T]) TryPop() (T, error) {
	var zero T
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if len(pq.items) == 0 {
		if pq.closed {
			return zero, ErrPriorityQueueClosed
		}
		return zero, ErrPriorityQueueEmpty
	}
	return heap.Pop(&pq.items).(*PriorityItem[T]).Value, nil
}

// Ready signals after a push. A receive does not guarantee an item remains.
func (pq *PriorityQueue[T]) Ready() <-chan struct{} { return pq.ready }

// Close rejects further pushes.
func (pq *PriorityQueue[T]) Close() {
	pq.mu.Lock()
	pq.closed = true
	pq.mu.Unlock()
}

func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}

func (pq *PriorityQueue[T]) IsEmpty() bool { return pq.Len() == 0 }
