// Package queue holds the pending half of a batch: URLs that have been
// submitted but not yet claimed by a download worker.
package queue

import "sync"

// Item is one pending URL with its 1-based position in the batch.
type Item struct {
	Index int
	URL   string
}

// FIFO is a mutex-guarded first-in first-out queue. Workers claim items with
// TryPop and exit when the queue drains, so there is no blocking pop.
type FIFO struct {
	mu    sync.Mutex
	items []Item
}

func New() *FIFO {
	return &FIFO{items: make([]Item, 0)}
}

// NewFromURLs builds a queue preserving the submission order, assigning
// 1-based batch indexes.
func NewFromURLs(urls []string) *FIFO {
	q := &FIFO{items: make([]Item, 0, len(urls))}
	for i, url := range urls {
		q.items = append(q.items, Item{Index: i + 1, URL: url})
	}
	return q
}

// Push appends an item to the tail.
func (q *FIFO) Push(it Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, it)
}

// TryPop removes and returns the head item, or ok=false when empty.
func (q *FIFO) TryPop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// Len returns the number of pending items.
func (q *FIFO) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending items in order.
func (q *FIFO) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Clear drops everything still pending and returns how many items were
// dropped. Used when a batch is cancelled.
func (q *FIFO) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = q.items[:0]
	return n
}
