// Package observe provides the publish/subscribe primitive shared by every
// stateful component of a workspace.
package observe

import "sync"

// Hub fans values out to subscribers. Callbacks run on the publisher's goroutine,
// in subscription order, outside the hub's lock.
type Hub[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
	ids  []int
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(T))
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	h.ids = append(h.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			for i, v := range h.ids {
				if v == id {
					h.ids = append(h.ids[:i:i], h.ids[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers v to every current subscriber.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.ids))
	for _, id := range h.ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ids)
}
