package queue

import (
	"time"

	"tickstock-core/pkg/events"
)

// envelope wraps an event with its offer-time priority and bookkeeping for
// strict (priority asc, enqueued_at asc) ordering (§4.2).
type envelope struct {
	event      events.Event
	priority   int
	enqueuedAt time.Time
	seq        uint64 // monotonic tiebreaker when enqueuedAt collides
	index      int    // heap bookkeeping
}

// minHeap orders envelopes by (priority asc, enqueuedAt asc, seq asc).
type minHeap []*envelope

func (h minHeap) Len() int { return len(h) }

func (h minHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if !a.enqueuedAt.Equal(b.enqueuedAt) {
		return a.enqueuedAt.Before(b.enqueuedAt)
	}
	return a.seq < b.seq
}

func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *minHeap) Push(x any) {
	env := x.(*envelope)
	env.index = len(*h)
	*h = append(*h, env)
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	env := old[n-1]
	old[n-1] = nil
	env.index = -1
	*h = old[:n-1]
	return env
}
