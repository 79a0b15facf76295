// Package queue implements the bounded priority queue and admission control
// policy that sits between detectors and the worker pool (§4.2). Priority
// determination and admission are evaluated at offer time; ordering is
// strictly (priority asc, enqueued_at asc). Insertion itself is guarded by
// a circuit breaker so that repeated internal failures fail fast instead of
// blocking producers (§9).
package queue

import (
	"container/heap"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"tickstock-core/internal/cache"
	"tickstock-core/pkg/events"
)

// priorityCache is the subset of internal/cache.Cache the queue consults.
// Defined locally so the queue can be tested without a real cache wired in
// (a nil priorityCache means the cache is disabled, per §9's "cache
// disabled otherwise" scenario).
type priorityCache interface {
	ClassOf(ticker string) cache.Class
	ShouldProcess(ticker string, throttleLevel int) bool
	IsMarketOpenPromotion(ticker string, at time.Time) bool
}

// Config controls queue capacity and admission thresholds (§4.2, §6).
type Config struct {
	Capacity          int           // max_queue_size, default 100000
	OverflowThreshold float64       // queue_overflow_drop_threshold (τ), default 0.98
	MaxEventAge       time.Duration // max_event_age_ms, default 120s
	Breaker           BreakerConfig
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:          100000,
		OverflowThreshold: 0.98,
		MaxEventAge:       120 * time.Second,
		Breaker:           DefaultBreakerConfig(),
	}
}

// Queue is the bounded priority queue. Construct with New.
type Queue struct {
	cfg    Config
	cache  priorityCache
	logger *slog.Logger

	mu            sync.Mutex
	items         minHeap
	ready         chan struct{}
	highWaterMark int
	seq           uint64

	shutdown atomic.Bool

	breaker *gobreaker.CircuitBreaker
	diag    *Diagnostics
}

// exempt kinds are never dropped for capacity-based reasons (§4.2 step 3,
// §8 invariant 2) and never throttled (§4.2 step 4). S3 additionally
// requires they survive the overflow checks in step 5.
func exemptFromCapacity(k events.Kind) bool {
	return k == events.KindControl || k == events.KindSurge
}

// New creates a Queue. priorityCache may be nil, meaning the priority cache
// is not wired up — every cache consultation becomes a pass-through.
func New(cfg Config, c priorityCache, logger *slog.Logger) *Queue {
	return &Queue{
		cfg:     cfg,
		cache:   c,
		logger:  logger.With("component", "queue"),
		ready:   make(chan struct{}),
		breaker: newBreaker(cfg.Breaker),
		diag:    NewDiagnostics(),
	}
}

// basePriority maps an event kind to its base priority (§4.2 step 1).
// aggregate carries the continuous per-minute feed's priority tier (the
// spec's "tick" row); fair_market_value is treated as a value signal at the
// same tier as high/low.
func basePriority(k events.Kind) int {
	switch k {
	case events.KindControl, events.KindAggregate:
		return 1
	case events.KindHighLow, events.KindFMV:
		return 2
	case events.KindTrend, events.KindSurge:
		return 3
	default:
		return 4
	}
}

func throttleLevelFor(utilization float64) int {
	switch {
	case utilization > 0.98:
		return 3
	case utilization > 0.95:
		return 2
	case utilization > 0.90:
		return 1
	default:
		return 0
	}
}

// computePriority applies §4.2 step 2-3: market-open promotion and priority
// cache consultation, final priority = min(base, promotions).
func (q *Queue) computePriority(e events.Event, now time.Time) int {
	priority := basePriority(e.Kind)
	if q.cache == nil {
		return priority
	}
	if q.cache.IsMarketOpenPromotion(e.Ticker, now) {
		priority = min(priority, 1)
	}
	switch q.cache.ClassOf(e.Ticker) {
	case cache.ClassTop:
		priority = min(priority, 1)
	case cache.ClassSecondary:
		priority = min(priority, min(2, basePriority(e.Kind)))
	}
	return priority
}

// Offer attempts to admit an event per the §4.2 admission policy. Returns
// whether it was accepted and, if not, the rejection reason.
func (q *Queue) Offer(e events.Event) (bool, Reason) {
	if q.shutdown.Load() {
		q.diag.recordDrop(ReasonInvalidType, e.Kind)
		return false, ReasonInvalidType
	}

	now := time.Now()
	if now.Sub(e.At()) > q.cfg.MaxEventAge {
		q.diag.recordDrop(ReasonAgeExpired, e.Kind)
		return false, ReasonAgeExpired
	}

	exempt := exemptFromCapacity(e.Kind)
	priority := q.computePriority(e, now)

	q.mu.Lock()
	size := len(q.items)

	if size >= q.cfg.Capacity && !exempt {
		q.mu.Unlock()
		q.diag.recordDrop(ReasonQueueFull, e.Kind)
		return false, ReasonQueueFull
	}

	utilization := float64(size) / float64(q.cfg.Capacity)
	throttleLevel := throttleLevelFor(utilization)
	if throttleLevel > 0 && !exempt && q.cache != nil && !q.cache.ShouldProcess(e.Ticker, throttleLevel) {
		q.mu.Unlock()
		q.diag.recordDrop(ReasonThrottled, e.Kind)
		return false, ReasonThrottled
	}

	if !exempt {
		// >= so a queue filled to exactly τ of capacity already rejects the
		// next low-priority offer.
		if utilization >= q.cfg.OverflowThreshold && priority > 2 {
			q.mu.Unlock()
			q.diag.recordDrop(ReasonLowPriorityOverflow, e.Kind)
			return false, ReasonLowPriorityOverflow
		}
		if utilization > 0.98 && priority > 1 {
			q.mu.Unlock()
			q.diag.recordDrop(ReasonExtremeOverflow, e.Kind)
			return false, ReasonExtremeOverflow
		}
	}
	q.mu.Unlock()

	_, err := q.breaker.Execute(func() (any, error) {
		return nil, q.insert(e, priority, now)
	})
	if err != nil {
		q.diag.recordDrop(ReasonCircuitBreaker, e.Kind)
		return false, ReasonCircuitBreaker
	}
	return true, ""
}

// insert pushes the envelope and wakes any blocked pollers. Errors from
// here (never under normal operation) are what the circuit breaker counts.
func (q *Queue) insert(e events.Event, priority int, enqueuedAt time.Time) error {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, &envelope{event: e, priority: priority, enqueuedAt: enqueuedAt, seq: q.seq})
	if len(q.items) > q.highWaterMark {
		q.highWaterMark = len(q.items)
	}
	ready := q.ready
	q.ready = make(chan struct{})
	q.mu.Unlock()
	close(ready)
	return nil
}

// popMatching pops the next non-expired envelope whose kind is in kindSet
// (nil kindSet matches everything). If the head of the queue doesn't match
// kindSet, it returns ok=false without consuming anything, preserving
// strict priority order rather than reaching past the head. On a failed
// pop it also returns the current q.ready channel, captured under the
// same lock as the pop attempt itself — a caller that falls through to
// waiting on it can't miss a wakeup from an insert landing in the gap
// between a failed pop and reading q.ready separately (insert replaces
// q.ready with a fresh, unclosed channel before closing the old one;
// reading it outside this lock could observe the new one and never see
// the close meant for this failed attempt).
func (q *Queue) popMatching(kindSet map[events.Kind]bool) (envelope, bool, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) > 0 {
		head := q.items[0]
		age := time.Since(head.event.At())
		if age > q.cfg.MaxEventAge {
			heap.Pop(&q.items)
			q.diag.recordDropOnPoll(head.event.Kind)
			continue
		}
		if kindSet != nil && !kindSet[head.event.Kind] {
			return envelope{}, false, q.ready
		}
		heap.Pop(&q.items)
		q.diag.recordPolledAge(age)
		return *head, true, nil
	}
	return envelope{}, false, q.ready
}

// Poll waits up to timeout for the next event, or returns nil on timeout or
// if every candidate event was expired.
func (q *Queue) Poll(timeout time.Duration) *events.Event {
	deadline := time.Now().Add(timeout)
	for {
		env, ok, ready := q.popMatching(nil)
		if ok {
			e := env.event
			return &e
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		select {
		case <-ready:
		case <-time.After(remaining):
			return nil
		}
	}
}

// PollBatch collects up to max events within timeout, optionally restricted
// to the given kinds (§4.2).
func (q *Queue) PollBatch(max int, timeout time.Duration, kinds []events.Kind) []events.Event {
	var kindSet map[events.Kind]bool
	if len(kinds) > 0 {
		kindSet = make(map[events.Kind]bool, len(kinds))
		for _, k := range kinds {
			kindSet[k] = true
		}
	}

	deadline := time.Now().Add(timeout)
	batch := make([]events.Event, 0, max)
	for len(batch) < max {
		env, ok, ready := q.popMatching(kindSet)
		if ok {
			batch = append(batch, env.event)
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return batch
		}
		select {
		case <-ready:
		case <-time.After(remaining):
			return batch
		}
	}
	return batch
}

// Shutdown enqueues one Control(shutdown) envelope per worker and marks the
// queue closed to further offers (§4.2, §5).
func (q *Queue) Shutdown(workerCount int) {
	now := float64(time.Now().UnixNano()) / 1e9
	for i := 0; i < workerCount; i++ {
		e, err := events.NewControl(events.CommandShutdown, now)
		if err != nil {
			q.logger.Error("failed to build shutdown control event", "error", err)
			continue
		}
		if ok, reason := q.Offer(e); !ok {
			q.logger.Warn("shutdown control event rejected", "reason", reason)
		}
	}
	q.shutdown.Store(true)
}

// Size returns the current queue length.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HighWaterMark returns the largest size ever observed.
func (q *Queue) HighWaterMark() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.highWaterMark
}

// Capacity returns the configured max_queue_size, for utilization math
// outside the queue (the worker pool supervisor's resize heuristic).
func (q *Queue) Capacity() int {
	return q.cfg.Capacity
}

// Stats returns a diagnostics snapshot (§4.2 Diagnostics).
func (q *Queue) Stats() Stats {
	return q.diag.Snapshot()
}

// DropAnalysis returns human-actionable recommendations (§7).
func (q *Queue) DropAnalysis() []string {
	return q.diag.DropAnalysis()
}
