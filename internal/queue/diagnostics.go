package queue

import (
	"fmt"
	"sync"
	"time"

	"tickstock-core/pkg/events"
)

// ageHistogramCapacity is the ring-buffer size for polled event ages (§4.2
// Diagnostics, §7 "get_drop_analysis").
const ageHistogramCapacity = 1000

// Diagnostics accumulates running drop counters by reason, per-kind drop
// counters, and a ring buffer of polled event ages. All methods are
// safe for concurrent use.
type Diagnostics struct {
	mu sync.Mutex

	dropsByReason map[Reason]int
	dropsByKind   map[events.Kind]map[Reason]int

	ageHistogram [ageHistogramCapacity]time.Duration
	ageNext      int
	ageLen       int
}

// NewDiagnostics creates an empty Diagnostics.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{
		dropsByReason: make(map[Reason]int),
		dropsByKind:   make(map[events.Kind]map[Reason]int),
	}
}

func (d *Diagnostics) recordDrop(reason Reason, kind events.Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropsByReason[reason]++
	byKind, ok := d.dropsByKind[kind]
	if !ok {
		byKind = make(map[Reason]int)
		d.dropsByKind[kind] = byKind
	}
	byKind[reason]++
}

func (d *Diagnostics) recordDropOnPoll(kind events.Kind) {
	d.recordDrop(ReasonAgeExpiredOnPoll, kind)
}

func (d *Diagnostics) recordPolledAge(age time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ageHistogram[d.ageNext] = age
	d.ageNext = (d.ageNext + 1) % ageHistogramCapacity
	if d.ageLen < ageHistogramCapacity {
		d.ageLen++
	}
}

// Stats is a point-in-time snapshot of diagnostics counters.
type Stats struct {
	DropsByReason map[Reason]int
	DropsByKind   map[events.Kind]map[Reason]int
	RecentAges    []time.Duration
}

// Snapshot returns a copy of the current counters and age histogram.
func (d *Diagnostics) Snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	byReason := make(map[Reason]int, len(d.dropsByReason))
	for k, v := range d.dropsByReason {
		byReason[k] = v
	}

	byKind := make(map[events.Kind]map[Reason]int, len(d.dropsByKind))
	for k, reasons := range d.dropsByKind {
		copied := make(map[Reason]int, len(reasons))
		for r, v := range reasons {
			copied[r] = v
		}
		byKind[k] = copied
	}

	ages := make([]time.Duration, d.ageLen)
	start := (d.ageNext - d.ageLen + ageHistogramCapacity) % ageHistogramCapacity
	for i := 0; i < d.ageLen; i++ {
		ages[i] = d.ageHistogram[(start+i)%ageHistogramCapacity]
	}

	return Stats{DropsByReason: byReason, DropsByKind: byKind, RecentAges: ages}
}

// DropAnalysis returns human-actionable recommendations derived from the
// current drop counters (§7 "dropped events never silently disappear").
func (d *Diagnostics) DropAnalysis() []string {
	snap := d.Snapshot()

	var total int
	for _, v := range snap.DropsByReason {
		total += v
	}
	if total == 0 {
		return nil
	}

	var recs []string
	if v := snap.DropsByReason[ReasonQueueFull]; v > 0 && float64(v)/float64(total) > 0.05 {
		recs = append(recs, fmt.Sprintf("queue_full accounts for %d drops: consider raising max_queue_size", v))
	}
	if v := snap.DropsByReason[ReasonLowPriorityOverflow] + snap.DropsByReason[ReasonExtremeOverflow]; v > 0 && float64(v)/float64(total) > 0.05 {
		recs = append(recs, fmt.Sprintf("%d drops from overflow policy: consider raising capacity or increasing worker throughput", v))
	}
	if v := snap.DropsByReason[ReasonThrottled]; v > 0 && float64(v)/float64(total) > 0.05 {
		recs = append(recs, fmt.Sprintf("%d drops from throttling: consider increasing worker count or widening the priority cache", v))
	}
	if v := snap.DropsByReason[ReasonCircuitBreaker]; v > 0 {
		recs = append(recs, fmt.Sprintf("%d offers failed fast on an open circuit breaker: investigate recent insertion failures", v))
	}
	if v := snap.DropsByReason[ReasonAgeExpired] + snap.DropsByReason[ReasonAgeExpiredOnPoll]; v > 0 && float64(v)/float64(total) > 0.10 {
		recs = append(recs, fmt.Sprintf("%d events expired by age: consider raising max_event_age_ms or reducing feed latency", v))
	}
	return recs
}
