// Package workerpool implements the dispatch layer between the priority
// queue and downstream consumers (§4.3). Workers pull batches off the
// queue, dispatch by event kind, and re-queue HighLow/Trend/Surge events
// onto a bounded display channel for the transport layer. Shutdown is
// cooperative: a worker exits only after receiving its own Control(shutdown)
// token off the queue, never via ambient cancellation (§9).
package workerpool

import (
	"log/slog"
	"sync"
	"time"

	"tickstock-core/internal/queue"
	"tickstock-core/internal/tickerstate"
	"tickstock-core/pkg/events"
)

// sourceQueue is the subset of internal/queue.Queue the pool consumes.
type sourceQueue interface {
	PollBatch(max int, timeout time.Duration, kinds []events.Kind) []events.Event
	Offer(e events.Event) (bool, queue.Reason)
}

// TickProcessor synthesizes further events from a continuous per-symbol
// feed item (an Aggregate) — the §4.3 "tick" dispatch row, realized here
// as aggregate-driven detection (this architecture routes raw ticks
// through internal/detect ahead of the queue; aggregates are the
// continuous signal that still needs post-dispatch synthesis).
type TickProcessor interface {
	ProcessAggregate(e events.Event) ([]events.Event, error)
}

// DisplayItem is what the pool pushes onto the display channel: the
// dispatched event plus, for HighLow events, the ticker's current per-kind
// count from tickerstate. The count is what the transport layer's
// per-subscriber filtering needs to evaluate §4.4's highlow.min_count
// threshold against a live event, the way internal/filter.Bundle carries
// it via HighLowItem.Count for periodic snapshot delivery.
type DisplayItem struct {
	Event        events.Event
	HighLowCount int
}

// Observer taps the dispatched event stream alongside the display
// channel (§1: "pressure tracker consumes the same event stream in
// parallel"). Unlike TickProcessor it never affects dispatch — its
// Observe call is fire-and-forget.
type Observer interface {
	Observe(e events.Event)
}

// backoffLadder is consulted by consecutive-empty-poll count, capped at the
// last rung (§4.3 "backoff ladder").
var backoffLadder = []time.Duration{10 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond, 500 * time.Millisecond}

// Config controls pool sizing and per-worker poll behavior (§6).
type Config struct {
	MinWorkers      int
	MaxWorkers      int
	EventBatchSize  int           // worker_event_batch_size
	PollTimeout     time.Duration // worker_collection_timeout_seconds
	DisplayCapacity int           // display channel bound
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		MinWorkers:      2,
		MaxWorkers:      32,
		EventBatchSize:  500,
		PollTimeout:     500 * time.Millisecond,
		DisplayCapacity: 10000,
	}
}

// worker tracks one dispatch goroutine's lifecycle.
type worker struct {
	id   int
	done chan struct{}
}

// Pool owns the dispatch workers, the display channel, and the dispatch
// counters surfaced by Health.
type Pool struct {
	cfg       Config
	queue     sourceQueue
	processor TickProcessor
	observer  Observer
	store     *tickerstate.Store
	logger    *slog.Logger

	displayCh    chan DisplayItem
	displayDrops int64

	mu             sync.Mutex
	workers        map[int]*worker
	nextID         int
	dispatchCounts map[events.Kind]int64
	dmu            sync.Mutex

	changedMu sync.Mutex
	changed   map[string]struct{}
}

// New creates a Pool. processor may be nil, meaning aggregate events are
// dispatched but no further synthesis happens.
func New(cfg Config, q sourceQueue, processor TickProcessor, logger *slog.Logger) *Pool {
	return &Pool{
		cfg:            cfg,
		queue:          q,
		processor:      processor,
		logger:         logger.With("component", "workerpool"),
		displayCh:      make(chan DisplayItem, cfg.DisplayCapacity),
		workers:        make(map[int]*worker),
		dispatchCounts: make(map[events.Kind]int64),
		changed:        make(map[string]struct{}),
	}
}

// Display returns the channel the transport layer reads from.
func (p *Pool) Display() <-chan DisplayItem {
	return p.displayCh
}

// SetObserver attaches an Observer that sees every dispatched event in
// parallel with normal dispatch (e.g. internal/pressure.Tracker). Not
// safe to call concurrently with Start/dispatch.
func (p *Pool) SetObserver(obs Observer) {
	p.observer = obs
}

// SetStore attaches the tickerstate.Store shared with internal/detect so
// dispatch can read a HighLow's current per-kind count and track which
// tickers changed (§4.3's HighLow dispatch step). Not safe to call
// concurrently with Start/dispatch.
func (p *Pool) SetStore(store *tickerstate.Store) {
	p.store = store
}

// Start spawns n workers, clamped to [MinWorkers, MaxWorkers].
func (p *Pool) Start(n int) {
	n = clamp(n, p.cfg.MinWorkers, p.cfg.MaxWorkers)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		p.spawnLocked()
	}
}

// spawnLocked must be called with p.mu held.
func (p *Pool) spawnLocked() {
	w := &worker{id: p.nextID, done: make(chan struct{})}
	p.nextID++
	p.workers[w.id] = w
	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.workers, w.id)
			p.mu.Unlock()
			close(w.done)
		}()
		p.run(w)
	}()
}

// AliveCount returns the number of workers that haven't exited.
func (p *Pool) AliveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Resize adjusts worker count to target, clamped to [MinWorkers,
// MaxWorkers]. Scaling up spawns new workers; scaling down offers one
// Control(shutdown) token per worker to remove, letting each exit on its
// own turn rather than being killed mid-dispatch.
func (p *Pool) Resize(target int) {
	target = clamp(target, p.cfg.MinWorkers, p.cfg.MaxWorkers)
	current := p.AliveCount()
	if target > current {
		p.mu.Lock()
		for i := 0; i < target-current; i++ {
			p.spawnLocked()
		}
		p.mu.Unlock()
		return
	}
	for i := 0; i < current-target; i++ {
		p.offerShutdownToken()
	}
}

func (p *Pool) offerShutdownToken() {
	e, err := events.NewControl(events.CommandShutdown, float64(time.Now().UnixNano())/1e9)
	if err != nil {
		p.logger.Error("failed to build shutdown control event", "error", err)
		return
	}
	if ok, reason := p.queue.Offer(e); !ok {
		p.logger.Warn("shutdown control event rejected", "reason", reason)
	}
}

// Stop offers one Control(shutdown) token per currently alive worker and
// waits up to 2 seconds total (not per worker) for all of them to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	live := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		live = append(live, w)
	}
	p.mu.Unlock()

	for range live {
		p.offerShutdownToken()
	}

	var wg sync.WaitGroup
	for _, w := range live {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			<-w.done
			// Already removed itself from p.workers in spawnLocked's defer.
		}(w)
	}
	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-time.After(2 * time.Second):
		// Any worker still running stays in p.workers so AliveCount/Health
		// keep counting it until it actually exits and self-removes.
		p.logger.Warn("one or more workers did not exit within shutdown timeout")
	}
}

// run is the per-worker poll/dispatch/backoff loop (§4.3).
func (p *Pool) run(w *worker) {
	consecutiveEmpty := 0
	for {
		batch := p.queue.PollBatch(p.cfg.EventBatchSize, p.cfg.PollTimeout, nil)
		if len(batch) == 0 {
			idx := min(consecutiveEmpty, len(backoffLadder)-1)
			time.Sleep(backoffLadder[idx])
			consecutiveEmpty++
			continue
		}
		consecutiveEmpty = 0
		for i, e := range batch {
			if exit := p.dispatch(e); exit {
				p.requeueRemaining(batch[i+1:])
				return
			}
		}
	}
}

// requeueRemaining re-offers events this worker popped off the queue but
// won't process because it's exiting on a shutdown token found earlier in
// the same batch. Shutdown tokens aren't addressed to a specific worker —
// any worker's PollBatch can pop several at once — so without this, a
// token meant for another worker (or any other event) trailing the one
// that triggered this exit would be silently dropped, leaving Stop/Resize
// waiting on a worker that never receives its token.
func (p *Pool) requeueRemaining(rest []events.Event) {
	for _, e := range rest {
		if ok, reason := p.queue.Offer(e); !ok {
			p.logger.Warn("failed to re-offer event after worker shutdown", "kind", e.Kind, "reason", reason)
		}
	}
}

// dispatch applies §4.3's per-kind behavior and returns true if this
// worker should exit (a shutdown token addressed to it).
func (p *Pool) dispatch(e events.Event) bool {
	p.recordDispatch(e.Kind)
	if p.observer != nil {
		p.observer.Observe(e)
	}

	switch e.Kind {
	case events.KindControl:
		return e.Control != nil && e.Control.Command == events.CommandShutdown
	case events.KindHighLow:
		p.pushDisplay(e, p.markTickerChanged(e.Ticker))
	case events.KindTrend, events.KindSurge:
		p.pushDisplay(e, 0)
	case events.KindAggregate:
		p.processAggregate(e)
	case events.KindFMV:
		// value signal only, no further synthesis or display re-queue
	}
	return false
}

// markTickerChanged records that ticker has a new HighLow pending
// downstream consumption (§4.3 "mark ticker as changed") and returns its
// current per-kind HighLow count from tickerstate. The count/extreme
// update itself already happened at detection time —
// internal/detect.HighLowDetector.Detect mutates the same shared State
// before the event ever reaches the queue — so this only tracks which
// tickers changed and surfaces the resulting count for live filtering.
func (p *Pool) markTickerChanged(ticker string) int {
	p.changedMu.Lock()
	p.changed[ticker] = struct{}{}
	p.changedMu.Unlock()

	if p.store == nil {
		return 0
	}
	count, _ := p.store.HighLowCount(ticker)
	return count
}

// DrainChangedTickers returns every ticker with a HighLow dispatched since
// the last drain and resets the set, for a consumer (e.g. the priority
// cache's refresh cycle) that wants to react to fresh activity instead of
// only polling on a fixed interval.
func (p *Pool) DrainChangedTickers() []string {
	p.changedMu.Lock()
	defer p.changedMu.Unlock()
	out := make([]string, 0, len(p.changed))
	for t := range p.changed {
		out = append(out, t)
	}
	p.changed = make(map[string]struct{})
	return out
}

func (p *Pool) processAggregate(e events.Event) {
	if p.processor == nil {
		return
	}
	synthesized, err := p.processor.ProcessAggregate(e)
	if err != nil {
		p.logger.Error("tick processor failed", "ticker", e.Ticker, "error", err)
		return
	}
	for _, se := range synthesized {
		if ok, reason := p.queue.Offer(se); !ok {
			p.logger.Debug("re-offer of synthesized event rejected", "ticker", se.Ticker, "kind", se.Kind, "reason", reason)
		}
	}
}

// pushDisplay is a non-blocking send; a full display channel drops the
// event and increments the drop counter rather than stalling a worker.
func (p *Pool) pushDisplay(e events.Event, highLowCount int) {
	select {
	case p.displayCh <- DisplayItem{Event: e, HighLowCount: highLowCount}:
	default:
		p.mu.Lock()
		p.displayDrops++
		p.mu.Unlock()
	}
}

func (p *Pool) recordDispatch(k events.Kind) {
	p.dmu.Lock()
	p.dispatchCounts[k]++
	p.dmu.Unlock()
}

// Health reports alive worker count, per-kind dispatch counters, and
// display-channel drop count (§4.3 "health").
type Health struct {
	AliveWorkers   int
	DispatchByKind map[events.Kind]int64
	DisplayDrops   int64
	ChangedTickers int
}

func (p *Pool) Health() Health {
	p.dmu.Lock()
	byKind := make(map[events.Kind]int64, len(p.dispatchCounts))
	for k, v := range p.dispatchCounts {
		byKind[k] = v
	}
	p.dmu.Unlock()

	p.mu.Lock()
	alive := len(p.workers)
	drops := p.displayDrops
	p.mu.Unlock()

	p.changedMu.Lock()
	changed := len(p.changed)
	p.changedMu.Unlock()

	return Health{AliveWorkers: alive, DispatchByKind: byKind, DisplayDrops: drops, ChangedTickers: changed}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
