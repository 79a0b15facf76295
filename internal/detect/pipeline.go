package detect

import (
	"time"

	"tickstock-core/internal/tickerstate"
	"tickstock-core/pkg/events"
)

// Pipeline bridges internal/detect into internal/workerpool.TickProcessor
// (§4.3's "tick" dispatch row, realized here as aggregate-driven
// synthesis): each dispatched Aggregate is reduced to a single Tick at
// its closing price and run through all three detectors against a
// shared tickerstate.Store, the same Store internal/workerpool reads via
// Pool.SetStore for its own HighLow count/changed-ticker bookkeeping.
type Pipeline struct {
	store *tickerstate.Store
	hl    *HighLowDetector
	trend *TrendDetector
	surge *SurgeDetector
}

// NewPipeline creates a Pipeline backed by store.
func NewPipeline(store *tickerstate.Store) *Pipeline {
	return &Pipeline{
		store: store,
		hl:    NewHighLowDetector(),
		trend: NewTrendDetector(),
		surge: NewSurgeDetector(),
	}
}

// ProcessAggregate implements workerpool.TickProcessor. Non-Aggregate
// events are not this adapter's concern and pass through as a no-op.
//
// Any worker may dispatch any ticker's aggregate, so this takes
// tickerstate.Store's lock for the whole detection pass. That lock is
// Store-wide, not per-shard: State holds no internal lock, and
// TrendDetector/SurgeDetector keep their own per-ticker maps that are
// never shard-partitioned at all, so a lock scoped to just one ticker's
// shard would leave two different-shard tickers free to race each other
// on those maps. Serializing every pass through one Store-wide lock
// means detection throughput doesn't scale with worker count, but
// correctness comes first here — see tickerstate.Store's doc comment.
func (p *Pipeline) ProcessAggregate(e events.Event) ([]events.Event, error) {
	if e.Kind != events.KindAggregate || e.Aggregate == nil {
		return nil, nil
	}

	unlock := p.store.Lock(e.Ticker)
	defer unlock()

	at := time.Unix(int64(e.Aggregate.End), 0).UTC()
	tick := Tick{
		Ticker:    e.Ticker,
		Price:     e.Aggregate.Close,
		Volume:    e.Aggregate.Volume,
		Timestamp: at,
	}
	state := p.store.Get(e.Ticker, e.Aggregate.Open, at)

	var out []events.Event

	hlEvents, err := p.hl.Detect(state, tick)
	if err != nil {
		return out, err
	}
	out = append(out, hlEvents...)

	trendEvent, err := p.trend.Detect(state, tick)
	if err != nil {
		return out, err
	}
	if trendEvent != nil {
		out = append(out, *trendEvent)
	}

	surgeEvent, err := p.surge.Detect(state, tick)
	if err != nil {
		return out, err
	}
	if surgeEvent != nil {
		out = append(out, *surgeEvent)
	}

	return out, nil
}
