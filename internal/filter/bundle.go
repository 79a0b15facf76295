package filter

import "tickstock-core/pkg/events"

// HighLowItem pairs a HighLow event with the ticker's running per-kind
// event count at the time it was added to the bundle — the count the
// highlow filter's min_count threshold is evaluated against (§4.4),
// sourced from internal/tickerstate.State's per-kind counters.
type HighLowItem struct {
	Event events.Event
	Count int
}

// DirectionalBundle splits a set of events by their Direction, matching
// the bundle's {up, down} grouping for trending and surging events.
type DirectionalBundle struct {
	Up   []events.Event
	Down []events.Event
}

// Counts is the post-filter tally re-derived by Apply (§4.4 "Apply
// re-derives counts post-filter").
type Counts struct {
	Highs        int
	Lows         int
	TrendingUp   int
	TrendingDown int
	SurgingUp    int
	SurgingDown  int
}

// Bundle is the periodic snapshot Apply filters (§4.4). GeneratedAt fixes
// the snapshot's "now" so trend/surge age predicates stay a pure function
// of the bundle's own contents rather than depending on wall-clock time at
// apply time.
type Bundle struct {
	Highs       []HighLowItem
	Lows        []HighLowItem
	Trending    DirectionalBundle
	Surging     DirectionalBundle
	GeneratedAt float64 // epoch seconds
	Counts      Counts
}
