// Package detect implements the stateful detectors that turn ticks and
// aggregates into typed events (§2 row C). Each detector consults and
// mutates the tickerstate.State for the ticker it's observing; callers
// must ensure a detector only ever sees one ticker's ticks on a single
// goroutine, matching the single-writer discipline in §5/§9.
package detect

import "time"

// Tick is the normalized inbound tick shape, matching the on_tick
// callback contract in §6: {ticker, price, volume, timestamp, bid, ask}.
type Tick struct {
	Ticker    string
	Price     float64
	Volume    float64
	Timestamp time.Time
	Bid       float64
	Ask       float64
}
