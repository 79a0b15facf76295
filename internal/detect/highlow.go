package detect

import (
	"tickstock-core/internal/tickerstate"
	"tickstock-core/pkg/events"
)

// HighLowDetector watches a ticker's price stream for new day or session
// extremes. It holds no state of its own beyond what's already tracked in
// tickerstate.State; the detector is stateless and safe to share across
// tickers as long as each call is for a ticker the caller's goroutine owns.
type HighLowDetector struct{}

// NewHighLowDetector creates a HighLowDetector.
func NewHighLowDetector() *HighLowDetector {
	return &HighLowDetector{}
}

// Detect observes a tick against the ticker's rolling state and returns
// zero or more HighLow events for any extreme(s) the tick set. The state
// is updated as a side effect (§3 TickerState lifecycle).
func (d *HighLowDetector) Detect(s *tickerstate.State, tick Tick) ([]events.Event, error) {
	prevDayHigh, prevDayLow := s.DayHigh, s.DayLow
	prevSessionHigh, prevSessionLow := s.SessionHigh, s.SessionLow

	s.Observe(tick.Price, tick.Volume, tick.Timestamp)

	var out []events.Event
	dir := s.Direction()
	volume := tick.Volume
	vwap := s.VWAPValue

	emit := func(subkind events.HighLowSubkind, previousExtreme float64) error {
		e, err := events.NewHighLow(events.HighLowParams{
			Ticker:          tick.Ticker,
			Price:           tick.Price,
			Time:            float64(tick.Timestamp.Unix()),
			Direction:       dir,
			Volume:          &volume,
			VWAP:            &vwap,
			Subkind:         subkind,
			PreviousExtreme: previousExtreme,
			PeriodSeconds:   0,
		})
		if err != nil {
			return err
		}
		s.IncrementCount(events.KindHighLow)
		out = append(out, e)
		return nil
	}

	if s.DayHigh > prevDayHigh {
		if err := emit(events.SubkindDayHigh, prevDayHigh); err != nil {
			return nil, err
		}
	}
	if s.DayLow < prevDayLow && prevDayLow != 0 {
		if err := emit(events.SubkindDayLow, prevDayLow); err != nil {
			return nil, err
		}
	}
	if s.SessionHigh > prevSessionHigh {
		if err := emit(events.SubkindSessionHigh, prevSessionHigh); err != nil {
			return nil, err
		}
	}
	if s.SessionLow < prevSessionLow && prevSessionLow != 0 {
		if err := emit(events.SubkindSessionLow, prevSessionLow); err != nil {
			return nil, err
		}
	}

	return out, nil
}
