package detect

import (
	"math"
	"time"

	"tickstock-core/internal/tickerstate"
	"tickstock-core/pkg/events"
)

// Trend threshold and scoring constants (§4.1). A trend score is the sum of
// recent momentum deltas expressed as a percentage of current price.
const (
	trendModerateThreshold = 0.15 // percent
	trendStrongThreshold   = 0.40 // percent

	// relativeVolumeConfirm is the multiple of the 30s volume baseline a
	// tick's volume must exceed for VolumeConfirmed to be true.
	relativeVolumeConfirm = 1.5
)

// TrendDetector tracks, per ticker, how long the current directional trend
// has been running so it can report Trend.AgeSeconds. It is NOT safe for
// concurrent use across goroutines for the same ticker, matching the
// single-writer discipline the rest of this package assumes.
type TrendDetector struct {
	trendStart map[string]time.Time
	lastDir    map[string]events.Direction
}

// NewTrendDetector creates a TrendDetector.
func NewTrendDetector() *TrendDetector {
	return &TrendDetector{
		trendStart: make(map[string]time.Time),
		lastDir:    make(map[string]events.Direction),
	}
}

// Detect observes a tick and returns a Trend event if the resulting
// momentum score clears the "moderate" threshold. Direction flips reset the
// tracked trend age to zero.
func (d *TrendDetector) Detect(s *tickerstate.State, tick Tick) (*events.Event, error) {
	// Captured before Observe folds tick.Volume into the rolling sum —
	// VolumeConfirmed compares this tick against its own 30s baseline,
	// which has to exclude the tick itself or the comparison is
	// self-referential and can never trigger.
	priorVolume30s := s.Volume30s
	s.Observe(tick.Price, tick.Volume, tick.Timestamp)

	dir := s.Direction()
	prevDir, seen := d.lastDir[tick.Ticker]
	if !seen || prevDir != dir {
		d.trendStart[tick.Ticker] = tick.Timestamp
	}
	d.lastDir[tick.Ticker] = dir

	score := momentumScore(s.Momentum(), tick.Price)
	strength, ok := trendStrength(score)
	if !ok {
		return nil, nil
	}

	age := tick.Timestamp.Sub(d.trendStart[tick.Ticker]).Seconds()
	if age < 0 {
		age = 0
	}

	volume := tick.Volume
	vwap := s.VWAPValue

	e, err := events.NewTrend(events.TrendParams{
		Ticker:          tick.Ticker,
		Price:           tick.Price,
		Time:            float64(tick.Timestamp.Unix()),
		Direction:       dir,
		Volume:          &volume,
		VWAP:            &vwap,
		Strength:        strength,
		Score:           score,
		VWAPPosition:    vwapPosition(tick.Price, s.VWAPValue),
		AgeSeconds:      age,
		VolumeConfirmed: tick.Volume > priorVolume30s*relativeVolumeConfirm,
	})
	if err != nil {
		return nil, err
	}
	s.IncrementCount(events.KindTrend)
	return &e, nil
}

// momentumScore sums recent momentum deltas and expresses the total as a
// percentage of the current price.
func momentumScore(momentum []float64, price float64) float64 {
	if price == 0 {
		return 0
	}
	var sum float64
	for _, d := range momentum {
		sum += d
	}
	return sum / price * 100
}

// trendStrength buckets |score| into weak/moderate/strong. Weak scores
// don't qualify as a trend at all (ok=false).
func trendStrength(score float64) (events.Strength, bool) {
	abs := math.Abs(score)
	switch {
	case abs >= trendStrongThreshold:
		return events.StrengthStrong, true
	case abs >= trendModerateThreshold:
		return events.StrengthModerate, true
	default:
		return events.StrengthWeak, false
	}
}

func vwapPosition(price, vwap float64) events.VWAPPosition {
	switch {
	case vwap == 0 || price == vwap:
		return events.VWAPAt
	case price > vwap:
		return events.VWAPAbove
	default:
		return events.VWAPBelow
	}
}
