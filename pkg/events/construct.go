package events

import "math"

// HighLowParams are the caller-supplied fields for constructing a HighLow event.
type HighLowParams struct {
	Ticker          string
	Price           float64
	Time            float64
	Direction       Direction
	Volume          *float64
	VWAP            *float64
	Subkind         HighLowSubkind
	PreviousExtreme float64
	PeriodSeconds   float64
}

// NewHighLow validates params and constructs a HighLow event, computing
// PercentChange from Price and PreviousExtreme (§4.1).
func NewHighLow(p HighLowParams) (Event, error) {
	switch p.Subkind {
	case SubkindDayHigh, SubkindDayLow, SubkindSessionHigh, SubkindSessionLow:
	default:
		return Event{}, newValidationError("subkind", "must be one of day_high, day_low, session_high, session_low")
	}

	var pct float64
	if p.PreviousExtreme != 0 {
		pct = (p.Price - p.PreviousExtreme) / p.PreviousExtreme * 100
	}

	e := Event{
		Ticker:    p.Ticker,
		Kind:      KindHighLow,
		Price:     p.Price,
		Time:      orNow(p.Time),
		EventID:   newEventID(),
		Direction: orFlat(p.Direction),
		Volume:    p.Volume,
		VWAP:      p.VWAP,
		HighLow: &HighLowPayload{
			Subkind:         p.Subkind,
			PreviousExtreme: p.PreviousExtreme,
			PercentChange:   pct,
			PeriodSeconds:   p.PeriodSeconds,
		},
	}
	if err := validateHeader(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// TrendParams are the caller-supplied fields for constructing a Trend event.
type TrendParams struct {
	Ticker          string
	Price           float64
	Time            float64
	Direction       Direction
	Volume          *float64
	VWAP            *float64
	Strength        Strength
	Score           float64
	VWAPPosition    VWAPPosition
	AgeSeconds      float64
	VolumeConfirmed bool
}

// NewTrend validates params and constructs a Trend event.
func NewTrend(p TrendParams) (Event, error) {
	if err := validateStrength(p.Strength); err != nil {
		return Event{}, err
	}
	switch p.VWAPPosition {
	case VWAPAbove, VWAPBelow, VWAPAt:
	default:
		return Event{}, newValidationError("vwap_position", "must be one of above, below, at")
	}

	e := Event{
		Ticker:    p.Ticker,
		Kind:      KindTrend,
		Price:     p.Price,
		Time:      orNow(p.Time),
		EventID:   newEventID(),
		Direction: orFlat(p.Direction),
		Volume:    p.Volume,
		VWAP:      p.VWAP,
		Trend: &TrendPayload{
			Strength:        p.Strength,
			Score:           p.Score,
			VWAPPosition:    p.VWAPPosition,
			AgeSeconds:      p.AgeSeconds,
			VolumeConfirmed: p.VolumeConfirmed,
		},
	}
	if err := validateHeader(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// SurgeParams are the caller-supplied fields for constructing a Surge event.
type SurgeParams struct {
	Ticker           string
	Price            float64
	Time             float64
	Direction        Direction
	Volume           *float64
	VWAP             *float64
	MagnitudePct     float64
	Score            float64
	Strength         Strength
	Trigger          SurgeTrigger
	VolumeMultiplier float64
	ExpirationTime   float64
	DailyCount       int
}

// NewSurge validates params and constructs a Surge event.
func NewSurge(p SurgeParams) (Event, error) {
	if err := validateStrength(p.Strength); err != nil {
		return Event{}, err
	}
	switch p.Trigger {
	case TriggerPrice, TriggerVolume, TriggerPriceAndVolume:
	default:
		return Event{}, newValidationError("trigger", "must be one of price, volume, price_and_volume")
	}

	e := Event{
		Ticker:    p.Ticker,
		Kind:      KindSurge,
		Price:     p.Price,
		Time:      orNow(p.Time),
		EventID:   newEventID(),
		Direction: orFlat(p.Direction),
		Volume:    p.Volume,
		VWAP:      p.VWAP,
		Surge: &SurgePayload{
			MagnitudePct:     p.MagnitudePct,
			Score:            p.Score,
			Strength:         p.Strength,
			Trigger:          p.Trigger,
			VolumeMultiplier: p.VolumeMultiplier,
			ExpirationTime:   p.ExpirationTime,
			DailyCount:       p.DailyCount,
		},
	}
	if err := validateHeader(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// AggregateParams are the caller-supplied fields for constructing an
// Aggregate event. Derived fields (Range, PriceChange, PriceChangePct) are
// computed at construction (§4.1).
type AggregateParams struct {
	Ticker           string
	Time             float64
	Direction        Direction
	Open, High, Low, Close float64
	Volume           float64
	CumulativeVolume float64
	VWAP             float64
	AverageTradeSize float64
	IsOTC            bool
	Session          Session
	Start, End       float64
}

// NewAggregate validates OHLCV invariants and constructs an Aggregate event.
// Price is set to Close.
func NewAggregate(p AggregateParams) (Event, error) {
	if p.Low > math.Min(p.Open, p.Close) || math.Max(p.Open, p.Close) > p.High {
		return Event{}, newValidationError("ohlc", "low <= min(open,close) <= max(open,close) <= high must hold")
	}
	if !(p.Start < p.End) {
		return Event{}, newValidationError("start_end", "start must be < end")
	}

	var changePct float64
	if p.Open != 0 {
		changePct = (p.Close - p.Open) / p.Open * 100
	}

	volPtr := p.Volume
	vwapPtr := p.VWAP

	e := Event{
		Ticker:    p.Ticker,
		Kind:      KindAggregate,
		Price:     p.Close,
		Time:      orNow(p.Time),
		EventID:   newEventID(),
		Direction: orFlat(p.Direction),
		Volume:    &volPtr,
		VWAP:      &vwapPtr,
		Aggregate: &AggregatePayload{
			Open:             p.Open,
			High:             p.High,
			Low:              p.Low,
			Close:            p.Close,
			Volume:           p.Volume,
			CumulativeVolume: p.CumulativeVolume,
			VWAP:             p.VWAP,
			AverageTradeSize: p.AverageTradeSize,
			IsOTC:            p.IsOTC,
			Session:          p.Session,
			Start:            p.Start,
			End:              p.End,
			Range:            p.High - p.Low,
			PriceChange:      p.Close - p.Open,
			PriceChangePct:   changePct,
		},
	}
	if err := validateHeader(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// FMVParams are the caller-supplied fields for constructing an FMV event.
type FMVParams struct {
	Ticker      string
	Time        float64
	Direction   Direction
	Volume      *float64
	VWAP        *float64
	FMVPrice    float64
	MarketPrice *float64
}

// thresholds for valuationClass, expressed as fractions (§4.1).
const (
	thresholdFair      = 0.01
	thresholdSlight    = 0.03
	thresholdModerate  = 0.10
)

// NewFMV validates params and constructs an FMV event, computing the
// signed deviation and valuation class from FMVPrice vs MarketPrice.
func NewFMV(p FMVParams) (Event, error) {
	var deviation float64
	var class ValuationClass = ValuationFair

	if p.MarketPrice != nil && *p.MarketPrice != 0 {
		deviation = (p.FMVPrice - *p.MarketPrice) / *p.MarketPrice
		class = valuationClass(deviation)
	}

	e := Event{
		Ticker:    p.Ticker,
		Kind:      KindFMV,
		Price:     p.FMVPrice,
		Time:      orNow(p.Time),
		EventID:   newEventID(),
		Direction: orFlat(p.Direction),
		Volume:    p.Volume,
		VWAP:      p.VWAP,
		FMV: &FMVPayload{
			FMVPrice:        p.FMVPrice,
			MarketPrice:     p.MarketPrice,
			SignedDeviation: deviation,
			Valuation:       class,
		},
	}
	if err := validateHeader(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// valuationClass buckets a signed fractional deviation using the
// thresholds {<1% fair, <3% slight, <10% moderate, >=10% significant}
// combined with sign (§4.1).
func valuationClass(deviation float64) ValuationClass {
	abs := math.Abs(deviation)
	undervalued := deviation > 0 // fmv > market => market is undervalued

	switch {
	case abs < thresholdFair:
		return ValuationFair
	case abs < thresholdSlight:
		if undervalued {
			return ValuationUndervalued
		}
		return ValuationOvervalued
	case abs < thresholdModerate:
		if undervalued {
			return ValuationModerateUnder
		}
		return ValuationModerateOver
	default:
		if undervalued {
			return ValuationSignificantUnder
		}
		return ValuationSignificantOver
	}
}

// NewControl constructs a Control event. Ticker and Price are sentinel
// values per §3.
func NewControl(command Command, t float64) (Event, error) {
	switch command {
	case CommandShutdown, CommandFlush, CommandPause, CommandResume:
	default:
		return Event{}, newValidationError("command", "must be one of shutdown, flush, pause, resume")
	}

	return Event{
		Ticker:    controlTicker,
		Kind:      KindControl,
		Price:     controlPrice,
		Time:      orNow(t),
		EventID:   newEventID(),
		Direction: DirFlat,
		Control:   &ControlPayload{Command: command},
	}, nil
}

func validateStrength(s Strength) error {
	switch s {
	case StrengthWeak, StrengthModerate, StrengthStrong:
		return nil
	default:
		return newValidationError("strength", "must be one of weak, moderate, strong")
	}
}

// validateHeader enforces the universal invariants from §3/§8: price > 0,
// non-empty ticker, non-empty kind. Control events carry a sentinel price
// and ticker that already satisfy these checks.
func validateHeader(e Event) error {
	if e.Price <= 0 {
		return newValidationError("price", "must be > 0")
	}
	if e.Ticker == "" {
		return newValidationError("ticker", "must not be empty")
	}
	if e.Kind == "" {
		return newValidationError("kind", "must not be empty")
	}
	return nil
}

func orNow(t float64) float64 {
	if t == 0 {
		return now()
	}
	return t
}

func orFlat(d Direction) Direction {
	if d == "" {
		return DirFlat
	}
	return d
}
