// Package events defines the typed market-event model shared by every
// processing stage: detectors produce events, the priority queue carries
// them, the worker pool dispatches them, and the filter engine and
// transport layers consume them. It has no dependencies on internal
// packages, so it can be imported by any layer.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which variant an Event carries.
type Kind string

const (
	KindHighLow   Kind = "high_low"
	KindTrend     Kind = "trend"
	KindSurge     Kind = "surge"
	KindAggregate Kind = "aggregate"
	KindFMV       Kind = "fair_market_value"
	KindControl   Kind = "control"
)

// Direction is the sign of a price move associated with an event.
type Direction string

const (
	DirUp   Direction = "up"
	DirDown Direction = "down"
	DirFlat Direction = "flat"
)

// Event is the common header shared by all variants plus exactly one
// populated payload. Exactly one of the *Payload fields is non-nil,
// matching Kind. Events are immutable once built by a New* constructor.
type Event struct {
	Ticker    string
	Kind      Kind
	Price     float64
	Time      float64 // monotonic seconds since epoch
	EventID   string  // unique within process lifetime
	Direction Direction
	Volume    *float64
	VWAP      *float64

	HighLow   *HighLowPayload
	Trend     *TrendPayload
	Surge     *SurgePayload
	Aggregate *AggregatePayload
	FMV       *FMVPayload
	Control   *ControlPayload
}

// HighLowSubkind enumerates the high/low variants.
type HighLowSubkind string

const (
	SubkindDayHigh     HighLowSubkind = "day_high"
	SubkindDayLow      HighLowSubkind = "day_low"
	SubkindSessionHigh HighLowSubkind = "session_high"
	SubkindSessionLow  HighLowSubkind = "session_low"
)

// HighLowPayload carries the fields specific to a HighLow event (§3).
type HighLowPayload struct {
	Subkind          HighLowSubkind
	PreviousExtreme  float64
	PercentChange    float64
	PeriodSeconds    float64
}

// Strength is an ordinal ranking used by Trend and Surge events and the
// filter engine's strength predicate.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// Rank returns the ordinal position of a strength, weak=0 < moderate=1 < strong=2.
func (s Strength) Rank() int {
	switch s {
	case StrengthModerate:
		return 1
	case StrengthStrong:
		return 2
	default:
		return 0
	}
}

// VWAPPosition describes price relative to VWAP at the time of a Trend event.
type VWAPPosition string

const (
	VWAPAbove VWAPPosition = "above"
	VWAPBelow VWAPPosition = "below"
	VWAPAt    VWAPPosition = "at"
)

// TrendPayload carries the fields specific to a Trend event (§3).
type TrendPayload struct {
	Strength        Strength
	Score           float64
	VWAPPosition    VWAPPosition
	AgeSeconds      float64
	VolumeConfirmed bool
}

// SurgeTrigger identifies what caused a surge to fire.
type SurgeTrigger string

const (
	TriggerPrice          SurgeTrigger = "price"
	TriggerVolume         SurgeTrigger = "volume"
	TriggerPriceAndVolume SurgeTrigger = "price_and_volume"
)

// SurgePayload carries the fields specific to a Surge event (§3).
type SurgePayload struct {
	MagnitudePct     float64
	Score            float64
	Strength         Strength
	Trigger          SurgeTrigger
	VolumeMultiplier float64
	ExpirationTime   float64
	DailyCount       int
}

// Session identifies the market session an Aggregate or tick was observed in.
type Session string

const (
	SessionPremarket  Session = "premarket"
	SessionRegular    Session = "regular"
	SessionAfterhours Session = "afterhours"
)

// AggregatePayload carries a 1-minute OHLCV window plus cumulative and
// derived fields (§3, §4.1).
type AggregatePayload struct {
	Open, High, Low, Close float64
	Volume                 float64
	CumulativeVolume       float64
	VWAP                   float64
	AverageTradeSize       float64
	IsOTC                  bool
	Session                Session
	Start, End             float64 // seconds

	// Derived at construction.
	Range           float64
	PriceChange     float64
	PriceChangePct  float64
}

// ValuationClass buckets an FMV deviation by magnitude and sign (§4.1).
type ValuationClass string

const (
	ValuationFair        ValuationClass = "fair"
	ValuationUndervalued ValuationClass = "slight_undervalued"
	ValuationOvervalued  ValuationClass = "slight_overvalued"
	// Moderate/significant variants are produced by valuationClass below;
	// listed here as the full closed set for documentation.
	ValuationModerateUnder    ValuationClass = "moderate_undervalued"
	ValuationModerateOver     ValuationClass = "moderate_overvalued"
	ValuationSignificantUnder ValuationClass = "significant_undervalued"
	ValuationSignificantOver  ValuationClass = "significant_overvalued"
)

// FMVPayload carries the fields specific to an FMV event (§3, §4.1).
type FMVPayload struct {
	FMVPrice        float64
	MarketPrice     *float64
	SignedDeviation float64 // (fmv - market) / market, nil market => 0
	Valuation       ValuationClass
}

// Command enumerates supported control commands (§3).
type Command string

const (
	CommandShutdown Command = "shutdown"
	CommandFlush    Command = "flush"
	CommandPause    Command = "pause"
	CommandResume   Command = "resume"
)

// ControlPayload carries the fields specific to a Control event. Price and
// Ticker on the enclosing Event are sentinel values for control events.
type ControlPayload struct {
	Command Command
}

const (
	controlTicker = "CONTROL"
	controlPrice  = 1.0 // sentinel: satisfies price > 0 invariant
)

// newEventID returns a process-unique event identifier.
func newEventID() string {
	return uuid.NewString()
}

// At converts e.Time (seconds since epoch) to a time.Time.
func (e Event) At() time.Time {
	sec := int64(e.Time)
	nsec := int64((e.Time - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
