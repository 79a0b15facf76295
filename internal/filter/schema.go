// Package filter implements the per-user filter engine: a closed
// configuration schema, pure predicate evaluation, and a bundle-apply
// function used for periodic snapshot delivery (§4.4). Live event-stream
// filtering is done by the transport hub per subscriber, off this
// package's hot path (see DESIGN.md's Open Question decision on the
// bundle-apply vs event-stream models).
package filter

import "tickstock-core/pkg/events"

// VWAPPositionFilter is the trend filter's vwap_position field — a
// distinct closed set from events.VWAPPosition, since it encodes a
// direction+position combination rather than a bare position.
type VWAPPositionFilter string

const (
	VWAPFilterUptrendAboveVWAP   VWAPPositionFilter = "uptrend_above_vwap"
	VWAPFilterDowntrendBelowVWAP VWAPPositionFilter = "downtrend_below_vwap"
	VWAPFilterAny                VWAPPositionFilter = "any_vwap_position"
)

// TimeWindow buckets trend age into a coarse window used to derive a
// maximum-age cutoff (§4.4 "time_window maps to a maximum trend age").
type TimeWindow string

const (
	TimeWindowShort  TimeWindow = "short"
	TimeWindowMedium TimeWindow = "medium"
	TimeWindowLong   TimeWindow = "long"
)

// AgeBucket is the coarser fresh/recent/all age filter shared by trend_age
// and surge_age, with different cutoffs per §4.4.
type AgeBucket string

const (
	AgeAll    AgeBucket = "all"
	AgeFresh  AgeBucket = "fresh"
	AgeRecent AgeBucket = "recent"
)

// VolumeConfirmation is the trend filter's volume_confirmation field.
type VolumeConfirmation string

const (
	VolumeConfirmationRequired VolumeConfirmation = "volume_confirmed"
	VolumeConfirmationAny      VolumeConfirmation = "all_trends"
)

// PriceRangeBin buckets event price for the surge filter's price_range set.
type PriceRangeBin string

const (
	PriceRangePenny PriceRangeBin = "penny" // [0, 1)
	PriceRangeLow   PriceRangeBin = "low"   // [1, 25)
	PriceRangeMid   PriceRangeBin = "mid"   // [25, 100)
	PriceRangeHigh  PriceRangeBin = "high"  // [100, inf)
)

// HighLowFilter gates HighLow events on a per-ticker event count and
// minimum volume (§4.4).
type HighLowFilter struct {
	MinCount  int
	MinVolume float64
}

// TrendFilter gates Trend events (§4.4).
type TrendFilter struct {
	Strength           events.Strength
	VWAPPosition       VWAPPositionFilter
	TimeWindow         TimeWindow
	TrendAge           AgeBucket
	VolumeConfirmation VolumeConfirmation
}

// SurgeFilter gates Surge events (§4.4).
type SurgeFilter struct {
	Magnitude   events.Strength
	TriggerType events.SurgeTrigger
	SurgeAge    AgeBucket
	PriceRange  []PriceRangeBin
}

// Config is the closed filter schema validated by Validate.
type Config struct {
	HighLow HighLowFilter
	Trends  TrendFilter
	Surge   SurgeFilter
}

// DefaultConfig mirrors the original service's default filter set: wide
// open except a moderate trend strength and moderate surge magnitude.
func DefaultConfig() Config {
	return Config{
		HighLow: HighLowFilter{MinCount: 0, MinVolume: 0},
		Trends: TrendFilter{
			Strength:           events.StrengthModerate,
			VWAPPosition:       VWAPFilterAny,
			TimeWindow:         TimeWindowMedium,
			TrendAge:           AgeAll,
			VolumeConfirmation: VolumeConfirmationAny,
		},
		Surge: SurgeFilter{
			Magnitude:   events.StrengthModerate,
			TriggerType: events.TriggerPriceAndVolume,
			SurgeAge:    AgeAll,
			PriceRange:  []PriceRangeBin{PriceRangePenny, PriceRangeLow, PriceRangeMid, PriceRangeHigh},
		},
	}
}
