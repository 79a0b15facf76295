package filter

import (
	"fmt"

	"tickstock-core/pkg/events"
)

// ValidationError is returned by Validate when a filter config violates the
// closed schema (§4.4). Typed so callers can report the offending field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid filter config: %s: %s", e.Field, e.Msg)
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// Validate checks a Config against the closed schema in §4.4: enum fields
// must take one of their named values, numeric fields must be non-negative.
func Validate(cfg Config) error {
	if cfg.HighLow.MinCount < 0 {
		return newValidationError("highlow.min_count", "must be >= 0")
	}
	if cfg.HighLow.MinVolume < 0 {
		return newValidationError("highlow.min_volume", "must be >= 0")
	}

	switch cfg.Trends.Strength {
	case events.StrengthWeak, events.StrengthModerate, events.StrengthStrong:
	default:
		return newValidationError("trends.strength", "must be one of weak, moderate, strong")
	}
	switch cfg.Trends.VWAPPosition {
	case VWAPFilterUptrendAboveVWAP, VWAPFilterDowntrendBelowVWAP, VWAPFilterAny:
	default:
		return newValidationError("trends.vwap_position", "must be one of uptrend_above_vwap, downtrend_below_vwap, any_vwap_position")
	}
	switch cfg.Trends.TimeWindow {
	case TimeWindowShort, TimeWindowMedium, TimeWindowLong:
	default:
		return newValidationError("trends.time_window", "must be one of short, medium, long")
	}
	switch cfg.Trends.TrendAge {
	case AgeAll, AgeFresh, AgeRecent:
	default:
		return newValidationError("trends.trend_age", "must be one of all, fresh, recent")
	}
	switch cfg.Trends.VolumeConfirmation {
	case VolumeConfirmationRequired, VolumeConfirmationAny:
	default:
		return newValidationError("trends.volume_confirmation", "must be one of volume_confirmed, all_trends")
	}

	switch cfg.Surge.Magnitude {
	case events.StrengthWeak, events.StrengthModerate, events.StrengthStrong:
	default:
		return newValidationError("surge.magnitude", "must be one of weak, moderate, strong")
	}
	switch cfg.Surge.TriggerType {
	case events.TriggerPrice, events.TriggerVolume, events.TriggerPriceAndVolume:
	default:
		return newValidationError("surge.trigger_type", "must be one of price, volume, price_and_volume")
	}
	switch cfg.Surge.SurgeAge {
	case AgeAll, AgeFresh, AgeRecent:
	default:
		return newValidationError("surge.surge_age", "must be one of all, fresh, recent")
	}
	if len(cfg.Surge.PriceRange) == 0 {
		return newValidationError("surge.price_range", "must be a non-empty subset of penny, low, mid, high")
	}
	for _, bin := range cfg.Surge.PriceRange {
		switch bin {
		case PriceRangePenny, PriceRangeLow, PriceRangeMid, PriceRangeHigh:
		default:
			return newValidationError("surge.price_range", "each entry must be one of penny, low, mid, high")
		}
	}

	return nil
}
