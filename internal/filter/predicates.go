package filter

import "tickstock-core/pkg/events"

// timeWindowMaxAge maps a TimeWindow to the maximum trend age it allows,
// in seconds (§4.4).
func timeWindowMaxAge(w TimeWindow) float64 {
	switch w {
	case TimeWindowShort:
		return 180
	case TimeWindowLong:
		return 600
	default: // medium, and any unrecognized value per the original's lenient default
		return 360
	}
}

// trendAgePasses applies the fresh/recent/all bucket to a trend's age
// (§4.4: fresh<120s, recent<300s, all passes everything).
func trendAgePasses(bucket AgeBucket, ageSeconds float64) bool {
	switch bucket {
	case AgeFresh:
		return ageSeconds < 120
	case AgeRecent:
		return ageSeconds < 300
	default:
		return true
	}
}

// surgeAgePasses applies the fresh/recent/all bucket to a surge's age,
// computed from now until its expiration_time minus the fixed 5-minute
// expiration window (§4.4: fresh<30s, recent<120s).
func surgeAgePasses(bucket AgeBucket, ageSeconds float64) bool {
	switch bucket {
	case AgeFresh:
		return ageSeconds < 30
	case AgeRecent:
		return ageSeconds < 120
	default:
		return true
	}
}

// vwapFilterPasses implements the vwap_position predicate: uptrend_above_vwap
// requires direction=up and price>VWAP; downtrend_below_vwap is symmetric;
// any_vwap_position always passes.
func vwapFilterPasses(filter VWAPPositionFilter, direction events.Direction, position events.VWAPPosition) bool {
	switch filter {
	case VWAPFilterUptrendAboveVWAP:
		return direction == events.DirUp && position == events.VWAPAbove
	case VWAPFilterDowntrendBelowVWAP:
		return direction == events.DirDown && position == events.VWAPBelow
	default:
		return true
	}
}

// strengthPasses is ordinal: passes iff event_strength >= filter_strength.
func strengthPasses(eventStrength, filterStrength events.Strength) bool {
	return eventStrength.Rank() >= filterStrength.Rank()
}

// volumeConfirmationPasses passes if confirmation isn't required, or if the
// trend's own VolumeConfirmed flag is set.
func volumeConfirmationPasses(filter VolumeConfirmation, confirmed bool) bool {
	if filter == VolumeConfirmationAny {
		return true
	}
	return confirmed
}

// triggerTypePasses: price_and_volume filter only passes surges that
// triggered on both signals; price/volume filters pass a surge whose
// trigger includes that signal.
func triggerTypePasses(filter, eventTrigger events.SurgeTrigger) bool {
	if filter == events.TriggerPriceAndVolume {
		return eventTrigger == events.TriggerPriceAndVolume
	}
	if eventTrigger == events.TriggerPriceAndVolume {
		return true
	}
	return eventTrigger == filter
}

// priceRangeBin buckets a price into penny/low/mid/high (§4.4).
func priceRangeBin(price float64) PriceRangeBin {
	switch {
	case price < 1:
		return PriceRangePenny
	case price < 25:
		return PriceRangeLow
	case price < 100:
		return PriceRangeMid
	default:
		return PriceRangeHigh
	}
}

// priceRangePasses passes if the event's price bucket is in the allowed set.
func priceRangePasses(allowed []PriceRangeBin, price float64) bool {
	bin := priceRangeBin(price)
	for _, a := range allowed {
		if a == bin {
			return true
		}
	}
	return false
}
