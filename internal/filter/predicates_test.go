package filter

import (
	"testing"

	"tickstock-core/pkg/events"
)

func TestStrengthPassesIsOrdinal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event, filter events.Strength
		want          bool
	}{
		{events.StrengthStrong, events.StrengthWeak, true},
		{events.StrengthModerate, events.StrengthModerate, true},
		{events.StrengthWeak, events.StrengthModerate, false},
	}
	for _, c := range cases {
		if got := strengthPasses(c.event, c.filter); got != c.want {
			t.Errorf("strengthPasses(%v, %v) = %v, want %v", c.event, c.filter, got, c.want)
		}
	}
}

func TestVWAPFilterPasses(t *testing.T) {
	t.Parallel()

	if !vwapFilterPasses(VWAPFilterUptrendAboveVWAP, events.DirUp, events.VWAPAbove) {
		t.Error("uptrend_above_vwap should pass up+above")
	}
	if vwapFilterPasses(VWAPFilterUptrendAboveVWAP, events.DirUp, events.VWAPBelow) {
		t.Error("uptrend_above_vwap should reject up+below")
	}
	if !vwapFilterPasses(VWAPFilterDowntrendBelowVWAP, events.DirDown, events.VWAPBelow) {
		t.Error("downtrend_below_vwap should pass down+below")
	}
	if !vwapFilterPasses(VWAPFilterAny, events.DirDown, events.VWAPAbove) {
		t.Error("any_vwap_position should always pass")
	}
}

func TestTimeWindowMaxAge(t *testing.T) {
	t.Parallel()

	if timeWindowMaxAge(TimeWindowShort) != 180 {
		t.Error("short should map to 180s")
	}
	if timeWindowMaxAge(TimeWindowMedium) != 360 {
		t.Error("medium should map to 360s")
	}
	if timeWindowMaxAge(TimeWindowLong) != 600 {
		t.Error("long should map to 600s")
	}
}

func TestTrendAgePasses(t *testing.T) {
	t.Parallel()

	if !trendAgePasses(AgeFresh, 119) {
		t.Error("119s should pass fresh (<120s)")
	}
	if trendAgePasses(AgeFresh, 121) {
		t.Error("121s should not pass fresh")
	}
	if !trendAgePasses(AgeRecent, 299) {
		t.Error("299s should pass recent (<300s)")
	}
	if !trendAgePasses(AgeAll, 10000) {
		t.Error("all should pass any age")
	}
}

func TestSurgeAgePasses(t *testing.T) {
	t.Parallel()

	if !surgeAgePasses(AgeFresh, 29) {
		t.Error("29s should pass surge fresh (<30s)")
	}
	if surgeAgePasses(AgeFresh, 31) {
		t.Error("31s should not pass surge fresh")
	}
	if !surgeAgePasses(AgeRecent, 119) {
		t.Error("119s should pass surge recent (<120s)")
	}
}

func TestVolumeConfirmationPasses(t *testing.T) {
	t.Parallel()

	if !volumeConfirmationPasses(VolumeConfirmationAny, false) {
		t.Error("all_trends should pass regardless of flag")
	}
	if volumeConfirmationPasses(VolumeConfirmationRequired, false) {
		t.Error("volume_confirmed should reject an unconfirmed trend")
	}
	if !volumeConfirmationPasses(VolumeConfirmationRequired, true) {
		t.Error("volume_confirmed should pass a confirmed trend")
	}
}

func TestTriggerTypePasses(t *testing.T) {
	t.Parallel()

	if !triggerTypePasses(events.TriggerPrice, events.TriggerPriceAndVolume) {
		t.Error("price filter should pass a combined-trigger surge")
	}
	if triggerTypePasses(events.TriggerPriceAndVolume, events.TriggerPrice) {
		t.Error("price_and_volume filter should reject a price-only surge")
	}
	if !triggerTypePasses(events.TriggerVolume, events.TriggerVolume) {
		t.Error("volume filter should pass a volume-only surge")
	}
}

func TestPriceRangeBinBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		price float64
		want  PriceRangeBin
	}{
		{0.50, PriceRangePenny},
		{0.99, PriceRangePenny},
		{1.00, PriceRangeLow},
		{24.99, PriceRangeLow},
		{25.00, PriceRangeMid},
		{99.99, PriceRangeMid},
		{100.00, PriceRangeHigh},
		{5000, PriceRangeHigh},
	}
	for _, c := range cases {
		if got := priceRangeBin(c.price); got != c.want {
			t.Errorf("priceRangeBin(%v) = %v, want %v", c.price, got, c.want)
		}
	}
}

func TestPriceRangePasses(t *testing.T) {
	t.Parallel()

	allowed := []PriceRangeBin{PriceRangePenny, PriceRangeHigh}
	if !priceRangePasses(allowed, 0.5) {
		t.Error("expected penny price to pass")
	}
	if priceRangePasses(allowed, 50) {
		t.Error("expected mid price to be excluded")
	}
}
