package filter

import (
	"testing"

	"tickstock-core/pkg/events"
)

// TestAdmitHighLowRespectsMinCountAndMinVolume verifies the live-stream
// predicate rejects a HighLow on either threshold, mirroring
// TestFilterHighLowAppliesMinCountAndMinVolume's bundle-apply behavior.
func TestAdmitHighLowRespectsMinCountAndMinVolume(t *testing.T) {
	t.Parallel()

	vol := 500.0
	e, err := events.NewHighLow(events.HighLowParams{
		Ticker: "AAPL", Price: 10, Direction: events.DirUp,
		Subkind: events.SubkindDayHigh, PreviousExtreme: 9, Volume: &vol,
	})
	if err != nil {
		t.Fatalf("NewHighLow: %v", err)
	}

	cfg := DefaultConfig()
	cfg.HighLow = HighLowFilter{MinCount: 5}
	if Admit(cfg, e, 2, 0) {
		t.Error("expected rejection: count 2 below min_count 5")
	}

	cfg.HighLow = HighLowFilter{MinVolume: 1000}
	if Admit(cfg, e, 99, 0) {
		t.Error("expected rejection: volume 500 below min_volume 1000")
	}

	cfg.HighLow = HighLowFilter{MinCount: 1, MinVolume: 100}
	if !Admit(cfg, e, 2, 0) {
		t.Error("expected admission: both thresholds satisfied")
	}
}

// TestAdmitTrendMatchesApplyForStrengthAndVWAP verifies Admit and Apply
// agree on a single trend event.
func TestAdmitTrendMatchesApplyForStrengthAndVWAP(t *testing.T) {
	t.Parallel()

	weak := trendWithAge(t, events.StrengthWeak, 10, true, events.VWAPAbove, events.DirUp)

	cfg := DefaultConfig()
	cfg.Trends.Strength = events.StrengthModerate

	if Admit(cfg, weak, 0, 0) {
		t.Error("expected weak trend to be rejected under a moderate-strength filter")
	}
}

// TestAdmitSurgeByPriceRange verifies the price_range set predicate applies
// identically to a single live surge event.
func TestAdmitSurgeByPriceRange(t *testing.T) {
	t.Parallel()

	penny := surgeWithExpiration(t, events.StrengthStrong, events.TriggerPriceAndVolume, 0.50, 300)

	cfg := DefaultConfig()
	cfg.Surge.PriceRange = []PriceRangeBin{PriceRangeLow}

	if Admit(cfg, penny, 0, 0) {
		t.Error("expected penny-priced surge to be rejected when only 'low' is allowed")
	}
}
