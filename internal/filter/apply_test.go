package filter

import (
	"testing"

	"tickstock-core/pkg/events"
)

func trendWithAge(t *testing.T, strength events.Strength, age float64, confirmed bool, position events.VWAPPosition, dir events.Direction) events.Event {
	t.Helper()
	e, err := events.NewTrend(events.TrendParams{
		Ticker:          "AAPL",
		Price:           50,
		Direction:       dir,
		Strength:        strength,
		VWAPPosition:    position,
		AgeSeconds:      age,
		VolumeConfirmed: confirmed,
	})
	if err != nil {
		t.Fatalf("NewTrend: %v", err)
	}
	return e
}

func surgeWithExpiration(t *testing.T, strength events.Strength, trigger events.SurgeTrigger, price float64, expirationTime float64) events.Event {
	t.Helper()
	e, err := events.NewSurge(events.SurgeParams{
		Ticker:         "AAPL",
		Price:          price,
		Direction:      events.DirUp,
		Strength:       strength,
		Trigger:        trigger,
		ExpirationTime: expirationTime,
	})
	if err != nil {
		t.Fatalf("NewSurge: %v", err)
	}
	return e
}

// TestFilterHighLowAppliesMinCountAndMinVolume verifies both thresholds are
// independently enforced.
func TestFilterHighLowAppliesMinCountAndMinVolume(t *testing.T) {
	t.Parallel()

	vol := 500.0
	e, err := events.NewHighLow(events.HighLowParams{
		Ticker: "AAPL", Price: 10, Direction: events.DirUp,
		Subkind: events.SubkindDayHigh, PreviousExtreme: 9, Volume: &vol,
	})
	if err != nil {
		t.Fatalf("NewHighLow: %v", err)
	}

	items := []HighLowItem{{Event: e, Count: 2}}

	lowCount := filterHighLow(HighLowFilter{MinCount: 5}, items)
	if len(lowCount) != 0 {
		t.Errorf("expected item filtered out by min_count, got %d", len(lowCount))
	}

	lowVolume := filterHighLow(HighLowFilter{MinVolume: 1000}, items)
	if len(lowVolume) != 0 {
		t.Errorf("expected item filtered out by min_volume, got %d", len(lowVolume))
	}

	passes := filterHighLow(HighLowFilter{MinCount: 1, MinVolume: 100}, items)
	if len(passes) != 1 {
		t.Errorf("expected item to pass both thresholds, got %d", len(passes))
	}
}

// TestApplyIsIdempotent verifies re-applying the same config to an
// already-filtered bundle changes nothing (§8 property 6).
func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	vol := 10.0
	highEvt, err := events.NewHighLow(events.HighLowParams{
		Ticker: "AAPL", Price: 10, Direction: events.DirUp,
		Subkind: events.SubkindDayHigh, PreviousExtreme: 9, Volume: &vol,
	})
	if err != nil {
		t.Fatalf("NewHighLow: %v", err)
	}

	now := 1000.0
	bundle := Bundle{
		Highs: []HighLowItem{{Event: highEvt, Count: 3}},
		Trending: DirectionalBundle{
			Up: []events.Event{trendWithAge(t, events.StrengthStrong, 50, true, events.VWAPAbove, events.DirUp)},
		},
		Surging: DirectionalBundle{
			Up: []events.Event{surgeWithExpiration(t, events.StrengthStrong, events.TriggerPriceAndVolume, 50, now+280)},
		},
		GeneratedAt: now,
	}

	cfg := DefaultConfig()
	once := Apply(cfg, bundle)
	twice := Apply(cfg, once)

	if len(once.Highs) != len(twice.Highs) || len(once.Trending.Up) != len(twice.Trending.Up) || len(once.Surging.Up) != len(twice.Surging.Up) {
		t.Fatalf("Apply is not idempotent: once=%+v twice=%+v", once.Counts, twice.Counts)
	}
	if once.Counts != twice.Counts {
		t.Errorf("Counts changed on re-apply: once=%+v twice=%+v", once.Counts, twice.Counts)
	}
}

// TestApplyFiltersTrendByStrengthAndVWAP verifies trend filtering rejects a
// weak trend under a moderate-strength filter and respects vwap_position.
func TestApplyFiltersTrendByStrengthAndVWAP(t *testing.T) {
	t.Parallel()

	weak := trendWithAge(t, events.StrengthWeak, 10, true, events.VWAPAbove, events.DirUp)
	strong := trendWithAge(t, events.StrengthStrong, 10, true, events.VWAPBelow, events.DirUp)

	cfg := DefaultConfig()
	cfg.Trends.Strength = events.StrengthModerate
	cfg.Trends.VWAPPosition = VWAPFilterUptrendAboveVWAP

	bundle := Bundle{Trending: DirectionalBundle{Up: []events.Event{weak, strong}}, GeneratedAt: 0}
	out := Apply(cfg, bundle)

	if len(out.Trending.Up) != 0 {
		t.Errorf("expected both trends filtered (weak fails strength, strong fails vwap_position), got %d", len(out.Trending.Up))
	}
}

// TestApplyFiltersSurgeByPriceRange verifies the price_range set predicate.
func TestApplyFiltersSurgeByPriceRange(t *testing.T) {
	t.Parallel()

	penny := surgeWithExpiration(t, events.StrengthStrong, events.TriggerPriceAndVolume, 0.50, 300)
	mid := surgeWithExpiration(t, events.StrengthStrong, events.TriggerPriceAndVolume, 50, 300)

	cfg := DefaultConfig()
	cfg.Surge.PriceRange = []PriceRangeBin{PriceRangePenny}

	bundle := Bundle{Surging: DirectionalBundle{Up: []events.Event{penny, mid}}, GeneratedAt: 0}
	out := Apply(cfg, bundle)

	if len(out.Surging.Up) != 1 || out.Surging.Up[0].Price != 0.50 {
		t.Errorf("expected only the penny-priced surge to pass, got %+v", out.Surging.Up)
	}
}
