package filter

import "tickstock-core/pkg/events"

// surgeExpirationWindow is the fixed window a surge stays "live" for,
// matching internal/detect.surgeExpiration; used to recover a surge's age
// from its ExpirationTime since SurgePayload doesn't carry age directly.
const surgeExpirationWindow = 5 * 60 // seconds

// Apply filters a Bundle against cfg, re-deriving Counts from the
// filtered contents. Pure function of (cfg, bundle); calling Apply again
// on its own output with the same cfg is a no-op (§8 idempotence).
func Apply(cfg Config, bundle Bundle) Bundle {
	out := Bundle{GeneratedAt: bundle.GeneratedAt}

	out.Highs = filterHighLow(cfg.HighLow, bundle.Highs)
	out.Lows = filterHighLow(cfg.HighLow, bundle.Lows)

	out.Trending.Up = filterTrend(cfg.Trends, bundle.Trending.Up)
	out.Trending.Down = filterTrend(cfg.Trends, bundle.Trending.Down)

	out.Surging.Up = filterSurge(cfg.Surge, bundle.Surging.Up, bundle.GeneratedAt)
	out.Surging.Down = filterSurge(cfg.Surge, bundle.Surging.Down, bundle.GeneratedAt)

	out.Counts = Counts{
		Highs:        len(out.Highs),
		Lows:         len(out.Lows),
		TrendingUp:   len(out.Trending.Up),
		TrendingDown: len(out.Trending.Down),
		SurgingUp:    len(out.Surging.Up),
		SurgingDown:  len(out.Surging.Down),
	}
	return out
}

func filterHighLow(f HighLowFilter, items []HighLowItem) []HighLowItem {
	if f.MinCount <= 0 && f.MinVolume <= 0 {
		return items
	}
	kept := make([]HighLowItem, 0, len(items))
	for _, item := range items {
		if f.MinCount > 0 && item.Count < f.MinCount {
			continue
		}
		volume := 0.0
		if item.Event.Volume != nil {
			volume = *item.Event.Volume
		}
		if f.MinVolume > 0 && volume < f.MinVolume {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func filterTrend(f TrendFilter, items []events.Event) []events.Event {
	kept := make([]events.Event, 0, len(items))
	for _, e := range items {
		p := e.Trend
		if p == nil {
			continue
		}
		if !strengthPasses(p.Strength, f.Strength) {
			continue
		}
		if !vwapFilterPasses(f.VWAPPosition, e.Direction, p.VWAPPosition) {
			continue
		}
		if p.AgeSeconds > timeWindowMaxAge(f.TimeWindow) {
			continue
		}
		if !trendAgePasses(f.TrendAge, p.AgeSeconds) {
			continue
		}
		if !volumeConfirmationPasses(f.VolumeConfirmation, p.VolumeConfirmed) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func filterSurge(f SurgeFilter, items []events.Event, generatedAt float64) []events.Event {
	kept := make([]events.Event, 0, len(items))
	for _, e := range items {
		p := e.Surge
		if p == nil {
			continue
		}
		if !strengthPasses(p.Strength, f.Magnitude) {
			continue
		}
		if !triggerTypePasses(f.TriggerType, p.Trigger) {
			continue
		}
		age := generatedAt - (p.ExpirationTime - surgeExpirationWindow)
		if !surgeAgePasses(f.SurgeAge, age) {
			continue
		}
		if !priceRangePasses(f.PriceRange, e.Price) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
