package filter

import "tickstock-core/pkg/events"

// Admit reports whether a single live event passes cfg, using the same
// predicates Apply uses for periodic snapshot delivery (§4.4). This is the
// entry point the transport hub consults per subscriber on the live event
// stream, where events arrive one at a time rather than pre-grouped into a
// Bundle.
//
// highLowCount is the ticker's current per-kind event count (from
// tickerstate.State.EventCounts), only consulted for KindHighLow. now is
// the evaluation time used for the surge age predicate, analogous to
// Bundle.GeneratedAt in Apply. Kinds outside {HighLow, Trend, Surge} always
// pass — this is the same set §4.3 places on the display channel.
func Admit(cfg Config, e events.Event, highLowCount int, now float64) bool {
	switch e.Kind {
	case events.KindHighLow:
		if cfg.HighLow.MinCount > 0 && highLowCount < cfg.HighLow.MinCount {
			return false
		}
		volume := 0.0
		if e.Volume != nil {
			volume = *e.Volume
		}
		if cfg.HighLow.MinVolume > 0 && volume < cfg.HighLow.MinVolume {
			return false
		}
		return true

	case events.KindTrend:
		p := e.Trend
		if p == nil {
			return false
		}
		if !strengthPasses(p.Strength, cfg.Trends.Strength) {
			return false
		}
		if !vwapFilterPasses(cfg.Trends.VWAPPosition, e.Direction, p.VWAPPosition) {
			return false
		}
		if p.AgeSeconds > timeWindowMaxAge(cfg.Trends.TimeWindow) {
			return false
		}
		if !trendAgePasses(cfg.Trends.TrendAge, p.AgeSeconds) {
			return false
		}
		return volumeConfirmationPasses(cfg.Trends.VolumeConfirmation, p.VolumeConfirmed)

	case events.KindSurge:
		p := e.Surge
		if p == nil {
			return false
		}
		if !strengthPasses(p.Strength, cfg.Surge.Magnitude) {
			return false
		}
		if !triggerTypePasses(cfg.Surge.TriggerType, p.Trigger) {
			return false
		}
		age := now - (p.ExpirationTime - surgeExpirationWindow)
		if !surgeAgePasses(cfg.Surge.SurgeAge, age) {
			return false
		}
		return priceRangePasses(cfg.Surge.PriceRange, e.Price)

	default:
		return true
	}
}
