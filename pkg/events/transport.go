package events

import "time"

// TransportRecord is the flat, stable-key encoding of an Event used by the
// websocket display channel and other downstream consumers (§4.1).
type TransportRecord map[string]any

// ToTransport flattens an Event into a transport record. Base fields are
// always present; variant-specific fields are added with stable names.
// Timestamps are rendered both as float seconds and as an "hh:mm:ss" string.
func ToTransport(e Event) TransportRecord {
	r := TransportRecord{
		"ticker":    e.Ticker,
		"kind":      string(e.Kind),
		"price":     e.Price,
		"time":      e.Time,
		"time_str":  formatClock(e.Time),
		"event_id":  e.EventID,
		"direction": string(e.Direction),
	}
	if e.Volume != nil {
		r["volume"] = *e.Volume
	}
	if e.VWAP != nil {
		r["vwap"] = *e.VWAP
	}

	switch e.Kind {
	case KindHighLow:
		p := e.HighLow
		r["subkind"] = string(p.Subkind)
		r["previous_extreme"] = p.PreviousExtreme
		r["percent_change"] = p.PercentChange
		r["period_seconds"] = p.PeriodSeconds
	case KindTrend:
		p := e.Trend
		r["strength"] = string(p.Strength)
		r["score"] = p.Score
		r["vwap_position"] = string(p.VWAPPosition)
		r["age_seconds"] = p.AgeSeconds
		r["volume_confirmed"] = p.VolumeConfirmed
	case KindSurge:
		p := e.Surge
		r["magnitude_pct"] = p.MagnitudePct
		r["score"] = p.Score
		r["strength"] = string(p.Strength)
		r["trigger"] = string(p.Trigger)
		r["volume_multiplier"] = p.VolumeMultiplier
		r["expiration_time"] = p.ExpirationTime
		r["daily_count"] = p.DailyCount
	case KindAggregate:
		p := e.Aggregate
		r["open"] = p.Open
		r["high"] = p.High
		r["low"] = p.Low
		r["close"] = p.Close
		r["cumulative_volume"] = p.CumulativeVolume
		r["average_trade_size"] = p.AverageTradeSize
		r["is_otc"] = p.IsOTC
		r["session"] = string(p.Session)
		r["start"] = p.Start
		r["end"] = p.End
		r["range"] = p.Range
		r["price_change"] = p.PriceChange
		r["price_change_pct"] = p.PriceChangePct
	case KindFMV:
		p := e.FMV
		r["fmv_price"] = p.FMVPrice
		if p.MarketPrice != nil {
			r["market_price"] = *p.MarketPrice
		}
		r["signed_deviation"] = p.SignedDeviation
		r["valuation"] = string(p.Valuation)
	case KindControl:
		r["command"] = string(e.Control.Command)
	}

	return r
}

func formatClock(seconds float64) string {
	t := time.Unix(int64(seconds), 0).UTC()
	return t.Format("15:04:05")
}

// RawAggregate is the upstream per-minute schema (§6):
// {sym, o, h, l, c, v, av, op, vw, a, z, s, e, otc}. s/e are ms.
type RawAggregate struct {
	Sym   string
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
	AvVol float64 // cumulative daily volume ('av')
	OpPx  float64 // today's open price ('op')
	VWAP  float64
	AvgTradeSize float64 // 'a'
	Session      string  // 'z' (raw session tag)
	StartMs      int64   // 's'
	EndMs        int64   // 'e'
	OTC          bool
}

// FromFeedAggregate converts a raw per-minute record into an Aggregate
// event. ms timestamps are converted to seconds. Fails fast on a missing
// ticker (§4.1).
func FromFeedAggregate(raw RawAggregate) (Event, error) {
	if raw.Sym == "" {
		return Event{}, newValidationError("sym", "required")
	}

	dir := DirFlat
	if raw.Close > raw.Open {
		dir = DirUp
	} else if raw.Close < raw.Open {
		dir = DirDown
	}

	return NewAggregate(AggregateParams{
		Ticker:           raw.Sym,
		Time:             float64(raw.EndMs) / 1000.0,
		Direction:        dir,
		Open:             raw.Open,
		High:             raw.High,
		Low:              raw.Low,
		Close:            raw.Close,
		Volume:           raw.Vol,
		CumulativeVolume: raw.AvVol,
		VWAP:             raw.VWAP,
		AverageTradeSize: raw.AvgTradeSize,
		IsOTC:            raw.OTC,
		Session:          mapSession(raw.Session),
		Start:            float64(raw.StartMs) / 1000.0,
		End:              float64(raw.EndMs) / 1000.0,
	})
}

// RawFMV is the upstream FMV schema (§6): {sym, fmv, t (ns)}.
type RawFMV struct {
	Sym       string
	FMV       float64
	TimeNanos int64
	MarketPrice *float64
}

// FromFeedFMV converts a raw FMV record into an FMV event. The nanosecond
// timestamp is converted to seconds.
func FromFeedFMV(raw RawFMV) (Event, error) {
	if raw.Sym == "" {
		return Event{}, newValidationError("sym", "required")
	}

	return NewFMV(FMVParams{
		Ticker:      raw.Sym,
		Time:        float64(raw.TimeNanos) / 1e9,
		FMVPrice:    raw.FMV,
		MarketPrice: raw.MarketPrice,
	})
}

func mapSession(tag string) Session {
	switch tag {
	case "pre", "premarket":
		return SessionPremarket
	case "post", "afterhours":
		return SessionAfterhours
	default:
		return SessionRegular
	}
}
