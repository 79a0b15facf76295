package detect

import (
	"math"
	"time"

	"tickstock-core/internal/tickerstate"
	"tickstock-core/pkg/events"
)

// Surge thresholds and window (§4.1). A surge fires when the short-window
// price move or the relative volume spike clears its threshold.
const (
	surgeWindow = 10 * time.Second

	surgePriceModerateThreshold = 0.5 // percent over surgeWindow
	surgePriceStrongThreshold   = 1.5

	surgeVolumeModerateMultiplier = 3.0
	surgeVolumeStrongMultiplier   = 8.0

	surgeExpiration = 5 * time.Minute
)

type priceSample struct {
	at    time.Time
	price float64
}

type volumeSample struct {
	at     time.Time
	volume float64
}

// SurgeDetector watches for sudden price and volume spikes within a short
// rolling window, per ticker, and tracks how many surges a ticker has fired
// since the detector was created (DailyCount — callers reset the detector,
// or swap in a new one, at session boundaries).
type SurgeDetector struct {
	window       map[string][]priceSample
	volumeWindow map[string][]volumeSample
	dailyCount   map[string]int
}

// NewSurgeDetector creates a SurgeDetector.
func NewSurgeDetector() *SurgeDetector {
	return &SurgeDetector{
		window:       make(map[string][]priceSample),
		volumeWindow: make(map[string][]volumeSample),
		dailyCount:   make(map[string]int),
	}
}

// Detect observes a tick and returns a Surge event if either the
// windowed price move or the relative volume spike clears the "moderate"
// threshold.
func (d *SurgeDetector) Detect(s *tickerstate.State, tick Tick) (*events.Event, error) {
	s.Observe(tick.Price, tick.Volume, tick.Timestamp)

	samples := append(d.window[tick.Ticker], priceSample{at: tick.Timestamp, price: tick.Price})
	cutoff := tick.Timestamp.Add(-surgeWindow)
	i := 0
	for ; i < len(samples); i++ {
		if samples[i].at.After(cutoff) {
			break
		}
	}
	samples = samples[i:]
	d.window[tick.Ticker] = samples

	windowOpen := samples[0].price
	var magnitudePct float64
	if windowOpen != 0 {
		magnitudePct = (tick.Price - windowOpen) / windowOpen * 100
	}

	// The volume baseline is the average of prior samples in the window,
	// excluding the current tick — otherwise a ticker's very first
	// observation would always look like an enormous spike relative to
	// itself. Trim against the current cutoff before averaging, the same
	// order as the price side above: priorVolumes was last trimmed
	// against the previous tick's cutoff, so a big gap between ticks can
	// leave samples older than surgeWindow sitting in it.
	priorVolumes := d.volumeWindow[tick.Ticker]
	j := 0
	for ; j < len(priorVolumes); j++ {
		if priorVolumes[j].at.After(cutoff) {
			break
		}
	}
	priorVolumes = priorVolumes[j:]

	volumeMultiplier := 1.0
	if len(priorVolumes) > 0 {
		var sum float64
		for _, v := range priorVolumes {
			sum += v.volume
		}
		volumeMultiplier = tick.Volume / (sum / float64(len(priorVolumes)))
	}

	d.volumeWindow[tick.Ticker] = append(priorVolumes, volumeSample{at: tick.Timestamp, volume: tick.Volume})

	priceStrength, priceTriggered := surgeStrength(math.Abs(magnitudePct), surgePriceModerateThreshold, surgePriceStrongThreshold)
	volumeStrength, volumeTriggered := surgeStrength(volumeMultiplier, surgeVolumeModerateMultiplier, surgeVolumeStrongMultiplier)

	if !priceTriggered && !volumeTriggered {
		return nil, nil
	}

	var trigger events.SurgeTrigger
	var strength events.Strength
	switch {
	case priceTriggered && volumeTriggered:
		trigger = events.TriggerPriceAndVolume
		strength = maxStrength(priceStrength, volumeStrength)
	case priceTriggered:
		trigger = events.TriggerPrice
		strength = priceStrength
	default:
		trigger = events.TriggerVolume
		strength = volumeStrength
	}

	d.dailyCount[tick.Ticker]++

	volume := tick.Volume
	vwap := s.VWAPValue
	score := math.Max(math.Abs(magnitudePct)/surgePriceStrongThreshold, volumeMultiplier/surgeVolumeStrongMultiplier)

	e, err := events.NewSurge(events.SurgeParams{
		Ticker:           tick.Ticker,
		Price:            tick.Price,
		Time:             float64(tick.Timestamp.Unix()),
		Direction:        s.Direction(),
		Volume:           &volume,
		VWAP:             &vwap,
		MagnitudePct:     magnitudePct,
		Score:            score,
		Strength:         strength,
		Trigger:          trigger,
		VolumeMultiplier: volumeMultiplier,
		ExpirationTime:   float64(tick.Timestamp.Add(surgeExpiration).Unix()),
		DailyCount:       d.dailyCount[tick.Ticker],
	})
	if err != nil {
		return nil, err
	}
	s.IncrementCount(events.KindSurge)
	return &e, nil
}

// surgeStrength buckets a magnitude against moderate/strong thresholds.
// triggered is false if the magnitude doesn't clear the moderate threshold.
func surgeStrength(magnitude, moderate, strong float64) (strength events.Strength, triggered bool) {
	switch {
	case magnitude >= strong:
		return events.StrengthStrong, true
	case magnitude >= moderate:
		return events.StrengthModerate, true
	default:
		return events.StrengthWeak, false
	}
}

func maxStrength(a, b events.Strength) events.Strength {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}
