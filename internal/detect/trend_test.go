package detect

import (
	"testing"
	"time"

	"tickstock-core/internal/tickerstate"
	"tickstock-core/pkg/events"
)

func TestTrendDetectorNoEventBelowThreshold(t *testing.T) {
	t.Parallel()

	base := time.Now()
	s := tickerstate.New("AAPL", 100, base)
	d := NewTrendDetector()

	e, err := d.Detect(s, Tick{Ticker: "AAPL", Price: 100.01, Volume: 10, Timestamp: base.Add(time.Second)})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if e != nil {
		t.Errorf("expected no trend event for a tiny move, got %+v", e)
	}
}

func TestTrendDetectorEmitsOnSustainedMove(t *testing.T) {
	t.Parallel()

	base := time.Now()
	s := tickerstate.New("AAPL", 100, base)
	d := NewTrendDetector()

	var last *events.Event
	for i := 1; i <= 5; i++ {
		e, err := d.Detect(s, Tick{
			Ticker:    "AAPL",
			Price:     100 + float64(i),
			Volume:    10,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if e != nil {
			last = e
		}
	}

	if last == nil {
		t.Fatal("expected a trend event after a sustained 5-tick upward run")
	}
	if last.Trend.VWAPPosition != events.VWAPAbove {
		t.Errorf("VWAPPosition = %v, want above (price rose faster than VWAP accumulates)", last.Trend.VWAPPosition)
	}
	if last.Direction != events.DirUp {
		t.Errorf("Direction = %v, want up", last.Direction)
	}
}

func TestTrendDetectorResetsAgeOnDirectionFlip(t *testing.T) {
	t.Parallel()

	base := time.Now()
	s := tickerstate.New("AAPL", 100, base)
	d := NewTrendDetector()

	for i := 1; i <= 3; i++ {
		if _, err := d.Detect(s, Tick{Ticker: "AAPL", Price: 100 + float64(i), Volume: 10, Timestamp: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Detect: %v", err)
		}
	}

	flipTime := base.Add(10 * time.Second)
	if _, err := d.Detect(s, Tick{Ticker: "AAPL", Price: 90, Volume: 10, Timestamp: flipTime}); err != nil {
		t.Fatalf("Detect: %v", err)
	}

	started, ok := d.trendStart["AAPL"]
	if !ok {
		t.Fatal("expected trendStart to be tracked for AAPL")
	}
	if !started.Equal(flipTime) {
		t.Errorf("trendStart = %v, want reset to flip time %v", started, flipTime)
	}
}
