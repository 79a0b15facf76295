package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

type stubSource struct {
	symbols []string
}

func (s stubSource) ListRankedSymbols(ctx context.Context) ([]string, error) {
	return s.symbols, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassOfPartitionsTopAndSecondary(t *testing.T) {
	t.Parallel()

	cfg := Config{TopSize: 2, SecondarySize: 2, RefreshInterval: time.Hour}
	symbols := []string{"A", "B", "C", "D", "E"}
	c := New(cfg, stubSource{symbols: symbols}, discardLogger())
	c.refresh(context.Background())

	cases := map[string]Class{"A": ClassTop, "B": ClassTop, "C": ClassSecondary, "D": ClassSecondary, "E": ClassNone}
	for ticker, want := range cases {
		if got := c.ClassOf(ticker); got != want {
			t.Errorf("ClassOf(%q) = %v, want %v", ticker, got, want)
		}
	}
	if c.ClassOf("UNKNOWN") != ClassNone {
		t.Error("unknown symbol should be ClassNone")
	}
}

func TestShouldProcessGatesByThrottleLevel(t *testing.T) {
	t.Parallel()

	cfg := Config{TopSize: 1, SecondarySize: 1, RefreshInterval: time.Hour}
	c := New(cfg, stubSource{symbols: []string{"TOP", "SEC", "NONE"}}, discardLogger())
	c.refresh(context.Background())

	if !c.ShouldProcess("NONE", 0) {
		t.Error("level 0 should always pass")
	}
	if !c.ShouldProcess("SEC", 1) || c.ShouldProcess("NONE", 1) {
		t.Error("level 1 should admit top+secondary, reject none")
	}
	if !c.ShouldProcess("TOP", 2) || c.ShouldProcess("SEC", 2) {
		t.Error("level 2 should admit only top")
	}
	if c.ShouldProcess("TOP", 3) {
		t.Error("level 3 should reject everything via this gate")
	}
}

func TestIsMarketOpenPromotion(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RefreshInterval = time.Hour
	c := New(cfg, stubSource{}, discardLogger())

	loc, _ := time.LoadLocation("America/New_York")
	open := time.Date(2024, 3, 4, 9, 35, 0, 0, loc)
	notPromoted := time.Date(2024, 3, 4, 10, 5, 0, 0, loc)

	if !c.IsMarketOpenPromotion("SPY", open) {
		t.Error("SPY at 9:35 ET should be promoted")
	}
	if c.IsMarketOpenPromotion("SPY", notPromoted) {
		t.Error("SPY at 10:05 ET should no longer be promoted")
	}
	if c.IsMarketOpenPromotion("AAPL", open) {
		t.Error("AAPL is not in the promotion list")
	}
}
