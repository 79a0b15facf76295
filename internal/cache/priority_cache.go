// Package cache implements the read-mostly priority symbol cache consulted
// by the queue's admission policy (§3 PriorityCache, §4.2, §9). A background
// refresh goroutine rebuilds the classification every refresh interval and
// swaps it in atomically; readers never block on the writer and always see
// a self-consistent snapshot, mirroring how internal/market.Scanner
// publishes a fresh ScanResult without holding the engine up.
package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Class is the priority classification a symbol falls into.
type Class int

const (
	ClassNone Class = iota
	ClassSecondary
	ClassTop
)

// RankedSymbolsSource is the subset of the catalog contract the cache needs.
// Satisfied by internal/catalog.TickerSource wrapping a Catalog.
type RankedSymbolsSource interface {
	ListRankedSymbols(ctx context.Context) ([]string, error)
}

// Config controls cache sizing and refresh cadence.
type Config struct {
	// TopSize is how many of the highest-ranked symbols become ClassTop.
	TopSize int
	// SecondarySize is how many additional ranked symbols beyond TopSize
	// become ClassSecondary.
	SecondarySize int
	// RefreshInterval is how often the snapshot is rebuilt (§6
	// priority_cache_refresh_seconds, default 300s).
	RefreshInterval time.Duration
	// MarketOpenPromotions is the configurable set of tickers promoted to
	// priority 1 during the market-open window (§4.2 step 2, §9 open
	// question — not hardcoded).
	MarketOpenPromotions []string
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{
		TopSize:              50,
		SecondarySize:         500,
		RefreshInterval:       300 * time.Second,
		MarketOpenPromotions:  []string{"SPY", "QQQ", "IWM", "DIA"},
	}
}

// snapshot is an immutable classification, swapped in wholesale on refresh.
type snapshot struct {
	classes     map[string]Class
	generatedAt time.Time
}

// Cache is the priority symbol cache. Zero value is not usable; construct
// with New.
type Cache struct {
	cfg    Config
	source RankedSymbolsSource
	logger *slog.Logger

	current     atomic.Pointer[snapshot]
	promotionSet map[string]struct{}
	location     *time.Location
}

// New creates a Cache. An empty snapshot is installed immediately so readers
// never see a nil pointer before the first refresh completes.
func New(cfg Config, source RankedSymbolsSource, logger *slog.Logger) *Cache {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}

	promotions := make(map[string]struct{}, len(cfg.MarketOpenPromotions))
	for _, t := range cfg.MarketOpenPromotions {
		promotions[t] = struct{}{}
	}

	c := &Cache{
		cfg:          cfg,
		source:       source,
		logger:       logger.With("component", "priority_cache"),
		promotionSet: promotions,
		location:     loc,
	}
	c.current.Store(&snapshot{classes: map[string]Class{}, generatedAt: time.Time{}})
	return c
}

// Run blocks, refreshing the snapshot on cfg.RefreshInterval until ctx is
// cancelled. An initial refresh happens immediately.
func (c *Cache) Run(ctx context.Context) {
	c.refresh(ctx)

	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *Cache) refresh(ctx context.Context) {
	ranked, err := c.source.ListRankedSymbols(ctx)
	if err != nil {
		c.logger.Error("refresh failed, keeping stale snapshot", "error", err)
		return
	}

	classes := make(map[string]Class, len(ranked))
	for i, ticker := range ranked {
		switch {
		case i < c.cfg.TopSize:
			classes[ticker] = ClassTop
		case i < c.cfg.TopSize+c.cfg.SecondarySize:
			classes[ticker] = ClassSecondary
		default:
			classes[ticker] = ClassNone
		}
	}

	c.current.Store(&snapshot{classes: classes, generatedAt: time.Now()})
	c.logger.Info("priority cache refreshed", "symbols", len(classes))
}

// ClassOf returns the priority class of a symbol in the current snapshot.
// Unknown symbols are ClassNone.
func (c *Cache) ClassOf(ticker string) Class {
	snap := c.current.Load()
	return snap.classes[ticker]
}

// GeneratedAt returns when the current snapshot was built.
func (c *Cache) GeneratedAt() time.Time {
	return c.current.Load().generatedAt
}

// ShouldProcess gates non-priority traffic under throttling (§4.2 step 4).
// Level 0 always passes (throttling isn't active). Higher levels require
// increasingly high priority classification to pass.
func (c *Cache) ShouldProcess(ticker string, throttleLevel int) bool {
	if throttleLevel <= 0 {
		return true
	}
	class := c.ClassOf(ticker)
	switch throttleLevel {
	case 1:
		return class == ClassTop || class == ClassSecondary
	case 2:
		return class == ClassTop
	default: // level 3: only the most protected kinds get through at all,
		// and those (control, surge) never consult this gate per §4.2.
		return false
	}
}

// IsMarketOpenPromotion reports whether ticker should be promoted to
// priority 1 because it's one of the configured market-open ETFs within the
// first 30 minutes after the regular session open (09:30-10:00 US/Eastern,
// §4.2 step 2).
func (c *Cache) IsMarketOpenPromotion(ticker string, at time.Time) bool {
	if _, ok := c.promotionSet[ticker]; !ok {
		return false
	}
	local := at.In(c.location)
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, c.location)
	windowEnd := open.Add(30 * time.Minute)
	return !local.Before(open) && local.Before(windowEnd)
}
