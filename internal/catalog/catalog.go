// Package catalog defines the external symbol/universe store contract
// (§6 inbound Catalog) and a MongoDB-backed implementation. The
// synchronizer and priority cache consume this package; they never
// touch a driver directly.
package catalog

import (
	"context"
	"time"
)

// RankedSymbol is one row of a market-cap ranking (cache_entries_synchronizer.py's
// ranking_query: symbol, market_cap, sector, name, rank).
type RankedSymbol struct {
	Symbol    string
	MarketCap float64
	Sector    string
	Name      string
	Type      string // "CS", "ETF", ...
	Rank      int
}

// SymbolInfo is a single symbol's catalog record.
type SymbolInfo struct {
	Symbol          string
	Name            string
	Sector          string
	Industry        string
	Type            string
	MarketCap       float64
	Active          bool
	InitialLoadDate time.Time
}

// Universe is a named, ordered symbol set with free-form metadata
// (§3 UniverseEntry).
type Universe struct {
	CacheKey    string
	Symbols     []string
	Category    string
	Metadata    map[string]any
	LastUpdated time.Time
}

// Catalog is the persistent store of symbols and universes (§6). All
// operations are transactional; Upsert is atomic against concurrent
// readers of the same cache_key.
type Catalog interface {
	// ListRankedSymbols returns active, market-cap-ranked common stock
	// and ETF symbols, highest market cap first.
	ListRankedSymbols(ctx context.Context) ([]RankedSymbol, error)

	// ListRecentIPOs returns symbols whose initial load date falls
	// within the last `days` days and that are not yet a member of any
	// universe.
	ListRecentIPOs(ctx context.Context, days int) ([]SymbolInfo, error)

	// ReadUniverse returns the universe for cacheKey, or
	// ErrUniverseNotFound if none exists.
	ReadUniverse(ctx context.Context, cacheKey string) (Universe, error)

	// UpsertUniverse atomically replaces (or creates) the symbol set,
	// category, and metadata for cacheKey. category is what
	// ListUniversesByCategory later filters on, so callers must pass the
	// universe's actual category on every write, not just its first.
	UpsertUniverse(ctx context.Context, cacheKey string, symbols []string, category string, metadata map[string]any) error

	// ListUniversesByCategory returns every universe tagged with the
	// given category (e.g. "sector_etf", "theme").
	ListUniversesByCategory(ctx context.Context, category string) ([]Universe, error)

	// DeleteSymbolFromAllUniverses removes symbol from every universe
	// that currently contains it and returns the affected cache keys.
	DeleteSymbolFromAllUniverses(ctx context.Context, symbol string) ([]string, error)

	// SymbolInfo returns the catalog record for a single symbol.
	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error)
}

// TickerSource adapts a Catalog to internal/cache.RankedSymbolsSource,
// projecting the richer RankedSymbol rows down to bare tickers in
// market-cap order.
type TickerSource struct {
	Catalog Catalog
}

// ListRankedSymbols implements internal/cache.RankedSymbolsSource.
func (s TickerSource) ListRankedSymbols(ctx context.Context) ([]string, error) {
	ranked, err := s.Catalog.ListRankedSymbols(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Symbol
	}
	return out, nil
}
