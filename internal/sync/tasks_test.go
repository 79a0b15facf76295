package sync

import (
	"context"
	"testing"

	"tickstock-core/internal/catalog"
)

// fakeCatalog is an in-memory catalog.Catalog for task-level tests.
type fakeCatalog struct {
	ranked    []catalog.RankedSymbol
	ipos      []catalog.SymbolInfo
	symbols   map[string]catalog.SymbolInfo
	universes map[string]catalog.Universe
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		symbols:   map[string]catalog.SymbolInfo{},
		universes: map[string]catalog.Universe{},
	}
}

func (f *fakeCatalog) ListRankedSymbols(ctx context.Context) ([]catalog.RankedSymbol, error) {
	return f.ranked, nil
}
func (f *fakeCatalog) ListRecentIPOs(ctx context.Context, days int) ([]catalog.SymbolInfo, error) {
	return f.ipos, nil
}
func (f *fakeCatalog) ReadUniverse(ctx context.Context, cacheKey string) (catalog.Universe, error) {
	u, ok := f.universes[cacheKey]
	if !ok {
		return catalog.Universe{}, catalog.ErrUniverseNotFound
	}
	return u, nil
}
func (f *fakeCatalog) UpsertUniverse(ctx context.Context, cacheKey string, symbols []string, category string, metadata map[string]any) error {
	u := f.universes[cacheKey]
	u.CacheKey = cacheKey
	u.Symbols = symbols
	u.Category = category
	u.Metadata = metadata
	f.universes[cacheKey] = u
	return nil
}
func (f *fakeCatalog) ListUniversesByCategory(ctx context.Context, category string) ([]catalog.Universe, error) {
	var out []catalog.Universe
	for _, u := range f.universes {
		if u.Category == category {
			out = append(out, u)
		}
	}
	return out, nil
}
func (f *fakeCatalog) DeleteSymbolFromAllUniverses(ctx context.Context, symbol string) ([]string, error) {
	var affected []string
	for key, u := range f.universes {
		kept := make([]string, 0, len(u.Symbols))
		removed := false
		for _, s := range u.Symbols {
			if s == symbol {
				removed = true
				continue
			}
			kept = append(kept, s)
		}
		if removed {
			u.Symbols = kept
			f.universes[key] = u
			affected = append(affected, key)
		}
	}
	return affected, nil
}
func (f *fakeCatalog) SymbolInfo(ctx context.Context, symbol string) (catalog.SymbolInfo, error) {
	s, ok := f.symbols[symbol]
	if !ok {
		return catalog.SymbolInfo{}, catalog.ErrSymbolNotFound
	}
	return s, nil
}

// TestMarketCapRerankReplacesUniverseAndEmitsChanges mirrors the
// spec's worked example (S6): a fresh top-N ranking should replace the
// stale membership and emit one added/removed Change per symbol.
func TestMarketCapRerankReplacesUniverseAndEmitsChanges(t *testing.T) {
	t.Parallel()

	fc := newFakeCatalog()
	fc.ranked = []catalog.RankedSymbol{
		{Symbol: "A", MarketCap: 5e9, Type: "CS"},
		{Symbol: "B", MarketCap: 4e9, Type: "CS"},
		{Symbol: "C", MarketCap: 3e9, Type: "CS"},
	}
	fc.universes["large_cap"] = catalog.Universe{CacheKey: "large_cap", Symbols: []string{"X", "Y", "Z"}}

	thresholds := MarketCapThresholds{Large: 2e9, Mid: 1e9, Small: 1e8}
	changes, err := marketCapRerank(context.Background(), fc, thresholds)
	if err != nil {
		t.Fatalf("marketCapRerank: %v", err)
	}

	var added, removed int
	for _, c := range changes {
		switch c.Action {
		case ActionAdded:
			added++
		case ActionRemoved:
			removed++
		}
	}
	if added != 3 || removed != 3 {
		t.Errorf("got %d added, %d removed; want 3 and 3", added, removed)
	}

	got := fc.universes["large_cap"].Symbols
	if len(got) != 3 {
		t.Errorf("large_cap universe = %v, want 3 symbols", got)
	}
}

// TestMarketCapRerankSkipsUnchangedUniverse verifies a universe whose
// set is unchanged emits no Changes and isn't rewritten.
func TestMarketCapRerankSkipsUnchangedUniverse(t *testing.T) {
	t.Parallel()

	fc := newFakeCatalog()
	fc.ranked = []catalog.RankedSymbol{{Symbol: "A", MarketCap: 5e9, Type: "CS"}}
	fc.universes["large_cap"] = catalog.Universe{CacheKey: "large_cap", Symbols: []string{"A"}, Metadata: map[string]any{"v": 1}}

	thresholds := MarketCapThresholds{Large: 2e9, Mid: 1e9, Small: 1e8}
	changes, err := marketCapRerank(context.Background(), fc, thresholds)
	if err != nil {
		t.Fatalf("marketCapRerank: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes for unchanged universe, got %d", len(changes))
	}
	if fc.universes["large_cap"].Metadata["v"] != 1 {
		t.Errorf("universe should not have been rewritten")
	}
}

// TestIPOAssignmentAssignsBySectorAndCapBand verifies
// determineUniverseAssignment's multi-universe fan-out for one IPO.
func TestIPOAssignmentAssignsBySectorAndCapBand(t *testing.T) {
	t.Parallel()

	fc := newFakeCatalog()
	fc.ipos = []catalog.SymbolInfo{
		{Symbol: "NEWCO", Sector: "Technology", MarketCap: 15e9, Type: "CS"},
	}

	thresholds := DefaultMarketCapThresholds()
	changes, err := ipoAssignment(context.Background(), fc, thresholds)
	if err != nil {
		t.Fatalf("ipoAssignment: %v", err)
	}

	universes := map[string]bool{}
	for _, c := range changes {
		universes[c.Universe] = true
	}
	for _, want := range []string{"large_cap", "tech_growth", "high_growth", "stock_universe"} {
		if !universes[want] {
			t.Errorf("expected assignment to %q, got universes %v", want, universes)
		}
	}
}

// TestIPOAssignmentSkipsAlreadyAssignedSymbol verifies idempotence: an
// IPO already present in a target universe produces no duplicate Change.
func TestIPOAssignmentSkipsAlreadyAssignedSymbol(t *testing.T) {
	t.Parallel()

	fc := newFakeCatalog()
	fc.ipos = []catalog.SymbolInfo{{Symbol: "NEWCO", MarketCap: 5e8, Type: "CS"}}
	fc.universes["stock_universe"] = catalog.Universe{CacheKey: "stock_universe", Symbols: []string{"NEWCO"}}

	changes, err := ipoAssignment(context.Background(), fc, DefaultMarketCapThresholds())
	if err != nil {
		t.Fatalf("ipoAssignment: %v", err)
	}
	for _, c := range changes {
		if c.Universe == "stock_universe" {
			t.Errorf("expected no change for already-assigned universe, got %+v", c)
		}
	}
}

// TestDelistedCleanupRemovesInactiveSymbolFromAllUniverses verifies a
// symbol missing or inactive in the catalog is stripped from every
// universe that lists it.
func TestDelistedCleanupRemovesInactiveSymbolFromAllUniverses(t *testing.T) {
	t.Parallel()

	fc := newFakeCatalog()
	fc.universes["top_100"] = catalog.Universe{CacheKey: "top_100", Category: "cap_band", Symbols: []string{"GONE", "AAPL"}}
	fc.universes["tech_growth"] = catalog.Universe{CacheKey: "tech_growth", Category: "sector", Symbols: []string{"GONE"}}
	fc.symbols["AAPL"] = catalog.SymbolInfo{Symbol: "AAPL", Active: true}
	// "GONE" is absent from fc.symbols entirely → treated as delisted.

	changes, err := delistedCleanup(context.Background(), fc)
	if err != nil {
		t.Fatalf("delistedCleanup: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 removal changes (one per universe), got %d: %+v", len(changes), changes)
	}
	if contains(fc.universes["top_100"].Symbols, "GONE") {
		t.Errorf("GONE should have been removed from top_100")
	}
	if !contains(fc.universes["top_100"].Symbols, "AAPL") {
		t.Errorf("AAPL should remain in top_100")
	}
}

// TestThemeRebalancingIsANoOp matches the original's placeholder
// behavior.
func TestThemeRebalancingIsANoOp(t *testing.T) {
	t.Parallel()

	changes, err := themeRebalancing(context.Background(), newFakeCatalog())
	if err != nil || len(changes) != 0 {
		t.Errorf("themeRebalancing should be a no-op, got changes=%v err=%v", changes, err)
	}
}

// TestEtfUniverseMaintenanceTouchesEveryETFUniverse verifies one
// "updated" Change is emitted per ETF-category universe.
func TestEtfUniverseMaintenanceTouchesEveryETFUniverse(t *testing.T) {
	t.Parallel()

	fc := newFakeCatalog()
	fc.universes["spdr_sectors"] = catalog.Universe{CacheKey: "spdr_sectors", Category: "ETF", Symbols: []string{"XLK", "XLF"}}
	fc.universes["large_cap"] = catalog.Universe{CacheKey: "large_cap", Category: "cap_band", Symbols: []string{"AAPL"}}

	changes, err := etfUniverseMaintenance(context.Background(), fc)
	if err != nil {
		t.Fatalf("etfUniverseMaintenance: %v", err)
	}
	if len(changes) != 1 || changes[0].Universe != "spdr_sectors" || changes[0].Action != ActionUpdated {
		t.Errorf("expected one updated Change for spdr_sectors, got %+v", changes)
	}
}
