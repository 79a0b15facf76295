package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickstock-core/internal/catalog"
)

// MarketCapThresholds bound the cap-band universes (cache_entries_synchronizer.py's
// market_cap_thresholds, large/mid/small only — mega_cap/micro_cap are read
// but never assigned to a universe in the original and are omitted here).
type MarketCapThresholds struct {
	Large float64 // default 10e9
	Mid   float64 // default 2e9
	Small float64 // default 300e6
}

// DefaultMarketCapThresholds matches the original's documented values.
func DefaultMarketCapThresholds() MarketCapThresholds {
	return MarketCapThresholds{Large: 10e9, Mid: 2e9, Small: 300e6}
}

var topNSizes = []int{100, 500, 1000, 2000}

// sectorUniverses maps a lowercase sector substring to the universes a
// symbol in that sector is assigned to (determine_universe_assignment's
// sector_mappings, kept verbatim).
var sectorUniverses = map[string][]string{
	"technology": {"tech_growth", "high_growth"},
	"healthcare": {"defensive_growth", "large_cap"},
	"financial":  {"financial_services", "value_oriented"},
	"energy":     {"commodity_related", "cyclical"},
	"consumer":   {"consumer_focused"},
	"industrial": {"industrial_growth"},
	"utilities":  {"dividend_focused", "defensive"},
}

// marketCapRerank is task 1: rebuild top-N and cap-band universe
// membership from the current ranking, replacing each changed universe
// wholesale and diffing the old/new symbol sets for Changes.
func marketCapRerank(ctx context.Context, cat catalog.Catalog, thresholds MarketCapThresholds) ([]Change, error) {
	ranked, err := cat.ListRankedSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ranked symbols: %w", err)
	}

	type band struct {
		name    string
		symbols []string
	}
	var bands []band

	for _, n := range topNSizes {
		if len(ranked) >= n {
			bands = append(bands, band{name: fmt.Sprintf("top_%d", n), symbols: rankedSymbols(ranked[:n])})
		}
	}

	var large, mid, small []string
	for _, r := range ranked {
		switch {
		case r.MarketCap >= thresholds.Large:
			large = append(large, r.Symbol)
		case r.MarketCap >= thresholds.Mid:
			mid = append(mid, r.Symbol)
		case r.MarketCap >= thresholds.Small:
			small = append(small, r.Symbol)
		}
	}
	if len(large) > 0 {
		bands = append(bands, band{"large_cap", large})
	}
	if len(mid) > 0 {
		bands = append(bands, band{"mid_cap", mid})
	}
	if len(small) > 0 {
		bands = append(bands, band{"small_cap", small})
	}

	var changes []Change
	now := time.Now()
	for _, b := range bands {
		existing, err := cat.ReadUniverse(ctx, b.name)
		var old []string
		if err == nil {
			old = existing.Symbols
		} else if err != catalog.ErrUniverseNotFound {
			return nil, fmt.Errorf("read universe %s: %w", b.name, err)
		}

		added, removed := diffSymbols(old, b.symbols)
		if len(added) == 0 && len(removed) == 0 {
			continue
		}

		if err := cat.UpsertUniverse(ctx, b.name, b.symbols, "cap_band", map[string]any{
			"update_type": "market_cap_recalculation",
			"total_symbols": len(b.symbols),
			"criteria": fmt.Sprintf("market cap ranking, updated %s", now.Format(time.RFC3339)),
		}); err != nil {
			return nil, fmt.Errorf("upsert universe %s: %w", b.name, err)
		}

		for _, s := range added {
			changes = append(changes, Change{
				Type: "market_cap_update", Universe: b.name, Symbol: s, Action: ActionAdded,
				Reason: fmt.Sprintf("market cap ranking qualified for %s", b.name), Timestamp: now,
			})
		}
		for _, s := range removed {
			changes = append(changes, Change{
				Type: "market_cap_update", Universe: b.name, Symbol: s, Action: ActionRemoved,
				Reason: fmt.Sprintf("market cap ranking no longer qualifies for %s", b.name), Timestamp: now,
				Metadata: map[string]any{"reason": "market_cap_drop"},
			})
		}
	}
	return changes, nil
}

// ipoAssignment is task 2: assign recent, unassigned IPOs to the
// universes determineUniverseAssignment selects.
func ipoAssignment(ctx context.Context, cat catalog.Catalog, thresholds MarketCapThresholds) ([]Change, error) {
	ipos, err := cat.ListRecentIPOs(ctx, 30)
	if err != nil {
		return nil, fmt.Errorf("list recent ipos: %w", err)
	}

	var changes []Change
	now := time.Now()
	for _, ipo := range ipos {
		for _, universe := range determineUniverseAssignment(ipo, thresholds) {
			existing, err := cat.ReadUniverse(ctx, universe)
			var current []string
			if err == nil {
				current = existing.Symbols
			} else if err != catalog.ErrUniverseNotFound {
				return nil, fmt.Errorf("read universe %s: %w", universe, err)
			}
			if contains(current, ipo.Symbol) {
				continue
			}

			updated := append(append([]string{}, current...), ipo.Symbol)
			if err := cat.UpsertUniverse(ctx, universe, updated, categoryForUniverse(universe), map[string]any{
				"update_type": "ipo_assignment",
				"ipo_date":    now.Format(time.RFC3339),
				"assignment_reason": fmt.Sprintf("new IPO - %s sector", orUnknown(ipo.Sector)),
			}); err != nil {
				return nil, fmt.Errorf("upsert universe %s: %w", universe, err)
			}

			changes = append(changes, Change{
				Type: "ipo_assignment", Universe: universe, Symbol: ipo.Symbol, Action: ActionAdded,
				Reason: fmt.Sprintf("new IPO assigned - sector: %s, market cap: $%.1fB", orUnknown(ipo.Sector), ipo.MarketCap/1e9),
				Timestamp: now,
				Metadata: map[string]any{
					"sector": ipo.Sector, "industry": ipo.Industry,
					"market_cap": ipo.MarketCap, "symbol_type": ipo.Type,
				},
			})
		}
	}
	return changes, nil
}

// categoryForUniverse maps a universe name produced by
// determineUniverseAssignment to the category ListUniversesByCategory (and
// allUniverses' category sweep) later filters on.
func categoryForUniverse(universe string) string {
	switch universe {
	case "large_cap", "mid_cap", "small_cap":
		return "cap_band"
	case "etf_universe":
		return "ETF"
	case "stock_universe", "general_market", "small_cap_general":
		return "general"
	}
	for _, universes := range sectorUniverses {
		for _, u := range universes {
			if u == universe {
				return "sector"
			}
		}
	}
	return "general"
}

// determineUniverseAssignment mirrors cache_entries_synchronizer.py's
// method of the same name: cap band, sector substring match, type, and
// a general-market fallback, deduplicated.
func determineUniverseAssignment(s catalog.SymbolInfo, thresholds MarketCapThresholds) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(u string) {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}

	switch {
	case s.MarketCap >= thresholds.Large:
		add("large_cap")
	case s.MarketCap >= thresholds.Mid:
		add("mid_cap")
	case s.MarketCap >= thresholds.Small:
		add("small_cap")
	}

	sector := strings.ToLower(s.Sector)
	for key, universes := range sectorUniverses {
		if strings.Contains(sector, key) {
			for _, u := range universes {
				add(u)
			}
		}
	}

	switch s.Type {
	case "ETF":
		add("etf_universe")
	case "CS":
		add("stock_universe")
	}

	if len(out) == 0 {
		if s.MarketCap > 1e9 {
			add("general_market")
		} else {
			add("small_cap_general")
		}
	}
	return out
}

// delistedCleanup is task 3: remove symbols absent or inactive in the
// catalog from every universe that still lists them.
func delistedCleanup(ctx context.Context, cat catalog.Catalog) ([]Change, error) {
	// The original discovers delisted symbols via a LEFT JOIN between
	// cache_entries' symbol arrays and the symbols table. Without a
	// correlated-query equivalent, ListRecentIPOs/ListRankedSymbols
	// don't surface this set directly, so the synchronizer walks every
	// universe and checks each member via SymbolInfo.
	universes, err := allUniverses(ctx, cat)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var changes []Change
	checked := map[string]bool{} // symbol -> delisted
	for _, u := range universes {
		for _, sym := range u.Symbols {
			if _, ok := checked[sym]; ok {
				continue
			}
			info, err := cat.SymbolInfo(ctx, sym)
			switch {
			case err == nil:
				checked[sym] = !info.Active
			case err == catalog.ErrSymbolNotFound:
				checked[sym] = true
			default:
				return nil, fmt.Errorf("symbol info %s: %w", sym, err)
			}
		}
	}

	for sym, delisted := range checked {
		if !delisted {
			continue
		}
		affected, err := cat.DeleteSymbolFromAllUniverses(ctx, sym)
		if err != nil {
			return nil, fmt.Errorf("delete symbol %s from universes: %w", sym, err)
		}
		for _, universe := range affected {
			changes = append(changes, Change{
				Type: "delisting_cleanup", Universe: universe, Symbol: sym, Action: ActionRemoved,
				Reason: "symbol delisted or deactivated", Timestamp: now,
				Metadata: map[string]any{"cleanup_type": "delisting"},
			})
		}
	}
	return changes, nil
}

// themeRebalancing is task 4: a placeholder, as in the original — no
// rebalancing rules are configured, so it always emits no changes.
func themeRebalancing(ctx context.Context, cat catalog.Catalog) ([]Change, error) {
	return nil, nil
}

// etfUniverseMaintenance is task 5: touch last_updated on every
// ETF-category universe and emit a trivial "updated" Change.
func etfUniverseMaintenance(ctx context.Context, cat catalog.Catalog) ([]Change, error) {
	universes, err := cat.ListUniversesByCategory(ctx, "ETF")
	if err != nil {
		return nil, fmt.Errorf("list etf universes: %w", err)
	}

	now := time.Now()
	var changes []Change
	for _, u := range universes {
		if err := cat.UpsertUniverse(ctx, u.CacheKey, u.Symbols, u.Category, u.Metadata); err != nil {
			return nil, fmt.Errorf("touch universe %s: %w", u.CacheKey, err)
		}
		changes = append(changes, Change{
			Type: "etf_maintenance", Universe: u.CacheKey, Action: ActionUpdated,
			Reason: "refreshed ETF universe metadata", Timestamp: now,
		})
	}
	return changes, nil
}

func allUniverses(ctx context.Context, cat catalog.Catalog) ([]catalog.Universe, error) {
	var out []catalog.Universe
	for _, category := range []string{"ETF", "sector", "theme", "cap_band", "general"} {
		us, err := cat.ListUniversesByCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("list universes for category %s: %w", category, err)
		}
		out = append(out, us...)
	}
	return out, nil
}

func rankedSymbols(ranked []catalog.RankedSymbol) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Symbol
	}
	return out
}

func diffSymbols(old, updated []string) (added, removed []string) {
	oldSet := toSet(old)
	newSet := toSet(updated)
	for s := range newSet {
		if _, ok := oldSet[s]; !ok {
			added = append(added, s)
		}
	}
	for s := range oldSet {
		if _, ok := newSet[s]; !ok {
			removed = append(removed, s)
		}
	}
	return added, removed
}

func toSet(symbols []string) map[string]struct{} {
	m := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		m[s] = struct{}{}
	}
	return m
}

func contains(symbols []string, target string) bool {
	for _, s := range symbols {
		if s == target {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
