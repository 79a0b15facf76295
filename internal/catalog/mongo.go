package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// symbolDoc mirrors the "symbols" collection (cache_entries_synchronizer.py's
// ranking_query and ipo_query columns).
type symbolDoc struct {
	Symbol          string    `bson:"symbol"`
	Name            string    `bson:"name"`
	Sector          string    `bson:"sector"`
	Industry        string    `bson:"industry"`
	Type            string    `bson:"type"`
	MarketCap       float64   `bson:"market_cap"`
	Active          bool      `bson:"active"`
	InitialLoadDate time.Time `bson:"initial_load_date"`
}

// universeDoc mirrors the "cache_entries" table/collection
// (cache_key, symbols, universe_metadata, category, last_universe_update).
type universeDoc struct {
	CacheKey    string         `bson:"cache_key"`
	Symbols     []string       `bson:"symbols"`
	Category    string         `bson:"category"`
	Metadata    map[string]any `bson:"universe_metadata"`
	LastUpdated time.Time      `bson:"last_universe_update"`
}

// MongoCatalog implements Catalog on top of go.mongodb.org/mongo-driver/v2.
// Grounded on internal/store/store.go's role (the persistence boundary
// called by the higher-level domain code) but generalized from
// file-based JSON to a real driver, per the pack's ndrandal-feed-simulator
// persist.Store.
type MongoCatalog struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and returns a MongoCatalog. uri should
// include the database name (mongodb://host:27017/tickstock); if
// absent, "tickstock" is used.
func Open(ctx context.Context, uri string) (*MongoCatalog, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := "tickstock"
	if u, err := url.Parse(uri); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			dbName = name
		}
	}
	return &MongoCatalog{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects the underlying client.
func (c *MongoCatalog) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique/lookup indexes the catalog relies
// on. Safe to call repeatedly (CreateOne is idempotent on an existing
// equivalent index).
func (c *MongoCatalog) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{"symbols", mongo.IndexModel{Keys: bson.D{{Key: "symbol", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{"symbols", mongo.IndexModel{Keys: bson.D{{Key: "market_cap", Value: -1}}}},
		{"cache_entries", mongo.IndexModel{Keys: bson.D{{Key: "cache_key", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{"cache_entries", mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := c.db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection, err)
		}
	}
	return nil
}

func (c *MongoCatalog) symbols() *mongo.Collection   { return c.db.Collection("symbols") }
func (c *MongoCatalog) universes() *mongo.Collection { return c.db.Collection("cache_entries") }

// ListRankedSymbols returns active CS/ETF symbols ordered by market cap
// descending, mirroring cache_entries_synchronizer.py's ranking_query.
func (c *MongoCatalog) ListRankedSymbols(ctx context.Context) ([]RankedSymbol, error) {
	filter := bson.M{
		"active":     true,
		"market_cap": bson.M{"$gt": 0},
		"type":       bson.M{"$in": bson.A{"CS", "ETF"}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "market_cap", Value: -1}})
	cur, err := c.symbols().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list ranked symbols: %w", err)
	}
	defer cur.Close(ctx)

	var out []RankedSymbol
	rank := 0
	for cur.Next(ctx) {
		var d symbolDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode symbol: %w", err)
		}
		rank++
		out = append(out, RankedSymbol{
			Symbol: d.Symbol, MarketCap: d.MarketCap, Sector: d.Sector,
			Name: d.Name, Type: d.Type, Rank: rank,
		})
	}
	return out, cur.Err()
}

// ListRecentIPOs returns symbols loaded within the last `days` days that
// are not yet a member of any universe, mirroring ipo_query.
func (c *MongoCatalog) ListRecentIPOs(ctx context.Context, days int) ([]SymbolInfo, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	assigned, err := c.allAssignedSymbols(ctx)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"initial_load_date": bson.M{"$gte": cutoff},
		"active":            true,
		"symbol":            bson.M{"$nin": assigned},
	}
	opts := options.Find().SetSort(bson.D{{Key: "market_cap", Value: -1}})
	cur, err := c.symbols().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list recent ipos: %w", err)
	}
	defer cur.Close(ctx)

	var out []SymbolInfo
	for cur.Next(ctx) {
		var d symbolDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode symbol: %w", err)
		}
		out = append(out, toSymbolInfo(d))
	}
	return out, cur.Err()
}

// allAssignedSymbols collects every symbol currently present in any
// universe, used to exclude already-assigned IPOs.
func (c *MongoCatalog) allAssignedSymbols(ctx context.Context) (bson.A, error) {
	cur, err := c.universes().Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"symbols": 1}))
	if err != nil {
		return nil, fmt.Errorf("scan universes: %w", err)
	}
	defer cur.Close(ctx)

	seen := map[string]struct{}{}
	for cur.Next(ctx) {
		var row struct {
			Symbols []string `bson:"symbols"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode universe symbols: %w", err)
		}
		for _, s := range row.Symbols {
			seen[s] = struct{}{}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	out := make(bson.A, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	return out, nil
}

// ReadUniverse returns the universe document for cacheKey.
func (c *MongoCatalog) ReadUniverse(ctx context.Context, cacheKey string) (Universe, error) {
	var d universeDoc
	err := c.universes().FindOne(ctx, bson.M{"cache_key": cacheKey}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return Universe{}, ErrUniverseNotFound
	}
	if err != nil {
		return Universe{}, fmt.Errorf("read universe %s: %w", cacheKey, err)
	}
	return toUniverse(d), nil
}

// UpsertUniverse atomically replaces (or creates) the symbol set,
// category, and metadata for cacheKey, mirroring update_universe_symbols's
// INSERT ... ON CONFLICT DO UPDATE.
func (c *MongoCatalog) UpsertUniverse(ctx context.Context, cacheKey string, symbols []string, category string, metadata map[string]any) error {
	filter := bson.M{"cache_key": cacheKey}
	update := bson.M{"$set": bson.M{
		"cache_key":            cacheKey,
		"symbols":              symbols,
		"category":             category,
		"universe_metadata":    metadata,
		"last_universe_update": time.Now(),
	}}
	_, err := c.universes().UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert universe %s: %w", cacheKey, err)
	}
	return nil
}

// ListUniversesByCategory returns every universe tagged with category.
func (c *MongoCatalog) ListUniversesByCategory(ctx context.Context, category string) ([]Universe, error) {
	cur, err := c.universes().Find(ctx, bson.M{"category": category})
	if err != nil {
		return nil, fmt.Errorf("list universes by category %s: %w", category, err)
	}
	defer cur.Close(ctx)

	var out []Universe
	for cur.Next(ctx) {
		var d universeDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode universe: %w", err)
		}
		out = append(out, toUniverse(d))
	}
	return out, cur.Err()
}

// DeleteSymbolFromAllUniverses removes symbol from every universe
// containing it, inside a transaction, mirroring
// remove_symbol_from_all_universes's read-then-rewrite-each-row shape.
func (c *MongoCatalog) DeleteSymbolFromAllUniverses(ctx context.Context, symbol string) ([]string, error) {
	session, err := c.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc context.Context) (any, error) {
		cur, err := c.universes().Find(sc, bson.M{"symbols": symbol})
		if err != nil {
			return nil, fmt.Errorf("find affected universes: %w", err)
		}
		defer cur.Close(sc)

		var affected []string
		for cur.Next(sc) {
			var d universeDoc
			if err := cur.Decode(&d); err != nil {
				return nil, fmt.Errorf("decode universe: %w", err)
			}
			updated := removeSymbol(d.Symbols, symbol)
			update := bson.M{"$set": bson.M{"symbols": updated, "last_universe_update": time.Now()}}
			if _, err := c.universes().UpdateOne(sc, bson.M{"cache_key": d.CacheKey}, update); err != nil {
				return nil, fmt.Errorf("update universe %s: %w", d.CacheKey, err)
			}
			affected = append(affected, d.CacheKey)
		}
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return affected, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.([]string), nil
}

// SymbolInfo returns the catalog record for a single symbol.
func (c *MongoCatalog) SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error) {
	var d symbolDoc
	err := c.symbols().FindOne(ctx, bson.M{"symbol": symbol}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return SymbolInfo{}, ErrSymbolNotFound
	}
	if err != nil {
		return SymbolInfo{}, fmt.Errorf("symbol info %s: %w", symbol, err)
	}
	return toSymbolInfo(d), nil
}

func toSymbolInfo(d symbolDoc) SymbolInfo {
	return SymbolInfo{
		Symbol: d.Symbol, Name: d.Name, Sector: d.Sector, Industry: d.Industry,
		Type: d.Type, MarketCap: d.MarketCap, Active: d.Active,
		InitialLoadDate: d.InitialLoadDate,
	}
}

func toUniverse(d universeDoc) Universe {
	return Universe{
		CacheKey: d.CacheKey, Symbols: d.Symbols, Category: d.Category,
		Metadata: d.Metadata, LastUpdated: d.LastUpdated,
	}
}

func removeSymbol(symbols []string, target string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
