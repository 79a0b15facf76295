// tickstockd is the market-event processing core's daemon entrypoint.
//
// Architecture:
//
//	main.go                 — entry point: loads config, wires subsystems, waits for SIGINT/SIGTERM
//	internal/queue          — bounded priority queue with admission control and a circuit breaker
//	internal/detect         — stateful HighLow/Trend/Surge detectors, bridged into the pool as a TickProcessor
//	internal/tickerstate    — sharded per-symbol rolling state shared by internal/detect and internal/workerpool
//	internal/workerpool     — worker pool: poll/dispatch/backoff, display-channel re-queue
//	internal/cache          — priority symbol cache (top/secondary/none), refreshed from the catalog
//	internal/pressure       — rolling buy/sell pressure tracker, observes the dispatched event stream
//	internal/catalog        — MongoDB-backed universe/symbol catalog
//	internal/sync           — universe synchronizer: daily batched reconciliation against the catalog
//	internal/bus            — Redis pub/sub publisher for synchronizer change notifications
//	internal/transport      — websocket fan-out of the display channel
//
// Adapted from cmd/bot/main.go's load-config → build components →
// signal-wait → graceful-stop shape. Raw feed ingestion (ticks,
// aggregates) and the HTTP/websocket transport listener's outer routing
// are external collaborators per spec §1; this binary wires the
// subsystems and exposes the collaborator-facing surfaces (queue.Offer,
// the websocket upgrade handler) for them to drive.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickstock-core/internal/bus"
	"tickstock-core/internal/cache"
	"tickstock-core/internal/catalog"
	"tickstock-core/internal/config"
	"tickstock-core/internal/detect"
	"tickstock-core/internal/pressure"
	"tickstock-core/internal/queue"
	"tickstock-core/internal/sync"
	"tickstock-core/internal/tickerstate"
	"tickstock-core/internal/transport"
	"tickstock-core/internal/workerpool"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TICKSTOCK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoCatalog, err := catalog.Open(ctx, cfg.Catalog.URI)
	if err != nil {
		logger.Error("failed to connect to catalog store", "error", err)
		os.Exit(1)
	}
	defer mongoCatalog.Close(context.Background())

	if err := mongoCatalog.EnsureIndexes(ctx); err != nil {
		logger.Error("failed to ensure catalog indexes", "error", err)
		os.Exit(1)
	}

	tickerSource := &catalog.TickerSource{Catalog: mongoCatalog}

	priorityCache := cache.New(cache.Config{
		TopSize:              cfg.Cache.TopSize,
		SecondarySize:        cfg.Cache.SecondarySize,
		RefreshInterval:      time.Duration(cfg.Cache.PriorityCacheRefreshSeconds) * time.Second,
		MarketOpenPromotions: cfg.Cache.MarketOpenPromotions,
	}, tickerSource, logger)
	go priorityCache.Run(ctx)

	eventQueue := queue.New(queue.Config{
		Capacity:          cfg.Queue.MaxQueueSize,
		OverflowThreshold: cfg.Queue.QueueOverflowDropThreshold,
		MaxEventAge:       time.Duration(cfg.Queue.MaxEventAgeMs) * time.Millisecond,
		Breaker: queue.BreakerConfig{
			FailMax:      cfg.Queue.CircuitBreakerFailMax,
			ResetTimeout: time.Duration(cfg.Queue.CircuitBreakerTimeoutSec) * time.Second,
		},
	}, priorityCache, logger)

	// tickerState is shared between internal/detect's aggregate-driven
	// synthesis (the producer: HighLow/Trend/Surge detection mutates it)
	// and internal/workerpool's dispatch (the consumer: HighLow dispatch
	// reads its per-kind counts). Its maps are partitioned by worker count,
	// but every access goes through one Store-wide lock (see tickerstate.Store).
	tickerState := tickerstate.NewStore(cfg.Worker.MaxWorkerPoolSize)
	detectPipeline := detect.NewPipeline(tickerState)

	pool := workerpool.New(workerpool.Config{
		MinWorkers:      cfg.Worker.MinWorkerPoolSize,
		MaxWorkers:      cfg.Worker.MaxWorkerPoolSize,
		EventBatchSize:  cfg.Worker.WorkerEventBatchSize,
		PollTimeout:     time.Duration(cfg.Worker.WorkerCollectionTimeoutSec * float64(time.Second)),
		DisplayCapacity: cfg.Worker.DisplayChannelCapacity,
	}, eventQueue, detectPipeline, logger)
	pool.SetStore(tickerState)

	initialUniverse, err := tickerSource.ListRankedSymbols(ctx)
	if err != nil {
		logger.Warn("failed to seed pressure tracker universe, starting empty", "error", err)
	}
	pressureTracker := pressure.NewTracker(pressure.DefaultConfig(), initialUniverse)
	pool.SetObserver(pressureTracker)

	pool.Start(cfg.Worker.WorkerPoolSize)

	supervisor := workerpool.NewSupervisor(workerpool.DefaultSupervisorConfig(), pool, eventQueue, logger)
	go supervisor.Run(ctx)

	hub := transport.NewHub(logger)
	stopHub := make(chan struct{})
	go hub.Run(stopHub)
	go hub.Pump(pool.Display(), stopHub)
	defer close(stopHub)
	// Registered after close(stopHub) so it runs first on shutdown (defers
	// unwind LIFO): workers must drain and stop dispatching before the hub
	// stops pumping, or display events emitted during pool.Stop()'s up-to-2s
	// wait fill Pool.Display()'s buffer with nobody reading it and get
	// dropped.
	defer pool.Stop()

	var httpServer *http.Server
	if cfg.Dashboard.Enabled {
		wsHandler := transport.NewHandler(hub, transport.Config{AllowedOrigins: cfg.Dashboard.AllowedOrigins}, logger)
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", wsHandler.ServeWebSocket)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		httpServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Dashboard.Port), Handler: mux}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("transport server failed", "error", err)
			}
		}()
		logger.Info("transport server started", "addr", httpServer.Addr)
	}

	publisher := bus.New(bus.Config{Addr: cfg.Bus.Addr, Password: cfg.Bus.Password, DB: cfg.Bus.DB})
	defer publisher.Close()

	synchronizer := sync.New(sync.Config{
		SyncTimeout:    cfg.Sync.SyncTimeout(),
		EODWaitTimeout: cfg.Sync.EODWaitTimeout(),
		CronSchedule:   cfg.Sync.CronSchedule,
		Thresholds:     sync.DefaultMarketCapThresholds(),
	}, mongoCatalog, publisher, nil, logger)
	go synchronizer.Run(ctx)

	logger.Info("tickstockd started",
		"worker_pool_size", cfg.Worker.WorkerPoolSize,
		"max_queue_size", cfg.Queue.MaxQueueSize,
		"dashboard_enabled", cfg.Dashboard.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop transport server", "error", err)
		}
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
