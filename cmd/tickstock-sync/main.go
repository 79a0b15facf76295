// tickstock-sync is a standalone CLI for driving the universe
// synchronizer (§4.5, §6 CLI surface) outside the daemon's own
// EOD-wait loop — useful for cron-triggered runs or manual operator
// invocation. Flag parsing follows
// NimbleMarkets-dbn-go/cmd/dbn-go-live's pflag.BoolVarP/pflag.Parse
// shape.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"tickstock-core/internal/bus"
	"tickstock-core/internal/catalog"
	"tickstock-core/internal/config"
	"tickstock-core/internal/sync"
)

func main() {
	var (
		dailySync       bool
		marketCapUpdate bool
		ipoAssignment   bool
		testSync        bool
		cfgPath         string
		showHelp        bool
	)

	pflag.BoolVar(&dailySync, "daily-sync", false, "run full reconciliation immediately (does not wait for an EOD signal)")
	pflag.BoolVar(&marketCapUpdate, "market-cap-update", false, "run the market-cap rerank task only")
	pflag.BoolVar(&ipoAssignment, "ipo-assignment", false, "run the IPO universe assignment task only")
	pflag.BoolVar(&testSync, "test-sync", false, "run all tasks without waiting for EOD")
	pflag.StringVarP(&cfgPath, "config", "c", "configs/config.yaml", "path to config file")
	pflag.BoolVarP(&showHelp, "help", "h", false, "show help")
	pflag.Parse()

	if showHelp {
		pflag.PrintDefaults()
		os.Exit(0)
	}

	selected := countSelected(dailySync, marketCapUpdate, ipoAssignment, testSync)
	if selected != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of --daily-sync, --market-cap-update, --ipo-assignment, --test-sync is required")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cat, err := catalog.Open(ctx, cfg.Catalog.URI)
	if err != nil {
		logger.Error("failed to connect to catalog store", "error", err)
		os.Exit(1)
	}
	defer cat.Close(context.Background())

	publisher := bus.New(bus.Config{Addr: cfg.Bus.Addr, Password: cfg.Bus.Password, DB: cfg.Bus.DB})
	defer publisher.Close()

	syncCfg := sync.Config{
		SyncTimeout:    cfg.Sync.SyncTimeout(),
		EODWaitTimeout: cfg.Sync.EODWaitTimeout(),
		Thresholds:     sync.DefaultMarketCapThresholds(),
	}

	switch {
	case marketCapUpdate:
		runSingleTask(ctx, syncCfg, cat, publisher, logger, "market_cap_recalculation")
	case ipoAssignment:
		runSingleTask(ctx, syncCfg, cat, publisher, logger, "ipo_universe_assignment")
	case testSync, dailySync:
		// Both run one full reconciliation immediately: a CLI invocation
		// of --daily-sync is itself the EOD signal (this tool is meant to
		// be triggered by an external scheduler after EOD data lands),
		// so there's nothing to additionally wait on here — only the
		// daemon's long-running Synchronizer.Run needs waitForEOD.
		runFullSync(ctx, syncCfg, cat, publisher, logger)
	}
}

func countSelected(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func runSingleTask(ctx context.Context, cfg sync.Config, cat catalog.Catalog, pub sync.Publisher, logger *slog.Logger, task string) {
	s := sync.New(cfg, cat, pub, nil, logger)
	changes, err := s.RunTask(ctx, task)
	if err != nil {
		logger.Error("task failed", "task", task, "error", err)
		os.Exit(1)
	}
	logger.Info("task complete", "task", task, "changes", len(changes))
}

func runFullSync(ctx context.Context, cfg sync.Config, cat catalog.Catalog, pub sync.Publisher, logger *slog.Logger) {
	s := sync.New(cfg, cat, pub, nil, logger)
	res, err := s.RunOnce(ctx)
	if err != nil {
		logger.Error("synchronization failed", "error", err)
		os.Exit(1)
	}
	logger.Info("synchronization complete",
		"total_changes", res.TotalChanges,
		"within_window", res.WithinWindow,
		"duration", res.Duration,
	)
	// §6: "Exit 0 on success even if within-window is false (reported in
	// output)" — WithinWindow is logged above, not treated as failure.
}
