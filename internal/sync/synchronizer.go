// Package sync implements the universe synchronizer (§4.5): a daily
// batched reconciliation of symbol-set memberships that runs out of
// band from the hot event path, driven by either an EOD signal or a
// cron schedule, and publishes change notifications on the message
// bus. Grounded on
// original_source/src/data/cache_entries_synchronizer.py, with the
// goroutine/context.Context lifecycle adapted from
// internal/engine/engine.go's orchestrator loop.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"tickstock-core/internal/catalog"
)

// State is a synchronization run's position in the state machine.
type State string

const (
	StateIdle          State = "idle"
	StateWaitingForEOD State = "waiting_for_eod"
	StateSynchronizing State = "synchronizing"
	StatePublishing    State = "publishing"
)

// EODSignal is satisfied by whatever delivers the one-shot "end of day
// data is available" notification (§6 inbound EOD signal). The message
// bus subscriber that feeds this channel is out of this package's
// scope; Synchronizer only consumes it.
type EODSignal <-chan struct{}

// Publisher is the subset of internal/bus the synchronizer needs —
// just enough to emit the three notification classes §6 names.
type Publisher interface {
	PublishSyncComplete(ctx context.Context, result Result) error
	PublishUniverseUpdated(ctx context.Context, universe string, changes []Change) error
}

// Config controls timing (§6 sync_timeout_minutes, eod_wait_timeout_seconds).
type Config struct {
	SyncTimeout    time.Duration // default 30m
	EODWaitTimeout time.Duration // default 1h
	// CronSchedule, if non-empty, triggers a synchronization run on this
	// schedule in addition to (not instead of) the signal-driven path —
	// a fallback for environments with no EOD signal wired up.
	CronSchedule string
	Thresholds   MarketCapThresholds
}

// DefaultConfig returns §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		SyncTimeout:    30 * time.Minute,
		EODWaitTimeout: time.Hour,
		Thresholds:     DefaultMarketCapThresholds(),
	}
}

// Synchronizer drives the IDLE → WAITING_FOR_EOD → SYNCHRONIZING →
// PUBLISHING → IDLE state machine.
type Synchronizer struct {
	cfg       Config
	catalog   catalog.Catalog
	publisher Publisher
	eod       EODSignal
	logger    *slog.Logger

	cron *cron.Cron

	stateMu stdsync.Mutex
	state   State
}

// New creates a Synchronizer. eod may be nil: Run's EOD wait then always
// ends on cfg.EODWaitTimeout (or ctx cancellation).
func New(cfg Config, cat catalog.Catalog, publisher Publisher, eod EODSignal, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		cfg: cfg, catalog: cat, publisher: publisher, eod: eod,
		logger: logger.With("component", "sync"), state: StateIdle,
	}
}

// State returns the synchronizer's current state machine position.
func (s *Synchronizer) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Synchronizer) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Run drives the synchronizer's main loop until ctx is cancelled: each
// iteration waits for an EOD signal (or the wait timeout), then
// performs one synchronization run. If cfg.CronSchedule is set, an
// additional goroutine fires synchronization runs on that schedule.
func (s *Synchronizer) Run(ctx context.Context) {
	if s.cfg.CronSchedule != "" {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(s.cfg.CronSchedule, func() {
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("scheduled synchronization failed", "error", err)
			}
		})
		if err != nil {
			s.logger.Error("invalid cron schedule, schedule-driven sync disabled", "schedule", s.cfg.CronSchedule, "error", err)
		} else {
			s.cron.Start()
			defer s.cron.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.setState(StateWaitingForEOD)
		if !s.waitForEOD(ctx) {
			return // ctx cancelled while waiting
		}

		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("synchronization run failed", "error", err)
		}

		s.setState(StateIdle)
	}
}

// waitForEOD blocks until the EOD signal fires, cfg.EODWaitTimeout
// elapses, or ctx is cancelled. A timeout is not an error: the
// original proceeds with synchronization regardless, logging a
// warning (wait_for_eod_completion's documented behavior). A nil eod
// never fires, so the wait then lasts the full timeout.
func (s *Synchronizer) waitForEOD(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.EODWaitTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.eod:
		s.logger.Info("EOD completion signal received")
		return true
	case <-timer.C:
		s.logger.Warn("EOD completion timeout, proceeding with synchronization", "timeout", s.cfg.EODWaitTimeout)
		return true
	}
}

// RunOnce executes the five reconciliation tasks in sequence,
// publishes notifications, and returns the result. Exceeding
// cfg.SyncTimeout is reported in Result.WithinWindow rather than
// treated as an error (§4.5's documented performance budget).
func (s *Synchronizer) RunOnce(ctx context.Context) (Result, error) {
	s.setState(StateSynchronizing)
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.SyncTimeout)
	defer cancel()

	tasks := []struct {
		name string
		fn   func(context.Context, catalog.Catalog) ([]Change, error)
	}{
		{"market_cap_recalculation", func(c context.Context, cat catalog.Catalog) ([]Change, error) {
			return marketCapRerank(c, cat, s.cfg.Thresholds)
		}},
		{"ipo_universe_assignment", func(c context.Context, cat catalog.Catalog) ([]Change, error) {
			return ipoAssignment(c, cat, s.cfg.Thresholds)
		}},
		{"delisted_cleanup", delistedCleanup},
		{"theme_rebalancing", themeRebalancing},
		{"etf_universe_maintenance", etfUniverseMaintenance},
	}

	var allChanges []Change
	var taskResults []TaskResult
	for _, t := range tasks {
		taskStart := time.Now()
		s.logger.Info("starting synchronization task", "task", t.name)

		changes, err := t.fn(runCtx, s.catalog)
		result := TaskResult{Name: t.name, Changes: changes, Duration: time.Since(taskStart)}
		if err != nil {
			result.Status = "failed"
			result.Err = err
			s.logger.Error("synchronization task failed", "task", t.name, "error", err)
		} else {
			result.Status = "completed"
			allChanges = append(allChanges, changes...)
			s.logger.Info("synchronization task complete", "task", t.name, "changes", len(changes), "duration", result.Duration)
		}
		taskResults = append(taskResults, result)
	}

	res := Result{
		StartedAt:    start,
		Duration:     time.Since(start),
		TaskResults:  taskResults,
		TotalChanges: len(allChanges),
	}
	res.WithinWindow = res.Duration <= s.cfg.SyncTimeout
	res.AffectedUniverses = affectedUniverses(allChanges)

	s.setState(StatePublishing)
	if err := s.publish(ctx, res, allChanges); err != nil {
		return res, err
	}
	return res, nil
}

// RunTask executes a single named reconciliation task (one of
// "market_cap_recalculation", "ipo_universe_assignment",
// "delisted_cleanup", "theme_rebalancing", "etf_universe_maintenance")
// and publishes its changes, without running the other four. Used by
// the tickstock-sync CLI's --market-cap-update/--ipo-assignment flags
// (§6 CLI surface).
func (s *Synchronizer) RunTask(ctx context.Context, name string) ([]Change, error) {
	s.setState(StateSynchronizing)
	defer s.setState(StateIdle)

	var changes []Change
	var err error
	switch name {
	case "market_cap_recalculation":
		changes, err = marketCapRerank(ctx, s.catalog, s.cfg.Thresholds)
	case "ipo_universe_assignment":
		changes, err = ipoAssignment(ctx, s.catalog, s.cfg.Thresholds)
	case "delisted_cleanup":
		changes, err = delistedCleanup(ctx, s.catalog)
	case "theme_rebalancing":
		changes, err = themeRebalancing(ctx, s.catalog)
	case "etf_universe_maintenance":
		changes, err = etfUniverseMaintenance(ctx, s.catalog)
	default:
		return nil, fmt.Errorf("unknown task %q", name)
	}
	if err != nil {
		return nil, err
	}

	s.setState(StatePublishing)
	if s.publisher != nil {
		byUniverse := map[string][]Change{}
		for _, c := range changes {
			byUniverse[c.Universe] = append(byUniverse[c.Universe], c)
		}
		for universe, cs := range byUniverse {
			if err := s.publisher.PublishUniverseUpdated(ctx, universe, cs); err != nil {
				s.logger.Error("failed to publish universe update", "universe", universe, "error", err)
			}
		}
	}
	return changes, nil
}

func (s *Synchronizer) publish(ctx context.Context, res Result, changes []Change) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishSyncComplete(ctx, res); err != nil {
		return err
	}

	byUniverse := map[string][]Change{}
	for _, c := range changes {
		byUniverse[c.Universe] = append(byUniverse[c.Universe], c)
	}
	for universe, cs := range byUniverse {
		if err := s.publisher.PublishUniverseUpdated(ctx, universe, cs); err != nil {
			s.logger.Error("failed to publish universe update", "universe", universe, "error", err)
		}
	}
	return nil
}

func affectedUniverses(changes []Change) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range changes {
		if _, ok := seen[c.Universe]; !ok {
			seen[c.Universe] = struct{}{}
			out = append(out, c.Universe)
		}
	}
	return out
}
