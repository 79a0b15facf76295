package workerpool

import (
	"context"
	"log/slog"
	"time"
)

// utilizationSource is the subset of internal/queue.Queue the supervisor
// needs to compute utilization without depending on the whole package API.
type utilizationSource interface {
	Size() int
	Capacity() int
}

// SupervisorConfig controls the sustained-utilization resize heuristic
// (§4.3 "supervisor scaling heuristic").
type SupervisorConfig struct {
	CheckInterval time.Duration // how often to sample utilization
	SustainedHigh time.Duration // utilization must stay > HighWatermark this long before scaling up
	SustainedLow  time.Duration // utilization must stay < LowWatermark this long before scaling down
	HighWatermark float64       // default 0.9
	LowWatermark  float64       // default 0.3
	ScaleFactor   float64       // fraction of current size to add/remove, default 0.25
}

// DefaultSupervisorConfig returns the spec's defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		CheckInterval: 5 * time.Second,
		SustainedHigh: 30 * time.Second,
		SustainedLow:  60 * time.Second,
		HighWatermark: 0.9,
		LowWatermark:  0.3,
		ScaleFactor:   0.25,
	}
}

// Supervisor periodically samples queue utilization and resizes the pool
// when utilization stays above HighWatermark or below LowWatermark for the
// configured sustained duration. Grounded on the teacher's periodic
// poll-then-decide loop shape, repurposed from market scanning to worker
// scaling.
type Supervisor struct {
	cfg    SupervisorConfig
	pool   *Pool
	source utilizationSource
	logger *slog.Logger
}

// NewSupervisor creates a Supervisor for pool, sampling source for
// utilization.
func NewSupervisor(cfg SupervisorConfig, pool *Pool, source utilizationSource, logger *slog.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, pool: pool, source: source, logger: logger.With("component", "workerpool.supervisor")}
}

// Run blocks sampling utilization every CheckInterval until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	var highSince, lowSince time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			util := s.utilization()
			switch {
			case util > s.cfg.HighWatermark:
				lowSince = time.Time{}
				if highSince.IsZero() {
					highSince = now
					continue
				}
				if now.Sub(highSince) >= s.cfg.SustainedHigh {
					s.scaleUp(util)
					highSince = time.Time{}
				}
			case util < s.cfg.LowWatermark:
				highSince = time.Time{}
				if lowSince.IsZero() {
					lowSince = now
					continue
				}
				if now.Sub(lowSince) >= s.cfg.SustainedLow {
					s.scaleDown(util)
					lowSince = time.Time{}
				}
			default:
				highSince = time.Time{}
				lowSince = time.Time{}
			}
		}
	}
}

func (s *Supervisor) utilization() float64 {
	capacity := s.source.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(s.source.Size()) / float64(capacity)
}

func (s *Supervisor) scaleUp(util float64) {
	current := s.pool.AliveCount()
	delta := max(1, int(float64(current)*s.cfg.ScaleFactor))
	target := current + delta
	s.logger.Info("scaling worker pool up", "utilization", util, "current", current, "target", target)
	s.pool.Resize(target)
}

func (s *Supervisor) scaleDown(util float64) {
	current := s.pool.AliveCount()
	delta := max(1, int(float64(current)*s.cfg.ScaleFactor))
	target := current - delta
	s.logger.Info("scaling worker pool down", "utilization", util, "current", current, "target", target)
	s.pool.Resize(target)
}
