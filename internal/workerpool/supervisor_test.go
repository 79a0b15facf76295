package workerpool

import (
	"context"
	"testing"
	"time"
)

// fakeSource reports a fixed utilization (size/capacity) for the
// supervisor to sample.
type fakeSource struct {
	size, capacity int
}

func (f *fakeSource) Size() int     { return f.size }
func (f *fakeSource) Capacity() int { return f.capacity }

// TestSupervisorScalesUpAfterSustainedHighUtilization verifies the
// supervisor resizes the pool only after utilization has stayed above the
// high watermark for the sustained duration, not on a single sample.
func TestSupervisorScalesUpAfterSustainedHighUtilization(t *testing.T) {
	t.Parallel()

	fq := &fakeQueue{}
	cfg := DefaultConfig()
	cfg.MinWorkers = 2
	cfg.MaxWorkers = 20
	p := New(cfg, fq, nil, discardLogger())
	p.Start(4)

	src := &fakeSource{size: 95, capacity: 100}
	scfg := SupervisorConfig{
		CheckInterval: 20 * time.Millisecond,
		SustainedHigh: 60 * time.Millisecond,
		SustainedLow:  time.Hour,
		HighWatermark: 0.9,
		LowWatermark:  0.3,
		ScaleFactor:   0.5,
	}
	sup := NewSupervisor(scfg, p, src, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	if got := p.AliveCount(); got <= 4 {
		t.Errorf("AliveCount() = %d, want more than 4 after sustained high utilization", got)
	}
	p.Stop()
}

// TestSupervisorDoesNotScaleOnBriefSpike verifies a utilization spike that
// doesn't persist for SustainedHigh never triggers a resize.
func TestSupervisorDoesNotScaleOnBriefSpike(t *testing.T) {
	t.Parallel()

	fq := &fakeQueue{}
	cfg := DefaultConfig()
	cfg.MinWorkers = 2
	cfg.MaxWorkers = 20
	p := New(cfg, fq, nil, discardLogger())
	p.Start(4)

	src := &fakeSource{size: 95, capacity: 100}
	scfg := SupervisorConfig{
		CheckInterval: 10 * time.Millisecond,
		SustainedHigh: time.Hour,
		SustainedLow:  time.Hour,
		HighWatermark: 0.9,
		LowWatermark:  0.3,
		ScaleFactor:   0.5,
	}
	sup := NewSupervisor(scfg, p, src, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	if got := p.AliveCount(); got != 4 {
		t.Errorf("AliveCount() = %d, want unchanged at 4", got)
	}
	p.Stop()
}

// TestSupervisorScalesDownAfterSustainedLowUtilization verifies the
// opposite direction of the heuristic.
func TestSupervisorScalesDownAfterSustainedLowUtilization(t *testing.T) {
	t.Parallel()

	fq := &fakeQueue{}
	cfg := DefaultConfig()
	cfg.MinWorkers = 1
	cfg.MaxWorkers = 20
	p := New(cfg, fq, nil, discardLogger())
	p.Start(8)

	src := &fakeSource{size: 1, capacity: 100}
	scfg := SupervisorConfig{
		CheckInterval: 20 * time.Millisecond,
		SustainedHigh: time.Hour,
		SustainedLow:  60 * time.Millisecond,
		HighWatermark: 0.9,
		LowWatermark:  0.3,
		ScaleFactor:   0.5,
	}
	sup := NewSupervisor(scfg, p, src, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for p.AliveCount() >= 8 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := p.AliveCount(); got >= 8 {
		t.Errorf("AliveCount() = %d, want fewer than 8 after sustained low utilization", got)
	}
	p.Stop()
}
