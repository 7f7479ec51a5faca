package measure

import (
	"context"
	"fmt"
	"time"

	"github.com/ja7ad/joules/pkg/system/util"
)

// CounterSampler brackets the workload between two reads of a cumulative
// energy counter, then reads the counter again across an idle window of
// the same length.
//
// The idle window follows the load window instead of overlapping it, so
// drift between the two (thermal, frequency, background load) goes into
// the net figure. This is a known approximation of the method.
type CounterSampler struct {
	samplerBase
	probe    CounterProbe
	maxRange float64
}

// NewCounterSampler returns a sampler that brackets runs with energy counter reads.
func NewCounterSampler(probe CounterProbe, runner Runner, cfg Config, opts ...Option) *CounterSampler {
	return &CounterSampler{samplerBase: newSamplerBase(cfg, runner, opts), probe: probe}
}

func (s *CounterSampler) Name() string { return s.probe.Name() }

func (s *CounterSampler) Policy() Policy { return CounterPolicy }

// Validate reads the counter once and loads its wrap range.
func (s *CounterSampler) Validate(ctx context.Context) error {
	if err := s.probe.Validate(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSensorUnavailable, s.probe.Name(), err)
	}
	m, err := s.probe.MaxRange(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: max range: %w", ErrSensorUnavailable, s.probe.Name(), err)
	}
	if !(m > 0) {
		return fmt.Errorf("%w: %s: max range %v", ErrSensorUnavailable, s.probe.Name(), m)
	}
	s.maxRange = float64(m)
	return nil
}

func (s *CounterSampler) Prepare(context.Context, Plan) error { return nil }

// Sample runs one bracketed round. q is unused: every counter round has
// the same shape.
func (s *CounterSampler) Sample(ctx context.Context, plan Plan, _ int) (Round, error) {
	reps := max(plan.Repetitions, 1)

	startLoad, err := s.read(ctx)
	if err != nil {
		return Round{}, err
	}
	t0 := s.clk.Now()
	if err := s.clk.Sleep(ctx, s.cfg.Settle); err != nil {
		return Round{}, err
	}
	var (
		work   time.Duration
		failed int
	)
	for range reps {
		st, err := s.runner.Run(ctx, plan.Command)
		if err != nil {
			return Round{}, fmt.Errorf("run workload: %w", err)
		}
		work += st.Elapsed
		if st.Failed() {
			failed++
		}
	}
	if err := s.clk.Sleep(ctx, s.cfg.Settle); err != nil {
		return Round{}, err
	}
	window := s.clk.Now().Sub(t0)
	endLoad, err := s.read(ctx)
	if err != nil {
		return Round{}, err
	}

	s.startUtil()
	startIdle, err := s.read(ctx)
	if err != nil {
		return Round{}, err
	}
	if err := s.clk.Sleep(ctx, window); err != nil {
		return Round{}, err
	}
	endIdle, err := s.read(ctx)
	if err != nil {
		return Round{}, err
	}
	utilization := s.stopUtil()

	load := util.WrapCorrect(endLoad-startLoad, s.maxRange)
	idle := util.WrapCorrect(endIdle-startIdle, s.maxRange)
	n := float64(reps)
	return Round{
		LoadEnergy:      load / n,
		IdleEnergy:      idle / n,
		Duration:        work.Seconds() / n,
		Executions:      reps,
		FailedRuns:      failed,
		IdleUtilization: utilization,
	}, nil
}

func (s *CounterSampler) read(ctx context.Context) (float64, error) {
	v, err := s.probe.ReadEnergy(ctx)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.probe.Name(), err)
	}
	return float64(v), nil
}
