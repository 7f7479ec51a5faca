package measure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ja7ad/joules/pkg/clock"
	"github.com/ja7ad/joules/pkg/system/util"
	"github.com/ja7ad/joules/pkg/types"
)

// PowerSampler integrates polled power while the workload runs. Idle power
// is estimated once per session in Prepare and scaled by each execution's
// duration.
//
// Iteration q runs Nq = ceil(q/xi) sub-measurements of Repetitions
// executions each, so the per-round cost grows with the series and the
// (Nq/q)*xi bound is part of the stopping rule.
type PowerSampler struct {
	samplerBase
	probe     PowerProbe
	idlePower float64
}

// NewPowerSampler returns a sampler that polls instantaneous power during runs.
func NewPowerSampler(probe PowerProbe, runner Runner, cfg Config, opts ...Option) *PowerSampler {
	return &PowerSampler{samplerBase: newSamplerBase(cfg, runner, opts), probe: probe}
}

func (s *PowerSampler) Name() string { return s.probe.Name() }

func (s *PowerSampler) Policy() Policy { return PowerPolicy }

// IdlePower returns the estimate from Prepare in watts.
func (s *PowerSampler) IdlePower() float64 { return s.idlePower }

func (s *PowerSampler) Validate(ctx context.Context) error {
	if err := s.probe.Validate(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSensorUnavailable, s.probe.Name(), err)
	}
	return nil
}

// Prepare averages the idle power over IdleWindow.
func (s *PowerSampler) Prepare(ctx context.Context, _ Plan) error {
	s.startUtil()
	pacer := clock.NewPacer(s.clk, s.cfg.SamplingInterval)
	deadline := s.clk.Now().Add(s.cfg.IdleWindow)

	var acc sampleAcc
	for s.clk.Now().Before(deadline) {
		acc.add(s.probe.ReadPower(ctx))
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
	}
	s.stopUtil()

	if err := acc.check(s.cfg.MaxSampleFailureRatio); err != nil {
		return fmt.Errorf("idle estimate: %w", err)
	}
	s.idlePower = acc.mean()
	s.log.Debug("idle power estimated", "sensor", s.probe.Name(),
		"watts", s.idlePower, "samples", acc.ok, "failed", acc.failed)
	return nil
}

// Sample runs Nq*Repetitions polled executions and returns per-execution
// energies. Failed samples stand in at the mean of the round's good ones.
func (s *PowerSampler) Sample(ctx context.Context, plan Plan, q int) (Round, error) {
	reps := max(plan.Repetitions, 1)
	nq := SubMeasurements(q, s.cfg.Xi)
	total := nq * reps

	var (
		secs   float64
		failed int
		acc    sampleAcc
	)
	for range total {
		elapsed, code, err := s.execute(ctx, plan.Command, &acc)
		if err != nil {
			return Round{}, err
		}
		secs += elapsed.Seconds()
		if code != 0 {
			failed++
		}
	}
	if err := acc.check(s.cfg.MaxSampleFailureRatio); err != nil {
		return Round{}, err
	}

	// Failed ticks count at the round mean so a fully failed execution
	// still carries energy.
	ticks := float64(acc.ok + acc.failed)
	load := acc.mean() * ticks * s.cfg.SamplingInterval.Seconds()
	n := float64(total)
	duration := secs / n
	return Round{
		LoadEnergy: util.NonNegative(load / n),
		IdleEnergy: util.NonNegative(s.idlePower * duration),
		Duration:   duration,
		Executions: total,
		FailedRuns: failed,
	}, nil
}

// execute starts one workload execution and polls the probe into acc
// until it exits.
func (s *PowerSampler) execute(ctx context.Context, command string, acc *sampleAcc) (time.Duration, int, error) {
	h, err := s.runner.Start(ctx, command)
	if err != nil {
		return 0, 0, fmt.Errorf("start workload: %w", err)
	}
	pacer := clock.NewPacer(s.clk, s.cfg.SamplingInterval)

	// Sample first so a workload that exits before the first tick still
	// gets one reading.
	var local sampleAcc
	for {
		local.add(s.probe.ReadPower(ctx))
		if err := pacer.Wait(ctx); err != nil {
			_, _ = h.Wait()
			return 0, 0, err
		}
		if !h.Running() {
			break
		}
	}
	st, err := h.Wait()
	if err != nil {
		return 0, 0, fmt.Errorf("wait workload: %w", err)
	}
	acc.merge(local)
	return st.Elapsed, st.ExitCode, nil
}

type sampleAcc struct {
	sum     float64
	ok      int
	failed  int
	lastErr error
}

func (a *sampleAcc) add(w types.Watts, err error) {
	if err != nil {
		a.failed++
		a.lastErr = err
		return
	}
	a.sum += float64(w)
	a.ok++
}

func (a *sampleAcc) merge(b sampleAcc) {
	a.sum += b.sum
	a.ok += b.ok
	a.failed += b.failed
	if b.lastErr != nil {
		a.lastErr = b.lastErr
	}
}

func (a sampleAcc) mean() float64 { return util.SafeDiv(a.sum, float64(a.ok)) }

// check fails when the share of failed samples exceeds limit, or when no
// sample succeeded at all.
func (a sampleAcc) check(limit float64) error {
	total := a.ok + a.failed
	if total == 0 {
		return nil
	}
	ratio := float64(a.failed) / float64(total)
	if a.ok == 0 || ratio > limit {
		return errors.Join(
			fmt.Errorf("%w: %d of %d samples failed", ErrRoundUnreliable, a.failed, total),
			fmt.Errorf("%w: %w", ErrSensorParse, a.lastErr),
		)
	}
	return nil
}
