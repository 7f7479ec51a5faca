package measure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ja7ad/joules/pkg/clock"
	"github.com/ja7ad/joules/pkg/system/util"
)

// Progress is reported to the observer after every accepted round.
type Progress struct {
	Iteration int
	Round     Round
	State     ConvergenceState
	// Dropped is the number of rounds removed by the outlier filter in
	// this iteration.
	Dropped int
}

// Controller drives one measurement session: validate the sensor, time a
// probe run, pick the repetition count, optionally discard a warm-up round
// and then sample until the confidence interval is narrow enough or the
// round cap is hit.
//
// A Controller is not safe for concurrent Measure calls.
type Controller struct {
	cfg      Config
	sampler  Sampler
	runner   Runner
	store    Store
	clk      clock.Clock
	log      *slog.Logger
	observer func(Progress)
	eval     Evaluator
	state    atomic.Int32
}

// NewController validates cfg after filling defaults.
func NewController(cfg Config, sampler Sampler, runner Runner, opts ...Option) (*Controller, error) {
	if sampler == nil || runner == nil {
		return nil, fmt.Errorf("%w: sampler and runner are required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Controller{
		cfg:      cfg,
		sampler:  sampler,
		runner:   runner,
		store:    o.store,
		clk:      o.clk,
		log:      o.log.With("sensor", sampler.Name()),
		observer: o.observer,
		eval:     newEvaluator(cfg, sampler.Policy()),
	}, nil
}

// State returns the current lifecycle stage.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.log.Debug("state", "state", s.String())
}

// Measure returns the converged mean net energy of one execution of
// command, in joules.
//
// When a store holds a Result for instanceID it is returned unchanged with
// Cached set and nothing is executed. On ErrMaxRoundsExceeded the returned
// Result carries the last statistics but is not persisted.
func (c *Controller) Measure(ctx context.Context, instanceID, command string) (*Result, error) {
	if instanceID == "" {
		return nil, ErrEmptyInstance
	}
	c.setState(StateUninitialized)
	log := c.log.With("instance", instanceID)

	if c.store != nil {
		ok, err := c.store.Exists(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("store lookup: %w", err)
		}
		if ok {
			res, err := c.store.Load(ctx, instanceID)
			if err != nil {
				return nil, fmt.Errorf("store load: %w", err)
			}
			res.Cached = true
			c.setState(StateConverged)
			log.Info("result already present; skipping measurement")
			return res, nil
		}
	}

	if err := c.sampler.Validate(ctx); err != nil {
		return nil, err
	}
	c.setState(StateValidated)

	started := c.clk.Now()
	c.setState(StateProbing)
	probe, err := c.runner.Run(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("probe run: %w", err)
	}
	if probe.Failed() {
		log.Warn("probe run exited non-zero; measuring anyway", "exit_code", probe.ExitCode)
	}
	reps, ok := util.Repetitions(c.cfg.MinimumWindow.Seconds(), probe.Elapsed.Seconds())
	if !ok {
		log.Warn("probe run took no measurable time; using one repetition")
	}
	plan := Plan{Command: command, SingleRun: probe.Elapsed, Repetitions: reps}
	log.Info("probe done", "single_run", probe.Elapsed, "repetitions", reps)

	if err := c.sampler.Prepare(ctx, plan); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	if c.cfg.InitializationRound {
		c.setState(StateInitializing)
		if _, err := c.sampler.Sample(ctx, plan, 1); err != nil && !errors.Is(err, ErrRoundUnreliable) {
			return nil, fmt.Errorf("initialization round: %w", err)
		}
	}

	c.setState(StateSampling)
	var (
		series   Series
		st       ConvergenceState
		failures int
		iter     int
	)
	for iter < c.cfg.MaxIterations && len(series) < c.cfg.MaxMeasurements {
		iter++
		round, err := c.sampler.Sample(ctx, plan, iter)
		if errors.Is(err, ErrRoundUnreliable) {
			failures++
			log.Warn("round discarded", "iteration", iter, "consecutive", failures, "err", err)
			if failures >= c.cfg.MaxRoundFailures {
				return nil, fmt.Errorf("%d consecutive unreliable rounds: %w", failures, err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}
		failures = 0
		series = append(series, round)

		var dropped int
		series, st, dropped = c.evaluate(series, iter, log)
		if c.observer != nil {
			c.observer(Progress{Iteration: iter, Round: round, State: st, Dropped: dropped})
		}
		log.Debug("round", "iteration", iter, "n", st.N, "mean", st.Mean,
			"half_width", st.HalfWidth, "threshold", st.Threshold, "stable", st.Stable)
		if st.Stable {
			break
		}
	}

	res := c.result(instanceID, command, plan, probe.ExitCode, series, st, iter, started)
	if !st.Stable {
		c.setState(StateMaxRoundsExceeded)
		res.Outcome = OutcomeMaxRoundsExceeded
		log.Warn("no convergence", "rounds", len(series), "iterations", iter)
		return res, ErrMaxRoundsExceeded
	}

	c.setState(StateConverged)
	res.Outcome = OutcomeConverged
	if c.store != nil {
		if err := c.store.Write(ctx, res); err != nil {
			return res, fmt.Errorf("store write: %w", err)
		}
	}
	log.Info("converged", "mean_j", res.MeanEnergy, "half_width_j", res.HalfWidth, "rounds", res.RoundCount)
	return res, nil
}

// evaluate computes the convergence state and, when the series is long
// enough and still unstable, applies the median-band outlier filter once.
func (c *Controller) evaluate(series Series, iter int, log *slog.Logger) (Series, ConvergenceState, int) {
	p := c.eval.Policy
	net := series.Net(p.ClampNet)
	st := c.eval.Evaluate(net, iter)
	if st.Stable || p.OutlierMinRounds == 0 || len(series) < p.OutlierMinRounds {
		return series, st, 0
	}
	filtered, dropped, ok := FilterOutliers(series, net)
	if !ok {
		log.Warn("outlier filter would drop every round; keeping series")
		return series, st, 0
	}
	if dropped == 0 {
		return series, st, 0
	}
	log.Debug("outliers dropped", "dropped", dropped, "kept", len(filtered))
	// A pruned series is never final; the next round is sampled first.
	st = c.eval.Evaluate(filtered.Net(p.ClampNet), iter)
	st.Stable = false
	return filtered, st, dropped
}

func (c *Controller) result(id, command string, plan Plan, probeExit int, series Series,
	st ConvergenceState, iter int, started time.Time,
) *Result {
	res := &Result{
		InstanceID:      id,
		Command:         command,
		Sensor:          c.sampler.Name(),
		MeanEnergy:      st.Mean,
		HalfWidth:       st.HalfWidth,
		Threshold:       st.Threshold,
		ConfidenceLevel: c.cfg.ConfidenceLevel,
		RelativeError:   c.cfg.RelativeError,
		RoundCount:      len(series),
		Iterations:      iter,
		Repetitions:     plan.Repetitions,
		SingleRun:       plan.SingleRun.Seconds(),
		ProbeExitCode:   probeExit,
		FailedRuns:      series.FailedRuns(),
		Series:          series,
		Net:             series.Net(c.eval.Policy.ClampNet),
		StartedAt:       started,
		FinishedAt:      c.clk.Now(),
	}
	if ps, ok := c.sampler.(interface{ IdlePower() float64 }); ok {
		res.IdlePower = ps.IdlePower()
	}
	return res
}
