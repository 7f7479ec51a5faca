package measure

import (
	"context"
	"log/slog"
	"time"

	"github.com/ja7ad/joules/pkg/clock"
	"github.com/ja7ad/joules/pkg/types"
	"github.com/ja7ad/joules/pkg/workload"
)

// CounterProbe is a cumulative energy counter that wraps at MaxRange.
type CounterProbe interface {
	Name() string
	// Validate performs one read-and-parse.
	Validate(ctx context.Context) error
	ReadEnergy(ctx context.Context) (types.Joules, error)
	MaxRange(ctx context.Context) (types.Joules, error)
}

// PowerProbe is an instantaneous power source that is polled.
type PowerProbe interface {
	Name() string
	Validate(ctx context.Context) error
	ReadPower(ctx context.Context) (types.Watts, error)
}

// Runner executes the workload under measurement.
type Runner interface {
	Run(ctx context.Context, command string) (workload.Status, error)
	Start(ctx context.Context, command string) (workload.Handle, error)
}

// UtilizationMeter reports the busy fraction of the system over a window.
type UtilizationMeter interface {
	Start() error
	Stop() (float64, error)
}

// Plan is fixed once the probe run is done and shared by every round.
type Plan struct {
	Command     string
	SingleRun   time.Duration
	Repetitions int
}

// Sampler produces one Round per call. Implementations differ in how
// energy is obtained but share the Controller's convergence loop.
type Sampler interface {
	Name() string
	Policy() Policy
	// Validate checks the sensor once before any workload runs.
	Validate(ctx context.Context) error
	// Prepare runs once per session after the probe run.
	Prepare(ctx context.Context, plan Plan) error
	// Sample measures iteration q (1-based).
	Sample(ctx context.Context, plan Plan, q int) (Round, error)
}

// Store persists converged Results keyed by instance ID.
type Store interface {
	Exists(ctx context.Context, instanceID string) (bool, error)
	Load(ctx context.Context, instanceID string) (*Result, error)
	Write(ctx context.Context, r *Result) error
}

// Option configures a sampler or a Controller. Options that do not apply
// to the receiving type are ignored.
type Option func(*options)

type options struct {
	clk      clock.Clock
	log      *slog.Logger
	util     UtilizationMeter
	store    Store
	observer func(Progress)
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clk = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithUtilization annotates each round with the system utilization
// observed during its idle phase. Samplers only.
func WithUtilization(m UtilizationMeter) Option { return func(o *options) { o.util = m } }

// WithStore makes the Controller idempotent per instance ID and persists
// converged Results.
func WithStore(s Store) Option { return func(o *options) { o.store = s } }

// WithObserver is called by the Controller after every accepted round.
func WithObserver(f func(Progress)) Option { return func(o *options) { o.observer = f } }

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.clk == nil {
		o.clk = clock.Real()
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o
}

type samplerBase struct {
	cfg    Config
	runner Runner
	clk    clock.Clock
	log    *slog.Logger
	util   UtilizationMeter
}

func newSamplerBase(cfg Config, runner Runner, opts []Option) samplerBase {
	o := buildOptions(opts)
	return samplerBase{
		cfg:    cfg.withDefaults(),
		runner: runner,
		clk:    o.clk,
		log:    o.log,
		util:   o.util,
	}
}

func (b *samplerBase) startUtil() {
	if b.util == nil {
		return
	}
	if err := b.util.Start(); err != nil {
		b.log.Debug("utilization window start failed", "err", err)
	}
}

func (b *samplerBase) stopUtil() float64 {
	if b.util == nil {
		return 0
	}
	u, err := b.util.Stop()
	if err != nil {
		b.log.Debug("utilization window stop failed", "err", err)
		return 0
	}
	if u > b.cfg.IdleUtilizationWarn {
		b.log.Warn("system busy during idle phase; idle baseline may be inflated",
			"utilization", u, "warn_above", b.cfg.IdleUtilizationWarn)
	}
	return u
}
