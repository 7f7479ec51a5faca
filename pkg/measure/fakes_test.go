package measure

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/ja7ad/joules/pkg/clock"
	"github.com/ja7ad/joules/pkg/types"
	"github.com/ja7ad/joules/pkg/workload"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeRunner advances the fake clock by dur for every execution and
// remembers how long the workload has been busy in total.
type fakeRunner struct {
	clk   *clock.Fake
	dur   time.Duration
	exit  int
	runs  int
	busy  time.Duration
	until time.Time
}

func (r *fakeRunner) Run(ctx context.Context, _ string) (workload.Status, error) {
	if err := ctx.Err(); err != nil {
		return workload.Status{}, err
	}
	r.runs++
	r.clk.Advance(r.dur)
	r.busy += r.dur
	return workload.Status{Elapsed: r.dur, ExitCode: r.exit}, nil
}

func (r *fakeRunner) Start(ctx context.Context, _ string) (workload.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.runs++
	r.until = r.clk.Now().Add(r.dur)
	return &fakeHandle{r: r, end: r.until}, nil
}

func (r *fakeRunner) active() bool { return r.clk.Now().Before(r.until) }

type fakeHandle struct {
	r   *fakeRunner
	end time.Time
}

func (h *fakeHandle) Running() bool { return h.r.clk.Now().Before(h.end) }

func (h *fakeHandle) Wait() (workload.Status, error) {
	if d := h.end.Sub(h.r.clk.Now()); d > 0 {
		h.r.clk.Advance(d)
	}
	h.r.busy += h.r.dur
	return workload.Status{Elapsed: h.r.dur, ExitCode: h.r.exit}, nil
}

// fakeCounter integrates idle watts over wall time plus extra watts over
// the runner's busy time, wrapping at maxRange joules.
type fakeCounter struct {
	clk      *clock.Fake
	runner   *fakeRunner
	idleW    float64
	extraW   float64
	maxRange float64
	err      error
}

func (c *fakeCounter) Name() string { return "fake:counter" }

func (c *fakeCounter) Validate(context.Context) error { return c.err }

func (c *fakeCounter) ReadEnergy(context.Context) (types.Joules, error) {
	if c.err != nil {
		return 0, c.err
	}
	t := c.clk.Now().Sub(epoch).Seconds()
	total := c.idleW*t + c.extraW*c.runner.busy.Seconds()
	return types.Joules(math.Mod(total, c.maxRange)), nil
}

func (c *fakeCounter) MaxRange(context.Context) (types.Joules, error) {
	return types.Joules(c.maxRange), nil
}

// fakePower reports loadW while a started workload runs and idleW
// otherwise. Every failEvery-th read fails when failEvery > 0.
type fakePower struct {
	runner    *fakeRunner
	idleW     float64
	loadW     float64
	failEvery int
	reads     int
}

func (p *fakePower) Name() string { return "fake:power" }

func (p *fakePower) Validate(context.Context) error { return nil }

func (p *fakePower) ReadPower(context.Context) (types.Watts, error) {
	p.reads++
	if p.failEvery > 0 && p.reads%p.failEvery == 0 {
		return 0, errors.New("unparsable")
	}
	if p.runner.active() {
		return types.Watts(p.loadW), nil
	}
	return types.Watts(p.idleW), nil
}

// scriptedSampler replays a fixed sequence of net energies. Entries that
// are NaN produce ErrRoundUnreliable.
type scriptedSampler struct {
	nets     []float64
	policy   Policy
	calls    int
	plans    []Plan
	prepared bool
}

func (s *scriptedSampler) Name() string { return "scripted" }

func (s *scriptedSampler) Policy() Policy { return s.policy }

func (s *scriptedSampler) Validate(context.Context) error { return nil }

func (s *scriptedSampler) Prepare(context.Context, Plan) error {
	s.prepared = true
	return nil
}

func (s *scriptedSampler) Sample(_ context.Context, plan Plan, _ int) (Round, error) {
	s.plans = append(s.plans, plan)
	v := s.nets[s.calls%len(s.nets)]
	s.calls++
	if math.IsNaN(v) {
		return Round{}, ErrRoundUnreliable
	}
	return Round{LoadEnergy: v, Executions: plan.Repetitions}, nil
}

type memStore struct {
	mu     sync.Mutex
	m      map[string]*Result
	writes int
}

func newMemStore() *memStore { return &memStore{m: map[string]*Result{}} }

func (s *memStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[id]
	return ok, nil
}

func (s *memStore) Load(_ context.Context, id string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) Write(_ context.Context, r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	cp := *r
	s.m[r.InstanceID] = &cp
	return nil
}
