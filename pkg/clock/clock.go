// Package clock abstracts wall time for the measurement loop so that the
// settle sleeps, idle windows and power polls can be driven by a fake clock
// in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is the subset of the time package the samplers depend on.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fake is a deterministic Clock. Time stands still until Sleep or Advance
// moves it forward, so a single-threaded caller observes exact durations.
//
// Fake is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	current time.Time
}

// NewFake returns a Fake initialized to the given time.
func NewFake(initial time.Time) *Fake { return &Fake{current: initial} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Sleep advances the fake time by d and returns immediately.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Advance(d)
	return nil
}

// Advance moves the fake time forward by d. Negative durations are ignored.
func (f *Fake) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	f.current = f.current.Add(d)
	f.mu.Unlock()
}

// Pacer fires on a fixed interval grid anchored at its creation time.
// Wait sleeps until the next grid point, so time spent between calls does
// not accumulate drift the way a plain Sleep(interval) loop would.
type Pacer struct {
	clk      Clock
	interval time.Duration
	next     time.Time
}

// NewPacer returns a Pacer whose first deadline is one interval from now.
func NewPacer(clk Clock, interval time.Duration) *Pacer {
	return &Pacer{clk: clk, interval: interval, next: clk.Now().Add(interval)}
}

// Wait blocks until the next deadline. If the caller overran one or more
// deadlines, the missed ticks are dropped and the grid realigns.
func (p *Pacer) Wait(ctx context.Context) error {
	now := p.clk.Now()
	for !p.next.After(now) {
		p.next = p.next.Add(p.interval)
	}
	err := p.clk.Sleep(ctx, p.next.Sub(now))
	p.next = p.next.Add(p.interval)
	return err
}
