// Package workload launches the command under measurement through a shell
// and reports how long it ran. The command string is opaque: quoting,
// pipes and redirections are the shell's business.
package workload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ErrEmptyCommand is returned when asked to run a blank command line.
var ErrEmptyCommand = errors.New("workload: empty command")

// Status describes one finished execution. A non-zero ExitCode is not an
// error: the elapsed time is still valid for timing purposes.
type Status struct {
	Elapsed  time.Duration
	ExitCode int
}

// Failed reports whether the workload exited non-zero or was signaled.
func (s Status) Failed() bool { return s.ExitCode != 0 }

// Handle is a running workload.
type Handle interface {
	// Running reports whether the process is still alive. It never blocks.
	Running() bool
	// Wait blocks until the process has exited and been reaped.
	Wait() (Status, error)
}

// Shell runs commands via "<shell> -c <command>".
type Shell struct {
	shell  string
	dir    string
	env    []string
	stdout io.Writer
	stderr io.Writer
}

type Option func(*Shell)

// WithShell selects the interpreter; the default is /bin/sh.
func WithShell(path string) Option { return func(s *Shell) { s.shell = path } }

// WithDir sets the working directory of every execution.
func WithDir(dir string) Option { return func(s *Shell) { s.dir = dir } }

// WithEnv replaces the environment of every execution.
func WithEnv(env []string) Option { return func(s *Shell) { s.env = env } }

// WithOutput forwards the workload's stdout and stderr. By default both
// are discarded.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Shell) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

func New(opts ...Option) *Shell {
	s := &Shell{shell: "/bin/sh"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes command and blocks until it exits.
func (s *Shell) Run(ctx context.Context, command string) (Status, error) {
	h, err := s.Start(ctx, command)
	if err != nil {
		return Status{}, err
	}
	return h.Wait()
}

// Start launches command asynchronously. The process is reaped in the
// background; callers must still call Wait exactly once.
func (s *Shell) Start(ctx context.Context, command string) (Handle, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}
	cmd := exec.CommandContext(ctx, s.shell, "-c", command)
	cmd.Dir = s.dir
	cmd.Env = s.env
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("workload: start %q: %w", command, err)
	}

	p := &process{ctx: ctx, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		err := cmd.Wait()
		p.status.Elapsed = time.Since(started)
		p.status.ExitCode, p.err = exitCode(err)
	}()
	return p, nil
}

type process struct {
	ctx    context.Context
	done   chan struct{}
	status Status
	err    error
}

func (p *process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *process) Wait() (Status, error) {
	<-p.done
	if p.err == nil && p.ctx.Err() != nil {
		return p.status, p.ctx.Err()
	}
	return p.status, p.err
}

// exitCode splits cmd.Wait's error into an exit code and a real failure.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, fmt.Errorf("workload: wait: %w", err)
}
