package proc

import "errors"

var (
	// ErrNoCPU indicates that /proc/stat had no aggregate CPU line.
	ErrNoCPU = errors.New("proc: no cpu line")

	// ErrNotStarted indicates Stop was called on a window that was never started.
	ErrNotStarted = errors.New("proc: window not started")
)
