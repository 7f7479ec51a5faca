// Package nvsmi polls GPU board power through the nvidia-smi tool.
//
// Every ReadPower call spawns one nvidia-smi process, so a read costs a
// few tens of milliseconds. Poll intervals of 100ms or more keep that
// latency small relative to the sampling period.
package nvsmi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ja7ad/joules/pkg/types"
)

// DefaultBinary is looked up in PATH.
const DefaultBinary = "nvidia-smi"

var (
	// ErrNotFound indicates that the tool binary could not be located.
	ErrNotFound = errors.New("nvsmi: binary not found")

	// ErrParse indicates output that was not a power figure, e.g. "[N/A]".
	ErrParse = errors.New("nvsmi: cannot parse power.draw")
)

// Tool queries power.draw of one or all GPUs.
type Tool struct {
	binary string
	args   []string
	gpu    string
	custom bool
}

type Option func(*Tool)

// WithGPU restricts queries to one device index or UUID. Without it, the
// power of every listed device is summed.
func WithGPU(id string) Option {
	return func(t *Tool) { t.gpu = id }
}

// WithCommand replaces the nvidia-smi invocation. The command must print
// one watt figure per line.
func WithCommand(binary string, args ...string) Option {
	return func(t *Tool) {
		t.binary = binary
		t.args = args
		t.custom = true
	}
}

// WithBinary runs nvidia-smi from a non-default path with the usual query.
func WithBinary(path string) Option {
	return func(t *Tool) {
		if path != "" {
			t.binary = path
		}
	}
}

func New(opts ...Option) *Tool {
	t := &Tool{
		binary: DefaultBinary,
		args:   []string{"--query-gpu=power.draw", "--format=csv,noheader,nounits"},
	}
	for _, o := range opts {
		o(t)
	}
	if t.gpu != "" && !t.custom {
		t.args = append(t.args, "--id="+t.gpu)
	}
	return t
}

// Name returns a label for logs and results.
func (t *Tool) Name() string {
	if t.gpu != "" {
		return "nvidia-smi:" + t.gpu
	}
	return "nvidia-smi"
}

// Validate checks the binary exists and produces a parsable reading.
func (t *Tool) Validate(ctx context.Context) error {
	if _, err := exec.LookPath(t.binary); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, t.binary, err)
	}
	_, err := t.ReadPower(ctx)
	return err
}

// ReadPower runs the tool once and returns the summed power draw.
func (t *Tool) ReadPower(ctx context.Context) (types.Watts, error) {
	cmd := exec.CommandContext(ctx, t.binary, t.args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("nvsmi: run %s: %w: %s", t.binary, err, strings.TrimSpace(stderr.String()))
	}
	return parse(out)
}

func parse(out []byte) (types.Watts, error) {
	var (
		total float64
		n     int
	)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimSuffix(line, "W"))
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrParse, line)
		}
		total += v
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: empty output", ErrParse)
	}
	return types.Watts(total), nil
}
