//go:build linux

// Package hwmon reads instantaneous power from Linux hwmon sensors
// (power*_input / power*_average files, reported in microwatts).
package hwmon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/ja7ad/joules/pkg/types"
)

// Root is where the kernel exposes hwmon devices.
const Root = "/sys/class/hwmon"

var (
	// ErrNoSensor indicates that no matching power file was found.
	ErrNoSensor = errors.New("hwmon: no power sensor")

	// ErrParse indicates that a power file held something other than a number.
	ErrParse = errors.New("hwmon: cannot parse power value")
)

// DefaultChips are the hwmon driver names known to report package or
// board power.
var DefaultChips = []string{
	"zenpower",
	"zenpower3",
	"amd_smu",
	"ryzen_smu",
	"amdgpu",
	"rapl",
	"intel-rapl",
	"intel-rapl-msr",
}

// Sensor is one hwmon power file.
type Sensor struct {
	path string
	chip string
}

// Open returns a Sensor reading the given power file directly.
func Open(path string) *Sensor {
	chip, _ := readTrim(filepath.Join(filepath.Dir(path), "name"))
	return &Sensor{path: path, chip: chip}
}

// Find scans root for the first power*_input or power*_average file whose
// device name is one of chips. An empty chips slice accepts any device.
func Find(root string, chips []string) (*Sensor, error) {
	var matches []string
	for _, pat := range []string{"hwmon*/power*_input", "hwmon*/power*_average"} {
		m, _ := filepath.Glob(filepath.Join(root, pat))
		matches = append(matches, m...)
	}
	slices.Sort(matches)

	for _, f := range matches {
		name, err := readTrim(filepath.Join(filepath.Dir(f), "name"))
		if err != nil {
			continue
		}
		if len(chips) > 0 && !slices.Contains(chips, name) {
			continue
		}
		return &Sensor{path: f, chip: name}, nil
	}
	return nil, fmt.Errorf("%w under %s", ErrNoSensor, root)
}

// Name returns a label for logs and results, e.g. "hwmon:amdgpu".
func (s *Sensor) Name() string {
	if s.chip != "" {
		return "hwmon:" + s.chip
	}
	return "hwmon:" + filepath.Base(s.path)
}

// Path returns the power file being read.
func (s *Sensor) Path() string { return s.path }

// Validate performs one read-and-parse of the power file.
func (s *Sensor) Validate(ctx context.Context) error {
	_, err := s.ReadPower(ctx)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoSensor, s.path)
	}
	return err
}

// ReadPower returns the current power draw in watts.
func (s *Sensor) ReadPower(ctx context.Context) (types.Watts, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := readTrim(s.path)
	if err != nil {
		return 0, fmt.Errorf("hwmon: read %s: %w", s.path, err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q", ErrParse, s.path, raw)
	}
	return types.Watts(v / 1e6), nil
}

func readTrim(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
