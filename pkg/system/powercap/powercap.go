//go:build linux

package powercap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ja7ad/joules/pkg/types"
)

const (
	// Root is where the kernel exposes powercap zones.
	Root = "/sys/class/powercap"

	// DefaultDomain is the package-0 RAPL zone.
	DefaultDomain = Root + "/intel-rapl/intel-rapl:0"

	// MicrojoulesPerJoule is the normalization factor of energy_uj files.
	MicrojoulesPerJoule = 1e6

	energyFile   = "energy_uj"
	maxRangeFile = "max_energy_range_uj"
	nameFile     = "name"
)

// Counter reads the cumulative energy counter of one powercap zone.
// The counter increases monotonically and wraps at max_energy_range_uj.
type Counter struct {
	dir   string
	scale float64
}

// Open returns a Counter for the zone directory dir. scale is the number of
// raw counter units per joule; values <= 0 select MicrojoulesPerJoule.
//
// Open does not touch the filesystem; call Validate before measuring.
func Open(dir string, scale float64) *Counter {
	if scale <= 0 {
		scale = MicrojoulesPerJoule
	}
	return &Counter{dir: dir, scale: scale}
}

// Name returns a label for logs and results, e.g. "rapl:package-0".
func (c *Counter) Name() string {
	if n, err := readName(c.dir); err == nil && n != "" {
		return "rapl:" + n
	}
	return "rapl:" + filepath.Base(c.dir)
}

// Dir returns the zone directory.
func (c *Counter) Dir() string { return c.dir }

// Validate performs one read-and-parse of energy_uj.
func (c *Counter) Validate(ctx context.Context) error {
	_, err := c.ReadEnergy(ctx)
	return err
}

// ReadEnergy returns the instantaneous counter value in joules.
func (c *Counter) ReadEnergy(ctx context.Context) (types.Joules, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err := readFloat(filepath.Join(c.dir, energyFile))
	if err != nil {
		return 0, err
	}
	return types.Joules(v / c.scale), nil
}

// MaxRange returns the value, in joules, at which the counter wraps.
func (c *Counter) MaxRange(ctx context.Context) (types.Joules, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, err := readFloat(filepath.Join(c.dir, maxRangeFile))
	if err != nil {
		return 0, err
	}
	return types.Joules(v / c.scale), nil
}

// Domain describes one discovered powercap zone.
type Domain struct {
	Dir  string
	Zone string // directory name, e.g. intel-rapl:0:1
	Name string // contents of the name file, e.g. core
}

// Domains lists zones under root that expose an energy counter, sorted by
// zone name. Nested sub-zones (intel-rapl:0:0) are included.
func Domains(root string) ([]Domain, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("powercap: read %s: %w", root, err)
	}
	var out []Domain
	for _, e := range entries {
		// zone entries are symlinks on real systems; only name matters here
		if !strings.Contains(e.Name(), ":") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, energyFile)); err != nil {
			continue
		}
		name, _ := readName(dir)
		out = append(out, Domain{Dir: dir, Zone: e.Name(), Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out, nil
}

func readName(dir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, nameFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNoDomain, path)
		}
		return 0, fmt.Errorf("powercap: read %s: %w", path, err)
	}
	s := strings.TrimSpace(string(b))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q", ErrBadValue, path, s)
	}
	return v, nil
}
