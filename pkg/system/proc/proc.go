//go:build linux

// Package proc measures system-wide CPU utilization over a window from the
// aggregate jiffy counters in /proc/stat. The counters are monotonic; only
// deltas between two reads carry meaning.
package proc

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/ja7ad/joules/pkg/system/util"
)

// StatPath is the kernel's aggregate CPU accounting file.
const StatPath = "/proc/stat"

// ReadSystemCPU parses the aggregate "cpu" line of a /proc/stat formatted
// file and returns:
// - active: user + nice + system + irq + softirq + steal
// - total:  active + idle + iowait
func ReadSystemCPU(path string) (active, total uint64, err error) {
	f, e := os.Open(path)
	if e != nil {
		return 0, 0, e
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fs := strings.Fields(sc.Text())
		if len(fs) == 0 || fs[0] != "cpu" {
			continue
		}
		if len(fs) < 9 {
			return 0, 0, ErrNoCPU
		}
		var vals []uint64
		for _, s := range fs[1:] {
			v, _ := strconv.ParseUint(s, 10, 64)
			vals = append(vals, v)
		}
		active = vals[0] + vals[1] + vals[2] + vals[5] + vals[6] + vals[7]
		total = active + vals[3] + vals[4]
		return active, total, nil
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	return 0, 0, ErrNoCPU
}

// CPUWindow reports the fraction of CPU time spent busy between Start and
// Stop, across all CPUs.
type CPUWindow struct {
	path       string
	activePrev uint64
	totalPrev  uint64
	started    bool
}

// NewCPUWindow returns a window over /proc/stat.
func NewCPUWindow() *CPUWindow { return &CPUWindow{path: StatPath} }

func (w *CPUWindow) Start() error {
	a, t, err := ReadSystemCPU(w.path)
	if err != nil {
		return err
	}
	w.activePrev, w.totalPrev, w.started = a, t, true
	return nil
}

// Stop returns utilization in [0,1] since the last Start.
func (w *CPUWindow) Stop() (float64, error) {
	if !w.started {
		return 0, ErrNotStarted
	}
	a, t, err := ReadSystemCPU(w.path)
	if err != nil {
		return 0, err
	}
	w.started = false
	dActive := util.DeltaU64(a, w.activePrev)
	dTotal := util.DeltaU64(t, w.totalPrev)
	return util.Clamp01(util.SafeDiv(float64(dActive), float64(dTotal))), nil
}
