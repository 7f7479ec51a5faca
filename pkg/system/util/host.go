//go:build linux

package util

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// SystemSummary returns hostname, kernel release, CPU count and total
// memory for report headers. Unreadable fields come back as "unknown".
func SystemSummary() (host, kernel, cpus, mem string) {
	host, kernel, mem = "unknown", "unknown", "unknown"
	if h, err := os.Hostname(); err == nil {
		host = h
	}
	if b, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		kernel = strings.TrimSpace(string(b))
	}
	cpus = strconv.Itoa(runtime.NumCPU())
	if kb, ok := memTotalKB("/proc/meminfo"); ok {
		mem = humanBytes(kb * 1024)
	}
	return host, kernel, cpus, mem
}

func memTotalKB(path string) (uint64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fs := strings.Fields(sc.Text())
		if len(fs) >= 2 && fs[0] == "MemTotal:" {
			v, err := strconv.ParseUint(fs[1], 10, 64)
			return v, err == nil
		}
	}
	return 0, false
}

func humanBytes(b uint64) string {
	const unit = 1024
	v := float64(b)
	for _, suffix := range []string{"B", "KiB", "MiB", "GiB"} {
		if v < unit {
			return strconv.FormatFloat(v, 'f', 1, 64) + " " + suffix
		}
		v /= unit
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " TiB"
}
