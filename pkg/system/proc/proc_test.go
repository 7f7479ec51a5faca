//go:build linux

package proc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStat(t *testing.T, path, cpuLine string) {
	t.Helper()
	body := cpuLine + "\ncpu0 1 2 3 4 5 6 7 8 0 0\nintr 12345\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestReadSystemCPU(t *testing.T) {
	p := filepath.Join(t.TempDir(), "stat")
	// user nice system idle iowait irq softirq steal guest guest_nice
	writeStat(t, p, "cpu  100 10 50 800 40 5 5 0 0 0")

	active, total, err := ReadSystemCPU(p)
	require.NoError(t, err)
	assert.Equal(t, uint64(170), active)
	assert.Equal(t, uint64(1010), total)
}

func TestReadSystemCPU_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing_file", func(t *testing.T) {
		_, _, err := ReadSystemCPU(filepath.Join(dir, "nope"))
		require.Error(t, err)
	})
	t.Run("no_cpu_line", func(t *testing.T) {
		p := filepath.Join(dir, "nocpu")
		require.NoError(t, os.WriteFile(p, []byte("intr 1\n"), 0o644))
		_, _, err := ReadSystemCPU(p)
		assert.ErrorIs(t, err, ErrNoCPU)
	})
	t.Run("short_cpu_line", func(t *testing.T) {
		p := filepath.Join(dir, "short")
		require.NoError(t, os.WriteFile(p, []byte("cpu 1 2 3\n"), 0o644))
		_, _, err := ReadSystemCPU(p)
		assert.ErrorIs(t, err, ErrNoCPU)
	})
}

func TestCPUWindow(t *testing.T) {
	p := filepath.Join(t.TempDir(), "stat")
	w := &CPUWindow{path: p}

	_, err := w.Stop()
	require.ErrorIs(t, err, ErrNotStarted)

	writeStat(t, p, "cpu  100 0 0 900 0 0 0 0 0 0")
	require.NoError(t, w.Start())

	// +25 busy, +75 idle jiffies
	writeStat(t, p, "cpu  125 0 0 975 0 0 0 0 0 0")
	u, err := w.Stop()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, u, 1e-12)

	// a second Stop without Start is rejected
	_, err = w.Stop()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestCPUWindow_Self(t *testing.T) {
	if _, err := os.Stat(StatPath); err != nil {
		t.Skipf("skipping: %s not available: %v", StatPath, err)
	}
	w := NewCPUWindow()
	require.NoError(t, w.Start())
	u, err := w.Stop()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, u, 0.0)
	assert.LessOrEqual(t, u, 1.0)
}
