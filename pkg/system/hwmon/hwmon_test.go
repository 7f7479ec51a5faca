//go:build linux

package hwmon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeHwmon(t *testing.T, root, dev, chip, file, value string) string {
	t.Helper()
	dir := filepath.Join(root, dev)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "name"), []byte(chip+"\n"), 0o644))
	p := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(p, []byte(value+"\n"), 0o644))
	return p
}

func TestFind_MatchesChip(t *testing.T) {
	root := t.TempDir()
	fakeHwmon(t, root, "hwmon0", "nvme", "power1_input", "5000000")
	want := fakeHwmon(t, root, "hwmon1", "zenpower", "power1_input", "42500000")

	s, err := Find(root, DefaultChips)
	require.NoError(t, err)
	assert.Equal(t, want, s.Path())
	assert.Equal(t, "hwmon:zenpower", s.Name())

	w, err := s.ReadPower(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 42.5, float64(w), 1e-9)
}

func TestFind_AverageFileAndAnyChip(t *testing.T) {
	root := t.TempDir()
	want := fakeHwmon(t, root, "hwmon3", "amdgpu", "power1_average", "17000000")

	s, err := Find(root, nil)
	require.NoError(t, err)
	assert.Equal(t, want, s.Path())
}

func TestFind_None(t *testing.T) {
	root := t.TempDir()
	fakeHwmon(t, root, "hwmon0", "nvme", "power1_input", "1")
	_, err := Find(root, []string{"zenpower"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSensor)
}

func TestSensor_Errors(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	t.Run("missing_file", func(t *testing.T) {
		err := Open(filepath.Join(root, "hwmon9", "power1_input")).Validate(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoSensor)
	})
	t.Run("garbage", func(t *testing.T) {
		p := fakeHwmon(t, root, "hwmon2", "rapl", "power1_input", "N/A")
		s := Open(p)
		assert.Equal(t, "hwmon:rapl", s.Name())
		_, err := s.ReadPower(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParse)
	})
}
