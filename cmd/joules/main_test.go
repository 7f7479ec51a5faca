//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/joules/pkg/measure"
)

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	t.Logf("stderr:\n%s", errOut.String())
	return out.String(), err
}

// fakeRAPL creates a powercap zone whose counter never moves.
func fakeRAPL(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "intel-rapl:0")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, v := range map[string]string{
		"name":                "package-0",
		"energy_uj":           "1000000",
		"max_energy_range_uj": "262143328850",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(v+"\n"), 0o644))
	}
	return dir
}

func TestRAPL_MeasureThenCached(t *testing.T) {
	domain := fakeRAPL(t)
	outDir := filepath.Join(t.TempDir(), "results")
	jsonPath := filepath.Join(t.TempDir(), "reports", "r.json")

	args := []string{
		"rapl", "--env-file", "", "--domain", domain, "-o", outDir, "-n", "noop",
		"--settle", "0", "--min-window", "0", "--warmup=false", "--json", jsonPath,
		"--", "true",
	}
	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Sensor: rapl:package-0")
	assert.Contains(t, out, "outcome:     converged")
	assert.Contains(t, out, "rounds:      5 ")

	_, err = os.Stat(filepath.Join(outDir, "measurement_noop.json"))
	require.NoError(t, err)

	b, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var res measure.Result
	require.NoError(t, json.Unmarshal(b, &res))
	assert.Equal(t, "noop", res.InstanceID)
	assert.Zero(t, res.MeanEnergy)

	out, err = execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "converged (cached)")

	out, err = execute(t, "show", "--env-file", "", "-o", outDir)
	require.NoError(t, err)
	assert.Equal(t, "noop\n", out)

	out, err = execute(t, "show", "noop", "--env-file", "", "-o", outDir, "--plot")
	require.NoError(t, err)
	assert.Contains(t, out, "instance:    noop")
	assert.Contains(t, out, "net energy per execution")
}

func TestRAPL_MissingDomain(t *testing.T) {
	_, err := execute(t, "rapl", "--env-file", "", "--domain", filepath.Join(t.TempDir(), "nope"),
		"-o", t.TempDir(), "-q", "--", "true")
	require.ErrorIs(t, err, measure.ErrSensorUnavailable)
}

func TestRAPL_RequiresCommand(t *testing.T) {
	_, err := execute(t, "rapl", "--env-file", "")
	require.Error(t, err)
}

func TestShow_SQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "r.sqlite")
	_, err := execute(t, "rapl", "--env-file", "", "--domain", fakeRAPL(t), "--db", db,
		"--settle", "0", "--min-window", "0", "--warmup=false", "-q", "--", "true")
	require.NoError(t, err)

	out, err := execute(t, "show", "--env-file", "", "--db", db)
	require.NoError(t, err)
	ids := strings.Fields(out)
	require.Len(t, ids, 1)
	assert.Equal(t, defaultInstance("rapl:package-0", "true"), ids[0])
}

func TestDefaultInstance(t *testing.T) {
	a := defaultInstance("rapl:package-0", "gzip -k big")
	assert.Equal(t, a, defaultInstance("rapl:package-0", "gzip -k big"))
	assert.NotEqual(t, a, defaultInstance("rapl:core", "gzip -k big"))
	assert.NotEqual(t, a, defaultInstance("rapl:package-0", "gzip -k bigger"))
}

func TestResolve_Layers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "joules.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
log_level: debug
output_dir: from-yaml
measure:
  relative_error: 0.02
  max_measurements: 30
  minimum_window: 4s
rapl:
  domain: /yaml/zone
`), 0o644))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("JOULES_OUTPUT_DIR=from-dotenv\n"), 0o644))
	t.Setenv("JOULES_RELATIVE_ERROR", "0.03")
	t.Setenv("JOULES_SETTLE", "250ms")
	t.Cleanup(func() { _ = os.Unsetenv("JOULES_OUTPUT_DIR") })

	a := &app{flags: defaultConfig()}
	cmd := &cobra.Command{Use: "x"}
	addMeasureFlags(cmd, &a.flags)
	require.NoError(t, cmd.Flags().Parse([]string{"--max-rounds", "40", "--settle", "1s"}))

	cfg, err := resolve(&a.flags, cfgPath, envPath, cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "yaml")
	assert.Equal(t, "/yaml/zone", cfg.RAPL.Domain, "yaml")
	assert.Equal(t, 4*time.Second, cfg.Measure.MinimumWindow, "yaml duration")
	assert.Equal(t, "from-dotenv", cfg.OutputDir, "dotenv over yaml")
	assert.Equal(t, 0.03, cfg.Measure.RelativeError, "env over yaml")
	assert.Equal(t, 40, cfg.Measure.MaxMeasurements, "flag over yaml")
	assert.Equal(t, time.Second, cfg.Measure.Settle, "flag over env")
	assert.Equal(t, 0.99, cfg.Measure.ConfidenceLevel, "default")
	assert.Zero(t, cfg.Measure.MaxIterations, "follows max rounds")
}

func TestResolve_BadEnv(t *testing.T) {
	t.Setenv("JOULES_MAX_MEASUREMENTS", "many")
	cmd := &cobra.Command{Use: "x"}
	flags := defaultConfig()
	_, err := resolve(&flags, "", "", cmd.Flags())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JOULES_MAX_MEASUREMENTS")
}
