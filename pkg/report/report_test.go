package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ja7ad/joules/pkg/measure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result() *measure.Result {
	series := []measure.Round{
		{LoadEnergy: 2.7, IdleEnergy: 0.7, Duration: 0.25, Executions: 10},
		{LoadEnergy: 2.8, IdleEnergy: 0.7, Duration: 0.25, Executions: 10, FailedRuns: 1},
		{LoadEnergy: 2.6, IdleEnergy: 0.7, Duration: 0.25, Executions: 10, IdleUtilization: 0.3},
	}
	return &measure.Result{
		InstanceID:      "demo",
		Command:         "sleep 0.25",
		Sensor:          "rapl:package-0",
		Outcome:         measure.OutcomeConverged,
		MeanEnergy:      2.0,
		HalfWidth:       0.05,
		Threshold:       0.08,
		ConfidenceLevel: 0.99,
		RelativeError:   0.04,
		RoundCount:      3,
		Iterations:      3,
		Repetitions:     10,
		SingleRun:       0.25,
		FailedRuns:      1,
		Series:          series,
		Net:             []float64{2.0, 2.1, 1.9},
		StartedAt:       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:      time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC),
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, result()))
	out := buf.String()
	t.Log("\n" + out)

	assert.Contains(t, out, "instance:    demo")
	assert.Contains(t, out, "2.000 J ± 50.000 mJ (99% confidence)")
	assert.Contains(t, out, "failures:    1 runs exited non-zero")
	assert.NotContains(t, out, "idle power")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, result()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, csvHeader, recs[0])
	assert.Equal(t, []string{"2", "2.8", "0.7", "2.1", "0.25", "10", "1", "0"}, recs[2])
}

func TestWriteJSON_InfiniteHalfWidth(t *testing.T) {
	r := result()
	r.HalfWidth = math.Inf(1)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	var back measure.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Zero(t, back.HalfWidth)
	assert.Equal(t, r.Net, back.Net)
	assert.True(t, math.IsInf(r.HalfWidth, 1), "input is not modified")
}

func TestWriteHTML(t *testing.T) {
	r := result()
	r.Command = "echo <b>"

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "<title>Energy Report demo</title>")
	assert.Contains(t, out, "echo &lt;b&gt;")
	assert.Equal(t, 3, strings.Count(out, "<td>10</td>"))
	assert.Contains(t, out, "<pre>")
}

func TestPlot(t *testing.T) {
	assert.Empty(t, Plot(&measure.Result{}, 40, 5))

	out := Plot(result(), 40, 5)
	assert.Contains(t, out, "net energy per execution")
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 5)
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joules.prom")
	r := result()
	r.IdlePower = 3.5
	require.NoError(t, WriteTextfile(path, r))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)

	assert.Contains(t, out, `joules_energy_joules{instance="demo",outcome="converged",sensor="rapl:package-0"} 2`)
	assert.Contains(t, out, `joules_rounds{instance="demo",outcome="converged",sensor="rapl:package-0"} 3`)
	assert.Contains(t, out, "# TYPE joules_idle_power_watts gauge")
}
