// Package report renders a measurement Result for people and tools:
// a text summary, CSV and JSON round tables, an HTML page, an ASCII chart
// of the net-energy series and a Prometheus textfile.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ja7ad/joules/pkg/measure"
	"github.com/ja7ad/joules/pkg/types"
)

// WriteSummary prints the headline figures of r.
func WriteSummary(w io.Writer, r *measure.Result) error {
	_, err := fmt.Fprintf(w, `instance:    %s
command:     %s
sensor:      %s
outcome:     %s
energy:      %s ± %s (%.0f%% confidence)
threshold:   %s (%.1f%% of mean)
rounds:      %d (%d iterations, %d executions each)
single run:  %.3fs
`,
		r.InstanceID, r.Command, r.Sensor, outcome(r),
		types.Joules(r.MeanEnergy).Humanized(), humanizedOrDash(r.HalfWidth), r.ConfidenceLevel*100,
		types.Joules(r.Threshold).Humanized(), r.RelativeError*100,
		r.RoundCount, r.Iterations, r.Repetitions,
		r.SingleRun,
	)
	if err != nil {
		return err
	}
	if r.IdlePower > 0 {
		if _, err := fmt.Fprintf(w, "idle power:  %s\n", types.Watts(r.IdlePower).Humanized()); err != nil {
			return err
		}
	}
	if r.FailedRuns > 0 || r.ProbeExitCode != 0 {
		_, err = fmt.Fprintf(w, "failures:    %d runs exited non-zero (probe exit %d)\n", r.FailedRuns, r.ProbeExitCode)
	}
	return err
}

func outcome(r *measure.Result) string {
	s := string(r.Outcome)
	if r.Cached {
		s += " (cached)"
	}
	return s
}

func humanizedOrDash(j float64) string {
	if math.IsInf(j, 0) || math.IsNaN(j) {
		return "-"
	}
	return types.Joules(j).Humanized()
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
