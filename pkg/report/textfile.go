package report

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ja7ad/joules/pkg/measure"
)

// Registry returns a registry holding r as gauges labeled by instance,
// sensor and outcome.
func Registry(r *measure.Result) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := []string{"instance", "sensor", "outcome"}
	values := []string{r.InstanceID, r.Sensor, string(r.Outcome)}

	gauge := func(name, help string, v float64) {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return
		}
		f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "joules",
			Name:      name,
			Help:      help,
		}, labels).WithLabelValues(values...).Set(v)
	}

	gauge("energy_joules", "Mean net energy of one workload execution.", r.MeanEnergy)
	gauge("energy_half_width_joules", "Confidence interval half-width of the mean energy.", r.HalfWidth)
	gauge("rounds", "Accepted measurement rounds.", float64(r.RoundCount))
	gauge("repetitions", "Workload executions per round.", float64(r.Repetitions))
	gauge("single_run_seconds", "Duration of the probe run.", r.SingleRun)
	gauge("failed_runs", "Workload executions that exited non-zero.", float64(r.FailedRuns))
	if r.IdlePower > 0 {
		gauge("idle_power_watts", "Estimated idle power.", r.IdlePower)
	}
	if !r.FinishedAt.IsZero() {
		gauge("finished_timestamp_seconds", "Unix time the measurement finished.", float64(r.FinishedAt.UnixNano())/1e9)
	}
	return reg
}

// WriteTextfile writes r in the node-exporter textfile format.
func WriteTextfile(path string, r *measure.Result) error {
	return prometheus.WriteToTextfile(path, Registry(r))
}
