//go:build linux

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ja7ad/joules/pkg/measure"
)

// exitMaxRounds is returned when a series hits its cap without converging.
const exitMaxRounds = 2

type app struct {
	flags      Config
	configPath string
	dotenv     string
	cfg        *Config
	log        *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRoot().ExecuteContext(ctx)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, measure.ErrMaxRoundsExceeded):
		slog.Error(err.Error())
		os.Exit(exitMaxRounds)
	default:
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	a := &app{flags: defaultConfig()}

	root := &cobra.Command{
		Use:   "joules",
		Short: "Measure the energy of one execution of a command",
		Long: `The joules tool runs a shell command repeatedly and reports the mean
energy one execution consumes above the idle baseline, with a Student's t
confidence interval. Rounds are added until the interval half-width falls
below a fraction of the mean or the round cap is reached.

Energy comes from the RAPL powercap counters (rapl), an hwmon power sensor
(hwmon) or nvidia-smi board power (gpu). Converged results are stored per
instance ID; measuring a known instance again returns the stored result.

* GitHub: https://github.com/ja7ad/joules

Examples:
  joules rapl -- 'gzip -k -f big.tar'
  joules rapl --domain /sys/class/powercap/intel-rapl/intel-rapl:0:0 -n gzip-core -- gzip -k -f big.tar
  joules gpu --gpu-id 0 --html out/gpu.html -- ./train --epochs 1
  joules show gzip-core --plot`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolve(&a.flags, a.configPath, a.dotenv, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			slog.SetDefault(a.log)
			return nil
		},
	}

	f := &a.flags
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.dotenv, "env-file", ".env", "dotenv file with JOULES_* variables (ignored when missing)")
	pf.StringVar(&f.LogLevel, "log-level", f.LogLevel, "log level: debug, info, warn, error")
	pf.StringVar(&f.LogFormat, "log-format", f.LogFormat, "log format: text or json")
	pf.StringVarP(&f.Instance, "instance", "n", "", "instance ID (default: derived from sensor and command)")
	pf.StringVarP(&f.OutputDir, "output-dir", "o", f.OutputDir, "directory for measurement_<instance>.json results")
	pf.StringVar(&f.Database, "db", "", "SQLite database for results instead of the output directory")
	pf.StringVar(&f.Output.CSV, "csv", "", "write per-round rows to CSV file")
	pf.StringVar(&f.Output.JSON, "json", "", "write the result to JSON file")
	pf.StringVar(&f.Output.HTML, "html", "", "write the result and rounds to HTML file")
	pf.StringVar(&f.Output.Textfile, "textfile", "", "write the result as a Prometheus textfile")
	pf.BoolVar(&f.Output.Plot, "plot", false, "draw the per-round net energy as an ASCII chart")

	root.AddCommand(
		newRAPLCmd(a),
		newHwmonCmd(a),
		newGPUCmd(a),
		newDomainsCmd(a),
		newShowCmd(a),
	)
	return root
}

// addMeasureFlags registers the convergence and runner flags shared by the
// measuring commands.
func addMeasureFlags(cmd *cobra.Command, f *Config) {
	m := &f.Measure
	fl := cmd.Flags()
	fl.StringVar(&f.Shell, "shell", f.Shell, "shell used to run the command")
	fl.BoolVar(&f.ShowRuns, "show-runs", false, "pass the command's stdout and stderr through")
	fl.BoolVarP(&f.Quiet, "quiet", "q", false, "do not print the per-round table")
	fl.Float64Var(&m.ConfidenceLevel, "confidence", m.ConfidenceLevel, "confidence level of the interval (0,1)")
	fl.Float64Var(&m.RelativeError, "relative-error", m.RelativeError, "target half-width as a fraction of the mean")
	fl.IntVar(&m.MaxMeasurements, "max-rounds", m.MaxMeasurements, "maximum accepted rounds")
	fl.IntVar(&m.MaxIterations, "max-iterations", m.MaxIterations, "maximum rounds attempted (0 = 3x max-rounds)")
	fl.DurationVar(&m.MinimumWindow, "min-window", m.MinimumWindow, "minimum workload time per round (0 = one execution)")
	fl.BoolVar(&m.InitializationRound, "warmup", m.InitializationRound, "run and discard one warm-up round")
	fl.DurationVar(&m.Settle, "settle", m.Settle, "pause before and after the workload inside a counter round")
}

// addPowerFlags registers the polling flags of the power sensors.
func addPowerFlags(cmd *cobra.Command, f *Config) {
	m := &f.Measure
	fl := cmd.Flags()
	fl.DurationVar(&m.SamplingInterval, "interval", m.SamplingInterval, "power sampling interval")
	fl.DurationVar(&m.IdleWindow, "idle-window", m.IdleWindow, "length of the idle power estimate")
	fl.Float64Var(&m.ErrorTolerance, "tolerance", m.ErrorTolerance, "allowed deviation of the sub-measurement cost ratio")
	fl.Float64Var(&m.Xi, "xi", m.Xi, "sub-measurement scaling constant")
}
