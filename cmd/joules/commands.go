//go:build linux

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ja7ad/joules/pkg/measure"
	"github.com/ja7ad/joules/pkg/report"
	"github.com/ja7ad/joules/pkg/system/hwmon"
	"github.com/ja7ad/joules/pkg/system/nvsmi"
	"github.com/ja7ad/joules/pkg/system/powercap"
	"github.com/ja7ad/joules/pkg/system/proc"
	"github.com/ja7ad/joules/pkg/workload"
)

func newRAPLCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rapl [flags] -- COMMAND...",
		Short: "Measure with the RAPL powercap energy counter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			runner := newRunner(cmd, cfg)
			counter := powercap.Open(cfg.RAPL.Domain, cfg.RAPL.Scale)
			s := measure.NewCounterSampler(counter, runner, cfg.Measure,
				measure.WithLogger(a.log),
				measure.WithUtilization(proc.NewCPUWindow()),
			)
			return a.measure(cmd, s, runner, args)
		},
	}
	addMeasureFlags(cmd, &a.flags)
	cmd.Flags().StringVar(&a.flags.RAPL.Domain, "domain", a.flags.RAPL.Domain, "powercap zone directory")
	cmd.Flags().Float64Var(&a.flags.RAPL.Scale, "scale", a.flags.RAPL.Scale, "counter units per joule")
	return cmd
}

func newHwmonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hwmon [flags] -- COMMAND...",
		Short: "Measure by polling an hwmon power sensor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			var (
				sensor *hwmon.Sensor
				err    error
			)
			if cfg.Hwmon.Path != "" {
				sensor = hwmon.Open(cfg.Hwmon.Path)
			} else if sensor, err = hwmon.Find(hwmon.Root, hwmon.DefaultChips); err != nil {
				return fmt.Errorf("%w: %w", measure.ErrSensorUnavailable, err)
			}
			runner := newRunner(cmd, cfg)
			s := measure.NewPowerSampler(sensor, runner, cfg.Measure,
				measure.WithLogger(a.log),
				measure.WithUtilization(proc.NewCPUWindow()),
			)
			return a.measure(cmd, s, runner, args)
		},
	}
	addMeasureFlags(cmd, &a.flags)
	addPowerFlags(cmd, &a.flags)
	cmd.Flags().StringVar(&a.flags.Hwmon.Path, "path", "", "power*_input file (default: first known chip)")
	return cmd
}

func newGPUCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpu [flags] -- COMMAND...",
		Short: "Measure by polling nvidia-smi board power",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			opts := []nvsmi.Option{nvsmi.WithBinary(cfg.GPU.Binary)}
			if cfg.GPU.ID != "" {
				opts = append(opts, nvsmi.WithGPU(cfg.GPU.ID))
			}
			runner := newRunner(cmd, cfg)
			s := measure.NewPowerSampler(nvsmi.New(opts...), runner, cfg.Measure,
				measure.WithLogger(a.log),
			)
			return a.measure(cmd, s, runner, args)
		},
	}
	addMeasureFlags(cmd, &a.flags)
	addPowerFlags(cmd, &a.flags)
	cmd.Flags().StringVar(&a.flags.GPU.ID, "gpu-id", "", "GPU index or UUID (default: sum of all GPUs)")
	cmd.Flags().StringVar(&a.flags.GPU.Binary, "nvidia-smi", a.flags.GPU.Binary, "nvidia-smi binary")
	return cmd
}

func newDomainsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List RAPL powercap zones and the default hwmon power sensor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ZONE\tNAME\tDIR")
			fmt.Fprintln(tw, "----\t----\t---")

			ds, err := powercap.Domains(powercap.Root + "/intel-rapl")
			if err != nil {
				a.log.Warn("no RAPL zones", "err", err)
			}
			for _, d := range ds {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Zone, d.Name, d.Dir)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if s, err := hwmon.Find(hwmon.Root, hwmon.DefaultChips); err == nil {
				fmt.Fprintf(out, "\nhwmon: %s (%s)\n", s.Name(), s.Path())
			}
			return nil
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [INSTANCE]",
		Short: "Print a stored result, or list stored instances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeFn, err := openStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				ids, err := st.List(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			res, err := st.Load(ctx, args[0])
			if err != nil {
				return err
			}
			if err := report.WriteSummary(out, res); err != nil {
				return err
			}
			return writeOutputs(out, a.cfg.Output, res, a.log)
		},
	}
}

func newRunner(cmd *cobra.Command, cfg *Config) *workload.Shell {
	opts := []workload.Option{workload.WithShell(cfg.Shell)}
	if cfg.ShowRuns {
		opts = append(opts, workload.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	}
	return workload.New(opts...)
}
