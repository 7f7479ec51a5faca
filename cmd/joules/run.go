//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ja7ad/joules/pkg/measure"
	"github.com/ja7ad/joules/pkg/report"
	"github.com/ja7ad/joules/pkg/store"
	"github.com/ja7ad/joules/pkg/system/util"
)

// instanceNamespace seeds the name-based default instance IDs.
var instanceNamespace = uuid.MustParse("6b1d3e0a-5c55-4a8e-9d55-1c1c4f0b7a21")

type resultStore interface {
	measure.Store
	List(ctx context.Context) ([]string, error)
}

// defaultInstance derives a stable ID from the sensor and command so that
// repeating the same invocation hits the stored result.
func defaultInstance(sensor, command string) string {
	return uuid.NewSHA1(instanceNamespace, []byte(sensor+"\x00"+command)).String()
}

func openStore(ctx context.Context, cfg *Config) (resultStore, func(), error) {
	if cfg.Database != "" {
		db, err := store.OpenSQLite(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}
	return store.NewFile(cfg.OutputDir), func() {}, nil
}

func (a *app) measure(cmd *cobra.Command, s measure.Sampler, runner measure.Runner, args []string) error {
	ctx := cmd.Context()
	cfg := a.cfg
	out := cmd.OutOrStdout()
	command := strings.Join(args, " ")

	instance := cfg.Instance
	if instance == "" {
		instance = defaultInstance(s.Name(), command)
	}

	st, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	opts := []measure.Option{measure.WithStore(st), measure.WithLogger(a.log)}
	var table *progressTable
	if !cfg.Quiet {
		host, kernel, cpus, mem := util.SystemSummary()
		fmt.Fprintf(out, _console, host, kernel, cpus, mem, s.Name(), command, instance,
			time.Now().Format("2006-01-02 15:04:05"))
		table = newProgressTable(out)
		opts = append(opts, measure.WithObserver(table.row))
	}

	ctrl, err := measure.NewController(cfg.Measure, s, runner, opts...)
	if err != nil {
		return err
	}
	res, err := ctrl.Measure(ctx, instance, command)
	if res == nil {
		return err
	}

	fmt.Fprintln(out)
	if werr := report.WriteSummary(out, res); werr != nil {
		return werr
	}
	if werr := writeOutputs(out, cfg.Output, res, a.log); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

// writeOutputs renders every requested report. Failures are logged and
// the first one is returned after all outputs were attempted.
func writeOutputs(out io.Writer, o Outputs, res *measure.Result, log *slog.Logger) error {
	if o.Plot {
		if p := report.Plot(res, 60, 10); p != "" {
			fmt.Fprintf(out, "\n%s\n", p)
		}
	}

	var first error
	record := func(kind, path string, err error) {
		if err == nil {
			return
		}
		log.Error("write report", "kind", kind, "path", path, "err", err)
		if first == nil {
			first = err
		}
	}
	write := func(kind, path string, fn func(io.Writer, *measure.Result) error) {
		if path != "" {
			record(kind, path, writeFile(path, func(w io.Writer) error { return fn(w, res) }))
		}
	}
	write("csv", o.CSV, report.WriteCSV)
	write("json", o.JSON, report.WriteJSON)
	write("html", o.HTML, report.WriteHTML)

	if o.Textfile != "" {
		err := os.MkdirAll(filepath.Dir(o.Textfile), 0o755)
		if err == nil {
			err = report.WriteTextfile(o.Textfile, res)
		}
		record("textfile", o.Textfile, err)
	}
	return first
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type progressTable struct {
	tw *tabwriter.Writer
}

func newProgressTable(w io.Writer) *progressTable {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITER\tN\tLOAD (J)\tIDLE (J)\tNET (J)\tMEAN (J)\tHALF-WIDTH (J)\tTHRESHOLD (J)\tSTABLE")
	fmt.Fprintln(tw, "----\t-\t--------\t--------\t-------\t--------\t--------------\t-------------\t------")
	_ = tw.Flush()
	return &progressTable{tw: tw}
}

func (p *progressTable) row(pr measure.Progress) {
	st := pr.State
	hw := "-"
	if !math.IsInf(st.HalfWidth, 0) {
		hw = fmt.Sprintf("%.6g", st.HalfWidth)
	}
	mark := ""
	if st.Stable {
		mark = "yes"
	}
	if pr.Dropped > 0 {
		mark += fmt.Sprintf(" (-%d outliers)", pr.Dropped)
	}
	fmt.Fprintf(p.tw, "%d\t%d\t%.6g\t%.6g\t%.6g\t%.6g\t%s\t%.6g\t%s\n",
		pr.Iteration, st.N, pr.Round.LoadEnergy, pr.Round.IdleEnergy, pr.Round.Net(),
		st.Mean, hw, st.Threshold, strings.TrimSpace(mark))
	_ = p.tw.Flush()
}

const _console = `Joules - Command Energy Measurement Tool

* GitHub: https://github.com/ja7ad/joules

       Host: %s
       Kernel: %s
       CPUs: %s
       Mem: %s

       Sensor: %s
       Command: %s
       Instance: %s

Measurement as of %s:

`
