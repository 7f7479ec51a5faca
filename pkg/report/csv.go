package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ja7ad/joules/pkg/measure"
)

var csvHeader = []string{
	"round", "load_j", "idle_j", "net_j", "duration_s", "executions", "failed_runs", "idle_utilization",
}

// WriteCSV writes one row per accepted round of r.
func WriteCSV(w io.Writer, r *measure.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, rd := range r.Series {
		net := rd.Net()
		if i < len(r.Net) {
			net = r.Net[i]
		}
		rec := []string{
			strconv.Itoa(i + 1),
			fmtFloat(rd.LoadEnergy),
			fmtFloat(rd.IdleEnergy),
			fmtFloat(net),
			fmtFloat(rd.Duration),
			strconv.Itoa(rd.Executions),
			strconv.Itoa(rd.FailedRuns),
			fmtFloat(rd.IdleUtilization),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
