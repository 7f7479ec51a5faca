package report

import (
	"bytes"
	"html/template"
	"io"
	"math"

	"github.com/ja7ad/joules/pkg/measure"
	"github.com/ja7ad/joules/pkg/types"
)

type htmlRow struct {
	N int
	measure.Round
	NetEnergy float64
}

type htmlView struct {
	R          *measure.Result
	Energy     string
	HalfWidth  string
	Threshold  string
	Confidence float64
	IdlePower  string
	Rows       []htmlRow
	Chart      string
}

// WriteHTML writes a standalone report page for r.
func WriteHTML(w io.Writer, r *measure.Result) error {
	v := htmlView{
		R:          r,
		Energy:     types.Joules(r.MeanEnergy).Humanized(),
		HalfWidth:  humanizedOrDash(r.HalfWidth),
		Threshold:  types.Joules(r.Threshold).Humanized(),
		Confidence: r.ConfidenceLevel * 100,
		Chart:      Plot(r, 60, 10),
	}
	if r.IdlePower > 0 && !math.IsNaN(r.IdlePower) {
		v.IdlePower = types.Watts(r.IdlePower).Humanized()
	}
	for i, rd := range r.Series {
		net := rd.Net()
		if i < len(r.Net) {
			net = r.Net[i]
		}
		v.Rows = append(v.Rows, htmlRow{N: i + 1, Round: rd, NetEnergy: net})
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

var tpl = template.Must(template.New("rep").Parse(`<!doctype html>
<html lang="en"><meta charset="utf-8">
<title>Energy Report {{.R.InstanceID}}</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:20px}
h1,h2{margin:0 0 8px}
table{border-collapse:collapse;width:100%;font-size:14px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:right}
th:first-child,td:first-child{text-align:left}
ul{margin:6px 0 14px;padding-left:20px}
code{background:#f5f5f5;padding:2px 4px;border-radius:4px}
pre{background:#f5f5f5;padding:8px;border-radius:4px}
.small{color:#555}
.badge{display:inline-block;background:#eef;border:1px solid #ccd;padding:2px 6px;border-radius:6px;margin-right:6px;}
</style>

<h1><a href="https://github.com/ja7ad/joules" target="_blank" rel="noopener noreferrer" style="color:inherit;text-decoration:none;">Energy Report</a></h1>

<p class="small">
<span class="badge">{{.R.Outcome}}</span>
Instance: <code>{{.R.InstanceID}}</code> &nbsp;|&nbsp;
Sensor: <code>{{.R.Sensor}}</code> &nbsp;|&nbsp;
Rounds: {{.R.RoundCount}}
</p>

<h2>Summary</h2>
<ul>
<li>Command: <code>{{.R.Command}}</code></li>
<li>Energy per execution: {{.Energy}} ± {{.HalfWidth}} ({{printf "%.0f" .Confidence}}% confidence)</li>
<li>Threshold: {{.Threshold}}</li>
<li>Repetitions per round: {{.R.Repetitions}} &nbsp; single run: {{printf "%.3f" .R.SingleRun}} s</li>
{{if .IdlePower}}<li>Idle power: {{.IdlePower}}</li>{{end}}
{{if .R.FailedRuns}}<li>Failed runs: {{.R.FailedRuns}}</li>{{end}}
<li>Started: {{.R.StartedAt.Format "2006-01-02 15:04:05"}} &nbsp; finished: {{.R.FinishedAt.Format "2006-01-02 15:04:05"}}</li>
</ul>

{{if .Chart}}
<h2>Net energy</h2>
<pre>{{.Chart}}</pre>
{{end}}

<h2>Rounds</h2>
<table>
<thead>
<tr>
<th>#</th><th>load (J)</th><th>idle (J)</th><th>net (J)</th><th>duration (s)</th><th>executions</th><th>failed</th><th>idle util</th>
</tr>
</thead>
<tbody>
{{range .Rows}}
<tr>
<td>{{.N}}</td>
<td>{{printf "%.6g" .LoadEnergy}}</td>
<td>{{printf "%.6g" .IdleEnergy}}</td>
<td>{{printf "%.6g" .NetEnergy}}</td>
<td>{{printf "%.4f" .Duration}}</td>
<td>{{.Executions}}</td>
<td>{{.FailedRuns}}</td>
<td>{{printf "%.2f" .IdleUtilization}}</td>
</tr>
{{end}}
</tbody>
</table>
</html>`))
