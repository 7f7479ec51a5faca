package report

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/ja7ad/joules/pkg/measure"
)

// Plot draws the per-round net energy of r. It returns an empty string
// when there is nothing to draw.
func Plot(r *measure.Result, width, height int) string {
	if len(r.Net) == 0 {
		return ""
	}
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}
	return asciigraph.Plot(r.Net,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(6),
		asciigraph.Caption(fmt.Sprintf("net energy per execution (J), %d rounds", len(r.Net))),
	)
}
