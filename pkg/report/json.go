package report

import (
	"encoding/json"
	"io"
	"math"

	"github.com/ja7ad/joules/pkg/measure"
)

// WriteJSON writes r as indented JSON. An undefined half-width (fewer than
// two rounds) is written as zero since JSON has no infinity.
func WriteJSON(w io.Writer, r *measure.Result) error {
	out := *r
	if math.IsInf(out.HalfWidth, 0) || math.IsNaN(out.HalfWidth) {
		out.HalfWidth = 0
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}
