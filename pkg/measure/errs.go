package measure

import "errors"

var (
	// ErrSensorUnavailable indicates the energy or power source is missing or
	// returned something unparsable at startup. It is a configuration error.
	ErrSensorUnavailable = errors.New("measure: sensor unavailable")

	// ErrSensorParse indicates a single power sample could not be parsed.
	ErrSensorParse = errors.New("measure: sensor sample unparsable")

	// ErrRoundUnreliable indicates too many samples of a power round failed;
	// the round is discarded rather than treating missing samples as zero.
	ErrRoundUnreliable = errors.New("measure: round unreliable")

	// ErrMaxRoundsExceeded indicates the series hit its cap without converging.
	// The accompanying Result carries the statistics but is not persisted.
	ErrMaxRoundsExceeded = errors.New("measure: max rounds exceeded without convergence")

	// ErrInvalidConfig indicates a Config field outside its valid range.
	ErrInvalidConfig = errors.New("measure: invalid config")

	// ErrEmptyInstance indicates Measure was called without an instance ID.
	ErrEmptyInstance = errors.New("measure: empty instance id")
)
