package measure

import (
	"fmt"
	"time"
)

// Config holds the convergence and timing parameters of a session. It is
// passed by value and never mutated after the Controller is built.
//
// Units:
//   - ConfidenceLevel: probability in (0,1) fed to the Student's t quantile
//   - RelativeError: fraction of the mean the half-width must fall below
//   - MinimumWindow: floor on one round's workload time (counter resolution)
//   - Settle: pause on both sides of the workload inside the load bracket
//   - SamplingInterval: power poll period
//   - IdleWindow: length of the one-off idle power estimate
//   - ErrorTolerance, Xi: cost-bound constants of the power variant
type Config struct {
	ConfidenceLevel       float64       `yaml:"confidence_level" json:"confidence_level"`
	RelativeError         float64       `yaml:"relative_error" json:"relative_error"`
	MaxMeasurements       int           `yaml:"max_measurements" json:"max_measurements"`
	MaxIterations         int           `yaml:"max_iterations" json:"max_iterations"`
	MinimumWindow         time.Duration `yaml:"minimum_window" json:"minimum_window"`
	InitializationRound   bool          `yaml:"initialization_round" json:"initialization_round"`
	Settle                time.Duration `yaml:"settle" json:"settle"`
	SamplingInterval      time.Duration `yaml:"sampling_interval" json:"sampling_interval"`
	IdleWindow            time.Duration `yaml:"idle_window" json:"idle_window"`
	ErrorTolerance        float64       `yaml:"error_tolerance" json:"error_tolerance"`
	Xi                    float64       `yaml:"xi" json:"xi"`
	MaxSampleFailureRatio float64       `yaml:"max_sample_failure_ratio" json:"max_sample_failure_ratio"`
	MaxRoundFailures      int           `yaml:"max_round_failures" json:"max_round_failures"`
	IdleUtilizationWarn   float64       `yaml:"idle_utilization_warn" json:"idle_utilization_warn"`
}

// DefaultConfig returns the values used by the RAPL and nvidia-smi
// measurement campaigns.
func DefaultConfig() Config {
	return Config{
		ConfidenceLevel:       0.99,
		RelativeError:         0.04,
		MaxMeasurements:       50,
		MaxIterations:         150,
		MinimumWindow:         2500 * time.Millisecond,
		InitializationRound:   true,
		Settle:                500 * time.Millisecond,
		SamplingInterval:      100 * time.Millisecond,
		IdleWindow:            5 * time.Second,
		ErrorTolerance:        0.05,
		Xi:                    1,
		MaxSampleFailureRatio: 0.5,
		MaxRoundFailures:      3,
		IdleUtilizationWarn:   0.25,
	}
}

// withDefaults fills unset (zero) fields from DefaultConfig.
// Notes:
//   - InitializationRound is taken verbatim; false is a valid choice.
//   - MinimumWindow and Settle of zero are respected ("disable"); only
//     negative values are defaulted.
//   - MaxSampleFailureRatio of zero means no failed sample is tolerated;
//     only a negative value is defaulted.
//   - MaxIterations defaults to three times MaxMeasurements.
func (c Config) withDefaults() Config {
	base := DefaultConfig()
	merged := c

	if merged.ConfidenceLevel == 0 {
		merged.ConfidenceLevel = base.ConfidenceLevel
	}
	if merged.RelativeError == 0 {
		merged.RelativeError = base.RelativeError
	}
	if merged.MaxMeasurements == 0 {
		merged.MaxMeasurements = base.MaxMeasurements
	}
	if merged.MaxIterations == 0 {
		merged.MaxIterations = 3 * merged.MaxMeasurements
	}
	if merged.MinimumWindow < 0 {
		merged.MinimumWindow = base.MinimumWindow
	}
	if merged.Settle < 0 {
		merged.Settle = base.Settle
	}
	if merged.SamplingInterval == 0 {
		merged.SamplingInterval = base.SamplingInterval
	}
	if merged.IdleWindow == 0 {
		merged.IdleWindow = base.IdleWindow
	}
	if merged.ErrorTolerance == 0 {
		merged.ErrorTolerance = base.ErrorTolerance
	}
	if merged.Xi == 0 {
		merged.Xi = base.Xi
	}
	if merged.MaxSampleFailureRatio < 0 {
		merged.MaxSampleFailureRatio = base.MaxSampleFailureRatio
	}
	if merged.MaxRoundFailures == 0 {
		merged.MaxRoundFailures = base.MaxRoundFailures
	}
	if merged.IdleUtilizationWarn == 0 {
		merged.IdleUtilizationWarn = base.IdleUtilizationWarn
	}
	return merged
}

// Validate rejects values outside their meaningful range.
func (c Config) Validate() error {
	switch {
	case !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 1):
		return fmt.Errorf("%w: confidence level %v not in (0,1)", ErrInvalidConfig, c.ConfidenceLevel)
	case !(c.RelativeError > 0):
		return fmt.Errorf("%w: relative error %v must be > 0", ErrInvalidConfig, c.RelativeError)
	case c.MaxMeasurements < 2:
		return fmt.Errorf("%w: max measurements %d must be >= 2", ErrInvalidConfig, c.MaxMeasurements)
	case c.MaxIterations < c.MaxMeasurements:
		return fmt.Errorf("%w: max iterations %d below max measurements %d", ErrInvalidConfig, c.MaxIterations, c.MaxMeasurements)
	case c.MinimumWindow < 0, c.Settle < 0:
		return fmt.Errorf("%w: negative window or settle time", ErrInvalidConfig)
	case c.SamplingInterval <= 0, c.IdleWindow <= 0:
		return fmt.Errorf("%w: sampling interval and idle window must be > 0", ErrInvalidConfig)
	case !(c.ErrorTolerance > 0), !(c.Xi > 0):
		return fmt.Errorf("%w: error tolerance and xi must be > 0", ErrInvalidConfig)
	case !(c.MaxSampleFailureRatio >= 0 && c.MaxSampleFailureRatio < 1):
		return fmt.Errorf("%w: max sample failure ratio %v not in [0,1)", ErrInvalidConfig, c.MaxSampleFailureRatio)
	case c.MaxRoundFailures < 1:
		return fmt.Errorf("%w: max round failures must be >= 1", ErrInvalidConfig)
	}
	return nil
}
