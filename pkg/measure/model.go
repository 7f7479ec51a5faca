package measure

import "time"

// Round is one measurement iteration. Energies are per single workload
// execution, in joules, and non-negative after wrap correction.
type Round struct {
	LoadEnergy float64 `json:"load_j"`
	IdleEnergy float64 `json:"idle_j"`
	// Duration is the wall time of one execution, in seconds.
	Duration        float64 `json:"duration_s"`
	Executions      int     `json:"executions"`
	FailedRuns      int     `json:"failed_runs,omitempty"`
	IdleUtilization float64 `json:"idle_utilization,omitempty"`
}

// Net returns load minus idle energy.
func (r Round) Net() float64 { return r.LoadEnergy - r.IdleEnergy }

// ConvergenceState is derived from the series after every round.
type ConvergenceState struct {
	N         int
	Mean      float64
	StdDev    float64
	HalfWidth float64
	Threshold float64
	// Nq and Ratio are only meaningful under the power cost bound.
	Nq     int
	Ratio  float64
	Stable bool
}

// Outcome is the terminal state of a session.
type Outcome string

const (
	OutcomeConverged         Outcome = "converged"
	OutcomeMaxRoundsExceeded Outcome = "max_rounds_exceeded"
)

// Result is the final record of a session. It is created once and never
// modified afterwards.
type Result struct {
	InstanceID      string    `json:"instance_id"`
	Command         string    `json:"command"`
	Sensor          string    `json:"sensor"`
	Outcome         Outcome   `json:"outcome"`
	MeanEnergy      float64   `json:"mean_energy_j"`
	HalfWidth       float64   `json:"confidence_half_width_j"`
	Threshold       float64   `json:"threshold_j"`
	ConfidenceLevel float64   `json:"confidence_level"`
	RelativeError   float64   `json:"relative_error"`
	RoundCount      int       `json:"round_count"`
	Iterations      int       `json:"iterations"`
	Repetitions     int       `json:"repetitions"`
	SingleRun       float64   `json:"single_run_s"`
	IdlePower       float64   `json:"idle_power_w,omitempty"`
	ProbeExitCode   int       `json:"probe_exit_code"`
	FailedRuns      int       `json:"failed_runs"`
	Series          []Round   `json:"series"`
	Net             []float64 `json:"net_j"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`

	// Cached is set when the Result was loaded from a store instead of
	// being measured by this call.
	Cached bool `json:"-"`
}

// State is a Controller lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StateValidated
	StateProbing
	StateInitializing
	StateSampling
	StateConverged
	StateMaxRoundsExceeded
)

func (s State) String() string {
	switch s {
	case StateValidated:
		return "validated"
	case StateProbing:
		return "probing"
	case StateInitializing:
		return "initializing"
	case StateSampling:
		return "sampling"
	case StateConverged:
		return "converged"
	case StateMaxRoundsExceeded:
		return "max rounds exceeded"
	default:
		return "uninitialized"
	}
}
