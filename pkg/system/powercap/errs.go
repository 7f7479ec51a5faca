package powercap

import "errors"

var (
	// ErrNoDomain indicates that the domain directory or its energy_uj file is missing.
	ErrNoDomain = errors.New("powercap: no such domain")

	// ErrBadValue indicates that a counter file held something other than a number.
	ErrBadValue = errors.New("powercap: non-numeric counter value")
)
