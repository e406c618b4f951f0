package posture

import "errors"

var (
	// ErrBaselineUnavailable is returned while either tracker is still
	// capturing its baseline. Every session passes through it at start-up.
	ErrBaselineUnavailable = errors.New("baseline not captured yet")

	// ErrRecalibrationNeeded is returned once the early-session trip-wire has
	// fired. The session must be discarded and rebuilt with fresh state.
	ErrRecalibrationNeeded = errors.New("recalibration needed")
)
