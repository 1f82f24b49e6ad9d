package hydraulics

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyOpen     = errors.New("hydraulic solver already open")
	ErrNotOpen         = errors.New("hydraulic solver not open")
	ErrNotInitialized  = errors.New("hydraulic solver not initialized")
	ErrOutOfSequence   = errors.New("hydraulic step out of sequence")
	ErrNotConverged    = errors.New("hydraulic equations not solved")
	ErrIllConditioned  = errors.New("hydraulic system is ill-conditioned")
	ErrPumpCurve       = errors.New("invalid pump curve")
	ErrNoPeriod        = errors.New("no hydraulic period covers the requested time")
	ErrTrajectoryEmpty = errors.New("hydraulic trajectory is empty")
	ErrInvalidFlag     = errors.New("invalid hydraulic init flag")
)

// SolveError reports a failed hydraulic solution at a simulation time.
type SolveError struct {
	Time           int64
	Iterations     int
	RelativeChange float64
	Err            error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("t=%ds: %v after %d trials (relative flow change %.6g)",
		e.Time, e.Err, e.Iterations, e.RelativeChange)
}

func (e *SolveError) Unwrap() error { return e.Err }
