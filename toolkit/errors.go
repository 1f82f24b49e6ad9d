package toolkit

import (
	"errors"
	"fmt"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/internal/hydraulics"
	"github.com/milad-ghiami/EPANET/internal/quality"
)

var (
	ErrInvalidHandle     = errors.New("project handle is not usable")
	ErrNoNetwork         = errors.New("no network data available")
	ErrNoResults         = errors.New("no results saved to report on")
	ErrAlreadyOpen       = errors.New("project already has an open network")
	ErrInvalidParameter  = errors.New("invalid parameter code")
	ErrCannotOpenInput   = errors.New("cannot open input file")
	ErrCannotOpenReport  = errors.New("cannot open report file")
	ErrCannotOpenResults = errors.New("cannot open results file")
	ErrWriteResults      = errors.New("cannot save results to file")
)

// Error is the coded failure of a toolkit operation.
type Error struct {
	Code int
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: error %d: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the numeric code carried by err: 0 for nil, the code of
// a wrapped *Error, or the code mapped from a known sentinel.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	code, _ := sentinelCode(err)
	return code
}

// sentinelCodes maps package sentinels to toolkit error codes. Order
// matters only where an error could wrap more than one sentinel.
var sentinelCodes = []struct {
	err  error
	code int
}{
	{ErrInvalidHandle, 1},
	{ErrNoNetwork, 102},
	{ErrNoResults, 106},
	{ErrAlreadyOpen, 113},
	{ErrInvalidParameter, 251},
	{ErrCannotOpenInput, 302},
	{ErrCannotOpenReport, 303},
	{ErrCannotOpenResults, 304},
	{ErrWriteResults, 308},

	{hydraulics.ErrAlreadyOpen, 108},
	{hydraulics.ErrNotOpen, 103},
	{hydraulics.ErrNotInitialized, 103},
	{hydraulics.ErrOutOfSequence, 103},
	{hydraulics.ErrNotConverged, 110},
	{hydraulics.ErrIllConditioned, 110},
	{hydraulics.ErrInvalidFlag, 251},
	{hydraulics.ErrPumpCurve, 200},

	{quality.ErrAlreadyOpen, 109},
	{quality.ErrNotOpen, 105},
	{quality.ErrNotInitialized, 105},
	{quality.ErrOutOfSequence, 105},
	{quality.ErrNoHydraulics, 104},
	{quality.ErrNumerical, 120},

	{core.ErrNodeNotFound, 203},
	{core.ErrLinkNotFound, 204},
	{core.ErrPatternNotFound, 205},
	{core.ErrCurveNotFound, 206},
	{core.ErrNodeExists, 215},
	{core.ErrLinkExists, 215},
	{core.ErrPatternExists, 215},
	{core.ErrCurveExists, 215},
	{core.ErrInvalidID, 252},
	{core.ErrInvalidSelector, 251},
	{core.ErrDemandCategory, 253},
	{core.ErrNotJunction, 202},
	{core.ErrInvalidValue, 202},
	{core.ErrLinkBadInput, 200},
	{core.ErrControlBadInput, 200},
	{core.ErrInvalidNetwork, 200},
	{core.ErrUnknownFormat, 302},
}

func sentinelCode(err error) (int, bool) {
	for _, c := range sentinelCodes {
		if errors.Is(err, c.err) {
			return c.code, true
		}
	}
	return 0, false
}

// codeFor falls back to the validation code for errors no sentinel covers.
func codeFor(err error) int {
	if code, ok := sentinelCode(err); ok {
		return code
	}
	return 200
}

// fail wraps err with the operation name and its code. It returns nil for
// a nil err.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Code: codeFor(err), Op: op, Err: err}
}
