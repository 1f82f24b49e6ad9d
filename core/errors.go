package core

import "errors"

var (
	ErrNodeExists      = errors.New("node already exists")
	ErrNodeNotFound    = errors.New("node not found")
	ErrLinkExists      = errors.New("link already exists")
	ErrLinkNotFound    = errors.New("link not found")
	ErrLinkBadInput    = errors.New("invalid link")
	ErrPatternExists   = errors.New("pattern already exists")
	ErrPatternNotFound = errors.New("pattern not found")
	ErrCurveExists     = errors.New("curve already exists")
	ErrCurveNotFound   = errors.New("curve not found")
	ErrControlBadInput = errors.New("invalid control")
	ErrInvalidID       = errors.New("invalid ID name")
	ErrInvalidSelector = errors.New("invalid count selector")
	ErrInvalidValue    = errors.New("invalid value")

	// ErrDemandCategory is returned for a demand category outside 1..count.
	ErrDemandCategory = errors.New("nonexistent demand category")
	// ErrNotJunction is returned when a junction-only operation targets a
	// reservoir or tank.
	ErrNotJunction = errors.New("node is not a junction")
	// ErrInvalidNetwork wraps structural problems found by Validate.
	ErrInvalidNetwork = errors.New("invalid network")
	// ErrUnknownFormat is returned for description files the loader cannot decode.
	ErrUnknownFormat = errors.New("unknown network description format")
)
