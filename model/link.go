package model

// LinkType follows the toolkit's link type codes.
type LinkType int

const (
	LinkCVPipe LinkType = iota
	LinkPipe
	LinkPump
	LinkPRV
	LinkPSV
	LinkPBV
	LinkFCV
	LinkTCV
	LinkGPV
)

func (t LinkType) String() string {
	switch t {
	case LinkCVPipe:
		return "cvpipe"
	case LinkPipe:
		return "pipe"
	case LinkPump:
		return "pump"
	case LinkPRV:
		return "prv"
	case LinkPSV:
		return "psv"
	case LinkPBV:
		return "pbv"
	case LinkFCV:
		return "fcv"
	case LinkTCV:
		return "tcv"
	case LinkGPV:
		return "gpv"
	default:
		return "unknown"
	}
}

// IsValve reports whether the link is one of the valve types.
func (t LinkType) IsValve() bool {
	return t >= LinkPRV
}

// LinkStatus is the open/closed state of a link. TempClosed is set by the
// solver itself (check valves, pumps that cannot deliver head, links feeding
// a full tank) and is never an input value.
type LinkStatus int

const (
	StatusClosed LinkStatus = iota
	StatusOpen
	StatusTempClosed
)

func (s LinkStatus) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpen:
		return "open"
	case StatusTempClosed:
		return "temp-closed"
	default:
		return "unknown"
	}
}

// IsOpen reports whether the link carries flow.
func (s LinkStatus) IsOpen() bool { return s == StatusOpen }

// Pump holds head-curve data for pump links.
type Pump struct {
	Curve int     // head curve index
	Speed float64 // relative speed setting
}

// Link is a pipe, pump or valve between two nodes.
type Link struct {
	ID        string
	Type      LinkType
	From      int
	To        int
	Length    float64 // ft
	Diameter  float64 // ft
	Roughness float64
	MinorLoss float64 // dimensionless loss coefficient

	InitStatus  LinkStatus
	InitSetting float64

	Bulk float64 // 1/day
	Wall float64 // ft/day

	Pump *Pump
}

// Volume returns the water volume held by a pipe (ft3). Pumps and valves
// hold none.
func (l *Link) Volume() float64 {
	if l.Type != LinkPipe && l.Type != LinkCVPipe {
		return 0
	}
	return 0.785398 * l.Diameter * l.Diameter * l.Length
}
