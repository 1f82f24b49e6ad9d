package model

import (
	"fmt"
	"strings"
)

// FlowUnits is the user flow unit of a network description.
type FlowUnits int

const (
	FlowCFS FlowUnits = iota
	FlowGPM
	FlowMGD
	FlowIMGD
	FlowAFD
	FlowLPS
	FlowLPM
	FlowMLD
	FlowCMH
	FlowCMD
)

var flowUnitNames = [...]string{"CFS", "GPM", "MGD", "IMGD", "AFD", "LPS", "LPM", "MLD", "CMH", "CMD"}

// cfs -> user flow unit
var flowFactors = [...]float64{1.0, 448.831, 0.64632, 0.5382, 1.9837, 28.317, 1699.0, 2.4466, 101.94, 2446.6}

func (u FlowUnits) String() string {
	if int(u) < len(flowUnitNames) && u >= 0 {
		return flowUnitNames[u]
	}
	return "UNKNOWN"
}

// ParseFlowUnits resolves a flow unit keyword, case-insensitively.
func ParseFlowUnits(s string) (FlowUnits, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return FlowGPM, nil
	}
	for i, name := range flowUnitNames {
		if name == s {
			return FlowUnits(i), nil
		}
	}
	return 0, fmt.Errorf("unknown flow units %q", s)
}

// IsSI reports whether the unit implies metric lengths and pressures.
func (u FlowUnits) IsSI() bool {
	return u >= FlowLPS
}

// Physical constants used in unit conversion.
const (
	FeetPerMeter = 3.28084
	PSIPerFoot   = 0.4333
	SecPerDay    = 86400
)

// Units converts between internal US units (ft, cfs) and the user's units.
// Every factor multiplies an internal value to obtain a user value.
type Units struct {
	Flow      float64
	Length    float64 // elevation, head, pipe length, level
	Diameter  float64
	Pressure  float64
	Velocity  float64
	Volume    float64
	Roughness float64 // D-W roughness only

	FlowName     string
	LengthName   string
	PressureName string
	VelocityName string
}

// UnitsFor builds the conversion table for a flow unit.
func UnitsFor(u FlowUnits) Units {
	out := Units{
		Flow:     flowFactors[u],
		FlowName: u.String(),
	}
	if u.IsSI() {
		out.Length = 1 / FeetPerMeter
		out.Diameter = 304.8 // ft -> mm
		out.Pressure = 1 / FeetPerMeter
		out.Velocity = 1 / FeetPerMeter
		out.Volume = 1 / (FeetPerMeter * FeetPerMeter * FeetPerMeter)
		out.Roughness = 304.8
		out.LengthName = "m"
		out.PressureName = "m"
		out.VelocityName = "m/s"
		return out
	}
	out.Length = 1
	out.Diameter = 12 // ft -> in
	out.Pressure = PSIPerFoot
	out.Velocity = 1
	out.Volume = 1
	out.Roughness = 1000 // ft -> millifeet
	out.LengthName = "ft"
	out.PressureName = "psi"
	out.VelocityName = "fps"
	return out
}
