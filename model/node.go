package model

import "math"

// NodeType distinguishes the three kinds of network node.
type NodeType int

const (
	NodeJunction NodeType = iota
	NodeReservoir
	NodeTank
)

func (t NodeType) String() string {
	switch t {
	case NodeJunction:
		return "junction"
	case NodeReservoir:
		return "reservoir"
	case NodeTank:
		return "tank"
	default:
		return "unknown"
	}
}

// Demand is one consumption category at a junction.
type Demand struct {
	Base    float64 // cfs
	Pattern int     // pattern index; 0 means a constant multiplier of 1
	Name    string
}

// Tank holds storage geometry. Levels are measured from the tank bottom (ft).
type Tank struct {
	InitLevel float64
	MinLevel  float64
	MaxLevel  float64
	Diameter  float64
	MinVolume float64
	Bulk      float64 // bulk reaction coefficient, 1/day
}

// Area returns the cross-sectional area of a cylindrical tank (ft2).
func (t *Tank) Area() float64 {
	return math.Pi * t.Diameter * t.Diameter / 4
}

// VolumeAt converts a level to a stored volume (ft3).
func (t *Tank) VolumeAt(level float64) float64 {
	return t.MinVolume + (level-t.MinLevel)*t.Area()
}

// LevelAt converts a stored volume back to a level.
func (t *Tank) LevelAt(volume float64) float64 {
	a := t.Area()
	if a == 0 {
		return t.MinLevel
	}
	return t.MinLevel + (volume-t.MinVolume)/a
}

// Node is a junction, reservoir or tank. Only the fields relevant to its
// Type are meaningful.
type Node struct {
	ID        string
	Type      NodeType
	Elevation float64 // ft; reservoir total head for reservoirs

	Demands []Demand

	InitQuality   float64
	SourceQuality float64

	// HeadPattern varies a reservoir's head over time; 0 for none.
	HeadPattern int

	Tank *Tank
}

// IsFixedGrade reports whether the node's head is held fixed during a
// hydraulic solution.
func (n *Node) IsFixedGrade() bool {
	return n.Type != NodeJunction
}
