package model

// ControlType identifies what triggers a simple control.
type ControlType int

const (
	ControlLowLevel  ControlType = iota // node grade below Grade
	ControlHighLevel                    // node grade above Grade
	ControlTimer                        // elapsed simulation time equals Time
	ControlTimeOfDay                    // clock time of day equals Time
)

// Control changes a link's status or setting when its trigger fires.
type Control struct {
	Type    ControlType
	Link    int
	Status  LinkStatus
	Setting float64 // used when HasSetting is set (pump speed, valve setting)

	HasSetting bool

	Node  int     // level controls
	Grade float64 // total head (ft) for level controls

	Time int64 // seconds, for timer and time-of-day controls
}
