package hydraulics

import (
	"math"

	"github.com/milad-ghiami/EPANET/model"
)

// target returns the status and setting a control imposes on its link.
func (s *Solver) target(c model.Control, setting float64) (model.LinkStatus, float64) {
	if !c.HasSetting {
		return c.Status, setting
	}
	l := s.links[c.Link-1]
	if l.Type == model.LinkPump && c.Setting <= 0 {
		return model.StatusClosed, c.Setting
	}
	return model.StatusOpen, c.Setting
}

func (s *Solver) fires(c model.Control, t int64, head []float64) bool {
	switch c.Type {
	case model.ControlLowLevel:
		return head[c.Node-1] <= c.Grade+hTol
	case model.ControlHighLevel:
		return head[c.Node-1] >= c.Grade-hTol
	case model.ControlTimer:
		return t == c.Time
	case model.ControlTimeOfDay:
		return s.clock.Schedule.ClockTime(t) == c.Time
	}
	return false
}

// applyControls fires the simple controls for time t against the given
// status and setting slices and returns how many links changed.
func (s *Solver) applyControls(t int64, base []model.LinkStatus, setting, head []float64) int {
	changed := 0
	for _, c := range s.net.Controls() {
		if !s.fires(c, t, head) {
			continue
		}
		k := c.Link - 1
		st, set := s.target(c, setting[k])
		if st != base[k] || set != setting[k] {
			base[k], setting[k] = st, set
			changed++
		}
	}
	return changed
}

func (s *Solver) wouldChange(c model.Control) bool {
	k := c.Link - 1
	st, set := s.target(c, s.setting[k])
	return st != s.base[k] || set != s.setting[k]
}

// controlStep shortens tstep so that the next period starts when a control
// is due to fire.
func (s *Solver) controlStep(t, tstep int64) int64 {
	for _, c := range s.net.Controls() {
		if !s.wouldChange(c) {
			continue
		}
		var d int64
		switch c.Type {
		case model.ControlLowLevel, model.ControlHighLevel:
			node := s.nodes[c.Node-1]
			if node.Type != model.NodeTank {
				continue
			}
			i := c.Node - 1
			q := s.demand[i]
			h := s.head[i]
			rising := c.Type == model.ControlHighLevel && q > qTol && h < c.Grade
			falling := c.Type == model.ControlLowLevel && q < -qTol && h > c.Grade
			if !rising && !falling {
				continue
			}
			dv := node.Tank.VolumeAt(c.Grade-node.Elevation) - s.volume[i]
			d = int64(math.Ceil(dv/q - 1e-9))
		case model.ControlTimer:
			d = c.Time - t
		case model.ControlTimeOfDay:
			d = s.clock.Schedule.UntilClockTime(t, c.Time)
		}
		if d > 0 && d < tstep {
			tstep = d
		}
	}
	return tstep
}

// tankStep shortens tstep so that no tank overfills or drains past its
// limits within the step.
func (s *Solver) tankStep(tstep int64) int64 {
	for i, node := range s.nodes {
		if node.Type != model.NodeTank {
			continue
		}
		q := s.demand[i]
		tk := node.Tank
		var dv float64
		switch {
		case q > qTol && s.volume[i] < tk.VolumeAt(tk.MaxLevel):
			dv = tk.VolumeAt(tk.MaxLevel) - s.volume[i]
		case q < -qTol && s.volume[i] > tk.VolumeAt(tk.MinLevel):
			dv = tk.VolumeAt(tk.MinLevel) - s.volume[i]
		default:
			continue
		}
		d := int64(math.Ceil(dv/q - 1e-9))
		if d > 0 && d < tstep {
			tstep = d
		}
	}
	return tstep
}

// updateTanks integrates tank inflows over tstep seconds.
func (s *Solver) updateTanks(tstep int64) {
	for i, node := range s.nodes {
		if node.Type != model.NodeTank {
			continue
		}
		tk := node.Tank
		v := s.volume[i] + s.demand[i]*float64(tstep)
		v = math.Max(tk.VolumeAt(tk.MinLevel), math.Min(v, tk.VolumeAt(tk.MaxLevel)))
		s.volume[i] = v
		s.head[i] = node.Elevation + tk.LevelAt(v)
	}
}

// tankLimits flags the tanks sitting at their maximum or minimum level.
func (s *Solver) tankLimits() (full, empty []bool) {
	full = make([]bool, len(s.nodes))
	empty = make([]bool, len(s.nodes))
	for i, node := range s.nodes {
		if node.Type != model.NodeTank {
			continue
		}
		lvl := node.Tank.LevelAt(s.volume[i])
		full[i] = lvl >= node.Tank.MaxLevel-hTol
		empty[i] = lvl <= node.Tank.MinLevel+hTol
	}
	return full, empty
}
