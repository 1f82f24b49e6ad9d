package quality

import (
	"math"

	"github.com/milad-ghiami/EPANET/model"
)

// qZero is the smallest flow (cfs) that moves water.
const qZero = 1e-5

type segment struct {
	v float64 // ft3
	c float64
}

func reverse(segs []segment) {
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
}

func (s *Solver) downstream(k int) int {
	if s.dir[k] > 0 {
		return s.links[k].To - 1
	}
	return s.links[k].From - 1
}

func (s *Solver) upstream(k int) int {
	if s.dir[k] > 0 {
		return s.links[k].From - 1
	}
	return s.links[k].To - 1
}

// transport advances the network by dt seconds: react in place, move
// segment volume into downstream nodes, mix at nodes, then release new
// water into the upstream end of each link.
func (s *Solver) transport(dt int64) {
	if s.opts.Type == model.QualityNone {
		s.updateTankVolumes(dt)
		return
	}
	s.react(dt)

	for i := range s.volIn {
		s.volIn[i], s.massIn[i] = 0, 0
	}
	p := s.period
	for k := range s.links {
		q := math.Abs(p.Flow[k])
		if q < qZero {
			continue
		}
		v := q * float64(dt)
		mass, moved := 0.0, 0.0
		segs := s.segs[k]
		for len(segs) > 0 && moved < v {
			take := math.Min(segs[0].v, v-moved)
			mass += take * segs[0].c
			moved += take
			if take >= segs[0].v {
				segs = segs[1:]
			} else {
				segs[0].v -= take
			}
		}
		if moved < v {
			mass += (v - moved) * s.c[s.upstream(k)]
		}
		s.segs[k] = segs

		down := s.downstream(k)
		s.volIn[down] += v
		s.massIn[down] += mass
	}

	s.mixNodes(dt)
	s.release(dt)
}

func (s *Solver) mixNodes(dt int64) {
	for i, n := range s.nodes {
		switch n.Type {
		case model.NodeJunction:
			if s.volIn[i] > 0 {
				s.c[i] = s.massIn[i] / s.volIn[i]
			}
			if s.opts.Type == model.QualityChemical && n.SourceQuality > 0 {
				s.c[i] = math.Max(s.c[i], n.SourceQuality)
			}
		case model.NodeReservoir:
			s.c[i] = s.initialQuality(i, n)
		case model.NodeTank:
			v := s.tankV[i]
			if s.volIn[i] > 0 && v+s.volIn[i] > 0 {
				s.c[i] = (s.c[i]*v + s.massIn[i]) / (v + s.volIn[i])
			}
			s.tankV[i] = math.Max(0, v+s.period.Demand[i]*float64(dt))
		}
		if s.opts.Type == model.QualityTrace && i+1 == s.opts.TraceNode {
			s.c[i] = 100
		}
	}
}

func (s *Solver) updateTankVolumes(dt int64) {
	for i, n := range s.nodes {
		if n.Type == model.NodeTank {
			s.tankV[i] = math.Max(0, s.tankV[i]+s.period.Demand[i]*float64(dt))
		}
	}
}

// release adds the water that entered each pipe during dt as a new segment
// at its upstream end, merging with the last segment when the two
// concentrations are within tolerance.
func (s *Solver) release(dt int64) {
	tol := s.opts.Tolerance
	for k, l := range s.links {
		q := math.Abs(s.period.Flow[k])
		vol := l.Volume()
		if q < qZero || vol <= 0 {
			continue
		}
		add := math.Min(q*float64(dt), vol)
		c := s.c[s.upstream(k)]
		segs := s.segs[k]
		if n := len(segs); n > 0 && math.Abs(segs[n-1].c-c) <= tol {
			segs[n-1].v += add
		} else {
			segs = append(segs, segment{v: add, c: c})
		}
		s.segs[k] = segs
	}
}

// react applies bulk and wall reactions to every pipe segment and bulk
// reactions to tanks over dt seconds.
func (s *Solver) react(dt int64) {
	switch s.opts.Type {
	case model.QualityAge:
		hours := float64(dt) / 3600
		for k := range s.segs {
			for j := range s.segs[k] {
				s.segs[k][j].c += hours
			}
		}
		for i, n := range s.nodes {
			if n.Type == model.NodeTank {
				s.c[i] += hours
			}
		}

	case model.QualityChemical:
		days := float64(dt) / 86400
		for k, l := range s.links {
			if len(s.segs[k]) == 0 {
				continue
			}
			wall := 0.0
			if l.Diameter > 0 {
				wall = 4 * l.Wall / l.Diameter
			}
			for j := range s.segs[k] {
				s.segs[k][j].c = s.decay(s.segs[k][j].c, l.Bulk, wall, days)
			}
		}
		for i, n := range s.nodes {
			if n.Type == model.NodeTank {
				s.c[i] = s.decay(s.c[i], n.Tank.Bulk, 0, days)
			}
		}
	}
}

// decay integrates dc/dt = kb*c^order + kw*c over days. Negative
// coefficients decay the constituent.
func (s *Solver) decay(c, kb, kw, days float64) float64 {
	if c <= 0 {
		return c
	}
	order := s.opts.BulkOrder
	if order == 1 {
		return c * math.Exp((kb+kw)*days)
	}
	c += (kb*math.Pow(c, order) + kw*c) * days
	return math.Max(c, 0)
}
