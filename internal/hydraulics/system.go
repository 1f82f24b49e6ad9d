package hydraulics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/model"
)

// System is the fixed topology and resistance data of a network, ready for
// repeated gradient solves. It holds no per-period state.
type System struct {
	formula   model.HeadlossFormula
	exponent  float64
	viscosity float64
	maxTrials int
	accuracy  float64

	links []linkCoeff
	row   []int // node position -> matrix row, -1 for fixed-grade nodes
	nJunc int
}

// Input is the per-period data of a solve. Node slices are indexed by node
// position (index-1), link slices by link position.
type Input struct {
	Demand  []float64          // junction demands (cfs)
	Head    []float64          // heads of fixed-grade nodes (ft)
	Flow    []float64          // starting flows (cfs)
	Status  []model.LinkStatus // Closed links stay closed
	Setting []float64          // pump speed or TCV loss coefficient

	// Full and Empty mark tanks at their level limits. Links may then carry
	// flow out of a full tank or into an empty one only.
	Full  []bool
	Empty []bool
}

// Solution is the result of a solve.
type Solution struct {
	Flow   []float64
	Head   []float64
	Status []model.LinkStatus
}

// Convergence summarises the iteration that produced a Solution.
type Convergence struct {
	Converged      bool
	Iterations     int
	RelativeChange float64
}

// NewSystem builds the solve topology of a network.
func NewSystem(net *core.Network) (*System, error) {
	opts := net.Options
	s := &System{
		formula:   opts.Headloss,
		exponent:  headlossExponent(opts.Headloss),
		viscosity: opts.Viscosity,
		maxTrials: opts.MaxTrials,
		accuracy:  opts.Accuracy,
	}
	if s.maxTrials <= 0 {
		s.maxTrials = 40
	}
	if s.accuracy <= 0 {
		s.accuracy = 0.001
	}
	if s.viscosity <= 0 {
		s.viscosity = 1.1e-5
	}

	nodes := net.Nodes()
	s.row = make([]int, len(nodes))
	for i, n := range nodes {
		if n.IsFixedGrade() {
			s.row[i] = -1
			continue
		}
		s.row[i] = s.nJunc
		s.nJunc++
	}

	s.links = make([]linkCoeff, len(net.Links()))
	for k, l := range net.Links() {
		c := linkCoeff{
			typ:      l.Type,
			from:     l.From - 1,
			to:       l.To - 1,
			diameter: l.Diameter,
			m:        minorLoss(l.MinorLoss, l.Diameter),
		}
		switch {
		case l.Type == model.LinkPump:
			c.kind = kindPump
			c.m = 0
			curve, err := net.Curve(l.Pump.Curve)
			if err != nil {
				return nil, fmt.Errorf("pump %q: %w", l.ID, err)
			}
			if c.h0, c.pr, c.pn, c.design, err = fitPumpCurve(curve); err != nil {
				return nil, fmt.Errorf("pump %q: %w", l.ID, err)
			}
		case l.Type.IsValve():
			c.kind = kindValve
		default:
			c.kind = kindPipe
			c.cv = l.Type == model.LinkCVPipe
			c.r = pipeResistance(opts.Headloss, l)
			c.rough = l.Roughness
		}
		s.links[k] = c
	}
	return s, nil
}

// NumJunctions returns the number of unknown heads.
func (s *System) NumJunctions() int { return s.nJunc }

// InitialFlow returns the starting flow of link k: 1 ft/s through pipes and
// valves, the design flow through pumps, and a token flow if closed.
func (s *System) InitialFlow(k int, st model.LinkStatus, setting float64) float64 {
	l := &s.links[k]
	if st != model.StatusOpen {
		return qZero
	}
	if l.kind == kindPump {
		if setting <= 0 {
			return qZero
		}
		return l.design * setting
	}
	return math.Pi * l.diameter * l.diameter / 4
}

// Solve runs the global gradient method from the input's starting flows. It
// does not modify the input. A solve that exhausts its trials returns the
// last iterate with Converged unset.
func (s *System) Solve(in Input) (Solution, Convergence, error) {
	nl := len(s.links)
	q := append([]float64(nil), in.Flow...)
	h := append([]float64(nil), in.Head...)
	st := append([]model.LinkStatus(nil), in.Status...)
	p := make([]float64, nl)
	y := make([]float64, nl)

	var (
		conv Convergence
		chol mat.Cholesky
		x    *mat.VecDense
	)
	if s.nJunc > 0 {
		x = mat.NewVecDense(s.nJunc, nil)
	}

	for iter := 1; iter <= s.maxTrials; iter++ {
		conv.Iterations = iter
		for k := range s.links {
			p[k], y[k] = s.coeff(k, q[k], st[k], in.Setting[k])
		}

		if s.nJunc > 0 {
			a := mat.NewSymDense(s.nJunc, nil)
			f := mat.NewVecDense(s.nJunc, nil)
			for i, r := range s.row {
				if r >= 0 {
					f.SetVec(r, -in.Demand[i])
				}
			}
			for k := range s.links {
				l := &s.links[k]
				ra, rb := s.row[l.from], s.row[l.to]
				qy := q[k] - y[k]
				if ra >= 0 {
					a.SetSym(ra, ra, a.At(ra, ra)+p[k])
					f.SetVec(ra, f.AtVec(ra)-qy)
					if rb < 0 {
						f.SetVec(ra, f.AtVec(ra)+p[k]*h[l.to])
					}
				}
				if rb >= 0 {
					a.SetSym(rb, rb, a.At(rb, rb)+p[k])
					f.SetVec(rb, f.AtVec(rb)+qy)
					if ra < 0 {
						f.SetVec(rb, f.AtVec(rb)+p[k]*h[l.from])
					}
				}
				if ra >= 0 && rb >= 0 {
					a.SetSym(ra, rb, a.At(ra, rb)-p[k])
				}
			}
			if ok := chol.Factorize(a); !ok {
				return Solution{q, h, st}, conv, ErrIllConditioned
			}
			if err := chol.SolveVecTo(x, f); err != nil {
				var cond mat.Condition
				if !errors.As(err, &cond) {
					return Solution{q, h, st}, conv, fmt.Errorf("%w: %v", ErrIllConditioned, err)
				}
			}
			for i, r := range s.row {
				if r >= 0 {
					h[i] = x.AtVec(r)
				}
			}
		}

		var dq, sum float64
		for k := range s.links {
			l := &s.links[k]
			next := q[k] - y[k] + p[k]*(h[l.from]-h[l.to])
			dq += math.Abs(next - q[k])
			sum += math.Abs(next)
			q[k] = next
		}
		rel := dq
		if sum > 0 {
			rel /= sum
		}
		conv.RelativeChange = rel
		if math.IsNaN(rel) || math.IsInf(rel, 0) {
			return Solution{q, h, st}, conv, ErrIllConditioned
		}

		if rel <= s.accuracy && !s.checkStatus(q, h, st, in) {
			conv.Converged = true
			break
		}
	}
	return Solution{Flow: q, Head: h, Status: st}, conv, nil
}

// checkStatus updates the solver-controlled status of check valves, pumps
// and links attached to full or empty tanks. It reports whether any status
// changed.
func (s *System) checkStatus(q, h []float64, st []model.LinkStatus, in Input) bool {
	changed := false
	for k := range s.links {
		l := &s.links[k]
		if in.Status[k] == model.StatusClosed {
			continue
		}
		pump := l.kind == kindPump
		blockFwd := flagged(in.Full, l.to) || flagged(in.Empty, l.from)
		blockRev := l.cv || pump || flagged(in.Full, l.from) || flagged(in.Empty, l.to)
		if !blockFwd && !blockRev {
			if st[k] == model.StatusTempClosed {
				st[k] = model.StatusOpen
				changed = true
			}
			continue
		}

		dh := h[l.from] - h[l.to]
		shut := l.shutoff(in.Setting[k])
		next := st[k]
		switch st[k] {
		case model.StatusOpen:
			if blockRev && q[k] < -qTol {
				next = model.StatusTempClosed
			}
			if blockFwd && q[k] > qTol {
				next = model.StatusTempClosed
			}
			if pump && -dh > shut+hTol {
				next = model.StatusTempClosed
			}
		case model.StatusTempClosed:
			if dh+shut > hTol && !blockFwd {
				next = model.StatusOpen
			}
			if -dh > hTol && !blockRev {
				next = model.StatusOpen
			}
		}
		if next != st[k] {
			st[k] = next
			changed = true
		}
	}
	return changed
}

func flagged(v []bool, i int) bool {
	return i < len(v) && v[i]
}
