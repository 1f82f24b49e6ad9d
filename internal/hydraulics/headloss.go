package hydraulics

import (
	"fmt"
	"math"

	"github.com/milad-ghiami/EPANET/model"
)

const (
	rqTol = 1e-7 // smallest allowed head-loss gradient
	cBig  = 1e8  // resistance of a closed link
	qZero = 1e-6 // flow assigned to closed links (cfs)
	qTol  = 1e-4 // flow tolerance for status checks (cfs)
	hTol  = 0.0005

	hwExp = 1.852
)

type linkKind int

const (
	kindPipe linkKind = iota
	kindPump
	kindValve
)

// linkCoeff holds the fixed resistance data of one link.
type linkCoeff struct {
	kind     linkKind
	typ      model.LinkType
	cv       bool
	from, to int // 0-based node positions

	r        float64 // friction resistance; Darcy-Weisbach omits the friction factor
	m        float64 // minor loss resistance
	diameter float64
	rough    float64 // ft, Darcy-Weisbach only

	h0, pr, pn float64 // pump curve h = h0 - pr*q^pn at unit speed
	design     float64 // pump design flow (cfs)
}

func minorLoss(k, d float64) float64 {
	if k <= 0 || d <= 0 {
		return 0
	}
	return 0.02517 * k / math.Pow(d, 4)
}

func pipeResistance(f model.HeadlossFormula, l *model.Link) float64 {
	switch f {
	case model.DarcyWeisbach:
		return 0.0252 * l.Length / math.Pow(l.Diameter, 5)
	case model.ChezyManning:
		return 4.66 * l.Roughness * l.Roughness * l.Length / math.Pow(l.Diameter, 5.33)
	default:
		return 4.727 * l.Length / (math.Pow(l.Roughness, hwExp) * math.Pow(l.Diameter, 4.871))
	}
}

func headlossExponent(f model.HeadlossFormula) float64 {
	if f == model.HazenWilliams {
		return hwExp
	}
	return 2
}

// fitPumpCurve fits h = h0 - r*q^n to a head curve and returns the design
// flow used to seed the pump's initial flow.
func fitPumpCurve(c *model.Curve) (h0, r, n, design float64, err error) {
	switch {
	case len(c.X) == 1:
		q, h := c.X[0], c.Y[0]
		if q <= 0 || h <= 0 {
			return 0, 0, 0, 0, fmt.Errorf("%w: %q needs positive design point", ErrPumpCurve, c.ID)
		}
		return 4.0 / 3.0 * h, h / 3 / (q * q), 2, q, nil

	case len(c.X) == 3 && c.X[0] == 0:
		h0 = c.Y[0]
		h4, h5 := h0-c.Y[1], h0-c.Y[2]
		q1, q2 := c.X[1], c.X[2]
		if h4 <= 0 || h5 <= h4 || q1 <= 0 || q2 <= q1 {
			return 0, 0, 0, 0, fmt.Errorf("%w: %q is not a decreasing head curve", ErrPumpCurve, c.ID)
		}
		n = math.Log(h5/h4) / math.Log(q2/q1)
		if n <= 0 || n > 20 {
			return 0, 0, 0, 0, fmt.Errorf("%w: %q exponent %.3g", ErrPumpCurve, c.ID, n)
		}
		return h0, h4 / math.Pow(q1, n), n, q1, nil

	case len(c.X) >= 2:
		return fitPowerLeastSquares(c)
	}
	return 0, 0, 0, 0, fmt.Errorf("%w: %q has no points", ErrPumpCurve, c.ID)
}

// fitPowerLeastSquares fits ln(h0-h) = ln r + n ln q over a multi-point
// curve, with h0 extrapolated linearly from the first two points.
func fitPowerLeastSquares(c *model.Curve) (h0, r, n, design float64, err error) {
	h0 = c.Y[0]
	if c.X[0] > 0 {
		dx := c.X[1] - c.X[0]
		if dx <= 0 {
			return 0, 0, 0, 0, fmt.Errorf("%w: %q flows must increase", ErrPumpCurve, c.ID)
		}
		h0 += (c.Y[0] - c.Y[1]) * c.X[0] / dx
	}
	var sx, sy, sxx, sxy float64
	cnt := 0
	for i := range c.X {
		dh := h0 - c.Y[i]
		if c.X[i] <= 0 || dh <= 0 {
			continue
		}
		x, y := math.Log(c.X[i]), math.Log(dh)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
		cnt++
	}
	den := float64(cnt)*sxx - sx*sx
	if cnt < 2 || den == 0 {
		return 0, 0, 0, 0, fmt.Errorf("%w: %q cannot be fitted", ErrPumpCurve, c.ID)
	}
	n = (float64(cnt)*sxy - sx*sy) / den
	if n <= 0 || n > 20 {
		return 0, 0, 0, 0, fmt.Errorf("%w: %q exponent %.3g", ErrPumpCurve, c.ID, n)
	}
	r = math.Exp((sy - n*sx) / float64(cnt))
	return h0, r, n, c.X[len(c.X)/2], nil
}

// friction returns the Swamee-Jain friction factor at flow q, or the
// laminar value below a Reynolds number of 2000.
func friction(l *linkCoeff, q, viscosity float64) float64 {
	re := 4 * q / (math.Pi * l.diameter * viscosity)
	if re < 2000 {
		if re < 1 {
			re = 1
		}
		return 64 / re
	}
	lg := math.Log10(l.rough/(3.7*l.diameter) + 5.74/math.Pow(re, 0.9))
	return 0.25 / (lg * lg)
}

// coeff returns the inverse head-loss gradient p and the flow correction
// y = p*h(q) of link k for the current flow, status and setting.
func (s *System) coeff(k int, q float64, st model.LinkStatus, setting float64) (p, y float64) {
	l := &s.links[k]
	if st != model.StatusOpen {
		return 1 / cBig, q
	}
	aq := math.Abs(q)

	switch l.kind {
	case kindPump:
		if setting <= 0 {
			return 1 / cBig, q
		}
		h0 := setting * setting * l.h0
		r := l.pr * math.Pow(setting, 2-l.pn)
		aq = math.Max(aq, qZero)
		g := l.pn * r * math.Pow(aq, l.pn-1)
		if g < rqTol {
			g = rqTol
		}
		p = 1 / g
		return p, p * (r*math.Pow(aq, l.pn) - h0)

	case kindValve:
		m := l.m
		if l.typ == model.LinkTCV && setting > 0 {
			m = minorLoss(setting, l.diameter)
		}
		if m <= 0 {
			return 1 / rqTol, q
		}
		g := 2 * m * aq
		if g < rqTol {
			g = rqTol
		}
		return 1 / g, q / 2
	}

	r, n := l.r, s.exponent
	if s.formula == model.DarcyWeisbach {
		r *= friction(l, aq, s.viscosity)
	}
	g := n*r*math.Pow(aq, n-1) + 2*l.m*aq
	if g < rqTol {
		return 1 / rqTol, q / n
	}
	hl := r*math.Pow(aq, n) + l.m*aq*aq
	p = 1 / g
	return p, math.Copysign(p*hl, q)
}

// shutoff returns the pump's shutoff head at a speed setting.
func (l *linkCoeff) shutoff(setting float64) float64 {
	if l.kind != kindPump {
		return 0
	}
	return setting * setting * l.h0
}
