package model

// Pattern is a named sequence of time-period multipliers.
type Pattern struct {
	ID      string
	Factors []float64
}

// Factor returns the multiplier for a pattern period, wrapping around the
// end of the sequence. An empty pattern behaves as a constant 1.
func (p *Pattern) Factor(period int) float64 {
	n := len(p.Factors)
	if n == 0 {
		return 1
	}
	if period < 0 {
		period = 0
	}
	return p.Factors[period%n]
}

// Average returns the mean multiplier.
func (p *Pattern) Average() float64 {
	if len(p.Factors) == 0 {
		return 1
	}
	sum := 0.0
	for _, f := range p.Factors {
		sum += f
	}
	return sum / float64(len(p.Factors))
}

// Curve is an ordered set of (x, y) points, e.g. flow vs. head for a pump.
type Curve struct {
	ID string
	X  []float64
	Y  []float64
}
