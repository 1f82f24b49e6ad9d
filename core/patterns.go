package core

import (
	"fmt"

	"github.com/milad-ghiami/EPANET/model"
)

//
// ---------- Patterns ----------
//

// AddPattern appends a new pattern holding a single multiplier of 1 and
// returns its index, which always equals the pattern count after the add.
func (n *Network) AddPattern(id string) (int, error) {
	if err := validID(id); err != nil {
		return 0, err
	}
	if _, exists := n.patternIndex[id]; exists {
		return 0, fmt.Errorf("%w: %q", ErrPatternExists, id)
	}
	n.patterns = append(n.patterns, &model.Pattern{ID: id, Factors: []float64{1}})
	idx := len(n.patterns)
	n.patternIndex[id] = idx
	return idx, nil
}

// PatternIndex resolves a pattern ID to the index assigned when it was added.
func (n *Network) PatternIndex(id string) (int, error) {
	if idx, ok := n.patternIndex[id]; ok {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrPatternNotFound, id)
}

// Pattern returns the pattern at a 1-based index.
func (n *Network) Pattern(index int) (*model.Pattern, error) {
	if index < 1 || index > len(n.patterns) {
		return nil, fmt.Errorf("%w: index %d", ErrPatternNotFound, index)
	}
	return n.patterns[index-1], nil
}

// SetPattern replaces all multipliers of a pattern.
func (n *Network) SetPattern(index int, factors []float64) error {
	p, err := n.Pattern(index)
	if err != nil {
		return err
	}
	if len(factors) == 0 {
		return fmt.Errorf("%w: pattern %q needs at least one factor", ErrInvalidValue, p.ID)
	}
	p.Factors = append([]float64(nil), factors...)
	return nil
}

// PatternValue returns the multiplier of a 1-based period.
func (n *Network) PatternValue(index, period int) (float64, error) {
	p, err := n.Pattern(index)
	if err != nil {
		return 0, err
	}
	if period < 1 || period > len(p.Factors) {
		return 0, fmt.Errorf("%w: period %d of pattern %q", ErrInvalidValue, period, p.ID)
	}
	return p.Factors[period-1], nil
}

// SetPatternValue overwrites the multiplier of a 1-based period.
func (n *Network) SetPatternValue(index, period int, value float64) error {
	p, err := n.Pattern(index)
	if err != nil {
		return err
	}
	if period < 1 || period > len(p.Factors) {
		return fmt.Errorf("%w: period %d of pattern %q", ErrInvalidValue, period, p.ID)
	}
	p.Factors[period-1] = value
	return nil
}

// PatternFactor returns the multiplier of pattern index for a 0-based
// pattern period. Index 0 is the constant pattern.
func (n *Network) PatternFactor(index, period int) float64 {
	if index < 1 || index > len(n.patterns) {
		return 1
	}
	return n.patterns[index-1].Factor(period)
}

//
// ---------- Demands ----------
//

func (n *Network) demand(node, category int) (*model.Demand, error) {
	nd, err := n.Node(node)
	if err != nil {
		return nil, err
	}
	if category < 1 || category > len(nd.Demands) {
		return nil, fmt.Errorf("%w: node %q category %d of %d", ErrDemandCategory, nd.ID, category, len(nd.Demands))
	}
	return &nd.Demands[category-1], nil
}

// NumDemands returns the number of demand categories of a node.
func (n *Network) NumDemands(node int) (int, error) {
	nd, err := n.Node(node)
	if err != nil {
		return 0, err
	}
	return len(nd.Demands), nil
}

// AddDemand appends a demand category to a junction and returns the new
// category number.
func (n *Network) AddDemand(node int, base float64, pattern int, name string) (int, error) {
	nd, err := n.Node(node)
	if err != nil {
		return 0, err
	}
	if nd.Type != model.NodeJunction {
		return 0, fmt.Errorf("%w: %q", ErrNotJunction, nd.ID)
	}
	if pattern < 0 || pattern > len(n.patterns) {
		return 0, fmt.Errorf("%w: index %d", ErrPatternNotFound, pattern)
	}
	nd.Demands = append(nd.Demands, model.Demand{Base: base, Pattern: pattern, Name: name})
	return len(nd.Demands), nil
}

// DemandPattern returns the pattern index of a node's demand category.
func (n *Network) DemandPattern(node, category int) (int, error) {
	d, err := n.demand(node, category)
	if err != nil {
		return 0, err
	}
	return d.Pattern, nil
}

// SetDemandPattern points a node's demand category at a pattern. Pattern
// index 0 selects the constant multiplier.
func (n *Network) SetDemandPattern(node, category, pattern int) error {
	d, err := n.demand(node, category)
	if err != nil {
		return err
	}
	if pattern < 0 || pattern > len(n.patterns) {
		return fmt.Errorf("%w: index %d", ErrPatternNotFound, pattern)
	}
	d.Pattern = pattern
	return nil
}

// BaseDemand returns the base demand (cfs) of a node's demand category.
func (n *Network) BaseDemand(node, category int) (float64, error) {
	d, err := n.demand(node, category)
	if err != nil {
		return 0, err
	}
	return d.Base, nil
}

// SetBaseDemand overwrites the base demand (cfs) of a node's demand category.
func (n *Network) SetBaseDemand(node, category int, base float64) error {
	d, err := n.demand(node, category)
	if err != nil {
		return err
	}
	d.Base = base
	return nil
}

// NodeDemand returns the total demand (cfs) of a node for a 0-based pattern
// period, scaled by the global demand multiplier.
func (n *Network) NodeDemand(node, period int) float64 {
	if node < 1 || node > len(n.nodes) {
		return 0
	}
	sum := 0.0
	for _, d := range n.nodes[node-1].Demands {
		sum += d.Base * n.PatternFactor(d.Pattern, period)
	}
	return sum * n.Options.DemandMultiplier
}
