package core

import (
	"errors"
	"testing"

	"github.com/milad-ghiami/EPANET/model"
)

func newDemandNetwork(t *testing.T) *Network {
	t.Helper()
	net := NewNetwork()
	if _, err := net.AddPattern("base"); err != nil {
		t.Fatalf("AddPattern: %v", err)
	}
	for _, n := range []*model.Node{
		{ID: "J1", Type: model.NodeJunction, Demands: []model.Demand{{Base: 1, Pattern: 1}, {Base: 2}}},
		{ID: "J2", Type: model.NodeJunction, Demands: []model.Demand{{Base: 3}}},
		{ID: "R1", Type: model.NodeReservoir, Elevation: 100},
	} {
		if _, err := net.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}
	return net
}

func TestAddPatternAppendsAtEnd(t *testing.T) {
	net := newDemandNetwork(t)

	for i, id := range []string{"p1", "p2", "p3"} {
		before, _ := net.Count(PatternCount)
		idx, err := net.AddPattern(id)
		if err != nil {
			t.Fatalf("AddPattern(%s): %v", id, err)
		}
		after, _ := net.Count(PatternCount)
		if after != before+1 {
			t.Fatalf("pattern count %d -> %d, want +1", before, after)
		}
		if idx != after {
			t.Fatalf("AddPattern(%s) = %d, want count %d", id, idx, after)
		}
		if idx != i+2 {
			t.Fatalf("AddPattern(%s) = %d, want contiguous index %d", id, idx, i+2)
		}
		got, err := net.PatternIndex(id)
		if err != nil || got != idx {
			t.Fatalf("PatternIndex(%s) = %d, %v; want %d", id, got, err, idx)
		}
		p, _ := net.Pattern(idx)
		if len(p.Factors) != 1 || p.Factors[0] != 1 {
			t.Fatalf("new pattern factors = %v, want [1]", p.Factors)
		}
	}

	if _, err := net.AddPattern("p2"); !errors.Is(err, ErrPatternExists) {
		t.Fatalf("duplicate AddPattern err = %v, want ErrPatternExists", err)
	}
	if _, err := net.AddPattern(""); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("empty AddPattern err = %v, want ErrInvalidID", err)
	}
	if _, err := net.PatternIndex("missing"); !errors.Is(err, ErrPatternNotFound) {
		t.Fatalf("PatternIndex(missing) err = %v, want ErrPatternNotFound", err)
	}
}

func TestDemandPatternRoundTrip(t *testing.T) {
	net := newDemandNetwork(t)
	p, _ := net.AddPattern("new_pattern")

	nnodes, _ := net.Count(NodeCount)
	for node := 1; node <= nnodes; node++ {
		count, err := net.NumDemands(node)
		if err != nil {
			t.Fatalf("NumDemands(%d): %v", node, err)
		}
		for cat := 1; cat <= count; cat++ {
			for _, pat := range []int{p, 0, 1} {
				if err := net.SetDemandPattern(node, cat, pat); err != nil {
					t.Fatalf("SetDemandPattern(%d,%d,%d): %v", node, cat, pat, err)
				}
				got, err := net.DemandPattern(node, cat)
				if err != nil || got != pat {
					t.Fatalf("DemandPattern(%d,%d) = %d, %v; want %d", node, cat, got, err, pat)
				}
			}
		}
	}
}

func TestDemandCategoryRange(t *testing.T) {
	net := newDemandNetwork(t)

	for _, cat := range []int{0, 3, -1} {
		if _, err := net.DemandPattern(1, cat); !errors.Is(err, ErrDemandCategory) {
			t.Fatalf("DemandPattern(1,%d) err = %v, want ErrDemandCategory", cat, err)
		}
		if err := net.SetDemandPattern(1, cat, 1); !errors.Is(err, ErrDemandCategory) {
			t.Fatalf("SetDemandPattern(1,%d) err = %v, want ErrDemandCategory", cat, err)
		}
	}
	// Reservoirs own no demand categories at all.
	if _, err := net.DemandPattern(3, 1); !errors.Is(err, ErrDemandCategory) {
		t.Fatalf("reservoir DemandPattern err = %v, want ErrDemandCategory", err)
	}
	if err := net.SetDemandPattern(1, 1, 9); !errors.Is(err, ErrPatternNotFound) {
		t.Fatalf("SetDemandPattern with bad pattern err = %v, want ErrPatternNotFound", err)
	}
	if _, err := net.NumDemands(42); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("NumDemands(42) err = %v, want ErrNodeNotFound", err)
	}
}

func TestAddDemandGrowsCategories(t *testing.T) {
	net := newDemandNetwork(t)

	cat, err := net.AddDemand(2, 0.5, 1, "irrigation")
	if err != nil {
		t.Fatalf("AddDemand: %v", err)
	}
	if cat != 2 {
		t.Fatalf("AddDemand category = %d, want 2", cat)
	}
	if n, _ := net.NumDemands(2); n != 2 {
		t.Fatalf("NumDemands = %d, want 2", n)
	}
	if _, err := net.AddDemand(3, 1, 0, ""); !errors.Is(err, ErrNotJunction) {
		t.Fatalf("AddDemand on reservoir err = %v, want ErrNotJunction", err)
	}
}

func TestNodeDemandAppliesPatternAndMultiplier(t *testing.T) {
	net := newDemandNetwork(t)
	if err := net.SetPattern(1, []float64{0.5, 2}); err != nil {
		t.Fatalf("SetPattern: %v", err)
	}
	net.Options.DemandMultiplier = 2

	// J1 = 1*factor + 2*1, doubled.
	if got := net.NodeDemand(1, 0); got != 2*(0.5+2) {
		t.Fatalf("NodeDemand period 0 = %v", got)
	}
	if got := net.NodeDemand(1, 1); got != 2*(2+2) {
		t.Fatalf("NodeDemand period 1 = %v", got)
	}
	// Periods wrap around the pattern length.
	if got := net.NodeDemand(1, 2); got != 2*(0.5+2) {
		t.Fatalf("NodeDemand period 2 = %v", got)
	}
}

func TestPatternValueAccessors(t *testing.T) {
	net := newDemandNetwork(t)
	if err := net.SetPattern(1, []float64{1, 2, 3}); err != nil {
		t.Fatalf("SetPattern: %v", err)
	}
	if err := net.SetPatternValue(1, 2, 5); err != nil {
		t.Fatalf("SetPatternValue: %v", err)
	}
	v, err := net.PatternValue(1, 2)
	if err != nil || v != 5 {
		t.Fatalf("PatternValue = %v, %v; want 5", v, err)
	}
	if _, err := net.PatternValue(1, 4); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("PatternValue out of range err = %v", err)
	}
	if err := net.SetPattern(1, nil); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("SetPattern(nil) err = %v", err)
	}
	p, _ := net.Pattern(1)
	if avg := p.Average(); avg != 3 {
		t.Fatalf("Average = %v, want 3", avg)
	}
}
