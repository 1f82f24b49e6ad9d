package toolkit

import (
	"fmt"
	"math"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/internal/hydraulics"
	"github.com/milad-ghiami/EPANET/model"
)

// CountType selects the collection counted by GetCount.
type CountType = core.CountType

const (
	NodeCount    = core.NodeCount
	TankCount    = core.TankCount
	LinkCount    = core.LinkCount
	PatternCount = core.PatternCount
	CurveCount   = core.CurveCount
	ControlCount = core.ControlCount
	RuleCount    = core.RuleCount
)

// NodeParam selects a node property for GetNodeValue and SetNodeValue.
type NodeParam int

const (
	NodeElevation     NodeParam = 0
	NodeBaseDemand    NodeParam = 1
	NodePattern       NodeParam = 2
	NodeInitQuality   NodeParam = 4
	NodeSourceQuality NodeParam = 5
	NodeTankLevel     NodeParam = 8
	NodeDemand        NodeParam = 9
	NodeHead          NodeParam = 10
	NodePressure      NodeParam = 11
	NodeQuality       NodeParam = 12
	NodeTankVolume    NodeParam = 24
)

// LinkParam selects a link property for GetLinkValue and SetLinkValue.
type LinkParam int

const (
	LinkDiameter LinkParam = iota
	LinkLength
	LinkRoughness
	LinkMinorLoss
	LinkInitStatus
	LinkInitSetting
	LinkBulkCoeff
	LinkWallCoeff
	LinkFlow
	LinkVelocity
	LinkHeadloss
	LinkStatus
)

func invalidParam(op string, what any) error {
	return &Error{Code: 251, Op: op, Err: fmt.Errorf("%w: %v", ErrInvalidParameter, what)}
}

func (p *Project) units() model.Units {
	return model.UnitsFor(p.net.Options.FlowUnits)
}

//
// ---------- Counts and IDs ----------
//

// GetCount returns the number of elements of one kind.
func (p *Project) GetCount(what CountType) (int, error) {
	if err := p.bound("getcount"); err != nil {
		return 0, err
	}
	n, err := p.net.Count(what)
	return n, fail("getcount", err)
}

// GetNodeIndex resolves a node ID to its 1-based index.
func (p *Project) GetNodeIndex(id string) (int, error) {
	if err := p.bound("getnodeindex"); err != nil {
		return 0, err
	}
	idx, err := p.net.NodeIndex(id)
	return idx, fail("getnodeindex", err)
}

// GetNodeID returns the ID of the node at a 1-based index.
func (p *Project) GetNodeID(index int) (string, error) {
	if err := p.bound("getnodeid"); err != nil {
		return "", err
	}
	n, err := p.net.Node(index)
	if err != nil {
		return "", fail("getnodeid", err)
	}
	return n.ID, nil
}

// GetNodeType returns the kind of the node at a 1-based index.
func (p *Project) GetNodeType(index int) (model.NodeType, error) {
	if err := p.bound("getnodetype"); err != nil {
		return 0, err
	}
	n, err := p.net.Node(index)
	if err != nil {
		return 0, fail("getnodetype", err)
	}
	return n.Type, nil
}

// GetLinkIndex resolves a link ID to its 1-based index.
func (p *Project) GetLinkIndex(id string) (int, error) {
	if err := p.bound("getlinkindex"); err != nil {
		return 0, err
	}
	idx, err := p.net.LinkIndex(id)
	return idx, fail("getlinkindex", err)
}

// GetLinkID returns the ID of the link at a 1-based index.
func (p *Project) GetLinkID(index int) (string, error) {
	if err := p.bound("getlinkid"); err != nil {
		return "", err
	}
	l, err := p.net.Link(index)
	if err != nil {
		return "", fail("getlinkid", err)
	}
	return l.ID, nil
}

// GetLinkType returns the kind of the link at a 1-based index.
func (p *Project) GetLinkType(index int) (model.LinkType, error) {
	if err := p.bound("getlinktype"); err != nil {
		return 0, err
	}
	l, err := p.net.Link(index)
	if err != nil {
		return 0, fail("getlinktype", err)
	}
	return l.Type, nil
}

// GetLinkNodes returns the start and end node indices of a link.
func (p *Project) GetLinkNodes(index int) (from, to int, err error) {
	if err := p.bound("getlinknodes"); err != nil {
		return 0, 0, err
	}
	l, err := p.net.Link(index)
	if err != nil {
		return 0, 0, fail("getlinknodes", err)
	}
	return l.From, l.To, nil
}

//
// ---------- Patterns ----------
//

// AddPattern appends a pattern with a single multiplier of 1. Its index
// equals the pattern count after the call.
func (p *Project) AddPattern(id string) error {
	if err := p.bound("addpattern"); err != nil {
		return err
	}
	_, err := p.net.AddPattern(id)
	return fail("addpattern", err)
}

// GetPatternIndex resolves a pattern ID.
func (p *Project) GetPatternIndex(id string) (int, error) {
	if err := p.bound("getpatternindex"); err != nil {
		return 0, err
	}
	idx, err := p.net.PatternIndex(id)
	return idx, fail("getpatternindex", err)
}

// GetPatternID returns the ID of the pattern at a 1-based index.
func (p *Project) GetPatternID(index int) (string, error) {
	if err := p.bound("getpatternid"); err != nil {
		return "", err
	}
	pat, err := p.net.Pattern(index)
	if err != nil {
		return "", fail("getpatternid", err)
	}
	return pat.ID, nil
}

// GetPatternLen returns the number of periods in a pattern.
func (p *Project) GetPatternLen(index int) (int, error) {
	if err := p.bound("getpatternlen"); err != nil {
		return 0, err
	}
	pat, err := p.net.Pattern(index)
	if err != nil {
		return 0, fail("getpatternlen", err)
	}
	return len(pat.Factors), nil
}

// GetPatternValue returns the multiplier of a 1-based period.
func (p *Project) GetPatternValue(index, period int) (float64, error) {
	if err := p.bound("getpatternvalue"); err != nil {
		return 0, err
	}
	v, err := p.net.PatternValue(index, period)
	return v, fail("getpatternvalue", err)
}

// SetPatternValue overwrites the multiplier of a 1-based period.
func (p *Project) SetPatternValue(index, period int, value float64) error {
	if err := p.bound("setpatternvalue"); err != nil {
		return err
	}
	return fail("setpatternvalue", p.net.SetPatternValue(index, period, value))
}

// SetPattern replaces every multiplier of a pattern.
func (p *Project) SetPattern(index int, factors []float64) error {
	if err := p.bound("setpattern"); err != nil {
		return err
	}
	return fail("setpattern", p.net.SetPattern(index, factors))
}

// GetAveragePatternValue returns the mean multiplier of a pattern.
func (p *Project) GetAveragePatternValue(index int) (float64, error) {
	if err := p.bound("getaveragepatternvalue"); err != nil {
		return 0, err
	}
	pat, err := p.net.Pattern(index)
	if err != nil {
		return 0, fail("getaveragepatternvalue", err)
	}
	return pat.Average(), nil
}

//
// ---------- Demands ----------
//

// GetNumDemands returns the number of demand categories of a node.
func (p *Project) GetNumDemands(node int) (int, error) {
	if err := p.bound("getnumdemands"); err != nil {
		return 0, err
	}
	n, err := p.net.NumDemands(node)
	return n, fail("getnumdemands", err)
}

// GetBaseDemand returns the base demand of a category in user flow units.
func (p *Project) GetBaseDemand(node, category int) (float64, error) {
	if err := p.bound("getbasedemand"); err != nil {
		return 0, err
	}
	base, err := p.net.BaseDemand(node, category)
	if err != nil {
		return 0, fail("getbasedemand", err)
	}
	return base * p.units().Flow, nil
}

// SetBaseDemand sets the base demand of a category, given in user flow
// units.
func (p *Project) SetBaseDemand(node, category int, base float64) error {
	if err := p.bound("setbasedemand"); err != nil {
		return err
	}
	return fail("setbasedemand", p.net.SetBaseDemand(node, category, base/p.units().Flow))
}

// GetDemandPattern returns the pattern index of a demand category; 0 means
// no pattern.
func (p *Project) GetDemandPattern(node, category int) (int, error) {
	if err := p.bound("getdemandpattern"); err != nil {
		return 0, err
	}
	idx, err := p.net.DemandPattern(node, category)
	return idx, fail("getdemandpattern", err)
}

// SetDemandPattern assigns a pattern to a demand category. Pattern 0
// removes the pattern.
func (p *Project) SetDemandPattern(node, category, pattern int) error {
	if err := p.bound("setdemandpattern"); err != nil {
		return err
	}
	return fail("setdemandpattern", p.net.SetDemandPattern(node, category, pattern))
}

// AddDemand appends a demand category to a junction and returns its
// category number. base is in user flow units.
func (p *Project) AddDemand(node int, base float64, pattern int, name string) (int, error) {
	if err := p.bound("adddemand"); err != nil {
		return 0, err
	}
	cat, err := p.net.AddDemand(node, base/p.units().Flow, pattern, name)
	return cat, fail("adddemand", err)
}

//
// ---------- Element values ----------
//

// live returns the latest solved hydraulic period, or nil when the
// hydraulic solver has nothing current.
func (p *Project) live() *hydraulics.Period {
	if p.hyd == nil {
		return nil
	}
	hp, err := p.hyd.Current()
	if err != nil {
		return nil
	}
	return hp
}

// GetNodeValue returns a node property in user units. Computed values are
// those of the latest hydraulic or quality solution, or 0 before one.
func (p *Project) GetNodeValue(index int, param NodeParam) (float64, error) {
	const op = "getnodevalue"
	if err := p.bound(op); err != nil {
		return 0, err
	}
	n, err := p.net.Node(index)
	if err != nil {
		return 0, fail(op, err)
	}
	u := p.units()
	hp := p.live()
	i := index - 1

	switch param {
	case NodeElevation:
		return n.Elevation * u.Length, nil
	case NodeBaseDemand:
		if len(n.Demands) == 0 {
			return 0, nil
		}
		return n.Demands[0].Base * u.Flow, nil
	case NodePattern:
		if n.Type == model.NodeReservoir {
			return float64(n.HeadPattern), nil
		}
		if len(n.Demands) == 0 {
			return 0, nil
		}
		return float64(n.Demands[0].Pattern), nil
	case NodeInitQuality:
		return n.InitQuality, nil
	case NodeSourceQuality:
		return n.SourceQuality, nil
	case NodeTankLevel:
		if n.Tank == nil {
			return 0, fail(op, fmt.Errorf("%w: %q is not a tank", core.ErrInvalidValue, n.ID))
		}
		if hp != nil {
			return (hp.Head[i] - n.Elevation) * u.Length, nil
		}
		return n.Tank.InitLevel * u.Length, nil
	case NodeDemand:
		if hp == nil {
			return 0, nil
		}
		return hp.Demand[i] * u.Flow, nil
	case NodeHead:
		if hp == nil {
			return 0, nil
		}
		return hp.Head[i] * u.Length, nil
	case NodePressure:
		if hp == nil {
			return 0, nil
		}
		return (hp.Head[i] - n.Elevation) * u.Pressure, nil
	case NodeQuality:
		if p.qual == nil || !p.qual.Phase().IsOpen() {
			return 0, nil
		}
		return p.qual.NodeQuality(i), nil
	case NodeTankVolume:
		if n.Tank == nil {
			return 0, fail(op, fmt.Errorf("%w: %q is not a tank", core.ErrInvalidValue, n.ID))
		}
		if hp != nil {
			return p.hyd.TankVolume(i) * u.Volume, nil
		}
		return n.Tank.VolumeAt(n.Tank.InitLevel) * u.Volume, nil
	default:
		return 0, invalidParam(op, param)
	}
}

// SetNodeValue changes a node's input property, given in user units.
func (p *Project) SetNodeValue(index int, param NodeParam, value float64) error {
	const op = "setnodevalue"
	if err := p.bound(op); err != nil {
		return err
	}
	n, err := p.net.Node(index)
	if err != nil {
		return fail(op, err)
	}
	u := p.units()

	switch param {
	case NodeElevation:
		n.Elevation = value / u.Length
	case NodeBaseDemand:
		if len(n.Demands) == 0 {
			return fail(op, fmt.Errorf("%w: node %q has no demand", core.ErrDemandCategory, n.ID))
		}
		n.Demands[0].Base = value / u.Flow
	case NodePattern:
		pat := int(value)
		if n.Type == model.NodeTank {
			return fail(op, fmt.Errorf("%w: %q", core.ErrNotJunction, n.ID))
		}
		if _, err := p.net.Pattern(pat); pat != 0 && err != nil {
			return fail(op, err)
		}
		if n.Type == model.NodeReservoir {
			n.HeadPattern = pat
			return nil
		}
		if len(n.Demands) == 0 {
			return fail(op, fmt.Errorf("%w: node %q has no demand", core.ErrDemandCategory, n.ID))
		}
		n.Demands[0].Pattern = pat
	case NodeInitQuality:
		if value < 0 {
			return fail(op, fmt.Errorf("%w: initial quality %g", core.ErrInvalidValue, value))
		}
		n.InitQuality = value
	case NodeSourceQuality:
		if value < 0 {
			return fail(op, fmt.Errorf("%w: source quality %g", core.ErrInvalidValue, value))
		}
		n.SourceQuality = value
	case NodeTankLevel:
		if n.Tank == nil {
			return fail(op, fmt.Errorf("%w: %q is not a tank", core.ErrInvalidValue, n.ID))
		}
		level := value / u.Length
		if level < n.Tank.MinLevel || level > n.Tank.MaxLevel {
			return fail(op, fmt.Errorf("%w: tank level %g outside its limits", core.ErrInvalidValue, value))
		}
		n.Tank.InitLevel = level
	default:
		return invalidParam(op, param)
	}
	return nil
}

// GetLinkValue returns a link property in user units. Computed values are
// those of the latest hydraulic solution, or 0 before one.
func (p *Project) GetLinkValue(index int, param LinkParam) (float64, error) {
	const op = "getlinkvalue"
	if err := p.bound(op); err != nil {
		return 0, err
	}
	l, err := p.net.Link(index)
	if err != nil {
		return 0, fail(op, err)
	}
	u := p.units()
	hp := p.live()
	k := index - 1

	switch param {
	case LinkDiameter:
		return l.Diameter * u.Diameter, nil
	case LinkLength:
		return l.Length * u.Length, nil
	case LinkRoughness:
		if p.net.Options.Headloss == model.DarcyWeisbach {
			return l.Roughness * u.Roughness, nil
		}
		return l.Roughness, nil
	case LinkMinorLoss:
		return l.MinorLoss, nil
	case LinkInitStatus:
		return float64(l.InitStatus), nil
	case LinkInitSetting:
		return l.InitSetting, nil
	case LinkBulkCoeff:
		return l.Bulk, nil
	case LinkWallCoeff:
		return l.Wall * u.Length, nil
	case LinkFlow:
		if hp == nil {
			return 0, nil
		}
		return hp.Flow[k] * u.Flow, nil
	case LinkVelocity:
		if hp == nil || l.Diameter <= 0 {
			return 0, nil
		}
		return math.Abs(hp.Flow[k]) / (math.Pi * l.Diameter * l.Diameter / 4) * u.Velocity, nil
	case LinkHeadloss:
		if hp == nil {
			return 0, nil
		}
		return (hp.Head[l.From-1] - hp.Head[l.To-1]) * u.Length, nil
	case LinkStatus:
		if hp == nil {
			return float64(l.InitStatus), nil
		}
		return float64(hp.Status[k]), nil
	default:
		return 0, invalidParam(op, param)
	}
}

// SetLinkValue changes a link's input property, given in user units.
// Geometry changes take effect at the next OpenH.
func (p *Project) SetLinkValue(index int, param LinkParam, value float64) error {
	const op = "setlinkvalue"
	if err := p.bound(op); err != nil {
		return err
	}
	l, err := p.net.Link(index)
	if err != nil {
		return fail(op, err)
	}
	u := p.units()
	positive := func(name string) error {
		if value <= 0 {
			return fail(op, fmt.Errorf("%w: %s %g", core.ErrInvalidValue, name, value))
		}
		return nil
	}

	switch param {
	case LinkDiameter:
		if err := positive("diameter"); err != nil {
			return err
		}
		l.Diameter = value / u.Diameter
	case LinkLength:
		if err := positive("length"); err != nil {
			return err
		}
		l.Length = value / u.Length
	case LinkRoughness:
		if err := positive("roughness"); err != nil {
			return err
		}
		if p.net.Options.Headloss == model.DarcyWeisbach {
			value /= u.Roughness
		}
		l.Roughness = value
	case LinkMinorLoss:
		if value < 0 {
			return fail(op, fmt.Errorf("%w: minor loss %g", core.ErrInvalidValue, value))
		}
		l.MinorLoss = value
	case LinkInitStatus:
		switch model.LinkStatus(value) {
		case model.StatusClosed, model.StatusOpen:
			l.InitStatus = model.LinkStatus(value)
		default:
			return fail(op, fmt.Errorf("%w: status %g", core.ErrInvalidValue, value))
		}
	case LinkInitSetting:
		l.InitSetting = value
	case LinkBulkCoeff:
		l.Bulk = value
	case LinkWallCoeff:
		l.Wall = value / u.Length
	default:
		return invalidParam(op, param)
	}
	return nil
}
