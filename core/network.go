package core

import (
	"fmt"
	"strings"

	"github.com/milad-ghiami/EPANET/model"
)

// CountType selects the collection counted by Network.Count.
type CountType int

const (
	NodeCount CountType = iota
	TankCount
	LinkCount
	PatternCount
	CurveCount
	ControlCount
	RuleCount
)

// MaxIDLen is the longest ID accepted for nodes, links, patterns and curves.
const MaxIDLen = 31

// Network is the data model of a pipe network: dense, 1-based arenas of
// nodes, links, patterns and curves, plus ID lookup tables.
//
// Indices are assigned in insertion order and are never reused or shifted,
// so an index obtained from a Network stays valid for the Network's life.
// A Network is owned by exactly one project and is not safe for concurrent
// mutation.
type Network struct {
	Title   string
	Options model.Options
	Times   model.Times

	nodes    []*model.Node
	links    []*model.Link
	patterns []*model.Pattern
	curves   []*model.Curve
	controls []model.Control

	nodeIndex    map[string]int
	linkIndex    map[string]int
	patternIndex map[string]int
	curveIndex   map[string]int

	juncs int
	tanks int
}

// NewNetwork creates an empty network with default options and times.
func NewNetwork() *Network {
	return &Network{
		Options:      model.DefaultOptions(),
		Times:        model.DefaultTimes(),
		nodeIndex:    make(map[string]int),
		linkIndex:    make(map[string]int),
		patternIndex: make(map[string]int),
		curveIndex:   make(map[string]int),
	}
}

func validID(id string) error {
	if id == "" || len(id) > MaxIDLen || strings.ContainsAny(id, " \t;\"") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

//
// ---------- Nodes ----------
//

// AddNode appends a node and returns its index.
func (n *Network) AddNode(node *model.Node) (int, error) {
	if node == nil {
		return 0, fmt.Errorf("%w: nil node", ErrInvalidValue)
	}
	if err := validID(node.ID); err != nil {
		return 0, err
	}
	if _, exists := n.nodeIndex[node.ID]; exists {
		return 0, fmt.Errorf("%w: %q", ErrNodeExists, node.ID)
	}
	if node.Type == model.NodeTank && node.Tank == nil {
		return 0, fmt.Errorf("%w: tank %q has no geometry", ErrInvalidValue, node.ID)
	}
	n.nodes = append(n.nodes, node)
	idx := len(n.nodes)
	n.nodeIndex[node.ID] = idx
	if node.Type == model.NodeJunction {
		n.juncs++
	} else {
		n.tanks++
	}
	return idx, nil
}

// NodeIndex resolves a node ID.
func (n *Network) NodeIndex(id string) (int, error) {
	if idx, ok := n.nodeIndex[id]; ok {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
}

// Node returns the node at a 1-based index.
func (n *Network) Node(index int) (*model.Node, error) {
	if index < 1 || index > len(n.nodes) {
		return nil, fmt.Errorf("%w: index %d", ErrNodeNotFound, index)
	}
	return n.nodes[index-1], nil
}

// Nodes returns the node arena; position i holds node index i+1. Callers
// must treat the slice as read-only.
func (n *Network) Nodes() []*model.Node { return n.nodes }

// NumJunctions returns the number of junction nodes.
func (n *Network) NumJunctions() int { return n.juncs }

// NumTanks returns the number of reservoirs and tanks.
func (n *Network) NumTanks() int { return n.tanks }

//
// ---------- Links ----------
//

// AddLink appends a link and returns its index. Both end nodes must already
// exist.
func (n *Network) AddLink(link *model.Link) (int, error) {
	if link == nil {
		return 0, fmt.Errorf("%w: nil link", ErrLinkBadInput)
	}
	if err := validID(link.ID); err != nil {
		return 0, err
	}
	if _, exists := n.linkIndex[link.ID]; exists {
		return 0, fmt.Errorf("%w: %q", ErrLinkExists, link.ID)
	}
	if link.From < 1 || link.From > len(n.nodes) || link.To < 1 || link.To > len(n.nodes) {
		return 0, fmt.Errorf("%w: %q references unknown node", ErrLinkBadInput, link.ID)
	}
	if link.From == link.To {
		return 0, fmt.Errorf("%w: %q connects node %d to itself", ErrLinkBadInput, link.ID, link.From)
	}
	if link.Type == model.LinkPump && (link.Pump == nil || link.Pump.Curve < 1 || link.Pump.Curve > len(n.curves)) {
		return 0, fmt.Errorf("%w: pump %q has no head curve", ErrLinkBadInput, link.ID)
	}
	n.links = append(n.links, link)
	idx := len(n.links)
	n.linkIndex[link.ID] = idx
	return idx, nil
}

// LinkIndex resolves a link ID.
func (n *Network) LinkIndex(id string) (int, error) {
	if idx, ok := n.linkIndex[id]; ok {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrLinkNotFound, id)
}

// Link returns the link at a 1-based index.
func (n *Network) Link(index int) (*model.Link, error) {
	if index < 1 || index > len(n.links) {
		return nil, fmt.Errorf("%w: index %d", ErrLinkNotFound, index)
	}
	return n.links[index-1], nil
}

// Links returns the link arena; position i holds link index i+1.
func (n *Network) Links() []*model.Link { return n.links }

//
// ---------- Curves and controls ----------
//

// AddCurve appends a curve and returns its index.
func (n *Network) AddCurve(c *model.Curve) (int, error) {
	if c == nil {
		return 0, fmt.Errorf("%w: nil curve", ErrInvalidValue)
	}
	if err := validID(c.ID); err != nil {
		return 0, err
	}
	if _, exists := n.curveIndex[c.ID]; exists {
		return 0, fmt.Errorf("%w: %q", ErrCurveExists, c.ID)
	}
	if len(c.X) == 0 || len(c.X) != len(c.Y) {
		return 0, fmt.Errorf("%w: curve %q needs matching x/y points", ErrInvalidValue, c.ID)
	}
	n.curves = append(n.curves, c)
	idx := len(n.curves)
	n.curveIndex[c.ID] = idx
	return idx, nil
}

// CurveIndex resolves a curve ID.
func (n *Network) CurveIndex(id string) (int, error) {
	if idx, ok := n.curveIndex[id]; ok {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrCurveNotFound, id)
}

// Curve returns the curve at a 1-based index.
func (n *Network) Curve(index int) (*model.Curve, error) {
	if index < 1 || index > len(n.curves) {
		return nil, fmt.Errorf("%w: index %d", ErrCurveNotFound, index)
	}
	return n.curves[index-1], nil
}

// AddControl appends a simple control and returns its index.
func (n *Network) AddControl(c model.Control) (int, error) {
	if c.Link < 1 || c.Link > len(n.links) {
		return 0, fmt.Errorf("%w: link index %d", ErrControlBadInput, c.Link)
	}
	switch c.Type {
	case model.ControlLowLevel, model.ControlHighLevel:
		if c.Node < 1 || c.Node > len(n.nodes) {
			return 0, fmt.Errorf("%w: node index %d", ErrControlBadInput, c.Node)
		}
	case model.ControlTimer, model.ControlTimeOfDay:
		if c.Time < 0 {
			return 0, fmt.Errorf("%w: negative time", ErrControlBadInput)
		}
	default:
		return 0, fmt.Errorf("%w: type %d", ErrControlBadInput, c.Type)
	}
	n.controls = append(n.controls, c)
	return len(n.controls), nil
}

// Controls returns the simple controls in insertion order.
func (n *Network) Controls() []model.Control { return n.controls }

// Count returns the size of one of the network's collections.
func (n *Network) Count(what CountType) (int, error) {
	switch what {
	case NodeCount:
		return len(n.nodes), nil
	case TankCount:
		return n.tanks, nil
	case LinkCount:
		return len(n.links), nil
	case PatternCount:
		return len(n.patterns), nil
	case CurveCount:
		return len(n.curves), nil
	case ControlCount:
		return len(n.controls), nil
	case RuleCount:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidSelector, what)
	}
}

// Validate checks the structural preconditions of a hydraulic analysis.
func (n *Network) Validate() error {
	if n.juncs == 0 {
		return fmt.Errorf("%w: no junctions", ErrInvalidNetwork)
	}
	if n.tanks == 0 {
		return fmt.Errorf("%w: no reservoirs or tanks", ErrInvalidNetwork)
	}
	degree := make([]int, len(n.nodes))
	for _, l := range n.links {
		degree[l.From-1]++
		degree[l.To-1]++
		if l.Type != model.LinkPump && l.Diameter <= 0 {
			return fmt.Errorf("%w: link %q has non-positive diameter", ErrInvalidNetwork, l.ID)
		}
		if (l.Type == model.LinkPipe || l.Type == model.LinkCVPipe) && (l.Length <= 0 || l.Roughness <= 0) {
			return fmt.Errorf("%w: pipe %q has non-positive length or roughness", ErrInvalidNetwork, l.ID)
		}
	}
	for i, node := range n.nodes {
		if degree[i] == 0 {
			return fmt.Errorf("%w: node %q is not connected", ErrInvalidNetwork, node.ID)
		}
		if node.Type == model.NodeTank {
			t := node.Tank
			if t.Diameter <= 0 || t.MaxLevel < t.MinLevel || t.InitLevel < t.MinLevel || t.InitLevel > t.MaxLevel {
				return fmt.Errorf("%w: tank %q has inconsistent levels", ErrInvalidNetwork, node.ID)
			}
		}
	}
	if n.Times.HydStep <= 0 || n.Times.PatternStep <= 0 || n.Times.ReportStep <= 0 || n.Times.QualStep <= 0 {
		return fmt.Errorf("%w: time steps must be positive", ErrInvalidNetwork)
	}
	if n.Times.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidNetwork)
	}
	return nil
}
