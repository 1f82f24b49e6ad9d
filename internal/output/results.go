// Package output turns solver snapshots into result sets expressed in the
// network's user units, and persists them as a results file or a text
// report.
package output

import (
	"math"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/internal/quality"
	"github.com/milad-ghiami/EPANET/model"
)

// Header describes the network a results file belongs to.
type Header struct {
	Title        string
	FlowUnits    string
	LengthUnits  string
	Pressure     string
	QualityType  string
	QualityUnits string

	NodeIDs   []string
	NodeTypes []string
	LinkIDs   []string
	LinkTypes []string

	Duration    int64
	ReportStart int64
	ReportStep  int64
}

// NodeResult holds the reported values of one node.
type NodeResult struct {
	Demand   float64
	Head     float64
	Pressure float64
	Quality  float64
}

// LinkResult holds the reported values of one link. Headloss is the head
// drop from the start to the end node; pumps report a negative drop.
type LinkResult struct {
	Flow     float64
	Velocity float64
	Headloss float64
	Quality  float64
	Status   model.LinkStatus
}

// Period is the state of every node and link at one report time.
type Period struct {
	Time  int64
	Nodes []NodeResult
	Links []LinkResult
}

// QualityUnits returns the unit label of the analysed constituent.
func QualityUnits(q model.QualityOptions) string {
	switch q.Type {
	case model.QualityChemical:
		if q.ChemUnits != "" {
			return q.ChemUnits
		}
		return "mg/L"
	case model.QualityAge:
		return "hrs"
	case model.QualityTrace:
		return "%"
	}
	return ""
}

// NewHeader builds the results header of net.
func NewHeader(net *core.Network) Header {
	u := model.UnitsFor(net.Options.FlowUnits)
	q := net.Options.Quality
	h := Header{
		Title:        net.Title,
		FlowUnits:    u.FlowName,
		LengthUnits:  u.LengthName,
		Pressure:     u.PressureName,
		QualityType:  q.Type.String(),
		QualityUnits: QualityUnits(q),
		Duration:     net.Times.Duration,
		ReportStart:  net.Times.ReportStart,
		ReportStep:   net.Times.ReportStep,
	}
	if q.Type == model.QualityChemical && q.ChemName != "" {
		h.QualityType = q.ChemName
	}
	for _, n := range net.Nodes() {
		h.NodeIDs = append(h.NodeIDs, n.ID)
		h.NodeTypes = append(h.NodeTypes, n.Type.String())
	}
	for _, l := range net.Links() {
		h.LinkIDs = append(h.LinkIDs, l.ID)
		h.LinkTypes = append(h.LinkTypes, l.Type.String())
	}
	return h
}

// Convert expresses a quality snapshot in the user units of net.
func Convert(net *core.Network, snap quality.Snapshot) Period {
	u := model.UnitsFor(net.Options.FlowUnits)
	nodes, links := net.Nodes(), net.Links()
	hp := snap.Hydraulics

	out := Period{
		Time:  snap.Time,
		Nodes: make([]NodeResult, len(nodes)),
		Links: make([]LinkResult, len(links)),
	}
	for i, n := range nodes {
		r := NodeResult{Quality: at(snap.Node, i)}
		if hp != nil {
			head := at(hp.Head, i)
			r.Demand = at(hp.Demand, i) * u.Flow
			r.Head = head * u.Length
			r.Pressure = (head - n.Elevation) * u.Pressure
		}
		out.Nodes[i] = r
	}
	for k, l := range links {
		r := LinkResult{Quality: at(snap.Link, k), Status: l.InitStatus}
		if hp != nil {
			q := at(hp.Flow, k)
			r.Flow = q * u.Flow
			if l.Diameter > 0 {
				r.Velocity = math.Abs(q) / (math.Pi * l.Diameter * l.Diameter / 4) * u.Velocity
			}
			r.Headloss = (at(hp.Head, l.From-1) - at(hp.Head, l.To-1)) * u.Length
			if k < len(hp.Status) {
				r.Status = hp.Status[k]
			}
		}
		out.Links[k] = r
	}
	return out
}

func at(xs []float64, i int) float64 {
	if i < 0 || i >= len(xs) {
		return 0
	}
	return xs[i]
}
