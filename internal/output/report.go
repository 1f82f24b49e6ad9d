package output

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/model"
)

const ruleWidth = 64

// reportWriter remembers the first write error so the table code can
// print without checking every line.
type reportWriter struct {
	w   io.Writer
	p   *message.Printer
	err error
}

func (r *reportWriter) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = r.p.Fprintf(r.w, format, args...)
}

func (r *reportWriter) rule() {
	r.printf("  %s\n", strings.Repeat("-", ruleWidth))
}

// WriteReport formats an analysis summary followed by node and link
// tables for every period. Numbers use English digit grouping.
func WriteReport(w io.Writer, net *core.Network, periods []Period) error {
	r := &reportWriter{w: w, p: message.NewPrinter(language.English)}
	h := NewHeader(net)
	u := model.UnitsFor(net.Options.FlowUnits)

	if h.Title != "" {
		r.printf("  %s\n\n", h.Title)
	}
	r.printf("  Analysis Options\n")
	r.rule()
	r.printf("  %-28s %s\n", "Flow Units", h.FlowUnits)
	r.printf("  %-28s %s\n", "Headloss Formula", net.Options.Headloss)
	r.printf("  %-28s %s\n", "Quality Analysis", h.QualityType)
	r.printf("  %-28s %d\n", "Number of Junctions", net.NumJunctions())
	r.printf("  %-28s %d\n", "Number of Tanks/Reservoirs", net.NumTanks())
	r.printf("  %-28s %d\n", "Number of Links", len(h.LinkIDs))
	r.printf("  %-28s %d\n", "Maximum Trials", net.Options.MaxTrials)
	r.printf("  %-28s %g\n", "Accuracy", net.Options.Accuracy)
	r.printf("  %-28s %s hrs\n", "Duration", Clock(h.Duration))
	r.printf("  %-28s %s hrs\n", "Report Step", Clock(h.ReportStep))
	r.printf("\n")

	qual := qualityLabel(h)
	for _, p := range periods {
		r.printf("  Node Results at %s hrs:\n", Clock(p.Time))
		r.rule()
		r.printf("  %-14s %12s %12s %12s %10s\n", "", "Demand", "Head", "Pressure", qual)
		r.printf("  %-14s %12s %12s %12s %10s\n", "Node", u.FlowName, u.LengthName, u.PressureName, h.QualityUnits)
		r.rule()
		for i, n := range p.Nodes {
			r.printf("  %-14s %12.2f %12.2f %12.2f %10.2f\n",
				pick(h.NodeIDs, i), n.Demand, n.Head, n.Pressure, n.Quality)
		}
		r.printf("\n")

		r.printf("  Link Results at %s hrs:\n", Clock(p.Time))
		r.rule()
		r.printf("  %-14s %12s %12s %12s %10s\n", "", "Flow", "Velocity", "Headloss", "Status")
		r.printf("  %-14s %12s %12s %12s %10s\n", "Link", u.FlowName, u.VelocityName, u.LengthName, "")
		r.rule()
		for k, l := range p.Links {
			r.printf("  %-14s %12.2f %12.2f %12.2f %10s\n",
				pick(h.LinkIDs, k), l.Flow, l.Velocity, l.Headloss, l.Status)
		}
		r.printf("\n")
	}
	return r.err
}

func qualityLabel(h Header) string {
	switch h.QualityType {
	case model.QualityNone.String():
		return ""
	case model.QualityAge.String():
		return "Age"
	case model.QualityTrace.String():
		return "Trace"
	}
	return h.QualityType
}

// Clock formats seconds as h:mm:ss.
func Clock(t int64) string {
	return fmt.Sprintf("%d:%02d:%02d", t/3600, t%3600/60, t%60)
}
