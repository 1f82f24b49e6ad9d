package output

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/internal/hydraulics"
	"github.com/milad-ghiami/EPANET/internal/quality"
	"github.com/milad-ghiami/EPANET/model"
)

func twoNodeNet(t *testing.T, units model.FlowUnits) *core.Network {
	t.Helper()
	net := core.NewNetwork()
	net.Title = "two node test"
	net.Options.FlowUnits = units
	net.Options.Quality.Type = model.QualityChemical
	net.Options.Quality.ChemName = "Chlorine"
	net.Times = model.Times{Duration: 3600, HydStep: 3600, PatternStep: 3600, ReportStep: 3600}
	for _, n := range []*model.Node{
		{ID: "J1", Type: model.NodeJunction, Elevation: 10, Demands: []model.Demand{{Base: 1}}},
		{ID: "R1", Type: model.NodeReservoir, Elevation: 100},
	} {
		if _, err := net.AddNode(n); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	if _, err := net.AddLink(&model.Link{
		ID: "P1", Type: model.LinkPipe, From: 2, To: 1,
		Length: 1000, Diameter: 1, Roughness: 100, InitStatus: model.StatusOpen,
	}); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	return net
}

func snapshotAt(tm int64) quality.Snapshot {
	return quality.Snapshot{
		Time: tm,
		Hydraulics: &hydraulics.Period{
			Time:   tm,
			Flow:   []float64{1},
			Head:   []float64{90, 100},
			Demand: []float64{1, -1},
			Status: []model.LinkStatus{model.StatusOpen},
		},
		Node: []float64{0.5, 1},
		Link: []float64{0.75},
	}
}

func TestConvertUsesUserUnits(t *testing.T) {
	net := twoNodeNet(t, model.FlowGPM)
	p := Convert(net, snapshotAt(0))

	j := p.Nodes[0]
	if math.Abs(j.Demand-448.831) > 1e-9 {
		t.Fatalf("demand = %v gpm, want 448.831", j.Demand)
	}
	if math.Abs(j.Pressure-80*model.PSIPerFoot) > 1e-9 {
		t.Fatalf("pressure = %v psi", j.Pressure)
	}
	if j.Quality != 0.5 {
		t.Fatalf("quality = %v", j.Quality)
	}
	l := p.Links[0]
	if math.Abs(l.Velocity-1/(math.Pi/4)) > 1e-9 {
		t.Fatalf("velocity = %v fps", l.Velocity)
	}
	if math.Abs(l.Headloss-10) > 1e-9 {
		t.Fatalf("headloss = %v ft, want 10", l.Headloss)
	}
	if l.Status != model.StatusOpen {
		t.Fatalf("status = %v", l.Status)
	}

	si := Convert(twoNodeNet(t, model.FlowLPS), snapshotAt(0))
	if math.Abs(si.Nodes[1].Head-100/model.FeetPerMeter) > 1e-9 {
		t.Fatalf("SI head = %v m", si.Nodes[1].Head)
	}
}

func TestNewHeader(t *testing.T) {
	h := NewHeader(twoNodeNet(t, model.FlowCFS))
	if h.QualityType != "Chlorine" || h.QualityUnits != "mg/L" {
		t.Fatalf("quality header = %q %q", h.QualityType, h.QualityUnits)
	}
	if len(h.NodeIDs) != 2 || h.NodeIDs[1] != "R1" || h.NodeTypes[1] != "reservoir" {
		t.Fatalf("node header = %v %v", h.NodeIDs, h.NodeTypes)
	}
	if h.FlowUnits != "CFS" || h.Pressure != "psi" {
		t.Fatalf("units = %s %s", h.FlowUnits, h.Pressure)
	}
}

func TestStreamWriterRoundTrip(t *testing.T) {
	net := twoNodeNet(t, model.FlowCFS)
	path := filepath.Join(t.TempDir(), "out.bin")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := w.(*StreamWriter); !ok {
		t.Fatalf("Open(%q) = %T, want *StreamWriter", path, w)
	}
	ctx := context.Background()
	if err := w.WriteHeader(ctx, NewHeader(net)); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	for _, tm := range []int64{0, 3600} {
		if err := w.WritePeriod(ctx, Convert(net, snapshotAt(tm))); err != nil {
			t.Fatalf("WritePeriod: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer f.Close()
	h, periods, err := ReadStream(f)
	if err != nil {
		t.Fatalf("ReadStream: %v", err)
	}
	if h.Title != "two node test" || len(h.LinkIDs) != 1 || h.LinkIDs[0] != "P1" {
		t.Fatalf("header = %+v", h)
	}
	if len(periods) != 2 || periods[1].Time != 3600 {
		t.Fatalf("periods = %+v", periods)
	}
	if got := periods[0].Links[0]; got.Flow != 1 || got.Status != model.StatusOpen || got.Quality != 0.75 {
		t.Fatalf("link result = %+v", got)
	}
	if got := periods[0].Nodes[1].Head; got != 100 {
		t.Fatalf("reservoir head = %v", got)
	}
}

func TestReadStreamWithoutHeader(t *testing.T) {
	if _, _, err := ReadStream(bytes.NewReader(nil)); err == nil {
		t.Fatalf("expected an error for an empty stream")
	}
}

func TestSQLiteWriterStoresRows(t *testing.T) {
	net := twoNodeNet(t, model.FlowCFS)
	path := filepath.Join(t.TempDir(), "out.db")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sw, ok := w.(*SQLiteWriter)
	if !ok {
		t.Fatalf("Open(%q) = %T, want *SQLiteWriter", path, w)
	}
	defer sw.Close()

	ctx := context.Background()
	if err := sw.WriteHeader(ctx, NewHeader(net)); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	for _, tm := range []int64{0, 3600} {
		if err := sw.WritePeriod(ctx, Convert(net, snapshotAt(tm))); err != nil {
			t.Fatalf("WritePeriod: %v", err)
		}
	}

	var n int
	if err := sw.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM node_results`).Scan(&n); err != nil {
		t.Fatalf("count node rows: %v", err)
	}
	if n != 4 {
		t.Fatalf("node rows = %d, want 4", n)
	}
	var head float64
	if err := sw.DB().QueryRowContext(ctx,
		`SELECT r.head FROM node_results r JOIN nodes n ON n.idx = r.node WHERE n.id = ? AND r.time = ?`,
		"J1", 3600).Scan(&head); err != nil {
		t.Fatalf("query head: %v", err)
	}
	if head != 90 {
		t.Fatalf("J1 head = %v, want 90", head)
	}
	var title string
	if err := sw.DB().QueryRowContext(ctx, `SELECT value FROM run WHERE key = 'title'`).Scan(&title); err != nil {
		t.Fatalf("query title: %v", err)
	}
	if title != "two node test" {
		t.Fatalf("title = %q", title)
	}
}

func TestOpenEmptyPathDiscards(t *testing.T) {
	w, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.WritePeriod(context.Background(), Period{}); err != nil {
		t.Fatalf("WritePeriod: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenFailsInMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.bin")
	if _, err := Open(path); err == nil {
		t.Fatalf("expected an error creating %s", path)
	}
}

func TestWriteReport(t *testing.T) {
	net := twoNodeNet(t, model.FlowGPM)
	periods := []Period{Convert(net, snapshotAt(0)), Convert(net, snapshotAt(3600))}

	var buf bytes.Buffer
	if err := WriteReport(&buf, net, periods); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"two node test",
		"Hazen-Williams",
		"Node Results at 0:00:00 hrs:",
		"Link Results at 1:00:00 hrs:",
		"Chlorine",
		"J1",
		"P1",
		"448.83",
		"open",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestClock(t *testing.T) {
	cases := map[int64]string{0: "0:00:00", 3661: "1:01:01", 86400: "24:00:00"}
	for in, want := range cases {
		if got := Clock(in); got != want {
			t.Fatalf("Clock(%d) = %q, want %q", in, got, want)
		}
	}
}
