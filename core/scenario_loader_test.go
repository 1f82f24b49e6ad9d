// core/scenario_loader_test.go
package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/milad-ghiami/EPANET/model"
)

func TestLoadNetworkFile_Net1YAML(t *testing.T) {
	net, err := LoadNetworkFile("testdata/net1.yaml")
	if err != nil {
		t.Fatalf("LoadNetworkFile returned error: %v", err)
	}

	counts := map[CountType]int{
		NodeCount:    11,
		TankCount:    2,
		LinkCount:    13,
		PatternCount: 1,
		CurveCount:   1,
		ControlCount: 2,
		RuleCount:    0,
	}
	for what, want := range counts {
		got, err := net.Count(what)
		if err != nil {
			t.Fatalf("Count(%d): %v", what, err)
		}
		if got != want {
			t.Fatalf("Count(%d) = %d, want %d", what, got, want)
		}
	}
	if net.NumJunctions() != 9 {
		t.Fatalf("NumJunctions = %d, want 9", net.NumJunctions())
	}

	if net.Times.Duration != 24*3600 || net.Times.HydStep != 3600 || net.Times.QualStep != 300 || net.Times.PatternStep != 7200 {
		t.Fatalf("unexpected times: %+v", net.Times)
	}
	if net.Options.FlowUnits != model.FlowGPM {
		t.Fatalf("FlowUnits = %v, want GPM", net.Options.FlowUnits)
	}
	if net.Options.Quality.Type != model.QualityChemical {
		t.Fatalf("quality type = %v, want chemical", net.Options.Quality.Type)
	}
	if net.Options.DefaultPattern != 1 {
		t.Fatalf("DefaultPattern = %d, want 1", net.Options.DefaultPattern)
	}

	idx, err := net.NodeIndex("22")
	if err != nil {
		t.Fatalf("NodeIndex(22): %v", err)
	}
	base, err := net.BaseDemand(idx, 1)
	if err != nil {
		t.Fatalf("BaseDemand: %v", err)
	}
	if want := 200 / 448.831; math.Abs(base-want) > 1e-9 {
		t.Fatalf("BaseDemand = %v cfs, want %v", base, want)
	}
	pat, err := net.DemandPattern(idx, 1)
	if err != nil || pat != 1 {
		t.Fatalf("DemandPattern = %d, %v; want default pattern 1", pat, err)
	}

	pipe, err := net.LinkIndex("110")
	if err != nil {
		t.Fatalf("LinkIndex(110): %v", err)
	}
	l, _ := net.Link(pipe)
	if math.Abs(l.Diameter-1.5) > 1e-12 {
		t.Fatalf("pipe 110 diameter = %v ft, want 1.5", l.Diameter)
	}
	if l.Bulk != -0.5 || l.Wall != -1 {
		t.Fatalf("pipe 110 reactions = (%v, %v), want (-0.5, -1)", l.Bulk, l.Wall)
	}

	ctl := net.Controls()[0]
	if ctl.Type != model.ControlLowLevel || ctl.Status != model.StatusOpen {
		t.Fatalf("unexpected first control: %+v", ctl)
	}
	if ctl.Grade != 850+110 {
		t.Fatalf("control grade = %v, want 960", ctl.Grade)
	}

	if err := net.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadNetwork_JSONMatchesYAML(t *testing.T) {
	fromYAML, err := LoadNetworkFile("testdata/net1.yaml")
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	fromJSON, err := LoadNetworkFile("../toolkit/testdata/net1.json")
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(fromYAML.Nodes()) != len(fromJSON.Nodes()) || len(fromYAML.Links()) != len(fromJSON.Links()) {
		t.Fatalf("element counts differ")
	}
	for i, n := range fromYAML.Nodes() {
		m := fromJSON.Nodes()[i]
		if n.ID != m.ID || n.Elevation != m.Elevation || n.InitQuality != m.InitQuality {
			t.Fatalf("node %d differs: %+v vs %+v", i+1, n, m)
		}
	}
	if fromYAML.Times != fromJSON.Times {
		t.Fatalf("times differ: %+v vs %+v", fromYAML.Times, fromJSON.Times)
	}
}

func TestLoadNetwork_SIUnits(t *testing.T) {
	doc := `
options:
  units: LPS
times:
  duration: "0"
junctions:
  - {id: J1, elevation: 10, demand: 28.317}
reservoirs:
  - {id: R1, head: 50}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 1000, diameter: 304.8, roughness: 130}
`
	net, err := LoadNetwork(strings.NewReader(doc), FormatYAML)
	if err != nil {
		t.Fatalf("LoadNetwork: %v", err)
	}
	j, _ := net.Node(1)
	if math.Abs(j.Elevation-10*model.FeetPerMeter) > 1e-9 {
		t.Fatalf("elevation = %v ft", j.Elevation)
	}
	if math.Abs(j.Demands[0].Base-1) > 1e-9 {
		t.Fatalf("demand = %v cfs, want 1", j.Demands[0].Base)
	}
	if j.Demands[0].Pattern != 0 {
		t.Fatalf("pattern = %d, want 0 without any patterns", j.Demands[0].Pattern)
	}
	p, _ := net.Link(1)
	if math.Abs(p.Diameter-1) > 1e-12 {
		t.Fatalf("diameter = %v ft, want 1", p.Diameter)
	}
}

func TestLoadNetwork_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "duplicate junction",
			doc:  `{"junctions": [{"id": "A"}, {"id": "A"}]}`,
			want: ErrNodeExists,
		},
		{
			name: "unknown pattern",
			doc:  `{"junctions": [{"id": "A", "pattern": "nope"}]}`,
			want: ErrPatternNotFound,
		},
		{
			name: "pipe to missing node",
			doc:  `{"junctions": [{"id": "A"}], "pipes": [{"id": "P", "node1": "A", "node2": "B", "length": 1, "diameter": 1, "roughness": 100}]}`,
			want: ErrNodeNotFound,
		},
		{
			name: "pump without curve",
			doc:  `{"junctions": [{"id": "A"}, {"id": "B"}], "pumps": [{"id": "P", "node1": "A", "node2": "B", "curve": "c"}]}`,
			want: ErrCurveNotFound,
		},
		{
			name: "control without condition",
			doc:  `{"junctions": [{"id": "A"}, {"id": "B"}], "pipes": [{"id": "P", "node1": "A", "node2": "B", "length": 1, "diameter": 1, "roughness": 100}], "controls": [{"link": "P", "status": "closed"}]}`,
			want: ErrControlBadInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadNetwork(strings.NewReader(tc.doc), FormatJSON)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := LoadNetwork(strings.NewReader(`{"bogus": 1}`), FormatJSON); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
	if _, err := FormatForPath("net1.inp"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("FormatForPath(.inp) err = %v, want ErrUnknownFormat", err)
	}
}

func TestClockUnmarshalText(t *testing.T) {
	cases := map[string]int64{
		"24:00":   86400,
		"0:05":    300,
		"1:30:15": 5415,
		"6":       21600,
		"0.5":     1800,
		"90m":     5400,
		"":        0,
	}
	for in, want := range cases {
		var c Clock
		if err := c.UnmarshalText([]byte(in)); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", in, err)
		}
		if int64(c) != want {
			t.Fatalf("UnmarshalText(%q) = %d, want %d", in, c, want)
		}
	}
	var c Clock
	if err := c.UnmarshalText([]byte("1:2:3:4")); err == nil {
		t.Fatalf("expected error for malformed clock")
	}
}

func TestClockAcceptsNumbersInBothFormats(t *testing.T) {
	const yamlDoc = `
times:
  duration: 24
  hydraulic_timestep: 0.5
junctions:
  - {id: J1, elevation: 10, demand: 1}
reservoirs:
  - {id: R1, head: 50}
pipes:
  - {id: P1, node1: R1, node2: J1, length: 1000, diameter: 12, roughness: 100}
`
	const jsonDoc = `{
  "times": {"duration": 24, "hydraulic_timestep": 0.5},
  "junctions": [{"id": "J1", "elevation": 10, "demand": 1}],
  "reservoirs": [{"id": "R1", "head": 50}],
  "pipes": [{"id": "P1", "node1": "R1", "node2": "J1", "length": 1000, "diameter": 12, "roughness": 100}]
}`
	for name, load := range map[string]func() (*Network, error){
		"yaml": func() (*Network, error) { return LoadNetwork(strings.NewReader(yamlDoc), FormatYAML) },
		"json": func() (*Network, error) { return LoadNetwork(strings.NewReader(jsonDoc), FormatJSON) },
	} {
		net, err := load()
		if err != nil {
			t.Fatalf("%s: LoadNetwork: %v", name, err)
		}
		if net.Times.Duration != 86400 || net.Times.HydStep != 1800 {
			t.Fatalf("%s: duration %d, hydraulic step %d", name, net.Times.Duration, net.Times.HydStep)
		}
	}

	var c Clock
	if err := json.Unmarshal([]byte(`"1:30"`), &c); err != nil || c != 5400 {
		t.Fatalf("string clock = %d, %v", c, err)
	}
	if err := json.Unmarshal([]byte(`true`), &c); err == nil {
		t.Fatalf("expected an error for a boolean clock")
	}
}
