// core/scenario_loader.go
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/milad-ghiami/EPANET/model"
)

// Format is the encoding of a network description.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks a description format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Clock is a time value in seconds that decodes from "h:mm[:ss]", a bare
// number of hours, or a Go duration string such as "90m".
type Clock int64

func (c *Clock) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*c = 0
		return nil
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return fmt.Errorf("bad clock value %q", s)
		}
		var secs int64
		mult := int64(3600)
		for _, p := range parts {
			v, err := strconv.ParseInt(p, 10, 64)
			if err != nil || v < 0 {
				return fmt.Errorf("bad clock value %q", s)
			}
			secs += v * mult
			mult /= 60
		}
		*c = Clock(secs)
		return nil
	}
	if hours, err := strconv.ParseFloat(s, 64); err == nil {
		*c = Clock(hours * 3600)
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad clock value %q", s)
	}
	*c = Clock(d / time.Second)
	return nil
}

// UnmarshalJSON accepts a JSON number of hours as well as any string form
// UnmarshalText does.
func (c *Clock) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("bad clock value %s: %w", data, err)
		}
		return c.UnmarshalText([]byte(s))
	}
	var hours float64
	if err := json.Unmarshal(data, &hours); err != nil {
		return fmt.Errorf("bad clock value %s", data)
	}
	*c = Clock(hours * 3600)
	return nil
}

// internal JSON/YAML shapes – keep them unexported so we're free to evolve them.
type descriptionJSON struct {
	Title      string             `json:"title" yaml:"title"`
	Options    optionsJSON        `json:"options" yaml:"options"`
	Times      timesJSON          `json:"times" yaml:"times"`
	Junctions  []junctionJSON     `json:"junctions" yaml:"junctions"`
	Reservoirs []reservoirJSON    `json:"reservoirs" yaml:"reservoirs"`
	Tanks      []tankJSON         `json:"tanks" yaml:"tanks"`
	Pipes      []pipeJSON         `json:"pipes" yaml:"pipes"`
	Pumps      []pumpJSON         `json:"pumps" yaml:"pumps"`
	Valves     []valveJSON        `json:"valves" yaml:"valves"`
	Patterns   []patternJSON      `json:"patterns" yaml:"patterns"`
	Curves     []curveJSON        `json:"curves" yaml:"curves"`
	Controls   []controlJSON      `json:"controls" yaml:"controls"`
	Quality    map[string]float64 `json:"quality" yaml:"quality"` // initial quality by node ID
	Sources    map[string]float64 `json:"sources" yaml:"sources"` // source quality by node ID
	Reactions  reactionsJSON      `json:"reactions" yaml:"reactions"`
}

type optionsJSON struct {
	Units            string   `json:"units" yaml:"units"`
	Headloss         string   `json:"headloss" yaml:"headloss"`
	Trials           int      `json:"trials" yaml:"trials"`
	Accuracy         float64  `json:"accuracy" yaml:"accuracy"`
	DemandMultiplier *float64 `json:"demand_multiplier" yaml:"demand_multiplier"`
	Pattern          string   `json:"pattern" yaml:"pattern"` // default demand pattern
	Quality          string   `json:"quality" yaml:"quality"` // none | chemical | age | trace
	ChemName         string   `json:"chem_name" yaml:"chem_name"`
	ChemUnits        string   `json:"chem_units" yaml:"chem_units"`
	TraceNode        string   `json:"trace_node" yaml:"trace_node"`
	Tolerance        float64  `json:"tolerance" yaml:"tolerance"`
}

type timesJSON struct {
	Duration     Clock `json:"duration" yaml:"duration"`
	HydStep      Clock `json:"hydraulic_timestep" yaml:"hydraulic_timestep"`
	QualStep     Clock `json:"quality_timestep" yaml:"quality_timestep"`
	PatternStep  Clock `json:"pattern_timestep" yaml:"pattern_timestep"`
	PatternStart Clock `json:"pattern_start" yaml:"pattern_start"`
	ReportStep   Clock `json:"report_timestep" yaml:"report_timestep"`
	ReportStart  Clock `json:"report_start" yaml:"report_start"`
	StartClock   Clock `json:"start_clocktime" yaml:"start_clocktime"`
}

type demandJSON struct {
	Base    float64 `json:"base" yaml:"base"`
	Pattern string  `json:"pattern" yaml:"pattern"`
	Name    string  `json:"name" yaml:"name"`
}

type junctionJSON struct {
	ID        string       `json:"id" yaml:"id"`
	Elevation float64      `json:"elevation" yaml:"elevation"`
	Demand    float64      `json:"demand" yaml:"demand"`
	Pattern   string       `json:"pattern" yaml:"pattern"`
	Demands   []demandJSON `json:"demands" yaml:"demands"` // extra categories
}

type reservoirJSON struct {
	ID      string  `json:"id" yaml:"id"`
	Head    float64 `json:"head" yaml:"head"`
	Pattern string  `json:"pattern" yaml:"pattern"`
}

type tankJSON struct {
	ID        string  `json:"id" yaml:"id"`
	Elevation float64 `json:"elevation" yaml:"elevation"`
	InitLevel float64 `json:"init_level" yaml:"init_level"`
	MinLevel  float64 `json:"min_level" yaml:"min_level"`
	MaxLevel  float64 `json:"max_level" yaml:"max_level"`
	Diameter  float64 `json:"diameter" yaml:"diameter"`
	MinVolume float64 `json:"min_volume" yaml:"min_volume"`
}

type pipeJSON struct {
	ID        string  `json:"id" yaml:"id"`
	Node1     string  `json:"node1" yaml:"node1"`
	Node2     string  `json:"node2" yaml:"node2"`
	Length    float64 `json:"length" yaml:"length"`
	Diameter  float64 `json:"diameter" yaml:"diameter"`
	Roughness float64 `json:"roughness" yaml:"roughness"`
	MinorLoss float64 `json:"minor_loss" yaml:"minor_loss"`
	Status    string  `json:"status" yaml:"status"` // open | closed | cv
}

type pumpJSON struct {
	ID     string   `json:"id" yaml:"id"`
	Node1  string   `json:"node1" yaml:"node1"`
	Node2  string   `json:"node2" yaml:"node2"`
	Curve  string   `json:"curve" yaml:"curve"`
	Speed  *float64 `json:"speed" yaml:"speed"`
	Status string   `json:"status" yaml:"status"`
}

type valveJSON struct {
	ID        string  `json:"id" yaml:"id"`
	Node1     string  `json:"node1" yaml:"node1"`
	Node2     string  `json:"node2" yaml:"node2"`
	Diameter  float64 `json:"diameter" yaml:"diameter"`
	Type      string  `json:"type" yaml:"type"`
	Setting   float64 `json:"setting" yaml:"setting"`
	MinorLoss float64 `json:"minor_loss" yaml:"minor_loss"`
}

type patternJSON struct {
	ID      string    `json:"id" yaml:"id"`
	Factors []float64 `json:"factors" yaml:"factors"`
}

type pointJSON struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type curveJSON struct {
	ID     string      `json:"id" yaml:"id"`
	Points []pointJSON `json:"points" yaml:"points"`
}

type controlJSON struct {
	Link    string   `json:"link" yaml:"link"`
	Status  string   `json:"status" yaml:"status"` // open | closed
	Setting *float64 `json:"setting" yaml:"setting"`
	Node    string   `json:"node" yaml:"node"`
	Below   *float64 `json:"below" yaml:"below"`
	Above   *float64 `json:"above" yaml:"above"`
	AtTime  *Clock   `json:"at_time" yaml:"at_time"`
	AtClock *Clock   `json:"at_clocktime" yaml:"at_clocktime"`
}

type reactionsJSON struct {
	Order      *float64           `json:"order" yaml:"order"`
	GlobalBulk float64            `json:"global_bulk" yaml:"global_bulk"`
	GlobalWall float64            `json:"global_wall" yaml:"global_wall"`
	Bulk       map[string]float64 `json:"bulk" yaml:"bulk"` // per pipe or tank
	Wall       map[string]float64 `json:"wall" yaml:"wall"` // per pipe
}

// LoadNetworkFile reads a JSON or YAML network description from disk.
func LoadNetworkFile(path string) (*Network, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadNetworkFile: %w", err)
	}
	defer f.Close()
	return LoadNetwork(f, format)
}

// LoadNetwork decodes a network description from r and builds a Network,
// converting user units to the internal ft/cfs system.
func LoadNetwork(r io.Reader, format Format) (*Network, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("LoadNetwork: read failed: %w", err)
	}

	var payload descriptionJSON
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("LoadNetwork: decode failed: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("LoadNetwork: decode failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}

	b := &builder{net: NewNetwork(), payload: &payload}
	if err := b.build(); err != nil {
		return nil, fmt.Errorf("LoadNetwork: %w", err)
	}
	return b.net, nil
}

type builder struct {
	net     *Network
	payload *descriptionJSON
	units   model.Units
}

func (b *builder) build() error {
	p := b.payload
	net := b.net
	net.Title = p.Title

	if err := b.options(); err != nil {
		return err
	}
	b.times()

	// 1) Patterns and curves, so later sections can resolve them by ID.
	for _, pat := range p.Patterns {
		idx, err := net.AddPattern(pat.ID)
		if err != nil {
			return err
		}
		if len(pat.Factors) > 0 {
			if err := net.SetPattern(idx, pat.Factors); err != nil {
				return err
			}
		}
	}
	for _, c := range p.Curves {
		curve := &model.Curve{ID: c.ID}
		for _, pt := range c.Points {
			curve.X = append(curve.X, pt.X/b.units.Flow)
			curve.Y = append(curve.Y, pt.Y/b.units.Length)
		}
		if _, err := net.AddCurve(curve); err != nil {
			return err
		}
	}
	if err := b.defaultPattern(); err != nil {
		return err
	}

	// 2) Nodes: junctions first, then reservoirs and tanks.
	if err := b.nodes(); err != nil {
		return err
	}

	// 3) Links
	if err := b.links(); err != nil {
		return err
	}

	// 4) Controls, quality and reactions
	if err := b.controls(); err != nil {
		return err
	}
	return b.quality()
}

func (b *builder) options() error {
	o := b.payload.Options
	opts := model.DefaultOptions()

	units, err := model.ParseFlowUnits(o.Units)
	if err != nil {
		return err
	}
	opts.FlowUnits = units
	b.units = model.UnitsFor(units)

	switch strings.ToUpper(strings.TrimSpace(o.Headloss)) {
	case "", "H-W", "HW":
		opts.Headloss = model.HazenWilliams
	case "D-W", "DW":
		opts.Headloss = model.DarcyWeisbach
	case "C-M", "CM":
		opts.Headloss = model.ChezyManning
	default:
		return fmt.Errorf("%w: headloss formula %q", ErrInvalidValue, o.Headloss)
	}
	if o.Trials > 0 {
		opts.MaxTrials = o.Trials
	}
	if o.Accuracy > 0 {
		opts.Accuracy = o.Accuracy
	}
	if o.DemandMultiplier != nil {
		opts.DemandMultiplier = *o.DemandMultiplier
	}

	switch strings.ToLower(strings.TrimSpace(o.Quality)) {
	case "", "none":
		opts.Quality.Type = model.QualityNone
	case "age":
		opts.Quality.Type = model.QualityAge
		opts.Quality.ChemUnits = "hrs"
	case "trace":
		opts.Quality.Type = model.QualityTrace
		opts.Quality.ChemUnits = "%"
	default:
		opts.Quality.Type = model.QualityChemical
		opts.Quality.ChemName = o.Quality
		if o.ChemName != "" {
			opts.Quality.ChemName = o.ChemName
		}
		opts.Quality.ChemUnits = "mg/L"
		if o.ChemUnits != "" {
			opts.Quality.ChemUnits = o.ChemUnits
		}
	}
	if o.Tolerance > 0 {
		opts.Quality.Tolerance = o.Tolerance
	}
	b.net.Options = opts
	return nil
}

func (b *builder) times() {
	t := b.payload.Times
	times := model.DefaultTimes()
	times.Duration = int64(t.Duration)
	if t.HydStep > 0 {
		times.HydStep = int64(t.HydStep)
	}
	if t.QualStep > 0 {
		times.QualStep = int64(t.QualStep)
	}
	if t.PatternStep > 0 {
		times.PatternStep = int64(t.PatternStep)
	}
	if t.ReportStep > 0 {
		times.ReportStep = int64(t.ReportStep)
	}
	times.PatternStart = int64(t.PatternStart)
	times.ReportStart = int64(t.ReportStart)
	times.StartClock = int64(t.StartClock)
	// A quality step never exceeds the hydraulic step.
	if times.QualStep > times.HydStep {
		times.QualStep = times.HydStep
	}
	b.net.Times = times
}

// defaultPattern resolves the options' default demand pattern. Without an
// explicit choice a pattern with ID "1" is used when one exists.
func (b *builder) defaultPattern() error {
	name := b.payload.Options.Pattern
	if name == "" {
		if idx, err := b.net.PatternIndex("1"); err == nil {
			b.net.Options.DefaultPattern = idx
		}
		return nil
	}
	idx, err := b.net.PatternIndex(name)
	if err != nil {
		return err
	}
	b.net.Options.DefaultPattern = idx
	return nil
}

func (b *builder) patternRef(id string) (int, error) {
	if id == "" {
		return b.net.Options.DefaultPattern, nil
	}
	return b.net.PatternIndex(id)
}

func (b *builder) nodes() error {
	net := b.net
	u := b.units
	for _, j := range b.payload.Junctions {
		node := &model.Node{
			ID:        j.ID,
			Type:      model.NodeJunction,
			Elevation: j.Elevation / u.Length,
		}
		if j.Demand != 0 || j.Pattern != "" || len(j.Demands) == 0 {
			pat, err := b.patternRef(j.Pattern)
			if err != nil {
				return fmt.Errorf("junction %q: %w", j.ID, err)
			}
			node.Demands = append(node.Demands, model.Demand{Base: j.Demand / u.Flow, Pattern: pat})
		}
		for _, d := range j.Demands {
			pat, err := b.patternRef(d.Pattern)
			if err != nil {
				return fmt.Errorf("junction %q: %w", j.ID, err)
			}
			node.Demands = append(node.Demands, model.Demand{Base: d.Base / u.Flow, Pattern: pat, Name: d.Name})
		}
		if _, err := net.AddNode(node); err != nil {
			return err
		}
	}
	for _, r := range b.payload.Reservoirs {
		node := &model.Node{
			ID:        r.ID,
			Type:      model.NodeReservoir,
			Elevation: r.Head / u.Length,
		}
		if r.Pattern != "" {
			pat, err := net.PatternIndex(r.Pattern)
			if err != nil {
				return fmt.Errorf("reservoir %q: %w", r.ID, err)
			}
			node.HeadPattern = pat
		}
		if _, err := net.AddNode(node); err != nil {
			return err
		}
	}
	for _, t := range b.payload.Tanks {
		tank := &model.Tank{
			InitLevel: t.InitLevel / u.Length,
			MinLevel:  t.MinLevel / u.Length,
			MaxLevel:  t.MaxLevel / u.Length,
			Diameter:  t.Diameter / u.Length,
			MinVolume: t.MinVolume / u.Volume,
		}
		if tank.MinVolume == 0 {
			tank.MinVolume = tank.MinLevel * tank.Area()
		}
		node := &model.Node{
			ID:        t.ID,
			Type:      model.NodeTank,
			Elevation: t.Elevation / u.Length,
			Tank:      tank,
		}
		if _, err := net.AddNode(node); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) endpoints(id, n1, n2 string) (int, int, error) {
	from, err := b.net.NodeIndex(n1)
	if err != nil {
		return 0, 0, fmt.Errorf("link %q: %w", id, err)
	}
	to, err := b.net.NodeIndex(n2)
	if err != nil {
		return 0, 0, fmt.Errorf("link %q: %w", id, err)
	}
	return from, to, nil
}

func parseStatus(s string) (model.LinkStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open":
		return model.StatusOpen, nil
	case "closed":
		return model.StatusClosed, nil
	default:
		return 0, fmt.Errorf("%w: status %q", ErrInvalidValue, s)
	}
}

func (b *builder) links() error {
	net := b.net
	u := b.units
	for _, p := range b.payload.Pipes {
		from, to, err := b.endpoints(p.ID, p.Node1, p.Node2)
		if err != nil {
			return err
		}
		link := &model.Link{
			ID:         p.ID,
			Type:       model.LinkPipe,
			From:       from,
			To:         to,
			Length:     p.Length / u.Length,
			Diameter:   p.Diameter / u.Diameter,
			Roughness:  p.Roughness,
			MinorLoss:  p.MinorLoss,
			InitStatus: model.StatusOpen,
		}
		if net.Options.Headloss == model.DarcyWeisbach {
			link.Roughness = p.Roughness / u.Roughness
		}
		if strings.EqualFold(strings.TrimSpace(p.Status), "cv") {
			link.Type = model.LinkCVPipe
		} else if link.InitStatus, err = parseStatus(p.Status); err != nil {
			return fmt.Errorf("pipe %q: %w", p.ID, err)
		}
		if _, err := net.AddLink(link); err != nil {
			return err
		}
	}
	for _, p := range b.payload.Pumps {
		from, to, err := b.endpoints(p.ID, p.Node1, p.Node2)
		if err != nil {
			return err
		}
		curve, err := net.CurveIndex(p.Curve)
		if err != nil {
			return fmt.Errorf("pump %q: %w", p.ID, err)
		}
		speed := 1.0
		if p.Speed != nil {
			speed = *p.Speed
		}
		status, err := parseStatus(p.Status)
		if err != nil {
			return fmt.Errorf("pump %q: %w", p.ID, err)
		}
		link := &model.Link{
			ID:          p.ID,
			Type:        model.LinkPump,
			From:        from,
			To:          to,
			InitStatus:  status,
			InitSetting: speed,
			Pump:        &model.Pump{Curve: curve, Speed: speed},
		}
		if _, err := net.AddLink(link); err != nil {
			return err
		}
	}
	for _, v := range b.payload.Valves {
		from, to, err := b.endpoints(v.ID, v.Node1, v.Node2)
		if err != nil {
			return err
		}
		typ, err := valveType(v.Type)
		if err != nil {
			return fmt.Errorf("valve %q: %w", v.ID, err)
		}
		link := &model.Link{
			ID:          v.ID,
			Type:        typ,
			From:        from,
			To:          to,
			Diameter:    v.Diameter / u.Diameter,
			MinorLoss:   v.MinorLoss,
			InitStatus:  model.StatusOpen,
			InitSetting: v.Setting,
		}
		if _, err := net.AddLink(link); err != nil {
			return err
		}
	}
	return nil
}

func valveType(s string) (model.LinkType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRV":
		return model.LinkPRV, nil
	case "PSV":
		return model.LinkPSV, nil
	case "PBV":
		return model.LinkPBV, nil
	case "FCV":
		return model.LinkFCV, nil
	case "TCV", "":
		return model.LinkTCV, nil
	case "GPV":
		return model.LinkGPV, nil
	default:
		return 0, fmt.Errorf("%w: valve type %q", ErrInvalidValue, s)
	}
}

func (b *builder) controls() error {
	net := b.net
	u := b.units
	for i, c := range b.payload.Controls {
		link, err := net.LinkIndex(c.Link)
		if err != nil {
			return fmt.Errorf("control %d: %w", i+1, err)
		}
		ctl := model.Control{Link: link}
		if c.Setting != nil {
			ctl.Setting = *c.Setting
			ctl.HasSetting = true
			ctl.Status = model.StatusOpen
		} else if ctl.Status, err = parseStatus(c.Status); err != nil {
			return fmt.Errorf("control %d: %w", i+1, err)
		}

		switch {
		case c.Below != nil || c.Above != nil:
			node, err := net.NodeIndex(c.Node)
			if err != nil {
				return fmt.Errorf("control %d: %w", i+1, err)
			}
			nd, _ := net.Node(node)
			value := 0.0
			if c.Below != nil {
				ctl.Type = model.ControlLowLevel
				value = *c.Below
			} else {
				ctl.Type = model.ControlHighLevel
				value = *c.Above
			}
			ctl.Node = node
			// Tank controls compare levels, junction controls pressures.
			switch nd.Type {
			case model.NodeTank:
				ctl.Grade = nd.Elevation + value/u.Length
			case model.NodeJunction:
				ctl.Grade = nd.Elevation + value/u.Pressure
			default:
				ctl.Grade = value / u.Length
			}
		case c.AtTime != nil:
			ctl.Type = model.ControlTimer
			ctl.Time = int64(*c.AtTime)
		case c.AtClock != nil:
			ctl.Type = model.ControlTimeOfDay
			ctl.Time = int64(*c.AtClock) % model.SecPerDay
		default:
			return fmt.Errorf("%w: control %d has no condition", ErrControlBadInput, i+1)
		}
		if _, err := net.AddControl(ctl); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) quality() error {
	net := b.net
	p := b.payload
	r := p.Reactions

	q := &net.Options.Quality
	q.GlobalBulk = r.GlobalBulk
	q.GlobalWall = r.GlobalWall / b.units.Length
	if r.Order != nil {
		q.BulkOrder = *r.Order
	}
	if q.Type == model.QualityTrace {
		idx, err := net.NodeIndex(p.Options.TraceNode)
		if err != nil {
			return fmt.Errorf("trace node: %w", err)
		}
		q.TraceNode = idx
	}

	for _, l := range net.links {
		l.Bulk = q.GlobalBulk
		l.Wall = q.GlobalWall
	}
	for _, n := range net.nodes {
		if n.Tank != nil {
			n.Tank.Bulk = q.GlobalBulk
		}
	}
	for id, v := range r.Bulk {
		if idx, err := net.LinkIndex(id); err == nil {
			net.links[idx-1].Bulk = v
			continue
		}
		idx, err := net.NodeIndex(id)
		if err != nil {
			return fmt.Errorf("bulk reaction: %w", err)
		}
		if net.nodes[idx-1].Tank == nil {
			return fmt.Errorf("%w: bulk reaction on non-tank node %q", ErrInvalidValue, id)
		}
		net.nodes[idx-1].Tank.Bulk = v
	}
	for id, v := range r.Wall {
		idx, err := net.LinkIndex(id)
		if err != nil {
			return fmt.Errorf("wall reaction: %w", err)
		}
		net.links[idx-1].Wall = v / b.units.Length
	}

	for id, v := range p.Quality {
		idx, err := net.NodeIndex(id)
		if err != nil {
			return fmt.Errorf("initial quality: %w", err)
		}
		net.nodes[idx-1].InitQuality = v
	}
	for id, v := range p.Sources {
		idx, err := net.NodeIndex(id)
		if err != nil {
			return fmt.Errorf("source quality: %w", err)
		}
		net.nodes[idx-1].SourceQuality = v
	}
	return nil
}
