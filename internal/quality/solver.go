// Package quality tracks constituent concentrations through a pipe network
// over a hydraulic flow field, using Lagrangian transport: every pipe holds
// an ordered queue of water segments that advance with the flow.
package quality

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/internal/hydraulics"
	"github.com/milad-ghiami/EPANET/internal/logging"
	"github.com/milad-ghiami/EPANET/model"
	"github.com/milad-ghiami/EPANET/timectrl"
)

var (
	ErrAlreadyOpen    = errors.New("quality solver already open")
	ErrNotOpen        = errors.New("quality solver not open")
	ErrNotInitialized = errors.New("quality solver not initialized")
	ErrOutOfSequence  = errors.New("quality step out of sequence")
	ErrNoHydraulics   = errors.New("no hydraulics available for quality analysis")
	ErrNumerical      = errors.New("quality concentrations are not finite")
)

// HydraulicSource supplies the flow field in effect at a simulation time.
// Both a live *hydraulics.Solver and a saved *hydraulics.Trajectory
// satisfy it.
type HydraulicSource interface {
	PeriodAt(t int64) (*hydraulics.Period, error)
}

// Snapshot is the state captured at a report time.
type Snapshot struct {
	Time       int64
	Hydraulics *hydraulics.Period
	Node       []float64 // concentration per node
	Link       []float64 // volume-averaged concentration per link
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSink registers a callback invoked for every captured snapshot.
func WithSink(fn func(Snapshot) error) Option {
	return func(s *Solver) { s.sink = fn }
}

// WithClockListener registers fn to be called with the new time after
// every step of the quality clock.
func WithClockListener(fn func(now int64)) Option {
	return func(s *Solver) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// Solver steps water quality through time. It is not safe for concurrent
// use.
type Solver struct {
	net   *core.Network
	nodes []*model.Node
	links []*model.Link
	src   HydraulicSource
	clock *timectrl.Controller
	log   logging.Logger
	sink  func(Snapshot) error
	opts  model.QualityOptions

	listeners []func(int64)

	phase hydraulics.Phase
	save  bool

	c      []float64   // node concentrations
	segs   [][]segment // per link, downstream end first
	dir    []int8      // +1 when the downstream end is the To node
	tankV  []float64
	volIn  []float64
	massIn []float64

	period    *hydraulics.Period
	snapshots []Snapshot
}

// New returns an unopened quality solver reading flows from src.
func New(net *core.Network, src HydraulicSource, opts ...Option) *Solver {
	s := &Solver{net: net, src: src, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the solver's current phase.
func (s *Solver) Phase() hydraulics.Phase { return s.phase }

// Now returns the quality clock time in seconds.
func (s *Solver) Now() int64 {
	if s.clock == nil {
		return 0
	}
	return s.clock.Now()
}

// Snapshots returns the report-time states captured since the last Init
// with saving enabled.
func (s *Solver) Snapshots() []Snapshot { return s.snapshots }

// Open allocates the quality state.
func (s *Solver) Open() error {
	if s.phase.IsOpen() {
		return ErrAlreadyOpen
	}
	if s.src == nil {
		return ErrNoHydraulics
	}
	s.nodes = s.net.Nodes()
	s.links = s.net.Links()
	s.opts = s.net.Options.Quality
	s.clock = timectrl.NewController(timectrl.NewSchedule(s.net.Times))
	for _, fn := range s.listeners {
		s.clock.AddListener(fn)
	}

	nn, nl := len(s.nodes), len(s.links)
	s.c = make([]float64, nn)
	s.tankV = make([]float64, nn)
	s.volIn = make([]float64, nn)
	s.massIn = make([]float64, nn)
	s.segs = make([][]segment, nl)
	s.dir = make([]int8, nl)
	s.phase = hydraulics.PhaseOpened
	return nil
}

// Init resets concentrations, tank volumes and pipe segments to time zero.
// When save is set, report-time snapshots are captured.
func (s *Solver) Init(save bool) error {
	if !s.phase.IsOpen() {
		return ErrNotOpen
	}
	s.clock.SetTime(0)
	s.save = save
	s.snapshots = nil
	s.period = nil

	for i, n := range s.nodes {
		s.c[i] = s.initialQuality(i, n)
		s.tankV[i] = 0
		if n.Type == model.NodeTank {
			s.tankV[i] = n.Tank.VolumeAt(n.Tank.InitLevel)
		}
	}

	var flows []float64
	if p, err := s.src.PeriodAt(0); err == nil {
		flows = p.Flow
	}
	for k, l := range s.links {
		s.dir[k] = 1
		if k < len(flows) && flows[k] < 0 {
			s.dir[k] = -1
		}
		s.segs[k] = s.segs[k][:0]
		if v := l.Volume(); v > 0 {
			s.segs[k] = append(s.segs[k], segment{v: v, c: s.c[s.downstream(k)]})
		}
	}
	s.phase = hydraulics.PhaseInitialized
	return nil
}

func (s *Solver) initialQuality(i int, n *model.Node) float64 {
	switch s.opts.Type {
	case model.QualityChemical:
		if n.Type == model.NodeReservoir && n.SourceQuality > 0 {
			return n.SourceQuality
		}
		return n.InitQuality
	case model.QualityTrace:
		if i+1 == s.opts.TraceNode {
			return 100
		}
	}
	return 0
}

func (s *Solver) checkStepping() error {
	switch s.phase {
	case hydraulics.PhaseUnopened, hydraulics.PhaseClosed:
		return ErrNotOpen
	case hydraulics.PhaseOpened:
		return ErrNotInitialized
	}
	return nil
}

// Run loads the hydraulic period in effect at the current quality time and
// captures a snapshot at report times. It returns the current time.
func (s *Solver) Run(ctx context.Context) (int64, error) {
	if err := s.checkStepping(); err != nil {
		return 0, err
	}
	t := s.clock.Now()
	p, err := s.src.PeriodAt(t)
	if err != nil {
		return t, fmt.Errorf("%w: %v", ErrNoHydraulics, err)
	}
	s.load(p)

	if s.save && s.clock.Schedule.IsReportTime(t) {
		snap := s.snapshot(t)
		if n := len(s.snapshots); n > 0 && s.snapshots[n-1].Time == t {
			s.snapshots[n-1] = snap
		} else {
			s.snapshots = append(s.snapshots, snap)
		}
		if s.sink != nil {
			if err := s.sink(snap); err != nil {
				return t, err
			}
		}
	}
	s.phase = hydraulics.PhaseSolved
	return t, nil
}

// load switches to a new hydraulic period, reversing the segment queues of
// links whose flow changed direction.
func (s *Solver) load(p *hydraulics.Period) {
	s.period = p
	for k := range s.links {
		q := p.Flow[k]
		if math.Abs(q) < qZero {
			continue
		}
		d := int8(1)
		if q < 0 {
			d = -1
		}
		if d != s.dir[k] {
			reverse(s.segs[k])
			s.dir[k] = d
		}
	}
}

// Next transports and reacts constituents until the end of the current
// hydraulic period and returns the step taken, or 0 at the horizon.
func (s *Solver) Next(ctx context.Context) (int64, error) {
	if err := s.checkStepping(); err != nil {
		return 0, err
	}
	if s.phase != hydraulics.PhaseSolved {
		return 0, ErrOutOfSequence
	}
	if s.clock.Done() {
		s.phase = hydraulics.PhaseAdvanced
		return 0, nil
	}
	// The loaded period must already know its length: in lockstep the
	// hydraulic solver advances first.
	t := s.clock.Now()
	tstep := min(s.period.Time+s.period.Step-t, s.clock.Remaining())
	if s.period.Step <= 0 || tstep <= 0 {
		return 0, fmt.Errorf("%w: hydraulic period at t=%d has not been advanced", ErrOutOfSequence, s.period.Time)
	}
	s.phase = hydraulics.PhaseAdvanced

	qstep := s.net.Times.QualStep
	if qstep <= 0 {
		qstep = tstep
	}
	for done := int64(0); done < tstep; {
		dt := min(qstep, tstep-done)
		s.transport(dt)
		done += dt
	}
	if err := s.checkFinite(); err != nil {
		return 0, err
	}
	s.clock.Advance(tstep)

	s.log.Debug(ctx, "quality advanced", logging.Any("time", t+tstep), logging.Any("step", tstep))
	return tstep, nil
}

func (s *Solver) checkFinite() error {
	for i, v := range s.c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: node %s at t=%d", ErrNumerical, s.nodes[i].ID, s.clock.Now())
		}
	}
	return nil
}

// Close releases the quality state. Captured snapshots stay available.
func (s *Solver) Close() error {
	if !s.phase.IsOpen() {
		return ErrNotOpen
	}
	s.c, s.tankV, s.volIn, s.massIn = nil, nil, nil, nil
	s.segs, s.dir = nil, nil
	s.period = nil
	s.phase = hydraulics.PhaseClosed
	return nil
}

// NodeQuality returns the concentration at node position i.
func (s *Solver) NodeQuality(i int) float64 {
	if i < 0 || i >= len(s.c) {
		return 0
	}
	return s.c[i]
}

// LinkQuality returns the volume-averaged concentration in link position k.
func (s *Solver) LinkQuality(k int) float64 {
	if k < 0 || k >= len(s.segs) {
		return 0
	}
	var v, m float64
	for _, sg := range s.segs[k] {
		v += sg.v
		m += sg.v * sg.c
	}
	if v > 0 {
		return m / v
	}
	l := s.links[k]
	return (s.c[l.From-1] + s.c[l.To-1]) / 2
}

// Mass returns the constituent mass held in pipes and tanks (concentration
// times ft3).
func (s *Solver) Mass() float64 {
	m := 0.0
	for _, segs := range s.segs {
		for _, sg := range segs {
			m += sg.v * sg.c
		}
	}
	for i, n := range s.nodes {
		if n.Type == model.NodeTank {
			m += s.tankV[i] * s.c[i]
		}
	}
	return m
}

func (s *Solver) snapshot(t int64) Snapshot {
	snap := Snapshot{
		Time:       t,
		Hydraulics: s.period.Clone(),
		Node:       append([]float64(nil), s.c...),
		Link:       make([]float64, len(s.links)),
	}
	for k := range s.links {
		snap.Link[k] = s.LinkQuality(k)
	}
	return snap
}
