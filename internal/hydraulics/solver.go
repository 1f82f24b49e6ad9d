package hydraulics

import (
	"context"
	"fmt"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/internal/logging"
	"github.com/milad-ghiami/EPANET/model"
	"github.com/milad-ghiami/EPANET/timectrl"
)

// Phase is the position of a solver in its open/init/run/next/close cycle.
type Phase int

const (
	PhaseUnopened Phase = iota
	PhaseOpened
	PhaseInitialized
	PhaseSolved   // run just happened
	PhaseAdvanced // next just happened
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnopened:
		return "unopened"
	case PhaseOpened:
		return "opened"
	case PhaseInitialized:
		return "initialized"
	case PhaseSolved:
		return "solved"
	case PhaseAdvanced:
		return "advanced"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsOpen reports whether the solver holds state.
func (p Phase) IsOpen() bool {
	return p != PhaseUnopened && p != PhaseClosed
}

// InitFlag combines the save and re-initialize-flows options of Init.
type InitFlag int

const (
	NoSave          InitFlag = 0
	Save            InitFlag = 1
	InitFlow        InitFlag = 10
	SaveAndInitFlow InitFlag = 11
)

func (f InitFlag) valid() bool {
	return f == NoSave || f == Save || f == InitFlow || f == SaveAndInitFlow
}

// Saves reports whether solved periods are recorded.
func (f InitFlag) Saves() bool { return f%10 == 1 }

// ResetsFlow reports whether link flows are re-initialized.
func (f InitFlag) ResetsFlow() bool { return f/10 == 1 }

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

// WithClockListener registers fn to be called with the new time after
// every step of the hydraulic clock.
func WithClockListener(fn func(now int64)) Option {
	return func(s *Solver) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// Solver steps the hydraulic state of one network through time. It is not
// safe for concurrent use.
type Solver struct {
	net   *core.Network
	nodes []*model.Node
	links []*model.Link
	sys   *System
	clock *timectrl.Controller
	log   logging.Logger

	listeners []func(int64)

	phase Phase
	save  bool

	flow    []float64
	head    []float64
	demand  []float64
	status  []model.LinkStatus // includes solver-imposed TempClosed
	base    []model.LinkStatus // set by input and controls
	setting []float64
	volume  []float64

	cur  Period
	traj *Trajectory
	last Convergence
}

// New returns an unopened solver bound to a network.
func New(net *core.Network, opts ...Option) *Solver {
	s := &Solver{net: net, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the solver's current phase.
func (s *Solver) Phase() Phase { return s.phase }

// Now returns the hydraulic clock time in seconds.
func (s *Solver) Now() int64 {
	if s.clock == nil {
		return 0
	}
	return s.clock.Now()
}

// LastConvergence reports the iteration statistics of the latest Run.
func (s *Solver) LastConvergence() Convergence { return s.last }

// Trajectory returns the periods saved since the last Init with a save
// flag, or nil.
func (s *Solver) Trajectory() *Trajectory { return s.traj }

// Open allocates the hydraulic state and sets initial link flows.
func (s *Solver) Open() error {
	if s.phase.IsOpen() {
		return ErrAlreadyOpen
	}
	sys, err := NewSystem(s.net)
	if err != nil {
		return err
	}
	s.sys = sys
	s.nodes = s.net.Nodes()
	s.links = s.net.Links()
	s.clock = timectrl.NewController(timectrl.NewSchedule(s.net.Times))
	for _, fn := range s.listeners {
		s.clock.AddListener(fn)
	}

	nn, nl := len(s.nodes), len(s.links)
	s.flow = make([]float64, nl)
	s.status = make([]model.LinkStatus, nl)
	s.base = make([]model.LinkStatus, nl)
	s.setting = make([]float64, nl)
	s.head = make([]float64, nn)
	s.demand = make([]float64, nn)
	s.volume = make([]float64, nn)
	s.reset(true)
	s.traj = nil
	s.phase = PhaseOpened
	return nil
}

// reset restores time zero: tank levels, link statuses and settings, and
// optionally the starting flows.
func (s *Solver) reset(initFlow bool) {
	s.clock.SetTime(0)
	s.cur = Period{}
	s.last = Convergence{}
	for k, l := range s.links {
		st := l.InitStatus
		if st == model.StatusTempClosed {
			st = model.StatusOpen
		}
		set := l.InitSetting
		if l.Type == model.LinkPump && set == 0 && st == model.StatusOpen {
			set = 1
		}
		s.base[k], s.status[k], s.setting[k] = st, st, set
		if initFlow {
			s.flow[k] = s.sys.InitialFlow(k, st, set)
		}
	}
	for i, n := range s.nodes {
		s.demand[i] = 0
		switch n.Type {
		case model.NodeTank:
			s.volume[i] = n.Tank.VolumeAt(n.Tank.InitLevel)
			s.head[i] = n.Elevation + n.Tank.InitLevel
		default:
			s.head[i] = n.Elevation
		}
	}
}

// Init resets the solver to time zero.
func (s *Solver) Init(flag InitFlag) error {
	if !s.phase.IsOpen() {
		return ErrNotOpen
	}
	if !flag.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidFlag, flag)
	}
	s.reset(flag.ResetsFlow())
	s.save = flag.Saves()
	s.traj = nil
	if s.save {
		s.traj = &Trajectory{}
	}
	s.phase = PhaseInitialized
	return nil
}

func (s *Solver) checkStepping() error {
	switch s.phase {
	case PhaseUnopened, PhaseClosed:
		return ErrNotOpen
	case PhaseOpened:
		return ErrNotInitialized
	}
	return nil
}

// Run solves the network for the current clock time and returns that time.
// A failed solve leaves the committed state untouched.
func (s *Solver) Run(ctx context.Context) (int64, error) {
	if err := s.checkStepping(); err != nil {
		return 0, err
	}
	t := s.clock.Now()
	period := s.clock.Schedule.PatternPeriod(t)

	base := append([]model.LinkStatus(nil), s.base...)
	setting := append([]float64(nil), s.setting...)
	head := append([]float64(nil), s.head...)
	demand := make([]float64, len(s.nodes))
	for i, n := range s.nodes {
		switch n.Type {
		case model.NodeJunction:
			demand[i] = s.net.NodeDemand(i+1, period)
		case model.NodeReservoir:
			head[i] = n.Elevation * s.net.PatternFactor(n.HeadPattern, period)
		}
	}
	fired := s.applyControls(t, base, setting, head)

	status := make([]model.LinkStatus, len(s.links))
	for k := range s.links {
		switch {
		case base[k] == model.StatusClosed:
			status[k] = model.StatusClosed
		case s.status[k] == model.StatusTempClosed:
			status[k] = model.StatusTempClosed
		default:
			status[k] = model.StatusOpen
		}
	}
	full, empty := s.tankLimits()

	sol, conv, err := s.sys.Solve(Input{
		Demand:  demand,
		Head:    head,
		Flow:    s.flow,
		Status:  status,
		Setting: setting,
		Full:    full,
		Empty:   empty,
	})
	s.last = conv
	if err == nil && !conv.Converged {
		err = ErrNotConverged
	}
	if err != nil {
		s.log.Warn(ctx, "hydraulic solve failed",
			logging.Any("time", t),
			logging.Int("iterations", conv.Iterations),
			logging.Any("error", err.Error()),
		)
		return t, &SolveError{Time: t, Iterations: conv.Iterations, RelativeChange: conv.RelativeChange, Err: err}
	}

	s.flow, s.head, s.status = sol.Flow, sol.Head, sol.Status
	s.base, s.setting = base, setting
	for i, n := range s.nodes {
		if n.Type != model.NodeJunction {
			demand[i] = 0
		}
	}
	for k, l := range s.links {
		if s.nodes[l.From-1].Type != model.NodeJunction {
			demand[l.From-1] -= s.flow[k]
		}
		if s.nodes[l.To-1].Type != model.NodeJunction {
			demand[l.To-1] += s.flow[k]
		}
	}
	s.demand = demand

	cur := Period{
		Time:   t,
		Flow:   s.flow,
		Head:   s.head,
		Demand: s.demand,
		Status: s.status,
	}
	s.cur = *cur.Clone()
	if s.save {
		s.traj.record(s.cur.Clone())
	}
	s.phase = PhaseSolved

	s.log.Debug(ctx, "hydraulics solved",
		logging.Any("time", t),
		logging.Int("iterations", conv.Iterations),
		logging.Any("relative_change", conv.RelativeChange),
		logging.Int("controls_fired", fired),
	)
	return t, nil
}

// Next integrates tank levels up to the next hydraulic event and advances
// the clock. It returns the step taken, or 0 once the horizon is reached.
func (s *Solver) Next(ctx context.Context) (int64, error) {
	if err := s.checkStepping(); err != nil {
		return 0, err
	}
	if s.phase != PhaseSolved {
		return 0, ErrOutOfSequence
	}
	s.phase = PhaseAdvanced

	if s.clock.Done() {
		return 0, nil
	}
	sched := s.clock.Schedule
	t := s.clock.Now()

	tstep := s.net.Times.HydStep
	tstep = min(tstep, sched.UntilPattern(t), sched.UntilReport(t))
	tstep = s.tankStep(tstep)
	tstep = s.controlStep(t, tstep)
	tstep = min(tstep, s.clock.Remaining())

	s.updateTanks(tstep)
	s.cur.Step = tstep
	if s.save {
		if p := s.traj.last(); p != nil && p.Time == t {
			p.Step = tstep
		}
	}
	s.clock.Advance(tstep)

	s.log.Debug(ctx, "hydraulics advanced", logging.Any("time", t+tstep), logging.Any("step", tstep))
	return tstep, nil
}

// Close releases the hydraulic state. A saved trajectory stays available.
func (s *Solver) Close() error {
	if !s.phase.IsOpen() {
		return ErrNotOpen
	}
	s.flow, s.head, s.demand, s.volume = nil, nil, nil, nil
	s.status, s.base, s.setting = nil, nil, nil
	s.cur = Period{}
	s.sys = nil
	s.phase = PhaseClosed
	return nil
}

// Current returns the latest solved period.
func (s *Solver) Current() (*Period, error) {
	if s.phase != PhaseSolved && s.phase != PhaseAdvanced {
		return nil, ErrNotInitialized
	}
	return &s.cur, nil
}

// PeriodAt returns the period in effect at time t, preferring the live
// solution and falling back to the saved trajectory.
func (s *Solver) PeriodAt(t int64) (*Period, error) {
	if (s.phase == PhaseSolved || s.phase == PhaseAdvanced) && s.cur.Covers(t) {
		return &s.cur, nil
	}
	if s.traj != nil {
		return s.traj.PeriodAt(t)
	}
	return nil, fmt.Errorf("%w: t=%d", ErrNoPeriod, t)
}

// TankVolume returns the stored volume (ft3) of the tank at node position i
// as of the latest step.
func (s *Solver) TankVolume(i int) float64 {
	if i < 0 || i >= len(s.volume) {
		return 0
	}
	return s.volume[i]
}
