package hydraulics

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/model"
)

func mustNode(t *testing.T, net *core.Network, n *model.Node) int {
	t.Helper()
	idx, err := net.AddNode(n)
	if err != nil {
		t.Fatalf("AddNode(%s): %v", n.ID, err)
	}
	return idx
}

func mustPipe(t *testing.T, net *core.Network, id string, from, to int, typ model.LinkType) int {
	t.Helper()
	idx, err := net.AddLink(&model.Link{
		ID: id, Type: typ, From: from, To: to,
		Length: 1000, Diameter: 1, Roughness: 100,
		InitStatus: model.StatusOpen,
	})
	if err != nil {
		t.Fatalf("AddLink(%s): %v", id, err)
	}
	return idx
}

func hwResistance() float64 {
	return 4.727 * 1000 / math.Pow(100, 1.852)
}

func newNet() *core.Network {
	net := core.NewNetwork()
	net.Options.Accuracy = 1e-6
	return net
}

func solveOnce(t *testing.T, net *core.Network) *Solver {
	t.Helper()
	s := New(net)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Init(NoSave); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return s
}

func TestSinglePipeHeadloss(t *testing.T) {
	net := newNet()
	r := mustNode(t, net, &model.Node{ID: "R", Type: model.NodeReservoir, Elevation: 100})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction, Demands: []model.Demand{{Base: 1}}})
	mustPipe(t, net, "P", r, j, model.LinkPipe)

	s := solveOnce(t, net)
	p, _ := s.Current()

	if math.Abs(p.Flow[0]-1) > 1e-9 {
		t.Fatalf("flow = %v, want 1", p.Flow[0])
	}
	want := 100 - hwResistance()
	if math.Abs(p.Head[1]-want) > 1e-6 {
		t.Fatalf("junction head = %v, want %v", p.Head[1], want)
	}
	if math.Abs(p.Demand[0]+1) > 1e-9 {
		t.Fatalf("reservoir net inflow = %v, want -1", p.Demand[0])
	}
}

func TestSeriesPipesBetweenReservoirs(t *testing.T) {
	net := newNet()
	a := mustNode(t, net, &model.Node{ID: "A", Type: model.NodeReservoir, Elevation: 100})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction})
	b := mustNode(t, net, &model.Node{ID: "B", Type: model.NodeReservoir, Elevation: 50})
	mustPipe(t, net, "P1", a, j, model.LinkPipe)
	mustPipe(t, net, "P2", j, b, model.LinkPipe)

	s := solveOnce(t, net)
	p, _ := s.Current()

	want := math.Pow(25/hwResistance(), 1/1.852)
	for k, q := range p.Flow {
		if math.Abs(q-want)/want > 1e-4 {
			t.Fatalf("flow[%d] = %v, want %v", k, q, want)
		}
	}
	if math.Abs(p.Head[1]-75) > 1e-3 {
		t.Fatalf("junction head = %v, want 75", p.Head[1])
	}
	if c := s.LastConvergence(); !c.Converged || c.Iterations < 2 {
		t.Fatalf("unexpected convergence %+v", c)
	}
}

func TestDarcyWeisbachHeadloss(t *testing.T) {
	net := newNet()
	net.Options.Headloss = model.DarcyWeisbach
	r := mustNode(t, net, &model.Node{ID: "R", Type: model.NodeReservoir, Elevation: 100})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction, Demands: []model.Demand{{Base: 2}}})
	net.AddLink(&model.Link{ID: "P", Type: model.LinkPipe, From: r, To: j, Length: 500, Diameter: 0.5, Roughness: 0.0005, InitStatus: model.StatusOpen})

	s := solveOnce(t, net)
	p, _ := s.Current()

	lc := &linkCoeff{diameter: 0.5, rough: 0.0005}
	f := friction(lc, 2, 1.1e-5)
	want := 100 - f*0.0252*500/math.Pow(0.5, 5)*4
	if math.Abs(p.Head[1]-want) > 1e-6 {
		t.Fatalf("junction head = %v, want %v", p.Head[1], want)
	}
}

func TestPumpOnePointCurve(t *testing.T) {
	net := newNet()
	r := mustNode(t, net, &model.Node{ID: "R", Type: model.NodeReservoir})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction, Demands: []model.Demand{{Base: 1}}})
	curve, _ := net.AddCurve(&model.Curve{ID: "C", X: []float64{1.5}, Y: []float64{100}})
	if _, err := net.AddLink(&model.Link{
		ID: "PU", Type: model.LinkPump, From: r, To: j,
		InitStatus: model.StatusOpen, InitSetting: 1,
		Pump: &model.Pump{Curve: curve, Speed: 1},
	}); err != nil {
		t.Fatalf("AddLink: %v", err)
	}

	s := solveOnce(t, net)
	p, _ := s.Current()

	h0, rr := 400.0/3, 100.0/3/2.25
	if math.Abs(p.Head[1]-(h0-rr)) > 1e-6 {
		t.Fatalf("junction head = %v, want %v", p.Head[1], h0-rr)
	}
}

func TestCheckValveBlocksReverseFlow(t *testing.T) {
	net := newNet()
	a := mustNode(t, net, &model.Node{ID: "A", Type: model.NodeReservoir, Elevation: 50})
	b := mustNode(t, net, &model.Node{ID: "B", Type: model.NodeReservoir, Elevation: 100})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction, Demands: []model.Demand{{Base: 1}}})
	cv := mustPipe(t, net, "CV", a, j, model.LinkCVPipe)
	mustPipe(t, net, "P", b, j, model.LinkPipe)

	s := solveOnce(t, net)
	p, _ := s.Current()

	if p.Status[cv-1] != model.StatusTempClosed {
		t.Fatalf("check valve status = %v, want temp-closed", p.Status[cv-1])
	}
	if math.Abs(p.Flow[cv-1]) > 1e-5 {
		t.Fatalf("check valve flow = %v, want ~0", p.Flow[cv-1])
	}
	if math.Abs(p.Flow[1]-1) > 1e-5 {
		t.Fatalf("supply flow = %v, want 1", p.Flow[1])
	}
}

func TestFitPumpCurveForms(t *testing.T) {
	h0, r, n, design, err := fitPumpCurve(&model.Curve{ID: "3pt", X: []float64{0, 2, 4}, Y: []float64{100, 90, 60}})
	if err != nil {
		t.Fatalf("3-point fit: %v", err)
	}
	if h0 != 100 || design != 2 {
		t.Fatalf("3-point h0=%v design=%v", h0, design)
	}
	if got := h0 - r*math.Pow(4, n); math.Abs(got-60) > 1e-9 {
		t.Fatalf("3-point fit misses last point: %v", got)
	}

	if _, _, _, _, err := fitPumpCurve(&model.Curve{ID: "bad", X: []float64{0, 2, 4}, Y: []float64{100, 110, 60}}); !errors.Is(err, ErrPumpCurve) {
		t.Fatalf("rising curve err = %v, want ErrPumpCurve", err)
	}

	h0, r, n, _, err = fitPumpCurve(&model.Curve{ID: "multi", X: []float64{0, 1, 2, 3}, Y: []float64{100, 99, 96, 91}})
	if err != nil {
		t.Fatalf("multi-point fit: %v", err)
	}
	if math.Abs(n-2) > 1e-9 || math.Abs(r-1) > 1e-9 || h0 != 100 {
		t.Fatalf("multi-point fit h0=%v r=%v n=%v, want 100/1/2", h0, r, n)
	}
}

func TestPhaseTransitions(t *testing.T) {
	net := newNet()
	r := mustNode(t, net, &model.Node{ID: "R", Type: model.NodeReservoir, Elevation: 100})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction, Demands: []model.Demand{{Base: 1}}})
	mustPipe(t, net, "P", r, j, model.LinkPipe)
	ctx := context.Background()

	s := New(net)
	if _, err := s.Run(ctx); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Run before Open err = %v", err)
	}
	if err := s.Init(Save); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Init before Open err = %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Open(); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open err = %v", err)
	}
	if _, err := s.Run(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Run before Init err = %v", err)
	}
	if err := s.Init(InitFlag(2)); !errors.Is(err, ErrInvalidFlag) {
		t.Fatalf("Init(2) err = %v", err)
	}
	if err := s.Init(SaveAndInitFlow); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("Next before Run err = %v", err)
	}
	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("Next twice err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("second Close err = %v", err)
	}
	if s.Trajectory() == nil || len(s.Trajectory().Periods) != 1 {
		t.Fatalf("trajectory should survive Close")
	}
	if err := s.Open(); err != nil {
		t.Fatalf("reopen after Close: %v", err)
	}
}

func TestNonConvergenceLeavesStateUntouched(t *testing.T) {
	net := newNet()
	net.Options.MaxTrials = 1
	a := mustNode(t, net, &model.Node{ID: "A", Type: model.NodeReservoir, Elevation: 100})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction})
	b := mustNode(t, net, &model.Node{ID: "B", Type: model.NodeReservoir, Elevation: 50})
	mustPipe(t, net, "P1", a, j, model.LinkPipe)
	mustPipe(t, net, "P2", j, b, model.LinkPipe)

	s := New(net)
	s.Open()
	s.Init(NoSave)
	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("Run err = %v, want ErrNotConverged", err)
	}
	var se *SolveError
	if !errors.As(err, &se) || se.Iterations != 1 {
		t.Fatalf("expected SolveError with 1 iteration, got %v", err)
	}
	if s.Phase() != PhaseInitialized {
		t.Fatalf("phase after failure = %v, want initialized", s.Phase())
	}
	if _, err := s.Current(); err == nil {
		t.Fatalf("failed run must not publish a period")
	}

	net.Options.MaxTrials = 40
	s.Close()
	if err := s.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s.Init(NoSave)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run after recovery: %v", err)
	}
}

func TestTankFillLimitsStepAndClosesInflow(t *testing.T) {
	net := newNet()
	net.Times.Duration = 10 * 3600
	r := mustNode(t, net, &model.Node{ID: "R", Type: model.NodeReservoir, Elevation: 100})
	tk := mustNode(t, net, &model.Node{ID: "T", Type: model.NodeTank, Tank: &model.Tank{
		InitLevel: 10, MinLevel: 0, MaxLevel: 20, Diameter: 10,
	}})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction, Demands: []model.Demand{{Base: 0.1}}})
	fill := mustPipe(t, net, "P1", r, tk, model.LinkPipe)
	mustPipe(t, net, "P2", r, j, model.LinkPipe)
	ctx := context.Background()

	s := New(net)
	s.Open()
	s.Init(Save)
	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	p, _ := s.Current()
	q := p.Flow[fill-1]
	if q <= 0 {
		t.Fatalf("tank should be filling, flow = %v", q)
	}
	wantStep := int64(math.Ceil((math.Pi * 25 * 10) / q))

	tstep, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tstep != wantStep {
		t.Fatalf("tstep = %d, want time to fill %d", tstep, wantStep)
	}
	if h := s.head[tk-1]; math.Abs(h-20) > 1e-9 {
		t.Fatalf("tank head after fill = %v, want 20", h)
	}

	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("Run at full tank: %v", err)
	}
	p, _ = s.Current()
	if p.Status[fill-1] != model.StatusTempClosed {
		t.Fatalf("inflow link status = %v, want temp-closed", p.Status[fill-1])
	}
	if math.Abs(p.Flow[fill-1]) > 1e-4 {
		t.Fatalf("inflow to full tank = %v", p.Flow[fill-1])
	}
}

func TestTimerControlShortensStep(t *testing.T) {
	net := newNet()
	net.Times.Duration = 7200
	r := mustNode(t, net, &model.Node{ID: "R", Type: model.NodeReservoir, Elevation: 100})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction, Demands: []model.Demand{{Base: 1}}})
	mustPipe(t, net, "P1", r, j, model.LinkPipe)
	p2 := mustPipe(t, net, "P2", r, j, model.LinkPipe)
	if _, err := net.AddControl(model.Control{Type: model.ControlTimer, Link: p2, Status: model.StatusClosed, Time: 5400}); err != nil {
		t.Fatalf("AddControl: %v", err)
	}
	ctx := context.Background()

	s := New(net)
	s.Open()
	s.Init(Save)
	var steps []int64
	for {
		if _, err := s.Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}
		tstep, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tstep == 0 {
			break
		}
		steps = append(steps, tstep)
	}
	want := []int64{3600, 1800, 1800}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("steps = %v, want %v", steps, want)
		}
	}

	tr := s.Trajectory()
	before, err := tr.PeriodAt(5399)
	if err != nil {
		t.Fatalf("PeriodAt(5399): %v", err)
	}
	after, err := tr.PeriodAt(5400)
	if err != nil {
		t.Fatalf("PeriodAt(5400): %v", err)
	}
	if before.Status[p2-1] != model.StatusOpen || after.Status[p2-1] != model.StatusClosed {
		t.Fatalf("control did not close P2 at 5400")
	}
	if math.Abs(after.Flow[0]-1) > 1e-5 {
		t.Fatalf("P1 flow after control = %v, want 1", after.Flow[0])
	}
	if tr.End() != 7200 {
		t.Fatalf("trajectory end = %d, want 7200", tr.End())
	}
}

func TestClockListenerSeesEveryStep(t *testing.T) {
	net := newNet()
	net.Times.Duration = 10 * 3600
	r := mustNode(t, net, &model.Node{ID: "R", Type: model.NodeReservoir, Elevation: 100})
	tk := mustNode(t, net, &model.Node{ID: "T", Type: model.NodeTank, Tank: &model.Tank{
		InitLevel: 10, MinLevel: 0, MaxLevel: 20, Diameter: 10,
	}})
	j := mustNode(t, net, &model.Node{ID: "J", Type: model.NodeJunction, Demands: []model.Demand{{Base: 0.1}}})
	mustPipe(t, net, "P1", r, tk, model.LinkPipe)
	mustPipe(t, net, "P2", r, j, model.LinkPipe)
	ctx := context.Background()

	var seen []int64
	s := New(net, WithClockListener(func(now int64) { seen = append(seen, now) }))
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Init(NoSave); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if v := s.TankVolume(tk - 1); math.Abs(v-math.Pi*25*10) > 1e-9 {
		t.Fatalf("initial tank volume = %v", v)
	}

	steps := 0
	for {
		if _, err := s.Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}
		tstep, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tstep == 0 {
			break
		}
		steps++
		if seen[len(seen)-1] != s.Now() {
			t.Fatalf("listener saw %d, clock at %d", seen[len(seen)-1], s.Now())
		}
		if steps == 1 {
			if v := s.TankVolume(tk - 1); math.Abs(v-math.Pi*25*20) > 1e-6 {
				t.Fatalf("tank volume after filling = %v", v)
			}
		}
	}
	if len(seen) != steps || seen[len(seen)-1] != net.Times.Duration {
		t.Fatalf("listener calls %v for %d steps", seen, steps)
	}
	if s.TankVolume(-1) != 0 {
		t.Fatalf("out of range tank volume should be 0")
	}
}
