package toolkit

import (
	"errors"

	"github.com/milad-ghiami/EPANET/internal/hydraulics"
	"github.com/milad-ghiami/EPANET/internal/observability"
)

// InitFlag selects what InitH and InitQ do besides resetting time.
type InitFlag = hydraulics.InitFlag

const (
	NoSave          = hydraulics.NoSave
	Save            = hydraulics.Save
	InitFlow        = hydraulics.InitFlow
	SaveAndInitFlow = hydraulics.SaveAndInitFlow
)

// OpenH opens the hydraulic solver.
func (p *Project) OpenH() error {
	if err := p.bound("openH"); err != nil {
		return err
	}
	return fail("openH", p.hyd.Open())
}

// InitH resets the hydraulic solver to time zero. With a saving flag every
// solved period is kept so quality analysis can replay it after CloseH.
// Either way, hydraulics and quality results saved by earlier runs are
// dropped: they no longer describe the run being started.
func (p *Project) InitH(flag InitFlag) error {
	if err := p.bound("initH"); err != nil {
		return err
	}
	if err := p.hyd.Init(flag); err != nil {
		return fail("initH", err)
	}
	p.traj = p.hyd.Trajectory()
	p.results = nil
	return nil
}

// RunH solves the network at the current time and returns that time.
func (p *Project) RunH() (int64, error) {
	if err := p.bound("runH"); err != nil {
		return 0, err
	}
	t, err := p.hyd.Run(p.ctx)
	var se *hydraulics.SolveError
	if err == nil || errors.As(err, &se) {
		p.metrics.ObservePeriod(observability.KindHydraulic, p.hyd.LastConvergence().Iterations, err == nil)
	}
	return t, fail("runH", err)
}

// NextH advances to the next hydraulic event and returns the step taken,
// or 0 at the end of the simulation.
func (p *Project) NextH() (int64, error) {
	if err := p.bound("nextH"); err != nil {
		return 0, err
	}
	tstep, err := p.hyd.Next(p.ctx)
	if err != nil {
		return 0, fail("nextH", err)
	}
	return tstep, nil
}

// CloseH closes the hydraulic solver. Periods saved by InitH stay
// available to quality analysis.
func (p *Project) CloseH() error {
	if err := p.bound("closeH"); err != nil {
		return err
	}
	return fail("closeH", p.hyd.Close())
}
