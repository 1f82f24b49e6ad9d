package toolkit

import (
	"errors"
	"fmt"

	"github.com/milad-ghiami/EPANET/internal/observability"
	"github.com/milad-ghiami/EPANET/internal/output"
	"github.com/milad-ghiami/EPANET/internal/quality"
)

// OpenQ opens the quality solver. It reads flows from the open hydraulic
// solver when there is one, otherwise from the periods saved by the last
// hydraulic run.
func (p *Project) OpenQ() error {
	if err := p.bound("openQ"); err != nil {
		return err
	}
	if p.qual != nil && p.qual.Phase().IsOpen() {
		return fail("openQ", quality.ErrAlreadyOpen)
	}
	var src quality.HydraulicSource
	switch {
	case p.hyd.Phase().IsOpen():
		src = p.hyd
	case p.traj != nil && len(p.traj.Periods) > 0:
		src = p.traj
	default:
		return fail("openQ", quality.ErrNoHydraulics)
	}
	qual := quality.New(p.net, src,
		quality.WithLogger(p.log),
		quality.WithSink(p.capture),
		quality.WithClockListener(func(int64) { p.metrics.ObserveStep(observability.KindQuality) }),
	)
	if err := qual.Open(); err != nil {
		return fail("openQ", err)
	}
	p.qual = qual
	return nil
}

// InitQ resets the quality solver to time zero. With Save, the state at
// every report time is kept for Report and streamed to the results file.
func (p *Project) InitQ(flag InitFlag) error {
	if err := p.bound("initQ"); err != nil {
		return err
	}
	if p.qual == nil {
		return fail("initQ", quality.ErrNotOpen)
	}
	if flag != NoSave && flag != Save {
		return fail("initQ", fmt.Errorf("%w: quality init flag %d", ErrInvalidParameter, flag))
	}
	if err := p.qual.Init(flag.Saves()); err != nil {
		return fail("initQ", err)
	}
	if flag.Saves() {
		p.results = nil
	}
	return nil
}

// RunQ loads the flows in effect at the current quality time and returns
// that time.
func (p *Project) RunQ() (int64, error) {
	if err := p.bound("runQ"); err != nil {
		return 0, err
	}
	if p.qual == nil {
		return 0, fail("runQ", quality.ErrNotOpen)
	}
	t, err := p.qual.Run(p.ctx)
	if err == nil {
		p.metrics.ObservePeriod(observability.KindQuality, 0, true)
	}
	return t, fail("runQ", err)
}

// NextQ transports constituents to the end of the current hydraulic period
// and returns the step taken, or 0 at the end of the simulation. In lockstep
// with the hydraulic solver NextH must come first.
func (p *Project) NextQ() (int64, error) {
	if err := p.bound("nextQ"); err != nil {
		return 0, err
	}
	if p.qual == nil {
		return 0, fail("nextQ", quality.ErrNotOpen)
	}
	tstep, err := p.qual.Next(p.ctx)
	if err != nil {
		if errors.Is(err, quality.ErrNumerical) {
			p.metrics.ObservePeriod(observability.KindQuality, 0, false)
		}
		return 0, fail("nextQ", err)
	}
	return tstep, nil
}

// CloseQ closes the quality solver. Saved results stay available.
func (p *Project) CloseQ() error {
	if err := p.bound("closeQ"); err != nil {
		return err
	}
	if p.qual == nil {
		return fail("closeQ", quality.ErrNotOpen)
	}
	return fail("closeQ", p.qual.Close())
}

// capture keeps a report-time snapshot and streams it to the results file.
func (p *Project) capture(snap quality.Snapshot) error {
	period := output.Convert(p.net, snap)
	if n := len(p.results); n > 0 && p.results[n-1].Time == period.Time {
		p.results[n-1] = period
	} else {
		p.results = append(p.results, period)
	}
	return p.writePeriod(p.ctx, period)
}
