package toolkit

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"

	"github.com/milad-ghiami/EPANET/internal/hydraulics"
	"github.com/milad-ghiami/EPANET/internal/logging"
	"github.com/milad-ghiami/EPANET/internal/observability"
	"github.com/milad-ghiami/EPANET/internal/output"
	"github.com/milad-ghiami/EPANET/internal/quality"
)

// traced runs fn inside a span named name. Logs written by fn carry the
// span's context.
func (p *Project) traced(name string, fn func() error) (err error) {
	var attrs []attribute.KeyValue
	if p.net != nil {
		attrs = append(attrs,
			observability.AttrNodes.Int(len(p.net.Nodes())),
			observability.AttrLinks.Int(len(p.net.Links())),
		)
	}
	ctx, span := observability.StartSpan(p.ctx, name, p.id, attrs...)
	prev := p.ctx
	p.ctx = ctx
	defer func() {
		p.ctx = prev
		if p.hyd != nil {
			span.SetAttributes(observability.AttrSimTime.Int64(p.hyd.Now()))
		}
		observability.EndSpan(span, err)
	}()
	return fn()
}

// SolveH runs a complete hydraulic analysis and keeps every period for
// SolveQ and Report.
func (p *Project) SolveH() error {
	if err := p.bound("solveH"); err != nil {
		return err
	}
	start := time.Now()
	err := p.traced("toolkit.SolveH", p.solveH)
	p.metrics.ObserveSolve(observability.KindHydraulic, time.Since(start), err)
	return err
}

func (p *Project) solveH() (err error) {
	if err := p.OpenH(); err != nil {
		return err
	}
	defer func() {
		if cerr := p.CloseH(); err == nil {
			err = cerr
		}
	}()
	if err := p.InitH(Save); err != nil {
		return err
	}
	steps := 0
	for {
		if _, err := p.RunH(); err != nil {
			return err
		}
		tstep, err := p.NextH()
		if err != nil {
			return err
		}
		if tstep == 0 {
			break
		}
		steps++
	}
	p.log.Info(p.ctx, "hydraulic analysis complete",
		logging.Int64("time", p.hyd.Now()),
		logging.Int("steps", steps),
	)
	return nil
}

// SolveQ runs a complete quality analysis over the saved hydraulics,
// keeping and streaming the state at every report time.
func (p *Project) SolveQ() error {
	if err := p.bound("solveQ"); err != nil {
		return err
	}
	start := time.Now()
	err := p.traced("toolkit.SolveQ", p.solveQ)
	p.metrics.ObserveSolve(observability.KindQuality, time.Since(start), err)
	return err
}

func (p *Project) solveQ() (err error) {
	if err := p.OpenQ(); err != nil {
		return err
	}
	defer func() {
		if cerr := p.CloseQ(); err == nil {
			err = cerr
		}
	}()
	if err := p.InitQ(Save); err != nil {
		return err
	}
	for {
		if _, err := p.RunQ(); err != nil {
			return err
		}
		tstep, err := p.NextQ()
		if err != nil {
			return err
		}
		if tstep == 0 {
			break
		}
	}
	p.log.Info(p.ctx, "quality analysis complete",
		logging.Int64("time", p.qual.Now()),
		logging.Int("periods", len(p.results)),
	)
	return nil
}

// Results returns the report periods saved by the last quality analysis,
// or, failing that, built from the saved hydraulic periods.
func (p *Project) Results() []output.Period {
	if p == nil || p.deleted || p.net == nil {
		return nil
	}
	if len(p.results) > 0 {
		return p.results
	}
	return p.hydraulicResults()
}

func (p *Project) hydraulicResults() []output.Period {
	if p.traj == nil || len(p.traj.Periods) == 0 {
		return nil
	}
	times := p.net.Times
	var out []output.Period
	for t := times.ReportStart; t <= times.Duration; t += times.ReportStep {
		hp, err := p.traj.PeriodAt(t)
		if err != nil {
			break
		}
		out = append(out, output.Convert(p.net, quality.Snapshot{Time: t, Hydraulics: hp}))
		if times.ReportStep <= 0 {
			break
		}
	}
	return out
}

// Report writes the text report of the saved results to the report path
// given to Open.
func (p *Project) Report() error {
	if err := p.bound("report"); err != nil {
		return err
	}
	return p.traced("toolkit.Report", func() error {
		periods := p.Results()
		if len(periods) == 0 {
			return &Error{Code: 106, Op: "report", Err: ErrNoResults}
		}
		var w io.Writer = io.Discard
		if p.rptPath != "" {
			f, err := os.Create(p.rptPath)
			if err != nil {
				return fail("report", fmt.Errorf("%w: %v", ErrCannotOpenReport, err))
			}
			defer f.Close()
			w = f
		}
		if err := output.WriteReport(w, p.net, periods); err != nil {
			return fail("report", fmt.Errorf("%w: %v", ErrCannotOpenReport, err))
		}
		p.log.Info(p.ctx, "report written",
			logging.String("path", p.rptPath),
			logging.Int("periods", len(periods)),
		)
		return nil
	})
}

// Trajectory returns the hydraulic periods saved by the last saving run.
func (p *Project) Trajectory() *hydraulics.Trajectory {
	if p == nil || p.deleted {
		return nil
	}
	return p.traj
}

// RunSimulation analyses the description at inpPath from start to finish:
// hydraulics, quality, then the report. progress, when set, receives a
// message before each stage.
func RunSimulation(inpPath, rptPath, outPath string, progress func(string), opts ...Option) (err error) {
	if progress == nil {
		progress = func(string) {}
	}
	p, err := NewProject(opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, p.Delete())
	}()

	return p.traced("toolkit.RunSimulation", func() error {
		progress("Retrieving network data...")
		if err := p.Open(inpPath, rptPath, outPath); err != nil {
			return err
		}
		progress("Computing hydraulics...")
		if err := p.SolveH(); err != nil {
			return err
		}
		progress("Computing water quality...")
		if err := p.SolveQ(); err != nil {
			return err
		}
		progress("Writing output report...")
		return p.Report()
	})
}
