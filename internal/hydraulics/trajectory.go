package hydraulics

import (
	"fmt"
	"sort"

	"github.com/milad-ghiami/EPANET/model"
)

// Period is one hydraulic solution, valid from Time for Step seconds. The
// final period of a run has Step 0.
type Period struct {
	Time int64
	Step int64

	Flow   []float64 // per link, cfs
	Head   []float64 // per node, ft
	Demand []float64 // per node, cfs; net inflow for reservoirs and tanks
	Status []model.LinkStatus
}

// Covers reports whether the period is in effect at time t.
func (p *Period) Covers(t int64) bool {
	return t == p.Time || (t > p.Time && t < p.Time+p.Step)
}

// Clone returns a deep copy of the period.
func (p *Period) Clone() *Period {
	return &Period{
		Time:   p.Time,
		Step:   p.Step,
		Flow:   append([]float64(nil), p.Flow...),
		Head:   append([]float64(nil), p.Head...),
		Demand: append([]float64(nil), p.Demand...),
		Status: append([]model.LinkStatus(nil), p.Status...),
	}
}

// Trajectory is the ordered list of periods saved during a hydraulic run.
// Quality analysis replays it when hydraulics are no longer open.
type Trajectory struct {
	Periods []*Period
}

func (tr *Trajectory) record(p *Period) {
	if n := len(tr.Periods); n > 0 && tr.Periods[n-1].Time == p.Time {
		tr.Periods[n-1] = p
		return
	}
	tr.Periods = append(tr.Periods, p)
}

func (tr *Trajectory) last() *Period {
	if len(tr.Periods) == 0 {
		return nil
	}
	return tr.Periods[len(tr.Periods)-1]
}

// PeriodAt returns the period in effect at time t.
func (tr *Trajectory) PeriodAt(t int64) (*Period, error) {
	if tr == nil || len(tr.Periods) == 0 {
		return nil, ErrTrajectoryEmpty
	}
	i := sort.Search(len(tr.Periods), func(i int) bool { return tr.Periods[i].Time > t }) - 1
	if i < 0 || !tr.Periods[i].Covers(t) {
		return nil, fmt.Errorf("%w: t=%d", ErrNoPeriod, t)
	}
	return tr.Periods[i], nil
}

// End returns the time reached by the trajectory.
func (tr *Trajectory) End() int64 {
	p := tr.last()
	if p == nil {
		return 0
	}
	return p.Time + p.Step
}
