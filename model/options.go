package model

// HeadlossFormula selects the pipe friction relation.
type HeadlossFormula int

const (
	HazenWilliams HeadlossFormula = iota
	DarcyWeisbach
	ChezyManning
)

func (f HeadlossFormula) String() string {
	switch f {
	case HazenWilliams:
		return "Hazen-Williams"
	case DarcyWeisbach:
		return "Darcy-Weisbach"
	case ChezyManning:
		return "Chezy-Manning"
	default:
		return "unknown"
	}
}

// QualityType selects the water-quality constituent.
type QualityType int

const (
	QualityNone QualityType = iota
	QualityChemical
	QualityAge
	QualityTrace
)

func (q QualityType) String() string {
	switch q {
	case QualityNone:
		return "none"
	case QualityChemical:
		return "chemical"
	case QualityAge:
		return "age"
	case QualityTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// QualityOptions configures the quality solver.
type QualityOptions struct {
	Type      QualityType
	ChemName  string
	ChemUnits string
	TraceNode int

	BulkOrder  float64
	GlobalBulk float64 // 1/day
	GlobalWall float64 // ft/day
	Tolerance  float64
}

// Options are the analysis options of a network.
type Options struct {
	FlowUnits        FlowUnits
	Headloss         HeadlossFormula
	MaxTrials        int
	Accuracy         float64
	DemandMultiplier float64
	DefaultPattern   int
	Viscosity        float64 // ft2/s
	Quality          QualityOptions
}

// DefaultOptions mirrors the defaults of a description with an empty
// options section.
func DefaultOptions() Options {
	return Options{
		FlowUnits:        FlowGPM,
		Headloss:         HazenWilliams,
		MaxTrials:        40,
		Accuracy:         0.001,
		DemandMultiplier: 1,
		Viscosity:        1.1e-5,
		Quality: QualityOptions{
			Type:      QualityNone,
			BulkOrder: 1,
			Tolerance: 0.01,
		},
	}
}

// Times holds every time parameter of an analysis, in seconds.
type Times struct {
	Duration     int64
	HydStep      int64
	QualStep     int64
	PatternStep  int64
	PatternStart int64
	ReportStep   int64
	ReportStart  int64
	StartClock   int64
}

// DefaultTimes returns a single-period analysis with hourly steps.
func DefaultTimes() Times {
	return Times{
		HydStep:     3600,
		QualStep:    300,
		PatternStep: 3600,
		ReportStep:  3600,
	}
}
