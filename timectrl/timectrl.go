package timectrl

import "github.com/milad-ghiami/EPANET/model"

// SecondsPerDay is the length of a clock day.
const SecondsPerDay = 86400

// Schedule is the fixed time grid of an analysis: the horizon plus the
// pattern and report boundaries that force a new hydraulic solution.
type Schedule struct {
	Duration     int64
	PatternStep  int64
	PatternStart int64
	ReportStep   int64
	ReportStart  int64
	StartClock   int64
}

// NewSchedule extracts the schedule from a network's time options.
func NewSchedule(t model.Times) Schedule {
	return Schedule{
		Duration:     t.Duration,
		PatternStep:  t.PatternStep,
		PatternStart: t.PatternStart,
		ReportStep:   t.ReportStep,
		ReportStart:  t.ReportStart,
		StartClock:   t.StartClock,
	}
}

// PatternPeriod returns the 0-based pattern period in effect at time t.
func (s Schedule) PatternPeriod(t int64) int {
	if s.PatternStep <= 0 {
		return 0
	}
	return int((t + s.PatternStart) / s.PatternStep)
}

// UntilPattern returns the time from t to the next pattern boundary.
func (s Schedule) UntilPattern(t int64) int64 {
	if s.PatternStep <= 0 {
		return s.Duration - t
	}
	return s.PatternStep - (t+s.PatternStart)%s.PatternStep
}

// IsReportTime reports whether results are reported at time t.
func (s Schedule) IsReportTime(t int64) bool {
	if t < s.ReportStart || s.ReportStep <= 0 {
		return false
	}
	return (t-s.ReportStart)%s.ReportStep == 0
}

// UntilReport returns the time from t to the next report time after t.
func (s Schedule) UntilReport(t int64) int64 {
	if t < s.ReportStart {
		return s.ReportStart - t
	}
	if s.ReportStep <= 0 {
		return s.Duration - t
	}
	return s.ReportStep - (t-s.ReportStart)%s.ReportStep
}

// ClockTime returns the time of day (seconds after midnight) at time t.
func (s Schedule) ClockTime(t int64) int64 {
	return (t + s.StartClock) % SecondsPerDay
}

// UntilClockTime returns the time from t to the next occurrence of a time
// of day, never zero.
func (s Schedule) UntilClockTime(t, tod int64) int64 {
	d := (tod - s.ClockTime(t)) % SecondsPerDay
	if d <= 0 {
		d += SecondsPerDay
	}
	return d
}

// Controller drives a solver's simulation time and notifies registered
// listeners each time it advances. Solvers use Done and Remaining to clip
// their steps to the horizon.
type Controller struct {
	Schedule Schedule

	now       int64
	listeners []func(int64)
}

// NewController constructs a controller at time zero.
func NewController(s Schedule) *Controller {
	return &Controller{Schedule: s}
}

// Now returns the current simulation time.
func (c *Controller) Now() int64 {
	return c.now
}

// SetTime moves the clock without notifying listeners.
func (c *Controller) SetTime(t int64) {
	c.now = t
}

// AddListener registers a callback invoked after every advance.
func (c *Controller) AddListener(fn func(int64)) {
	if fn != nil {
		c.listeners = append(c.listeners, fn)
	}
}

// Advance moves time forward by d seconds, clipped to the horizon, and
// returns the new time.
func (c *Controller) Advance(d int64) int64 {
	if d < 0 {
		d = 0
	}
	if c.now+d > c.Schedule.Duration {
		d = c.Schedule.Duration - c.now
	}
	c.now += d
	for _, fn := range c.listeners {
		fn(c.now)
	}
	return c.now
}

// Remaining returns the time left before the horizon.
func (c *Controller) Remaining() int64 {
	if c.now >= c.Schedule.Duration {
		return 0
	}
	return c.Schedule.Duration - c.now
}

// Done reports whether the horizon has been reached.
func (c *Controller) Done() bool {
	return c.now >= c.Schedule.Duration
}
