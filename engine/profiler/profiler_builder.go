package profiler

import "time"

// ProfilerBuilderOption is a functional option applied to a Profiler during construction.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often Tick logs.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the interval
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithStats appends the attributes returned by fn to every report, such as pipeline or material
// counts.
//
// Parameters:
//   - fn: returns slog key/value pairs or attributes
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the stats callback
func WithStats(fn func() []any) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.stats = fn
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}
