package util

import "time"

// Stopwatch measures elapsed time from a monotonic start point.
type Stopwatch struct {
	start time.Time
}

func StartStopwatch() Stopwatch {
	return Stopwatch{start: time.Now()}
}

func (s Stopwatch) Elapsed() time.Duration {
	return time.Since(s.start)
}

func (s Stopwatch) Seconds() float64 {
	return s.Elapsed().Seconds()
}
