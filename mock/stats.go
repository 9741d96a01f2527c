package mock

import (
	"time"
)

// RecordingStatter is used for testing. Not threadsafe.
type RecordingStatter struct {
	Counts  map[string]int64
	Timings map[string]int
	Flushes int
}

// Count implements Count.
func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	if r.Counts == nil {
		r.Counts = make(map[string]int64)
	}
	r.Counts[name] += value
}

// Gauge implements Gauge.
func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

// Histogram implements Histogram.
func (r *RecordingStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set implements Set.
func (r *RecordingStatter) Set(name string, value string, rate float64, tags ...string) {}

// Timing records how many times each timing was reported.
func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	if r.Timings == nil {
		r.Timings = make(map[string]int)
	}
	r.Timings[name]++
}

// Flush implements bovespa.Flusher.
func (r *RecordingStatter) Flush() error {
	r.Flushes++
	return nil
}
