// Package dogstatsd sends run stats to a Datadog agent.
package dogstatsd

import (
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/pkg/errors"
)

// Statter is a bovespa.Statter and bovespa.Flusher which forwards every call
// to a DogStatsD client. Send errors are dropped; stats never fail a run.
type Statter struct {
	client statsd.ClientInterface
}

// NewStatter connects to the agent at addr (host:port or unix:///path).
// namespace is prepended to every metric name, tags are added to every
// metric.
func NewStatter(addr, namespace string, tags ...string) (*Statter, error) {
	if addr == "" {
		return nil, errors.New("no dogstatsd address given")
	}
	opts := []statsd.Option{statsd.WithoutTelemetry()}
	if namespace != "" {
		opts = append(opts, statsd.WithNamespace(namespace))
	}
	if len(tags) > 0 {
		opts = append(opts, statsd.WithTags(tags))
	}
	c, err := statsd.New(addr, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating dogstatsd client")
	}
	return &Statter{client: c}, nil
}

// Count implements bovespa.Statter.
func (s *Statter) Count(name string, value int64, rate float64, tags ...string) {
	_ = s.client.Count(name, value, tags, rate)
}

// Gauge implements bovespa.Statter.
func (s *Statter) Gauge(name string, value float64, rate float64, tags ...string) {
	_ = s.client.Gauge(name, value, tags, rate)
}

// Histogram implements bovespa.Statter.
func (s *Statter) Histogram(name string, value float64, rate float64, tags ...string) {
	_ = s.client.Histogram(name, value, tags, rate)
}

// Set implements bovespa.Statter.
func (s *Statter) Set(name string, value string, rate float64, tags ...string) {
	_ = s.client.Set(name, value, tags, rate)
}

// Timing implements bovespa.Statter.
func (s *Statter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	_ = s.client.Timing(name, value, tags, rate)
}

// Flush sends anything buffered in the client.
func (s *Statter) Flush() error {
	return errors.Wrap(s.client.Flush(), "flushing dogstatsd client")
}

// Close flushes and closes the client.
func (s *Statter) Close() error {
	return errors.Wrap(s.client.Close(), "closing dogstatsd client")
}
