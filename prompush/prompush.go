// Package prompush pushes run stats to a Prometheus Pushgateway when a run
// finishes. A batch job is gone before a scraper would see it, so nothing is
// served; Flush pushes the whole registry instead.
package prompush

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Statter is a bovespa.Statter and bovespa.Flusher. Collectors are created
// the first time a name is seen. Tags are not mapped to labels.
type Statter struct {
	gatewayURL string
	job        string
	namespace  string
	reg        *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
	summaries  map[string]prometheus.Summary
}

// NewStatter returns a Statter pushing to gatewayURL under the given job
// name. Metric names are prefixed with namespace.
func NewStatter(gatewayURL, job, namespace string) (*Statter, error) {
	if gatewayURL == "" {
		return nil, errors.New("no pushgateway URL given")
	}
	if job == "" {
		job = "bovespa"
	}
	return &Statter{
		gatewayURL: gatewayURL,
		job:        job,
		namespace:  namespace,
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
		summaries:  make(map[string]prometheus.Summary),
	}, nil
}

var nameReplacer = strings.NewReplacer(".", "_", "-", "_", " ", "_")

func (s *Statter) metricName(name, suffix string) string {
	n := nameReplacer.Replace(name) + suffix
	if s.namespace != "" {
		n = s.namespace + "_" + n
	}
	return n
}

// Count implements bovespa.Statter. Negative values are dropped since
// Prometheus counters only go up.
func (s *Statter) Count(name string, value int64, rate float64, tags ...string) {
	if value < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{Name: s.metricName(name, "_total"), Help: "Count of " + name + "."})
		s.reg.MustRegister(c)
		s.counters[name] = c
	}
	c.Add(float64(value))
}

// Gauge implements bovespa.Statter.
func (s *Statter) Gauge(name string, value float64, rate float64, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{Name: s.metricName(name, ""), Help: "Last value of " + name + "."})
		s.reg.MustRegister(g)
		s.gauges[name] = g
	}
	g.Set(value)
}

// Histogram implements bovespa.Statter.
func (s *Statter) Histogram(name string, value float64, rate float64, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histograms[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{Name: s.metricName(name, ""), Help: "Distribution of " + name + "."})
		s.reg.MustRegister(h)
		s.histograms[name] = h
	}
	h.Observe(value)
}

// Set records the value as a gauge set to 1 named after both name and value.
func (s *Statter) Set(name string, value string, rate float64, tags ...string) {
	s.Gauge(name+"."+value, 1, rate, tags...)
}

// Timing implements bovespa.Statter as a summary in seconds.
func (s *Statter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, ok := s.summaries[name]
	if !ok {
		sm = prometheus.NewSummary(prometheus.SummaryOpts{
			Name:       s.metricName(name, "_duration_seconds"),
			Help:       "Duration of " + name + " in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		})
		s.reg.MustRegister(sm)
		s.summaries[name] = sm
	}
	sm.Observe(value.Seconds())
}

// Flush pushes everything collected so far, replacing what the gateway holds
// for this job.
func (s *Statter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := push.New(s.gatewayURL, s.job).Gatherer(s.reg).Push()
	return errors.Wrapf(err, "pushing to %s", s.gatewayURL)
}
