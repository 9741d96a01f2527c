// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package termstat provides a stats implementation which logs run statistics
// to the given writer. It is meant for running refines at the terminal in lieu
// of an actual collector like datadog or a Prometheus pushgateway.
package termstat

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

// Collector collects stats and prints them to the terminal. Counts are
// printed while a run is going; Flush prints the full summary.
type Collector struct {
	lock    sync.Mutex
	indexes map[string]int
	names   []string
	stats   []int64
	timings map[string]time.Duration
	gauges  map[string]float64
	changed bool
	out     io.Writer
	stop    chan struct{}
}

// NewCollector initializes and returns a new Collector which prints counts to
// out every interval. A zero interval disables the periodic output.
func NewCollector(out io.Writer, interval time.Duration) *Collector {
	ts := &Collector{
		indexes: make(map[string]int),
		timings: make(map[string]time.Duration),
		gauges:  make(map[string]float64),
		out:     out,
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		go func() {
			tick := time.NewTicker(interval)
			defer tick.Stop()
			for {
				select {
				case <-tick.C:
					ts.write()
				case <-ts.stop:
					return
				}
			}
		}()
	}
	return ts
}

// Count adds value to the named stat at the specified rate.
func (t *Collector) Count(name string, value int64, rate float64, tags ...string) {
	t.lock.Lock()
	t.changed = true
	defer t.lock.Unlock()

	idx, ok := t.indexes[name]
	if !ok {
		idx = len(t.stats)
		t.stats = append(t.stats, 0)
		t.names = append(t.names, name)
		t.indexes[name] = idx
	}
	if rate < 1 {
		if rand.Float64() > rate {
			return
		}
	}
	t.stats[idx] += value
}

func (t *Collector) write() {
	sb := strings.Builder{}
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.changed {
		return
	}
	for i := 0; i < len(t.stats); i++ {
		_, _ = sb.WriteString(fmt.Sprintf("%s: %d ", t.names[i], t.stats[i]))
	}
	t.changed = false
	fmt.Fprint(t.out, "\r"+sb.String())
}

// Gauge records the latest value of the named gauge.
func (t *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	t.lock.Lock()
	t.gauges[name] = value
	t.lock.Unlock()
}

// Histogram does nothing.
func (t *Collector) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set does nothing.
func (t *Collector) Set(name string, value string, rate float64, tags ...string) {}

// Timing accumulates the time spent in the named step.
func (t *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {
	t.lock.Lock()
	t.timings[name] += value
	t.lock.Unlock()
}

// Flush prints every count, gauge and timing, one per line, in name order.
func (t *Collector) Flush() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	lines := make([]string, 0, len(t.names)+len(t.timings)+len(t.gauges))
	for i, name := range t.names {
		lines = append(lines, fmt.Sprintf("%s: %d", name, t.stats[i]))
	}
	for name, v := range t.gauges {
		lines = append(lines, fmt.Sprintf("%s: %g", name, v))
	}
	for name, d := range t.timings {
		lines = append(lines, fmt.Sprintf("%s: %v", name, d))
	}
	sort.Strings(lines)
	t.changed = false
	_, err := fmt.Fprintf(t.out, "\n%s\n", strings.Join(lines, "\n"))
	return err
}

// Close stops the periodic output.
func (t *Collector) Close() error {
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	return nil
}
