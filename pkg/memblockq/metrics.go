// ABOUTME: Prometheus metrics for block queues
// ABOUTME: One label set per queue name, registered on construction
package memblockq

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "blockq"
	metricsSubsystem = "queue"
)

type queueMetrics struct {
	registerer prometheus.Registerer

	pushed    prometheus.Counter
	dropped   prometheus.Counter
	rewound   prometheus.Counter
	overruns  prometheus.Counter
	underruns prometheus.Counter

	length   prometheus.Gauge
	missing  prometheus.Gauge
	blocks   prometheus.Gauge
	readable prometheus.Gauge
}

func newQueueMetrics(reg prometheus.Registerer, name string) (*queueMetrics, error) {
	labels := prometheus.Labels{"queue": name}
	counter := func(n, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        n,
			ConstLabels: labels,
			Help:        help,
		})
	}
	gauge := func(n, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        n,
			ConstLabels: labels,
			Help:        help,
		})
	}

	m := &queueMetrics{
		registerer: reg,
		pushed:     counter("pushed_bytes_total", "Bytes pushed into the queue"),
		dropped:    counter("dropped_bytes_total", "Bytes consumed from the queue"),
		rewound:    counter("rewound_bytes_total", "Bytes the read index was moved back"),
		overruns:   counter("overruns_total", "Pushes that exceeded maxlength"),
		underruns:  counter("underruns_total", "Transitions back into prebuffering"),
		length:     gauge("length_bytes", "Bytes between read and write index"),
		missing:    gauge("missing_bytes", "Bytes needed to reach the target length"),
		blocks:     gauge("blocks", "Entries held by the queue"),
		readable:   gauge("readable", "1 when the queue can be read, 0 while prebuffering"),
	}

	registered := make([]prometheus.Collector, 0, 9)
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			for _, r := range registered {
				reg.Unregister(r)
			}
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("queue %q already exports metrics: %w", name, err)
			}
			return nil, err
		}
		registered = append(registered, c)
	}
	return m, nil
}

func (m *queueMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.pushed, m.dropped, m.rewound, m.overruns, m.underruns,
		m.length, m.missing, m.blocks, m.readable,
	}
}

func (m *queueMetrics) unregister() {
	for _, c := range m.collectors() {
		m.registerer.Unregister(c)
	}
}

// observe refreshes the gauges from the queue's current state
func (m *queueMetrics) observe(q *Queue) {
	m.length.Set(float64(q.Length()))
	m.missing.Set(float64(q.Missing()))
	m.blocks.Set(float64(q.NBlocks()))
	if q.IsReadable() {
		m.readable.Set(1)
	} else {
		m.readable.Set(0)
	}
}
