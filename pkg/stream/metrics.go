// ABOUTME: Prometheus metrics for stream servers
// ABOUTME: Counts frames, bytes, credit and skipped audio across all clients
package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	clients   prometheus.Gauge
	frames    prometheus.Counter
	bytes     prometheus.Counter
	requested prometheus.Counter
	skipped   prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) (*serverMetrics, error) {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace: "blockq",
			Subsystem: "server",
			Name:      name,
			Help:      help,
		}
	}

	m := &serverMetrics{
		clients:   prometheus.NewGauge(prometheus.GaugeOpts(opts("clients", "Connected players"))),
		frames:    prometheus.NewCounter(prometheus.CounterOpts(opts("frames_sent_total", "Chunk frames sent"))),
		bytes:     prometheus.NewCounter(prometheus.CounterOpts(opts("sent_bytes_total", "Encoded frame bytes sent, headers included"))),
		requested: prometheus.NewCounter(prometheus.CounterOpts(opts("requested_bytes_total", "PCM bytes requested by players"))),
		skipped:   prometheus.NewCounter(prometheus.CounterOpts(opts("skipped_bytes_total", "PCM bytes not sent for lack of credit or send buffer"))),
	}

	for _, c := range []prometheus.Collector{m.clients, m.frames, m.bytes, m.requested, m.skipped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
