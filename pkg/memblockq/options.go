// ABOUTME: Functional options for queue construction
// ABOUTME: Metrics, debug logging and the block pool used for linearized reads
package memblockq

import (
	"github.com/Resonate-Protocol/blockq/pkg/memblock"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Queue
type Option func(*queueOptions)

type queueOptions struct {
	registerer prometheus.Registerer
	pool       *memblock.Pool
	debug      bool
	onOverrun  func(dropped int)
}

// WithMetrics exports queue counters and gauges to reg.
// A nil registerer is ignored.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *queueOptions) {
		if reg != nil {
			o.registerer = reg
		}
	}
}

// WithPool sets the pool PeekFixedSize and PushAlign allocate from
func WithPool(p *memblock.Pool) Option {
	return func(o *queueOptions) {
		if p != nil {
			o.pool = p
		}
	}
}

// WithDebug logs every state transition and overrun
func WithDebug(debug bool) Option {
	return func(o *queueOptions) {
		o.debug = debug
	}
}

// WithOverrunCallback is called with the number of unread bytes discarded
// whenever the queue grows past maxlength
func WithOverrunCallback(fn func(dropped int)) Option {
	return func(o *queueOptions) {
		o.onOverrun = fn
	}
}

func applyOptions(options ...Option) *queueOptions {
	opts := &queueOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	if opts.pool == nil {
		opts.pool = memblock.NewPool(memblock.DefaultSlotSize)
	}
	return opts
}
