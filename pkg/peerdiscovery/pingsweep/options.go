package pingsweep

import (
	"time"

	"github.com/Synerdyn/netscan/pkg/peerdiscovery/probe"
)

const (
	// DefaultConcurrency is the number of probes allowed in flight
	DefaultConcurrency = 100
	// DefaultTimeout bounds a single probe
	DefaultTimeout = time.Second
)

// Options configures a scan
type Options struct {
	// Concurrency is the maximum number of simultaneous probes
	Concurrency int
	// Timeout after which a probe is declared unreachable
	Timeout time.Duration
	// Probe checks a single host. Defaults to TCP connect probing, which
	// needs no privileges. It must return once its context is done: a probe
	// that ignores it is abandoned at the timeout but keeps running outside
	// the Concurrency bound.
	Probe probe.Func
	// OnOutcome, if set, is called from the collector goroutine for every
	// completed probe, in completion order
	OnOutcome func(Outcome)
}

// withDefaults fills zero values
func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Probe == nil {
		o.Probe = probe.NewTCP().Probe
	}
	return o
}
