package pingsweep

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/Synerdyn/netscan/pkg/peerdiscovery/netrange"
	"github.com/projectdiscovery/gologger"
	syncutil "github.com/projectdiscovery/utils/sync"
)

// Outcome is the result of probing one address
type Outcome struct {
	Address   netrange.Address
	Reachable bool
	RTT       time.Duration
	// Err is the probe failure, if any. It never affects other hosts.
	Err error
}

// Result holds the responsive hosts of a scan
type Result struct {
	// Hosts are sorted by address value, ascending
	Hosts []netrange.Address
	// Interrupted is set when the scan was cancelled before probing every address
	Interrupted bool
	// Probed is the number of probes that completed
	Probed   int
	Duration time.Duration
}

// Targets resolves the networks to scan. Each target can be CIDR notation
// ("192.168.1.0/24"), three octets ("192.168.1") or a single address
// ("192.168.1.5"); the last two expand to their /24. Without targets the
// local network is detected. The only error for given targets is an
// invalid one.
func Targets(ctx context.Context, targets []string) ([]netrange.NetworkRange, error) {
	if len(targets) == 0 {
		local, err := netrange.DetectLocal(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to detect local network: %w", err)
		}
		gologger.Verbose().Msgf("Detected local network: %s", local)
		return []netrange.NetworkRange{local}, nil
	}

	ranges := make([]netrange.NetworkRange, 0, len(targets))
	for _, target := range targets {
		r, err := netrange.ParseTarget(target)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// DiscoverHosts scans every host address of ranges, each address once.
// Invalid ranges fail before any probe is dispatched.
func DiscoverHosts(ctx context.Context, ranges []netrange.NetworkRange, opts Options) (Result, error) {
	hosts, err := netrange.ExpandAll(ranges)
	if err != nil {
		return Result{}, err
	}
	return Scan(ctx, hosts, opts), nil
}

// Scan probes every address yielded by addrs with at most opts.Concurrency
// probes in flight and returns the sorted reachable hosts. Cancelling ctx
// stops dispatch and returns what was found so far with Interrupted set.
func Scan(ctx context.Context, addrs iter.Seq[netrange.Address], opts Options) Result {
	opts = opts.withDefaults()
	start := time.Now()

	// withDefaults guarantees a positive size, which is all New validates
	awg, _ := syncutil.New(syncutil.WithSize(opts.Concurrency))

	outcomes := make(chan Outcome, opts.Concurrency)
	collected := make(chan Result, 1)

	// single collector, the only writer of the result set
	go func() {
		var result Result
		for outcome := range outcomes {
			result.Probed++
			if outcome.Reachable {
				result.Hosts = append(result.Hosts, outcome.Address)
			} else if outcome.Err != nil && !errors.Is(outcome.Err, context.DeadlineExceeded) {
				gologger.Debug().Msgf("probe %s failed: %s", outcome.Address, outcome.Err)
			}
			if opts.OnOutcome != nil {
				opts.OnOutcome(outcome)
			}
		}
		collected <- result
	}()

	interrupted := false
	for addr := range addrs {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		// fails when cancelled while waiting for a free slot
		if err := awg.AddWithContext(ctx); err != nil {
			interrupted = true
			break
		}

		go func(addr netrange.Address) {
			defer awg.Done()

			outcome, completed := probeOne(ctx, addr, opts)
			if completed {
				outcomes <- outcome
			}
		}(addr)
	}

	awg.Wait()
	close(outcomes)
	result := <-collected

	slices.Sort(result.Hosts)
	result.Interrupted = interrupted || ctx.Err() != nil
	result.Duration = time.Since(start)
	return result
}

type probeReply struct {
	alive bool
	err   error
}

// probeOne runs the probe for addr under the per-probe timeout. The probe is
// raced against the deadline, so one that ignores its context is abandoned
// as unreachable once the timeout elapses. completed is false for probes cut
// short by the scan being cancelled; such outcomes are dropped.
func probeOne(ctx context.Context, addr netrange.Address, opts Options) (Outcome, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	replies := make(chan probeReply, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- probeReply{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		alive, err := opts.Probe(probeCtx, addr.Addr())
		replies <- probeReply{alive: alive, err: err}
	}()

	outcome := Outcome{Address: addr}
	select {
	case reply := <-replies:
		outcome.apply(reply)
	case <-probeCtx.Done():
		select {
		case reply := <-replies:
			// answered right at the deadline
			outcome.apply(reply)
		default:
			outcome.Err = probeCtx.Err()
		}
	}
	outcome.RTT = time.Since(start)

	return outcome, counts(ctx, outcome)
}

func (o *Outcome) apply(reply probeReply) {
	o.Reachable = reply.alive && reply.err == nil
	o.Err = reply.err
}

// counts reports whether an outcome belongs in the result. After the scan is
// cancelled only affirmative answers are kept.
func counts(ctx context.Context, outcome Outcome) bool {
	return ctx.Err() == nil || outcome.Reachable
}
