package pingsweep

import (
	"context"
	"errors"
	"iter"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Synerdyn/netscan/pkg/peerdiscovery/netrange"
)

func expand(t *testing.T, cidr string) iter.Seq[netrange.Address] {
	t.Helper()
	r, err := netrange.ParseCIDR(cidr)
	if err != nil {
		t.Fatalf("ParseCIDR(%q) error = %v", cidr, err)
	}
	hosts, err := netrange.Expand(r)
	if err != nil {
		t.Fatalf("Expand(%q) error = %v", cidr, err)
	}
	return hosts
}

func lastOctet(addr netip.Addr) int {
	return int(addr.As4()[3])
}

func hostStrings(hosts []netrange.Address) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, h.String())
	}
	return out
}

func assertHosts(t *testing.T, got []netrange.Address, want []string) {
	t.Helper()
	gotStr := hostStrings(got)
	if len(gotStr) != len(want) {
		t.Fatalf("hosts = %v, want %v", gotStr, want)
	}
	for i := range want {
		if gotStr[i] != want[i] {
			t.Fatalf("hosts = %v, want %v", gotStr, want)
		}
	}
}

func TestScanBoundedConcurrency(t *testing.T) {
	for _, limit := range []int{1, 7, 32} {
		var inFlight, highWater atomic.Int64

		probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				seen := highWater.Load()
				if current <= seen || highWater.CompareAndSwap(seen, current) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			return true, nil
		}

		result := Scan(context.Background(), expand(t, "10.0.0.0/25"), Options{
			Concurrency: limit,
			Timeout:     time.Second,
			Probe:       probe,
		})

		if got := highWater.Load(); got > int64(limit) {
			t.Errorf("concurrency %d: high-water mark = %d", limit, got)
		}
		if result.Probed != 126 || len(result.Hosts) != 126 {
			t.Errorf("concurrency %d: probed = %d, hosts = %d, want 126", limit, result.Probed, len(result.Hosts))
		}
		if result.Interrupted {
			t.Errorf("concurrency %d: scan reported interrupted", limit)
		}
	}
}

func TestScanFailureContainment(t *testing.T) {
	probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
		switch octet := lastOctet(addr); {
		case octet%5 == 0:
			panic("probe exploded")
		case octet%3 == 0:
			return false, errors.New("permission denied")
		case octet%7 == 0:
			// reply and error together do not count as reachable
			return true, errors.New("transient i/o error")
		}
		return true, nil
	}

	var failures atomic.Int64
	result := Scan(context.Background(), expand(t, "192.168.1.0/27"), Options{
		Concurrency: 8,
		Probe:       probe,
		OnOutcome: func(o Outcome) {
			if o.Err != nil {
				failures.Add(1)
			}
		},
	})

	var want []string
	for octet := 1; octet <= 30; octet++ {
		if octet%5 == 0 || octet%3 == 0 || octet%7 == 0 {
			continue
		}
		want = append(want, netip.AddrFrom4([4]byte{192, 168, 1, byte(octet)}).String())
	}

	if result.Probed != 30 {
		t.Errorf("probed = %d, want 30", result.Probed)
	}
	// 5,10,...,30 (6) + 3,6,9,12,18,21,24,27 (8) + 7,14,28 (3)
	if got := failures.Load(); got != 17 {
		t.Errorf("failed outcomes = %d, want 17", got)
	}
	assertHosts(t, result.Hosts, want)
}

func TestScanTimeoutEnforcement(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
		if lastOctet(addr) == 1 {
			// ignores its context entirely
			<-release
			return true, nil
		}
		return true, nil
	}

	start := time.Now()
	var timedOut atomic.Bool
	result := Scan(context.Background(), expand(t, "192.168.1.0/30"), Options{
		Concurrency: 2,
		Timeout:     100 * time.Millisecond,
		Probe:       probe,
		OnOutcome: func(o Outcome) {
			if errors.Is(o.Err, context.DeadlineExceeded) {
				timedOut.Store(true)
			}
		},
	})
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Errorf("scan took %s with a 100ms probe timeout", elapsed)
	}
	if !timedOut.Load() {
		t.Error("stuck probe was not reported as timed out")
	}
	if result.Probed != 2 {
		t.Errorf("probed = %d, want 2", result.Probed)
	}
	assertHosts(t, result.Hosts, []string{"192.168.1.2"})
}

func TestScanResultOrdering(t *testing.T) {
	probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
		if lastOctet(addr) == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		return true, nil
	}

	var mu sync.Mutex
	var completion []string
	result := Scan(context.Background(), expand(t, "192.168.1.0/30"), Options{
		Concurrency: 2,
		Probe:       probe,
		OnOutcome: func(o Outcome) {
			mu.Lock()
			completion = append(completion, o.Address.String())
			mu.Unlock()
		},
	})

	if len(completion) != 2 || completion[0] != "192.168.1.2" {
		t.Errorf("completion order = %v, expected .2 to answer first", completion)
	}
	assertHosts(t, result.Hosts, []string{"192.168.1.1", "192.168.1.2"})
}

func TestScanCancellationYieldsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const completedBeforeCancel = 10
	probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
		octet := lastOctet(addr)
		if octet <= completedBeforeCancel {
			return octet%2 == 0, nil
		}
		<-ctx.Done()
		return false, ctx.Err()
	}

	var seen atomic.Int64
	result := Scan(ctx, expand(t, "192.168.1.0/24"), Options{
		Concurrency: 254,
		Timeout:     10 * time.Second,
		Probe:       probe,
		OnOutcome: func(o Outcome) {
			if seen.Add(1) == completedBeforeCancel {
				cancel()
			}
		},
	})

	if !result.Interrupted {
		t.Error("Interrupted = false after cancellation")
	}
	if result.Probed != completedBeforeCancel {
		t.Errorf("probed = %d, want %d", result.Probed, completedBeforeCancel)
	}
	assertHosts(t, result.Hosts, []string{"192.168.1.2", "192.168.1.4", "192.168.1.6", "192.168.1.8", "192.168.1.10"})
}

func TestScanCancellationStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dispatched atomic.Int64
	probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
		dispatched.Add(1)
		time.Sleep(time.Millisecond)
		return true, nil
	}

	var seen atomic.Int64
	result := Scan(ctx, expand(t, "10.0.0.0/16"), Options{
		Concurrency: 5,
		Probe:       probe,
		OnOutcome: func(o Outcome) {
			if seen.Add(1) == 20 {
				cancel()
			}
		},
	})

	if !result.Interrupted {
		t.Error("Interrupted = false after cancellation")
	}
	if result.Probed < 20 || result.Probed > 35 {
		t.Errorf("probed = %d, expected dispatch to stop shortly after 20", result.Probed)
	}
	if got := dispatched.Load(); got > 35 {
		t.Errorf("dispatched %d probes after cancellation", got)
	}
	if len(result.Hosts) != result.Probed {
		t.Errorf("hosts = %d, probed = %d", len(result.Hosts), result.Probed)
	}
	for i := 1; i < len(result.Hosts); i++ {
		if result.Hosts[i] <= result.Hosts[i-1] {
			t.Fatalf("partial result not sorted: %v", hostStrings(result.Hosts))
		}
	}
}

func TestScanAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	result := Scan(ctx, expand(t, "192.168.1.0/24"), Options{
		Probe: func(ctx context.Context, addr netip.Addr) (bool, error) {
			calls.Add(1)
			return true, nil
		},
	})

	if !result.Interrupted || result.Probed != 0 || len(result.Hosts) != 0 {
		t.Errorf("result = %+v, want empty interrupted result", result)
	}
	if calls.Load() != 0 {
		t.Errorf("probe called %d times on a cancelled context", calls.Load())
	}
}

func TestTargets(t *testing.T) {
	ranges, err := Targets(context.Background(), []string{"192.168.1", "10.0.0.7", "172.16.0.0/12"})
	if err != nil {
		t.Fatalf("Targets() error = %v", err)
	}

	want := []string{"192.168.1.0/24", "10.0.0.0/24", "172.16.0.0/12"}
	if len(ranges) != len(want) {
		t.Fatalf("Targets() = %v, want %v", ranges, want)
	}
	for i, r := range ranges {
		if r.String() != want[i] {
			t.Errorf("range %d = %s, want %s", i, r, want[i])
		}
	}

	for _, target := range []string{"192.168.1.0/33", "192.168.1.300/24", "not-a-network"} {
		if _, err := Targets(context.Background(), []string{"10.0.0.0/30", target}); !netrange.IsInvalidRange(err) {
			t.Errorf("Targets(%q) error = %v, want InvalidRangeError", target, err)
		}
	}
}

func TestTargetsDetectsLocalNetwork(t *testing.T) {
	ranges, err := Targets(context.Background(), nil)
	if err != nil {
		t.Fatalf("Targets() error = %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("Targets() = %v, want one detected network", ranges)
	}
	if err := ranges[0].Validate(); err != nil {
		t.Errorf("detected network %s is invalid: %v", ranges[0], err)
	}
}

func TestDiscoverHostsInvalidRange(t *testing.T) {
	var calls atomic.Int64
	probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
		calls.Add(1)
		return true, nil
	}

	ranges := []netrange.NetworkRange{
		{Base: 0x0a000000, Prefix: 30},
		{Base: 0xc0a80100, Prefix: 33},
	}
	if _, err := DiscoverHosts(context.Background(), ranges, Options{Probe: probe}); !netrange.IsInvalidRange(err) {
		t.Errorf("DiscoverHosts() error = %v, want InvalidRangeError", err)
	}
	if calls.Load() != 0 {
		t.Errorf("%d probes dispatched for invalid input", calls.Load())
	}
}

func TestDiscoverHostsOverlappingTargets(t *testing.T) {
	tests := []struct {
		name      string
		targets   []string
		wantCount int
		wantHosts []string
	}{
		{
			name:      "nested and overlapping",
			targets:   []string{"10.0.0.0/30", "10.0.0.2/31", "10.0.0.1/32"},
			wantCount: 3,
			wantHosts: []string{"10.0.0.2", "10.0.0.3"},
		},
		{
			name:      "broadcast of a wider block",
			targets:   []string{"10.0.0.0/24", "10.0.0.255/32"},
			wantCount: 255,
			wantHosts: []string{"10.0.0.2", "10.0.0.3", "10.0.0.255"},
		},
		{
			name:      "network of a wider block",
			targets:   []string{"10.0.0.0/24", "10.0.0.0/32"},
			wantCount: 255,
			wantHosts: []string{"10.0.0.0", "10.0.0.2", "10.0.0.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			probed := make(map[string]int)
			probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
				mu.Lock()
				probed[addr.String()]++
				mu.Unlock()
				octet := lastOctet(addr)
				return octet == 0 || octet == 2 || octet == 3 || octet == 255, nil
			}

			ranges, err := Targets(context.Background(), tt.targets)
			if err != nil {
				t.Fatalf("Targets() error = %v", err)
			}
			result, err := DiscoverHosts(context.Background(), ranges, Options{Probe: probe})
			if err != nil {
				t.Fatalf("DiscoverHosts() error = %v", err)
			}

			if len(probed) != tt.wantCount || result.Probed != tt.wantCount {
				t.Errorf("probed %d distinct addresses (%d outcomes), want %d", len(probed), result.Probed, tt.wantCount)
			}
			for addr, n := range probed {
				if n != 1 {
					t.Errorf("%s probed %d times", addr, n)
				}
			}
			assertHosts(t, result.Hosts, tt.wantHosts)
		})
	}
}

func TestScanCancellationWhileWaitingForSlot(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dispatched atomic.Int64
	started := make(chan struct{})
	probe := func(ctx context.Context, addr netip.Addr) (bool, error) {
		if dispatched.Add(1) == 1 {
			close(started)
		}
		// ignores its context entirely
		<-release
		return true, nil
	}

	go func() {
		<-started
		cancel()
	}()

	start := time.Now()
	result := Scan(ctx, expand(t, "192.168.1.0/24"), Options{
		Concurrency: 1,
		Timeout:     time.Minute,
		Probe:       probe,
	})

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("scan took %s to stop after cancellation", elapsed)
	}
	if !result.Interrupted {
		t.Error("Interrupted = false after cancellation")
	}
	if got := dispatched.Load(); got != 1 {
		t.Errorf("dispatched %d probes, want 1", got)
	}
	if result.Probed != 0 {
		t.Errorf("probed = %d, want 0", result.Probed)
	}
}

func TestOutcomeCountsAfterCancellation(t *testing.T) {
	live, cancelled := context.Background(), canceledContext()
	addr := netrange.Address(0xc0a80101)

	tests := []struct {
		name    string
		ctx     context.Context
		outcome Outcome
		want    bool
	}{
		{name: "reachable while running", ctx: live, outcome: Outcome{Address: addr, Reachable: true}, want: true},
		{name: "unreachable while running", ctx: live, outcome: Outcome{Address: addr}, want: true},
		{name: "timeout while running", ctx: live, outcome: Outcome{Address: addr, Err: context.DeadlineExceeded}, want: true},
		{name: "answer kept after cancel", ctx: cancelled, outcome: Outcome{Address: addr, Reachable: true}, want: true},
		{name: "cut short by cancel", ctx: cancelled, outcome: Outcome{Address: addr, Err: context.Canceled}, want: false},
		{name: "silent after cancel", ctx: cancelled, outcome: Outcome{Address: addr}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counts(tt.ctx, tt.outcome); got != tt.want {
				t.Errorf("counts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProbeOneCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the answer is in before the scan is cancelled
	probe := func(probeCtx context.Context, addr netip.Addr) (bool, error) {
		return true, nil
	}
	outcome, completed := probeOne(ctx, netrange.Address(0xc0a80101), Options{Timeout: time.Second, Probe: probe})
	cancel()

	if !completed || !outcome.Reachable {
		t.Errorf("probeOne() = %+v, completed %v, want reachable", outcome, completed)
	}

	// cut short by a scan that is already cancelled
	blocked := func(probeCtx context.Context, addr netip.Addr) (bool, error) {
		<-probeCtx.Done()
		return false, probeCtx.Err()
	}
	if _, completed := probeOne(ctx, netrange.Address(0xc0a80102), Options{Timeout: time.Second, Probe: blocked}); completed {
		t.Error("probeOne() kept an outcome cut short by cancellation")
	}
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Concurrency: -3}.withDefaults()
	if opts.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", opts.Concurrency, DefaultConcurrency)
	}
	if opts.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %s, want %s", opts.Timeout, DefaultTimeout)
	}
	if opts.Probe == nil {
		t.Error("Probe default not set")
	}
}
