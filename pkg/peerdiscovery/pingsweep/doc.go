// Package pingsweep discovers live hosts by probing every address of one or
// more IPv4 ranges with a bounded number of concurrent probes.
//
// The package provides three entry points:
//   - Targets: parses CIDR/partial targets, or detects the local network
//   - DiscoverHosts: scans the merged host addresses of some ranges
//   - Scan: probes an address sequence with the given Options
//
// Scanning is performed by:
//   - Pulling addresses lazily from the sequence
//   - Running at most Options.Concurrency probes at a time; a finished probe
//     frees its slot for the next address immediately
//   - Collecting outcomes on a single goroutine as they complete
//   - Sorting the responsive addresses once the scan ends
//
// Example usage:
//
//	hosts, _ := netrange.Expand(r)
//	result := pingsweep.Scan(ctx, hosts, pingsweep.Options{
//		Concurrency: 100,
//		Timeout:     time.Second,
//		Probe:       prober.Probe,
//	})
//
// Failure handling:
//   - A failing or stuck probe marks that host unreachable and never stops
//     the scan
//   - Cancelling ctx stops dispatching; the hosts found so far are returned
//     with Result.Interrupted set
package pingsweep
