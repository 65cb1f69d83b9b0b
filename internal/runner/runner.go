package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/Synerdyn/netscan/pkg/peerdiscovery/arp"
	"github.com/Synerdyn/netscan/pkg/peerdiscovery/netrange"
	"github.com/Synerdyn/netscan/pkg/peerdiscovery/pingsweep"
	"github.com/Synerdyn/netscan/pkg/peerdiscovery/probe"
	"github.com/projectdiscovery/gologger"
	errorutil "github.com/projectdiscovery/utils/errors"
	"github.com/schollz/progressbar/v3"
)

// Runner contains the internal logic of the program
type Runner struct {
	options *Options
	prober  probe.Prober
}

// NewRunner opens the prober selected by the options
func NewRunner(options *Options) (*Runner, error) {
	mode, err := probe.ParseMode(options.ProbeMode)
	if err != nil {
		return nil, err
	}
	ports, err := options.tcpPorts()
	if err != nil {
		return nil, err
	}

	var prober probe.Prober
	if mode == probe.ModeTCP {
		prober = probe.NewTCP(ports...)
	} else {
		prober, err = probe.Default(mode)
		if err != nil {
			return nil, errorutil.NewWithErr(err).Msgf("could not open %s prober", mode)
		}
		// auto mode may have fallen back to tcp
		if tcp, ok := prober.(*probe.TCP); ok && len(ports) > 0 {
			tcp.Ports = ports
		}
	}

	return &Runner{options: options, prober: prober}, nil
}

// Run scans the configured networks and prints the online hosts
func (r *Runner) Run(ctx context.Context) error {
	ranges, err := pingsweep.Targets(ctx, r.options.Targets)
	if err != nil {
		return err
	}
	total := netrange.TotalSize(ranges)

	for _, network := range netrange.Merge(ranges) {
		gologger.Info().Msgf("Scanning network: %s", network)
	}
	gologger.Verbose().Msgf("Probing %d hosts with %s (concurrency %d, timeout %s)", total, r.prober, r.options.Concurrency, r.options.Timeout)

	opts := pingsweep.Options{
		Concurrency: r.options.Concurrency,
		Timeout:     r.options.Timeout,
		Probe:       r.prober.Probe,
	}

	var bar *progressbar.ProgressBar
	if r.options.Progress && !r.options.Silent {
		bar = progressbar.NewOptions64(int64(total),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("probing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(20),
			progressbar.OptionClearOnFinish(),
		)
		opts.OnOutcome = func(pingsweep.Outcome) {
			_ = bar.Add(1)
		}
	}

	result, err := pingsweep.DiscoverHosts(ctx, ranges, opts)
	if err != nil {
		return err
	}

	if bar != nil {
		_ = bar.Finish()
	}

	if result.Interrupted {
		gologger.Warning().Msgf("Scan interrupted by user. Showing results so far...")
	} else if r.options.ARP {
		result.Hosts = r.addNeighbors(result.Hosts, ranges)
	}
	gologger.Info().Msgf("Online hosts:")
	for _, host := range result.Hosts {
		gologger.Silent().Msgf("%s\n", host)
	}
	gologger.Verbose().Msgf("Found %d online hosts out of %d probed in %s", len(result.Hosts), result.Probed, result.Duration)

	if r.options.Output != "" {
		if err := writeHosts(r.options.Output, result.Hosts); err != nil {
			return errorutil.NewWithErr(err).Msgf("could not write output file %s", r.options.Output)
		}
	}
	return nil
}

// addNeighbors merges the in-range arp table entries into hosts
func (r *Runner) addNeighbors(hosts []netrange.Address, ranges []netrange.NetworkRange) []netrange.Address {
	entries, err := arp.Table()
	if err != nil {
		gologger.Warning().Msgf("could not read arp table: %s", err)
		return hosts
	}

	neighbors := arp.Resolved(entries, ranges)
	gologger.Verbose().Msgf("arp table holds %d in-range hosts", len(neighbors))

	merged := append(slices.Clone(hosts), neighbors...)
	slices.Sort(merged)
	return slices.Compact(merged)
}

func writeHosts(path string, hosts []netrange.Address) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	w := bufio.NewWriter(file)
	for _, host := range hosts {
		if _, err := fmt.Fprintln(w, host); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Close releases the prober
func (r *Runner) Close() {
	if r.prober == nil {
		return
	}
	if err := r.prober.Close(); err != nil {
		gologger.Debug().Msgf("could not close prober: %s", err)
	}
}
