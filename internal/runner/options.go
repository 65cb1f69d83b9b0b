package runner

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Synerdyn/netscan/pkg/peerdiscovery/pingsweep"
	"github.com/Synerdyn/netscan/pkg/peerdiscovery/probe"
	"github.com/Synerdyn/netscan/pkg/version"
	"github.com/logrusorgru/aurora/v4"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	envutil "github.com/projectdiscovery/utils/env"
	errorutil "github.com/projectdiscovery/utils/errors"
	fileutil "github.com/projectdiscovery/utils/file"
)

var au *aurora.Aurora

var (
	ConcurrencyEnv = envutil.GetEnvOrDefault("NETSCAN_CONCURRENCY", "")
	TimeoutEnv     = envutil.GetEnvOrDefault("NETSCAN_TIMEOUT", "")
	ProbeModeEnv   = envutil.GetEnvOrDefault("NETSCAN_PROBE", string(probe.ModeAuto))
)

// Options contains the configuration options for a scan
type Options struct {
	Targets    goflags.StringSlice
	ConfigFile string

	Concurrency int
	Timeout     time.Duration
	ProbeMode   string
	TCPPorts    goflags.StringSlice
	ARP         bool

	Output   string
	Progress bool

	Verbose bool
	Debug   bool
	Silent  bool
	NoColor bool
	Version bool
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`netscan discovers online hosts on an IPv4 network.

Examples:
  netscan                 scan the current local network
  netscan 192.168.1.0     scan 192.168.1.0/24
  netscan 192.168.1       scan 192.168.1.0/24
  netscan 192.168.1.0/24  scan 192.168.1.0/24`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringSliceVarP(&options.Targets, "target", "t", nil, "networks to scan (cidr, a.b.c or a.b.c.d), local network when empty", goflags.CommaSeparatedStringSliceOptions),
	)

	flagSet.CreateGroup("config", "Config",
		flagSet.StringVar(&options.ConfigFile, "config", "", "flag configuration file (yaml)"),
		flagSet.StringVarP(&options.ProbeMode, "probe", "p", ProbeModeEnv, "probe mechanism (auto, icmp, tcp)"),
		flagSet.StringSliceVarP(&options.TCPPorts, "tcp-ports", "tp", nil, "ports dialed by the tcp probe", goflags.CommaSeparatedStringSliceOptions),
		flagSet.BoolVar(&options.ARP, "arp", false, "also report in-range hosts resolved in the local arp table"),
	)

	flagSet.CreateGroup("optimization", "Optimization",
		flagSet.IntVarP(&options.Concurrency, "concurrency", "c", defaultConcurrency(), "maximum number of probes in flight"),
		flagSet.DurationVarP(&options.Timeout, "timeout", "to", defaultTimeout(), "time to wait for a reply from each host"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.Output, "output", "o", "", "file to write online hosts to"),
		flagSet.BoolVar(&options.Progress, "progress", false, "show a progress bar on stderr"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&options.Debug, "debug", false, "show per-host probe errors"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only online hosts"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	if options.ConfigFile != "" {
		if !fileutil.FileExists(options.ConfigFile) {
			gologger.Fatal().Msgf("config file %s does not exist\n", options.ConfigFile)
		}
		if err := flagSet.MergeConfigFile(options.ConfigFile); err != nil {
			gologger.Fatal().Msgf("could not read config file %s: %s\n", options.ConfigFile, err)
		}
	}

	// positional arguments are targets too, as in "netscan 192.168.1"
	options.Targets = append(options.Targets, flagSet.CommandLine.Args()...)

	// configure aurora for logging
	au = aurora.New(aurora.WithColors(!options.NoColor))

	options.configureOutput()

	showBanner()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", version.GetVersion())
		os.Exit(0)
	}

	if err := options.validate(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	// If the user desires verbose output, show verbose output
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.Debug {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelDebug)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

// validate normalises tuning values and rejects unusable ones
func (options *Options) validate() error {
	if options.Concurrency < 1 {
		options.Concurrency = pingsweep.DefaultConcurrency
	}
	if options.Timeout <= 0 {
		options.Timeout = pingsweep.DefaultTimeout
	}
	if _, err := probe.ParseMode(options.ProbeMode); err != nil {
		return err
	}
	if _, err := options.tcpPorts(); err != nil {
		return err
	}
	return nil
}

// tcpPorts parses the -tcp-ports values
func (options *Options) tcpPorts() ([]int, error) {
	ports := make([]int, 0, len(options.TCPPorts))
	for _, value := range options.TCPPorts {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || port < 1 || port > 65535 {
			return nil, errorutil.New("invalid tcp port %q", value)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

func defaultConcurrency() int {
	if val, err := strconv.Atoi(ConcurrencyEnv); err == nil && val > 0 {
		return val
	}
	return pingsweep.DefaultConcurrency
}

func defaultTimeout() time.Duration {
	if val, err := time.ParseDuration(TimeoutEnv); err == nil && val > 0 {
		return val
	}
	return pingsweep.DefaultTimeout
}
