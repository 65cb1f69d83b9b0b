package probe

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/projectdiscovery/gologger"
	osutils "github.com/projectdiscovery/utils/os"
)

// Func checks whether addr is alive. The context carries the per-probe
// deadline; implementations must return once it expires.
type Func func(ctx context.Context, addr netip.Addr) (bool, error)

// Prober is a liveness mechanism holding resources that need releasing
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr) (bool, error)
	Close() error
	String() string
}

// Mode selects the probe mechanism
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeICMP Mode = "icmp"
	ModeTCP  Mode = "tcp"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeAuto, ModeICMP, ModeTCP:
		return mode, nil
	case "":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("unknown probe mode %q (must be auto, icmp or tcp)", s)
}

// Default opens the prober for mode. In auto mode it tries a raw ICMP socket,
// then an unprivileged ICMP socket, then falls back to TCP connect probing.
func Default(mode Mode) (Prober, error) {
	switch mode {
	case ModeTCP:
		return NewTCP(), nil
	case ModeICMP:
		return openICMP()
	case ModeAuto, "":
		prober, err := openICMP()
		if err == nil {
			return prober, nil
		}
		gologger.Verbose().Msgf("icmp unavailable, falling back to tcp probing: %s", err)
		return NewTCP(), nil
	}
	return nil, fmt.Errorf("unknown probe mode %q", mode)
}

func openICMP() (Prober, error) {
	prober, err := NewICMP(true)
	if err == nil {
		return prober, nil
	}
	// windows has no unprivileged icmp datagram sockets
	if osutils.IsWindows() {
		return nil, err
	}

	gologger.Debug().Msgf("raw icmp socket unavailable: %s", err)
	prober, unprivErr := NewICMP(false)
	if unprivErr != nil {
		return nil, fmt.Errorf("could not open icmp socket: %w", err)
	}
	return prober, nil
}
