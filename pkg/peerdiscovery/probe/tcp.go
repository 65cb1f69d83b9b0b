package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// DefaultTCPPorts are dialed by the TCP prober. They are chosen to hit
// something on routers, servers and desktops alike.
var DefaultTCPPorts = []int{80, 443, 22, 445, 139}

// TCP infers liveness from TCP connection attempts. Any host that completes
// the handshake or actively refuses it is up; silence is not.
type TCP struct {
	Ports  []int
	dialer net.Dialer
}

// NewTCP returns a TCP prober for ports, or DefaultTCPPorts when none are given
func NewTCP(ports ...int) *TCP {
	if len(ports) == 0 {
		ports = DefaultTCPPorts
	}
	return &TCP{Ports: ports}
}

func (p *TCP) String() string {
	ports := make([]string, 0, len(p.Ports))
	for _, port := range p.Ports {
		ports = append(ports, strconv.Itoa(port))
	}
	return "tcp (" + strings.Join(ports, ",") + ")"
}

// Probe dials all ports concurrently and reports the host alive on the first
// positive answer. The remaining dials are cancelled.
func (p *TCP) Probe(ctx context.Context, addr netip.Addr) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type dialResult struct {
		alive bool
		err   error
	}
	results := make(chan dialResult, len(p.Ports))

	for _, port := range p.Ports {
		go func(port int) {
			alive, err := p.dial(ctx, netip.AddrPortFrom(addr, uint16(port)))
			results <- dialResult{alive: alive, err: err}
		}(port)
	}

	var errs []error
	for range p.Ports {
		res := <-results
		if res.alive {
			return true, nil
		}
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}
	return false, errors.Join(errs...)
}

// Close is a no-op, the TCP prober holds no shared resources
func (p *TCP) Close() error {
	return nil
}

func (p *TCP) dial(ctx context.Context, target netip.AddrPort) (bool, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp4", target.String())
	if err == nil {
		_ = conn.Close()
		return true, nil
	}
	if isConnectionRefused(err) {
		return true, nil
	}
	// the deadline expiring is the expected outcome for silent hosts
	if ctx.Err() != nil {
		return false, nil
	}
	return false, err
}
