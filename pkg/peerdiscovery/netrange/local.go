package netrange

import (
	"context"
	"net"
	"slices"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// DefaultPrefix is assumed when the local mask cannot be determined
const DefaultPrefix = 24

// fallbackProbeAddress is only used to select the outbound interface, no packet is sent
const fallbackProbeAddress = "8.8.8.8:80"

// LocalNetworks returns the IPv4 networks of all up, non-loopback interfaces
// that carry a private address, using the mask configured on the interface.
func LocalNetworks(ctx context.Context) ([]NetworkRange, error) {
	interfaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var networks []NetworkRange
	seen := make(map[string]struct{})

	for _, iface := range interfaces {
		// Skip loopback and down interfaces
		if slices.Contains(iface.Flags, "loopback") || !slices.Contains(iface.Flags, "up") {
			continue
		}

		for _, ifaceAddr := range iface.Addrs {
			r, err := ParseCIDR(ifaceAddr.Addr)
			if err != nil {
				// IPv6 or malformed
				continue
			}

			addr := r.Base.Addr()
			if addr.IsLoopback() || !addr.IsPrivate() {
				continue
			}

			key := r.String()
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}

			networks = append(networks, r)
		}
	}

	return networks, nil
}

// DetectLocal picks the network to scan when no target is given. It prefers
// the first private interface network; otherwise it learns the outbound
// address from the routing table and assumes a /24 around it.
func DetectLocal(ctx context.Context) (NetworkRange, error) {
	networks, err := LocalNetworks(ctx)
	if err == nil && len(networks) > 0 {
		return networks[0], nil
	}

	return New(outboundAddress(ctx), DefaultPrefix)
}

// outboundAddress returns the local address the kernel would use to reach
// the internet, or 127.0.0.1 when there is no route
func outboundAddress(ctx context.Context) Address {
	loopback := Address(0x7f000001)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp4", fallbackProbeAddress)
	if err != nil {
		return loopback
	}
	defer func() {
		_ = conn.Close()
	}()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return loopback
	}
	addr, ok := AddressFrom(udpAddr.AddrPort().Addr().Unmap())
	if !ok {
		return loopback
	}
	return addr
}
