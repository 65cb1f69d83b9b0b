// Package probe implements single-host liveness checks.
//
// Two mechanisms are provided:
//   - ICMP: echo request/reply over one shared ICMP socket. Replies are matched
//     to the waiting probe by sequence number and source address.
//   - TCP: connect to a few common ports. A completed handshake or an
//     immediate refusal (RST) both prove the host is up.
//
// A probe reports reachable only on an affirmative answer before its context
// expires. Anything else means "not reachable"; the returned error is
// informational.
//
// Example usage:
//
//	prober, err := probe.Default(probe.ModeAuto)
//	defer prober.Close()
//	alive, _ := prober.Probe(ctx, netip.MustParseAddr("192.168.1.1"))
//
// Privilege Requirements:
//   - Raw ICMP sockets need root or CAP_NET_RAW
//   - Unprivileged ICMP datagram sockets need net.ipv4.ping_group_range on Linux
//   - The TCP prober needs no privileges
package probe
