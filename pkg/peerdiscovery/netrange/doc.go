// Package netrange models IPv4 network ranges and expands them into the
// host addresses a sweep should probe.
//
// A NetworkRange is a base address plus a prefix length. Expand returns a
// lazy, restartable sequence of the usable host addresses in ascending
// order:
//   - prefix <= 30: network+1 .. broadcast-1
//   - /31: both addresses (point-to-point, no broadcast reserved)
//   - /32: the single address
//
// Example usage:
//
//	r, err := netrange.ParseTarget("192.168.1")
//	hosts, err := netrange.Expand(r)
//	for addr := range hosts {
//		fmt.Println(addr)
//	}
//
// Targets can also be detected from the local interfaces with DetectLocal.
package netrange
