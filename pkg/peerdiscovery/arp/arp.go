package arp

import (
	"net"
	"slices"

	"github.com/Synerdyn/netscan/pkg/peerdiscovery/netrange"
)

// Entry is a resolved neighbor table entry
type Entry struct {
	Address netrange.Address
	MAC     net.HardwareAddr
}

// Table reads the resolved IPv4 entries of the local neighbor table
func Table() ([]Entry, error) {
	return readLocalARPTable()
}

// Resolved returns the unique addresses of entries that fall inside one of
// ranges as a usable host address, sorted ascending
func Resolved(entries []Entry, ranges []netrange.NetworkRange) []netrange.Address {
	var addrs []netrange.Address
	for _, entry := range entries {
		inside := slices.ContainsFunc(ranges, func(r netrange.NetworkRange) bool {
			return entry.Address >= r.First() && entry.Address <= r.Last()
		})
		if inside {
			addrs = append(addrs, entry.Address)
		}
	}
	slices.Sort(addrs)
	return slices.Compact(addrs)
}

func newEntry(ipStr, macStr string) (Entry, bool) {
	addr, err := netrange.ParseAddress(ipStr)
	if err != nil {
		return Entry{}, false
	}
	mac, err := net.ParseMAC(macStr)
	if err != nil {
		return Entry{}, false
	}
	// broadcast and unresolved placeholders
	if isZero(mac) || isBroadcast(mac) {
		return Entry{}, false
	}
	return Entry{Address: addr, MAC: mac}, true
}

func isZero(mac net.HardwareAddr) bool {
	return !slices.ContainsFunc(mac, func(b byte) bool { return b != 0 })
}

func isBroadcast(mac net.HardwareAddr) bool {
	return !slices.ContainsFunc(mac, func(b byte) bool { return b != 0xff })
}
