package netrange

import (
	"errors"
	"fmt"
	"iter"
	"net/netip"
	"strconv"
	"strings"
)

// MaxPrefix is the longest valid IPv4 prefix length
const MaxPrefix = 32

// Address is an IPv4 address in host byte order
type Address uint32

// AddressFrom converts a netip.Addr into an Address. ok is false for
// anything that is not a plain IPv4 address.
func AddressFrom(addr netip.Addr) (Address, bool) {
	if !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return Address(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), true
}

// ParseAddress parses a dotted-quad IPv4 address
func ParseAddress(s string) (Address, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return 0, &InvalidRangeError{Input: s, Reason: "malformed address"}
	}
	a, ok := AddressFrom(addr)
	if !ok {
		return 0, &InvalidRangeError{Input: s, Reason: "not an IPv4 address"}
	}
	return a, nil
}

// Addr returns the address as a netip.Addr
func (a Address) Addr() netip.Addr {
	return netip.AddrFrom4([4]byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)})
}

func (a Address) String() string {
	return a.Addr().String()
}

// InvalidRangeError is returned for malformed network ranges. It is raised
// before any probe is dispatched.
type InvalidRangeError struct {
	Input  string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid network range %q: %s", e.Input, e.Reason)
}

// IsInvalidRange reports whether err is, or wraps, an InvalidRangeError
func IsInvalidRange(err error) bool {
	var rangeErr *InvalidRangeError
	return errors.As(err, &rangeErr)
}

// NetworkRange is a base address plus a prefix length (CIDR block).
// The base may carry host bits; they are ignored by the derived bounds.
type NetworkRange struct {
	Base   Address
	Prefix int
}

// New returns a validated NetworkRange
func New(base Address, prefix int) (NetworkRange, error) {
	r := NetworkRange{Base: base, Prefix: prefix}
	if err := r.Validate(); err != nil {
		return NetworkRange{}, err
	}
	return r, nil
}

// Validate checks the range invariants
func (r NetworkRange) Validate() error {
	if r.Prefix < 0 || r.Prefix > MaxPrefix {
		return &InvalidRangeError{
			Input:  fmt.Sprintf("%s/%d", r.Base, r.Prefix),
			Reason: fmt.Sprintf("prefix length must be between 0 and %d", MaxPrefix),
		}
	}
	return nil
}

// Mask returns the network mask for the prefix
func (r NetworkRange) Mask() uint32 {
	prefix := min(max(r.Prefix, 0), MaxPrefix)
	// shifting a uint32 by 32 yields 0, which is the /0 mask
	return ^uint32(0) << (MaxPrefix - prefix)
}

// Network returns the network address
func (r NetworkRange) Network() Address {
	return Address(uint32(r.Base) & r.Mask())
}

// Broadcast returns the broadcast address
func (r NetworkRange) Broadcast() Address {
	return Address(uint32(r.Network()) | ^r.Mask())
}

// First returns the lowest usable host address
func (r NetworkRange) First() Address {
	if r.Prefix >= MaxPrefix-1 {
		return r.Network()
	}
	return r.Network() + 1
}

// Last returns the highest usable host address
func (r NetworkRange) Last() Address {
	switch {
	case r.Prefix == MaxPrefix:
		return r.Network()
	case r.Prefix == MaxPrefix-1:
		return r.Broadcast()
	}
	return r.Broadcast() - 1
}

// Size returns the number of usable host addresses
func (r NetworkRange) Size() uint64 {
	switch r.Prefix {
	case MaxPrefix:
		return 1
	case MaxPrefix - 1:
		return 2
	}
	return (uint64(1) << (MaxPrefix - r.Prefix)) - 2
}

// Contains reports whether addr lies inside the block, reserved addresses included
func (r NetworkRange) Contains(addr Address) bool {
	return uint32(addr)&r.Mask() == uint32(r.Network())
}

// String returns the range in CIDR notation using the network address
func (r NetworkRange) String() string {
	return fmt.Sprintf("%s/%d", r.Network(), r.Prefix)
}

// Expand returns the usable host addresses of r in ascending order.
// The sequence is lazy and can be ranged over any number of times.
func Expand(r NetworkRange) (iter.Seq[Address], error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	first, last := r.First(), r.Last()
	return func(yield func(Address) bool) {
		for addr := first; ; addr++ {
			if !yield(addr) {
				return
			}
			// checked before incrementing so 255.255.255.255 cannot wrap
			if addr == last {
				return
			}
		}
	}, nil
}

// ParseCIDR parses "a.b.c.d/n". Host bits in the address are allowed.
func ParseCIDR(s string) (NetworkRange, error) {
	s = strings.TrimSpace(s)
	addrPart, prefixPart, found := strings.Cut(s, "/")
	if !found {
		return NetworkRange{}, &InvalidRangeError{Input: s, Reason: "missing prefix length"}
	}

	base, err := ParseAddress(addrPart)
	if err != nil {
		return NetworkRange{}, &InvalidRangeError{Input: s, Reason: "malformed base address"}
	}

	prefix, err := strconv.ParseUint(prefixPart, 10, 8)
	if err != nil || prefix > MaxPrefix {
		return NetworkRange{}, &InvalidRangeError{
			Input:  s,
			Reason: fmt.Sprintf("prefix length must be between 0 and %d", MaxPrefix),
		}
	}

	return NetworkRange{Base: base, Prefix: int(prefix)}, nil
}

// ParseTarget accepts the target forms understood by the CLI:
//   - "192.168.1.0/24": explicit CIDR
//   - "192.168.1": the /24 built from the three octets
//   - "192.168.1.5": the /24 containing the address
func ParseTarget(s string) (NetworkRange, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return ParseCIDR(s)
	}

	switch strings.Count(s, ".") {
	case 2:
		return ParseCIDR(s + ".0/24")
	case 3:
		return ParseCIDR(s + "/24")
	}
	return NetworkRange{}, &InvalidRangeError{Input: s, Reason: "invalid network format"}
}
