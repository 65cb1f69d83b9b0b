package netrange

import (
	"iter"
	"slices"
)

// Merge drops duplicate ranges and ranges whose host addresses all lie in
// another range's host addresses. A /32 or /31 that lands on the network or
// broadcast address of a wider block is kept, since that block never
// yields those addresses. Invalid ranges are skipped. The result is ordered
// by first host address.
func Merge(ranges []NetworkRange) []NetworkRange {
	sorted := slices.DeleteFunc(slices.Clone(ranges), func(r NetworkRange) bool {
		return r.Validate() != nil
	})
	// widest blocks first, then by network address
	slices.SortFunc(sorted, func(a, b NetworkRange) int {
		if a.Prefix != b.Prefix {
			return a.Prefix - b.Prefix
		}
		return compareAddress(a.Network(), b.Network())
	})

	var merged []NetworkRange
	for _, r := range sorted {
		covered := slices.ContainsFunc(merged, func(kept NetworkRange) bool {
			return kept.First() <= r.First() && r.Last() <= kept.Last()
		})
		if !covered {
			merged = append(merged, r)
		}
	}

	slices.SortFunc(merged, func(a, b NetworkRange) int {
		if c := compareAddress(a.First(), b.First()); c != 0 {
			return c
		}
		return compareAddress(a.Last(), b.Last())
	})
	return merged
}

func compareAddress(a, b Address) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ExpandAll merges ranges and chains their host sequences in ascending
// order. Addresses shared by two ranges are yielded once.
func ExpandAll(ranges []NetworkRange) (iter.Seq[Address], error) {
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	var seqs []iter.Seq[Address]
	for _, r := range Merge(ranges) {
		hosts, err := Expand(r)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, hosts)
	}

	return func(yield func(Address) bool) {
		var last Address
		started := false
		for _, hosts := range seqs {
			for addr := range hosts {
				if started && addr <= last {
					continue
				}
				if !yield(addr) {
					return
				}
				last, started = addr, true
			}
		}
	}, nil
}

// TotalSize returns the number of host addresses ExpandAll yields
func TotalSize(ranges []NetworkRange) uint64 {
	var total uint64
	var last Address
	started := false
	for _, r := range Merge(ranges) {
		first := r.First()
		if started && first <= last {
			if r.Last() <= last {
				continue
			}
			first = last + 1
		}
		total += uint64(r.Last()-first) + 1
		last, started = r.Last(), true
	}
	return total
}
