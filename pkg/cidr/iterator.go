// pkg/cidr/iterator.go
// Memory-efficient IP range iteration using net/netip

package cidr

import (
	"fmt"
	"net/netip"
	"strings"
)

// Parse converts CIDR blocks or bare IP addresses into normalized prefixes.
// A bare address becomes a /32 (or /128) prefix.
func Parse(specs []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix

	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		prefix, err := netip.ParsePrefix(spec)
		if err != nil {
			addr, err := netip.ParseAddr(spec)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR or IP %q: %w", spec, err)
			}
			if addr.Is4() {
				prefix = netip.PrefixFrom(addr, 32)
			} else {
				prefix = netip.PrefixFrom(addr, 128)
			}
		}

		// Normalize (clear host bits)
		prefixes = append(prefixes, prefix.Masked())
	}

	if len(prefixes) == 0 {
		return nil, fmt.Errorf("no valid CIDRs provided")
	}

	return prefixes, nil
}

// ParseAddrs converts a list of bare IP addresses. Unlike Parse it rejects
// prefix notation; callers use it for exact-match exclusion sets.
func ParseAddrs(specs []string) ([]netip.Addr, error) {
	var addrs []netip.Addr

	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		addr, err := netip.ParseAddr(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid IP address %q: %w", spec, err)
		}
		addrs = append(addrs, addr)
	}

	return addrs, nil
}

// Iterator walks the addresses of one or more prefixes without materializing
// them. Forward-only; it cannot be restarted.
type Iterator struct {
	prefixes  []netip.Prefix
	current   netip.Addr
	prefixIdx int
	started   bool
}

// NewIterator creates an address iterator over the given prefixes.
func NewIterator(prefixes []netip.Prefix) *Iterator {
	return &Iterator{prefixes: prefixes}
}

// Next returns the next IP address and true, or zero address and false if done
func (it *Iterator) Next() (netip.Addr, bool) {
	if !it.started {
		if len(it.prefixes) == 0 {
			return netip.Addr{}, false
		}
		it.current = it.prefixes[0].Addr()
		it.started = true
		return it.current, true
	}

	// Try to increment within current prefix
	next := it.current.Next()
	if next.IsValid() && it.prefixes[it.prefixIdx].Contains(next) {
		it.current = next
		return it.current, true
	}

	// Move to next prefix
	it.prefixIdx++
	if it.prefixIdx >= len(it.prefixes) {
		return netip.Addr{}, false
	}

	it.current = it.prefixes[it.prefixIdx].Addr()
	return it.current, true
}

// Count returns the total number of addresses covered by the prefixes.
// IPv6 prefixes wider than /68 are capped to keep the result meaningful.
func Count(prefixes []netip.Prefix) uint64 {
	var total uint64
	for _, prefix := range prefixes {
		bits := prefix.Bits()
		if prefix.Addr().Is4() {
			if bits < 0 || bits > 32 {
				continue
			}
			total += uint64(1) << uint(32-bits)
		} else {
			if bits < 0 || bits > 128 {
				continue
			}
			hostBits := 128 - bits
			if hostBits > 60 {
				total += uint64(1) << 60
			} else {
				total += uint64(1) << uint(hostBits)
			}
		}
	}
	return total
}
