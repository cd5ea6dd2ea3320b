// internal/scanner/ports.go
// Port range specification parsing

package scanner

import (
	"fmt"
	"strconv"
	"strings"
)

const maxPort = 65535

// PortRange is an inclusive span of TCP ports, scanned in ascending order.
type PortRange struct {
	First int
	Last  int
}

// ParsePortRange parses a spec like "1-100" or a single port like "22".
func ParsePortRange(spec string) (PortRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return PortRange{}, fmt.Errorf("empty port range")
	}

	if first, last, ok := strings.Cut(spec, "-"); ok {
		lo, err := parsePort(first)
		if err != nil {
			return PortRange{}, err
		}
		hi, err := parsePort(last)
		if err != nil {
			return PortRange{}, err
		}
		if lo > hi {
			return PortRange{}, fmt.Errorf("port range start %d greater than end %d", lo, hi)
		}
		return PortRange{First: lo, Last: hi}, nil
	}

	p, err := parsePort(spec)
	if err != nil {
		return PortRange{}, err
	}
	return PortRange{First: p, Last: p}, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if p < 0 || p > maxPort {
		return 0, fmt.Errorf("port %d out of range 0-%d", p, maxPort)
	}
	return p, nil
}

// Count returns the number of ports in the range.
func (r PortRange) Count() int {
	return r.Last - r.First + 1
}

// Contains reports whether p falls inside the range.
func (r PortRange) Contains(p int) bool {
	return p >= r.First && p <= r.Last
}

// String renders the range in the same form ParsePortRange accepts.
func (r PortRange) String() string {
	if r.First == r.Last {
		return strconv.Itoa(r.First)
	}
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}
