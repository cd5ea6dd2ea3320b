// internal/scanner/range.go
// Lazy enumeration of the scan target space

package scanner

import (
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/portsweep/portsweep/internal/models"
	"github.com/portsweep/portsweep/pkg/cidr"
)

// ScanRange describes the target space of one scan run: address ranges
// minus an exclusion set, crossed with a port range. It is never
// materialized; the engine consumes it in a single forward pass.
type ScanRange struct {
	prefixes []netip.Prefix
	excluded map[netip.Addr]struct{}
	ports    PortRange
	stop     *atomic.Bool
}

// NewScanRange validates and builds the target space. Malformed address or
// port specs are rejected here, before any scanning starts. The stop flag is
// shared with the caller's signal handling; once it flips to true the range
// yields no further targets.
func NewScanRange(targets, excludes []string, ports string, stop *atomic.Bool) (*ScanRange, error) {
	prefixes, err := cidr.Parse(targets)
	if err != nil {
		return nil, err
	}

	addrs, err := cidr.ParseAddrs(excludes)
	if err != nil {
		return nil, err
	}
	excluded := make(map[netip.Addr]struct{}, len(addrs))
	for _, a := range addrs {
		excluded[a] = struct{}{}
	}

	pr, err := ParsePortRange(ports)
	if err != nil {
		return nil, err
	}

	if stop == nil {
		stop = new(atomic.Bool)
	}

	return &ScanRange{
		prefixes: prefixes,
		excluded: excluded,
		ports:    pr,
		stop:     stop,
	}, nil
}

// Ports returns the configured port range.
func (r *ScanRange) Ports() PortRange {
	return r.ports
}

// Count returns the upper bound of targets in the range, ignoring hosts
// skipped after a down classification. Used for logging only.
func (r *ScanRange) Count() uint64 {
	addrs := cidr.Count(r.prefixes)
	excl := uint64(len(r.excluded))
	if excl > addrs {
		excl = addrs
	}
	return (addrs - excl) * uint64(r.ports.Count())
}

// sequence returns a forward-only target generator. down is the engine's
// shared set of hosts already classified unreachable; remaining ports of
// such hosts are skipped.
func (r *ScanRange) sequence(down *hostSet) *targetSeq {
	return &targetSeq{
		r:     r,
		addrs: cidr.NewIterator(r.prefixes),
		down:  down,
	}
}

// targetSeq yields targets lazily: addresses in range order, ports ascending
// within each address. The stop flag is checked before every yield.
type targetSeq struct {
	r      *ScanRange
	addrs  *cidr.Iterator
	down   *hostSet
	cur    netip.Addr
	port   int
	onHost bool
}

// Next returns the next target, or false when the sequence is exhausted or
// cancelled. Already-yielded targets are unaffected by either.
func (s *targetSeq) Next() (models.Target, bool) {
	for {
		if s.r.stop.Load() {
			return models.Target{}, false
		}

		if !s.onHost {
			addr, ok := s.nextAddr()
			if !ok {
				return models.Target{}, false
			}
			s.cur = addr
			s.port = s.r.ports.First
			s.onHost = true
		}

		if s.port > s.r.ports.Last || (s.down != nil && s.down.Has(s.cur)) {
			s.onHost = false
			continue
		}

		t := models.Target{IP: s.cur, Port: s.port}
		s.port++
		return t, true
	}
}

// nextAddr advances the address iterator past excluded entries.
func (s *targetSeq) nextAddr() (netip.Addr, bool) {
	for {
		addr, ok := s.addrs.Next()
		if !ok {
			return netip.Addr{}, false
		}
		if _, skip := s.r.excluded[addr]; skip {
			continue
		}
		return addr, true
	}
}

// hostSet tracks hosts reported down. Workers write, the enumerator reads;
// writes are rare (one per down host) so a RWMutex is enough.
type hostSet struct {
	mu sync.RWMutex
	m  map[netip.Addr]struct{}
}

func newHostSet() *hostSet {
	return &hostSet{m: make(map[netip.Addr]struct{})}
}

func (s *hostSet) Add(a netip.Addr) {
	s.mu.Lock()
	s.m[a] = struct{}{}
	s.mu.Unlock()
}

func (s *hostSet) Has(a netip.Addr) bool {
	s.mu.RLock()
	_, ok := s.m[a]
	s.mu.RUnlock()
	return ok
}
