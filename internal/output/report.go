// internal/output/report.go
// Per-host aggregation of scan results

package output

import (
	"net/netip"
	"sort"
	"time"

	"github.com/portsweep/portsweep/internal/models"
)

// HostReport accumulates every outcome observed for one host.
type HostReport struct {
	Addr          netip.Addr
	OpenPorts     []int
	ClosedPorts   []int
	FilteredPorts []int
	Down          bool

	latencySum time.Duration
	latencyN   int
}

// NewHostReport creates an empty report for addr.
func NewHostReport(addr netip.Addr) *HostReport {
	return &HostReport{Addr: addr}
}

// Add records one probe outcome.
func (h *HostReport) Add(port int, state models.PortState) {
	switch state.Kind {
	case models.StateOpen:
		h.OpenPorts = append(h.OpenPorts, port)
		h.addLatency(state.Elapsed)
	case models.StateClosed:
		h.ClosedPorts = append(h.ClosedPorts, port)
		h.addLatency(state.Elapsed)
	case models.StateConnTimeout, models.StateCallTimeout:
		h.FilteredPorts = append(h.FilteredPorts, port)
	case models.StateHostDown:
		h.Down = true
	}
}

func (h *HostReport) addLatency(d time.Duration) {
	h.latencySum += d
	h.latencyN++
}

// AvgLatency returns the mean latency over resolved probes, or zero when
// none resolved.
func (h *HostReport) AvgLatency() time.Duration {
	if h.latencyN == 0 {
		return 0
	}
	return h.latencySum / time.Duration(h.latencyN)
}

// Resolved reports whether at least one port answered open or closed.
func (h *HostReport) Resolved() bool {
	return len(h.OpenPorts) > 0 || len(h.ClosedPorts) > 0
}

// Summary is the aggregate of one completed scan run.
type Summary struct {
	Hosts map[netip.Addr]*HostReport
}

// Collect drains the result channel until it closes, grouping outcomes by
// host. Results arrive in completion order; aggregation is keyed by address
// so ordering does not matter.
func Collect(results <-chan models.ScanResult) *Summary {
	s := &Summary{Hosts: make(map[netip.Addr]*HostReport)}
	for res := range results {
		h, ok := s.Hosts[res.Target.IP]
		if !ok {
			h = NewHostReport(res.Target.IP)
			s.Hosts[res.Target.IP] = h
		}
		h.Add(res.Target.Port, res.State)
	}
	return s
}

// HostsScanned returns the number of distinct hosts with any result.
func (s *Summary) HostsScanned() int {
	return len(s.Hosts)
}

// HostsDown returns the number of hosts the OS reported unreachable.
func (s *Summary) HostsDown() int {
	n := 0
	for _, h := range s.Hosts {
		if h.Down {
			n++
		}
	}
	return n
}

// HostsWithoutOpenPorts returns the number of up hosts with no open port.
func (s *Summary) HostsWithoutOpenPorts() int {
	n := 0
	for _, h := range s.Hosts {
		if !h.Down && len(h.OpenPorts) == 0 {
			n++
		}
	}
	return n
}

// sortedHosts returns reports ordered by address for deterministic output.
func (s *Summary) sortedHosts() []*HostReport {
	hosts := make([]*HostReport, 0, len(s.Hosts))
	for _, h := range s.Hosts {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool {
		return hosts[i].Addr.Less(hosts[j].Addr)
	})
	return hosts
}
