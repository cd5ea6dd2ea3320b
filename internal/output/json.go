// internal/output/json.go
// JSON output for machine consumption

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// hostRecord is the JSON shape of one host, restricted to hosts that are up
// and resolved at least one port.
type hostRecord struct {
	Address       string  `json:"address"`
	OpenPorts     []int   `json:"open_ports"`
	ClosedPorts   []int   `json:"closed_ports"`
	FilteredPorts []int   `json:"filtered_ports"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}

// WriteJSON writes the summary as a JSON array to w. Hosts reported down or
// with no resolved port are omitted.
func WriteJSON(w io.Writer, s *Summary) error {
	records := make([]hostRecord, 0, len(s.Hosts))
	for _, h := range s.sortedHosts() {
		if h.Down || !h.Resolved() {
			continue
		}
		records = append(records, hostRecord{
			Address:       h.Addr.String(),
			OpenPorts:     sortedCopy(h.OpenPorts),
			ClosedPorts:   sortedCopy(h.ClosedPorts),
			FilteredPorts: sortedCopy(h.FilteredPorts),
			AvgLatencyMs:  float64(h.AvgLatency().Microseconds()) / 1000,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteJSONFile writes the summary to the named file, or to stdout when
// path is "-".
func WriteJSONFile(path string, s *Summary) error {
	if path == "-" {
		return WriteJSON(os.Stdout, s)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	if err := WriteJSON(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sortedCopy keeps result ordering out of the wire format; results arrive
// in completion order, not port order.
func sortedCopy(ports []int) []int {
	out := make([]int, len(ports))
	copy(out, ports)
	sort.Ints(out)
	return out
}
