// internal/output/console.go
// Text summary rendering

package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	hostStyle     = lipgloss.NewStyle().Bold(true)
	openStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	closedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	filteredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// ConsoleWriter renders a human-readable scan summary.
type ConsoleWriter struct {
	out io.Writer
}

// NewConsoleWriter creates a summary writer targeting out.
func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out}
}

// WriteSummary prints each host with at least one resolved port, followed
// by the aggregate counts.
func (c *ConsoleWriter) WriteSummary(s *Summary) error {
	if _, err := fmt.Fprintln(c.out, "Scan complete:"); err != nil {
		return err
	}

	for _, h := range s.sortedHosts() {
		if h.Down || !h.Resolved() {
			continue
		}

		fmt.Fprintf(c.out, "%s (avg latency %v)\n", hostStyle.Render(h.Addr.String()), h.AvgLatency())
		if len(h.OpenPorts) > 0 {
			fmt.Fprintf(c.out, "  %s %s\n", openStyle.Render("open:"), joinPorts(sortedCopy(h.OpenPorts)))
		}
		if len(h.ClosedPorts) > 0 {
			fmt.Fprintf(c.out, "  %s %s\n", closedStyle.Render("closed:"), joinPorts(sortedCopy(h.ClosedPorts)))
		}
		if len(h.FilteredPorts) > 0 {
			fmt.Fprintf(c.out, "  %s %s\n", filteredStyle.Render("filtered:"), joinPorts(sortedCopy(h.FilteredPorts)))
		}
	}

	_, err := fmt.Fprintf(c.out, "%d hosts scanned, %d hosts did not have open ports, %d hosts reported down by OS\n",
		s.HostsScanned(), s.HostsWithoutOpenPorts(), s.HostsDown())
	return err
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
