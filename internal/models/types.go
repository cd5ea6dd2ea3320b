// internal/models/types.go
// Core data model for portsweep

package models

import (
	"fmt"
	"net/netip"
	"time"
)

// Target identifies a single (address, port) probe.
type Target struct {
	IP   netip.Addr
	Port int
}

// Address returns the target as an "ip:port" string.
func (t Target) Address() string {
	return netip.AddrPortFrom(t.IP, uint16(t.Port)).String()
}

// String returns human-readable target info
func (t Target) String() string {
	return t.Address()
}

// StateKind enumerates the connectivity outcomes a probe can resolve to.
type StateKind uint8

const (
	// StateOpen: the TCP handshake completed within the wait budget.
	StateOpen StateKind = iota
	// StateClosed: the peer actively refused the connection.
	StateClosed
	// StateConnTimeout: neither acceptance nor refusal arrived before the
	// network timeout elapsed; presumed filtered.
	StateConnTimeout
	// StateCallTimeout: the attempt was cut short by the outer call budget
	// rather than the network timeout; also treated as filtered.
	StateCallTimeout
	// StateHostDown: the OS reported the host or network unreachable.
	StateHostDown
)

// String returns the lowercase name of the state kind.
func (k StateKind) String() string {
	switch k {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateConnTimeout:
		return "conn-timeout"
	case StateCallTimeout:
		return "call-timeout"
	case StateHostDown:
		return "host-down"
	default:
		return "unknown"
	}
}

// PortState is the classified outcome of one probe. Open and Closed carry
// the measured latency, the timeout variants carry the wait budget that
// expired, HostDown carries nothing.
type PortState struct {
	Kind    StateKind
	Elapsed time.Duration
}

// Open builds the state for an accepted connection.
func Open(latency time.Duration) PortState {
	return PortState{Kind: StateOpen, Elapsed: latency}
}

// Closed builds the state for an actively refused connection.
func Closed(latency time.Duration) PortState {
	return PortState{Kind: StateClosed, Elapsed: latency}
}

// ConnTimeout builds the state for a probe that saw only network silence.
func ConnTimeout(budget time.Duration) PortState {
	return PortState{Kind: StateConnTimeout, Elapsed: budget}
}

// CallTimeout builds the state for a probe aborted by the outer execution
// budget instead of the network timeout.
func CallTimeout(budget time.Duration) PortState {
	return PortState{Kind: StateCallTimeout, Elapsed: budget}
}

// HostDown builds the state for an unreachable host or network.
func HostDown() PortState {
	return PortState{Kind: StateHostDown}
}

// Resolved reports whether the peer gave a definitive answer (open or closed).
func (s PortState) Resolved() bool {
	return s.Kind == StateOpen || s.Kind == StateClosed
}

// Filtered reports whether the outcome is inferred to be blocked by an
// intermediate device.
func (s PortState) Filtered() bool {
	return s.Kind == StateConnTimeout || s.Kind == StateCallTimeout
}

// String renders the state with its payload, e.g. "open (1.2ms)".
func (s PortState) String() string {
	switch s.Kind {
	case StateOpen, StateClosed:
		return fmt.Sprintf("%s (%v)", s.Kind, s.Elapsed)
	case StateConnTimeout, StateCallTimeout:
		return fmt.Sprintf("%s (waited %v)", s.Kind, s.Elapsed)
	default:
		return s.Kind.String()
	}
}

// ScanResult couples a target with its classified connectivity state.
// Exactly one is produced per issued target.
type ScanResult struct {
	Target Target
	State  PortState
}
