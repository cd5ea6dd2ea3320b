// internal/scanner/probe.go
// Single-target connection attempt and outcome classification

package scanner

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/portsweep/portsweep/internal/models"
)

// DialFunc matches net.Dialer.DialContext. Injected so tests can stand in a
// mock network.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// callBudgetFactor bounds the whole dial call relative to the network
// timeout, so a starved scheduler or exhausted socket table cannot park a
// probe forever.
const callBudgetFactor = 4

// prober performs exactly one connection attempt per target. Probes share
// no mutable state; the effective timeout is fixed at dispatch.
type prober struct {
	dial DialFunc
}

func (p prober) probe(ctx context.Context, target models.Target, timeout time.Duration) models.PortState {
	callCtx, cancel := context.WithTimeout(ctx, timeout*callBudgetFactor)
	defer cancel()

	dial := p.dial
	if dial == nil {
		d := &net.Dialer{
			Timeout:   timeout,
			KeepAlive: -1, // Disable keep-alive for scanning
		}
		dial = d.DialContext
	}

	start := time.Now()
	conn, err := dial(callCtx, "tcp", target.Address())
	elapsed := time.Since(start)
	if conn != nil {
		conn.Close()
	}

	return classify(err, elapsed, timeout, callCtx.Err() != nil)
}

// classify maps a dial outcome to a port state. Pure: all of the ambiguity
// between closed, filtered and host-down lives here.
func classify(err error, elapsed, timeout time.Duration, callExpired bool) models.PortState {
	if err == nil {
		return models.Open(elapsed)
	}

	// Definitive peer or OS signals first: they outrank any timeout that
	// raced with them.
	if errors.Is(err, syscall.ECONNREFUSED) {
		return models.Closed(elapsed)
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return models.HostDown()
	}

	if callExpired || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.CallTimeout(timeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ConnTimeout(timeout)
	}

	// Anything else gave no open/refusal signal within the budget; treat it
	// as network silence.
	return models.ConnTimeout(timeout)
}
