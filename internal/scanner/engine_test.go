// internal/scanner/engine_test.go
// Engine behavior tests against a mock network

package scanner

import (
	"context"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portsweep/portsweep/internal/models"
)

func netipAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	return netip.MustParseAddr(s)
}

func mustRange(t *testing.T, targets, excludes []string, ports string, stop *atomic.Bool) *ScanRange {
	t.Helper()
	rng, err := NewScanRange(targets, excludes, ports, stop)
	require.NoError(t, err)
	return rng
}

// drain collects every result until the channel closes.
func drain(results <-chan models.ScanResult) []models.ScanResult {
	var out []models.ScanResult
	for res := range results {
		out = append(out, res)
	}
	return out
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(ScanParameters{ConcurrentScans: 0, WaitTimeout: time.Second})
	assert.Error(t, err)

	_, err = NewEngine(ScanParameters{ConcurrentScans: 10, WaitTimeout: 0})
	assert.Error(t, err)

	_, err = NewEngine(ScanParameters{ConcurrentScans: 10, WaitTimeout: time.Second})
	assert.NoError(t, err)
}

func TestScan_OpenAndClosed(t *testing.T) {
	// Port 22 accepts, port 23 refuses.
	dial := func(_ context.Context, _, address string) (net.Conn, error) {
		_, port, err := net.SplitHostPort(address)
		if err != nil {
			return nil, err
		}
		if port == "22" {
			return nopConn{}, nil
		}
		return nil, refusedErr()
	}

	eng, err := NewEngine(ScanParameters{ConcurrentScans: 2, WaitTimeout: time.Second}, WithDialFunc(dial))
	require.NoError(t, err)

	rng := mustRange(t, []string{"127.0.0.1"}, nil, "22-23", nil)
	results := drain(eng.Scan(context.Background(), rng))

	require.Len(t, results, 2)

	byPort := make(map[int]models.PortState, 2)
	for _, res := range results {
		assert.Equal(t, netipAddr(t, "127.0.0.1"), res.Target.IP)
		byPort[res.Target.Port] = res.State
	}

	require.Contains(t, byPort, 22)
	require.Contains(t, byPort, 23)
	assert.Equal(t, models.StateOpen, byPort[22].Kind)
	assert.Equal(t, models.StateClosed, byPort[23].Kind)
	assert.GreaterOrEqual(t, byPort[22].Elapsed, time.Duration(0))
	assert.GreaterOrEqual(t, byPort[23].Elapsed, time.Duration(0))
}

func TestScan_HostDownShortCircuit(t *testing.T) {
	var dials atomic.Int32
	dial := func(_ context.Context, _, _ string) (net.Conn, error) {
		dials.Add(1)
		return nil, unreachableErr()
	}

	// One slot so the down-mark lands before any second target is pulled.
	eng, err := NewEngine(ScanParameters{ConcurrentScans: 1, WaitTimeout: time.Second}, WithDialFunc(dial))
	require.NoError(t, err)

	rng := mustRange(t, []string{"10.0.0.5/32"}, nil, "1-10", nil)
	results := drain(eng.Scan(context.Background(), rng))

	require.Len(t, results, 1)
	assert.Equal(t, models.StateHostDown, results[0].State.Kind)
	assert.Equal(t, 1, results[0].Target.Port)
	assert.Equal(t, int32(1), dials.Load())
}

func TestScan_ExcludedSoleTarget(t *testing.T) {
	dial := func(_ context.Context, _, _ string) (net.Conn, error) {
		t.Error("dial called for excluded address")
		return nopConn{}, nil
	}

	eng, err := NewEngine(ScanParameters{ConcurrentScans: 4, WaitTimeout: time.Second}, WithDialFunc(dial))
	require.NoError(t, err)

	rng := mustRange(t, []string{"192.0.2.1"}, []string{"192.0.2.1"}, "1-10", nil)
	results := drain(eng.Scan(context.Background(), rng))
	assert.Empty(t, results)
}

func TestScan_CancelledBeforeStart(t *testing.T) {
	dial := func(_ context.Context, _, _ string) (net.Conn, error) {
		t.Error("dial called after cancellation")
		return nopConn{}, nil
	}

	stop := new(atomic.Bool)
	stop.Store(true)

	eng, err := NewEngine(ScanParameters{ConcurrentScans: 4, WaitTimeout: time.Second}, WithDialFunc(dial))
	require.NoError(t, err)

	rng := mustRange(t, []string{"10.0.0.0/24"}, nil, "1-100", stop)
	results := drain(eng.Scan(context.Background(), rng))
	assert.Empty(t, results)
}

func TestScan_EveryTargetReportsOnce(t *testing.T) {
	dial := func(_ context.Context, _, _ string) (net.Conn, error) {
		return nopConn{}, nil
	}

	eng, err := NewEngine(ScanParameters{ConcurrentScans: 5, WaitTimeout: time.Second}, WithDialFunc(dial))
	require.NoError(t, err)

	rng := mustRange(t, []string{"10.0.0.0/30"}, nil, "1-3", nil)
	results := drain(eng.Scan(context.Background(), rng))

	require.Len(t, results, 12) // 4 addresses x 3 ports

	seen := make(map[models.Target]struct{}, len(results))
	for _, res := range results {
		_, dup := seen[res.Target]
		require.False(t, dup, "target %s reported twice", res.Target)
		seen[res.Target] = struct{}{}
	}
}

func TestScan_BoundedConcurrency(t *testing.T) {
	const slots = 3

	var inFlight, peak atomic.Int32
	dial := func(_ context.Context, _, _ string) (net.Conn, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil, refusedErr()
	}

	eng, err := NewEngine(ScanParameters{ConcurrentScans: slots, WaitTimeout: time.Second}, WithDialFunc(dial))
	require.NoError(t, err)

	rng := mustRange(t, []string{"10.0.0.0/30"}, nil, "1-5", nil)
	results := drain(eng.Scan(context.Background(), rng))

	assert.Len(t, results, 20)
	assert.LessOrEqual(t, peak.Load(), int32(slots))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestScan_StopFlagDrainsInFlight(t *testing.T) {
	stop := new(atomic.Bool)

	dial := func(_ context.Context, _, _ string) (net.Conn, error) {
		time.Sleep(2 * time.Millisecond)
		return nil, refusedErr()
	}

	eng, err := NewEngine(ScanParameters{ConcurrentScans: 2, WaitTimeout: time.Second}, WithDialFunc(dial))
	require.NoError(t, err)

	rng := mustRange(t, []string{"10.0.0.0/28"}, nil, "1-8", stop)
	results := eng.Scan(context.Background(), rng)

	var count int
	for res := range results {
		count++
		if count == 4 {
			stop.Store(true)
		}
		_ = res
	}

	// Issuance halted, in-flight probes still reported; never the full space.
	assert.GreaterOrEqual(t, count, 4)
	assert.Less(t, count, 16*8)
}

func TestScan_ConsumerGoneUnwinds(t *testing.T) {
	dial := func(_ context.Context, _, _ string) (net.Conn, error) {
		return nil, refusedErr()
	}

	eng, err := NewEngine(ScanParameters{ConcurrentScans: 2, WaitTimeout: time.Second}, WithDialFunc(dial))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rng := mustRange(t, []string{"10.0.0.0/24"}, nil, "1-100", nil)
	results := eng.Scan(ctx, rng)

	// Take a handful of results, then walk away.
	for i := 0; i < 5; i++ {
		<-results
	}
	cancel()

	// The engine must close the channel instead of blocking forever on the
	// full buffer.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-results:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("engine did not unwind after consumer cancellation")
		}
	}
}

func TestScan_AdaptiveTimeoutStaysBounded(t *testing.T) {
	ceiling := 500 * time.Millisecond

	// Record the call budget of each dial; it is a fixed multiple of the
	// effective timeout, so the timeout bounds are visible through it.
	var minBudget, maxBudget atomic.Int64
	minBudget.Store(int64(time.Hour))

	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		if deadline, ok := ctx.Deadline(); ok {
			budget := int64(time.Until(deadline))
			for {
				old := minBudget.Load()
				if budget >= old || minBudget.CompareAndSwap(old, budget) {
					break
				}
			}
			for {
				old := maxBudget.Load()
				if budget <= old || maxBudget.CompareAndSwap(old, budget) {
					break
				}
			}
		}
		return nopConn{}, nil
	}

	eng, err := NewEngine(
		ScanParameters{ConcurrentScans: 1, WaitTimeout: ceiling, EnableAdaptiveTiming: true},
		WithDialFunc(dial),
	)
	require.NoError(t, err)

	rng := mustRange(t, []string{"10.0.0.0/28"}, nil, "1-4", nil)
	drain(eng.Scan(context.Background(), rng))

	assert.LessOrEqual(t, maxBudget.Load(), int64(ceiling*callBudgetFactor))
	assert.GreaterOrEqual(t, minBudget.Load(), int64(0))
}
