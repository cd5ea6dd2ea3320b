// pkg/ratelimit/limiter_test.go
// Unit tests for rate limiter

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	l := New(1000) // 1000 probes/s = 1 per ms

	ctx := context.Background()

	start := time.Now()
	if err := l.Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	elapsed := time.Since(start)

	// First request sits within the burst allowance
	if elapsed > 10*time.Millisecond {
		t.Logf("First request took %v (expected < 10ms)", elapsed)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 1000; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("unlimited limiter blocked for %v", elapsed)
	}
}

func TestLimiter_Wait_Cancellation(t *testing.T) {
	l := New(1) // 1 probe/s

	// Use up the burst
	l.Wait(context.Background())

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(cancelledCtx); err == nil {
		t.Error("Wait() with cancelled context should return error")
	}
}

func TestLimiter_GetStats(t *testing.T) {
	l := New(1000)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.Wait(ctx)
	}

	stats := l.GetStats()
	if stats.TotalWaits != 5 {
		t.Errorf("TotalWaits = %d, want 5", stats.TotalWaits)
	}
	if stats.FailedWaits != 0 {
		t.Errorf("FailedWaits = %d, want 0", stats.FailedWaits)
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := New(100000)

	ctx := context.Background()
	var wg sync.WaitGroup
	numGoroutines := 10
	waitsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < waitsPerGoroutine; j++ {
				l.Wait(ctx)
			}
		}()
	}

	wg.Wait()

	stats := l.GetStats()
	expected := int64(numGoroutines * waitsPerGoroutine)
	if stats.TotalWaits != expected {
		t.Errorf("TotalWaits = %d, want %d", stats.TotalWaits, expected)
	}
}
