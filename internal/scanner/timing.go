// internal/scanner/timing.go
// Adaptive timeout control from observed latencies

package scanner

import (
	"sync"
	"time"
)

const (
	// ewmaAlpha is the smoothing factor for the running latency estimate.
	ewmaAlpha = 0.3
	// timeoutMultiplier is the safety margin applied to the estimate.
	timeoutMultiplier = 4
	// timeoutFloor is the lowest wait budget adaptive mode may pick.
	timeoutFloor = 25 * time.Millisecond
)

// timingController derives the per-probe wait budget. In adaptive mode the
// budget follows an EWMA of latencies from resolved (open or closed) probes,
// clamped between timeoutFloor and the configured ceiling. Otherwise the
// budget is the ceiling, always.
type timingController struct {
	mu       sync.Mutex
	adaptive bool
	ceiling  time.Duration
	estimate time.Duration
}

func newTimingController(adaptive bool, ceiling time.Duration) *timingController {
	return &timingController{adaptive: adaptive, ceiling: ceiling}
}

// Timeout returns the wait budget for the next dispatch.
func (c *timingController) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.adaptive || c.estimate <= 0 {
		return c.ceiling
	}

	t := c.estimate * timeoutMultiplier
	if t < timeoutFloor {
		t = timeoutFloor
	}
	if t > c.ceiling {
		t = c.ceiling
	}
	return t
}

// Observe feeds one resolved-probe latency into the estimate. Timeouts and
// host-down outcomes carry no informative latency and must not be fed.
func (c *timingController) Observe(latency time.Duration) {
	if latency < 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.adaptive {
		return
	}
	if c.estimate <= 0 {
		c.estimate = latency
		return
	}
	c.estimate = time.Duration(ewmaAlpha*float64(latency) + (1-ewmaAlpha)*float64(c.estimate))
}
