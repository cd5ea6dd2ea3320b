// internal/scanner/engine.go
// Bounded-concurrency scan orchestration

package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/portsweep/portsweep/internal/models"
	"github.com/portsweep/portsweep/pkg/logger"
	"github.com/portsweep/portsweep/pkg/ratelimit"
)

// ResultBuffer is the result channel capacity. Small on purpose: a slow
// consumer throttles the probing workers instead of growing a backlog.
const ResultBuffer = 10

// ScanParameters fixes the knobs for one scan run.
type ScanParameters struct {
	ConcurrentScans      int
	EnableAdaptiveTiming bool
	WaitTimeout          time.Duration
}

// Engine dispatches probes against a fixed pool of execution slots and
// multiplexes their outcomes onto a bounded result channel.
type Engine struct {
	params  ScanParameters
	timing  *timingController
	limiter *ratelimit.Limiter
	dial    DialFunc
	log     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialFunc replaces the real dialer, for tests.
func WithDialFunc(dial DialFunc) Option {
	return func(e *Engine) { e.dial = dial }
}

// WithLimiter paces probe dispatch through the given limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// NewEngine validates the parameters and builds an engine.
func NewEngine(params ScanParameters, opts ...Option) (*Engine, error) {
	if params.ConcurrentScans < 1 {
		return nil, fmt.Errorf("concurrent scans must be at least 1, got %d", params.ConcurrentScans)
	}
	if params.WaitTimeout <= 0 {
		return nil, fmt.Errorf("wait timeout must be positive, got %v", params.WaitTimeout)
	}

	e := &Engine{
		params: params,
		timing: newTimingController(params.EnableAdaptiveTiming, params.WaitTimeout),
		log:    logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Scan walks the range and returns the result channel. The channel is
// closed only after every issued probe has reported: the range running out
// (naturally or via the stop flag) halts issuance, in-flight probes drain.
// Cancelling ctx abandons the run; workers stop dispatching and unwind.
func (e *Engine) Scan(ctx context.Context, rng *ScanRange) <-chan models.ScanResult {
	results := make(chan models.ScanResult, ResultBuffer)
	targets := make(chan models.Target) // unbuffered: a free slot pulls the next target

	down := newHostSet()
	seq := rng.sequence(down)

	go func() {
		defer close(targets)
		for {
			t, ok := seq.Next()
			if !ok {
				return
			}
			select {
			case targets <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < e.params.ConcurrentScans; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, targets, results, down)
	}

	go func() {
		wg.Wait()
		close(results)
		e.log.Debug("scan engine drained")
	}()

	e.log.Info("scan started",
		zap.Uint64("targets", rng.Count()),
		zap.Int("concurrent_scans", e.params.ConcurrentScans),
		zap.Bool("adaptive_timing", e.params.EnableAdaptiveTiming),
		zap.Duration("timeout", e.params.WaitTimeout),
	)

	return results
}

// worker runs one execution slot: pull a target, probe it, report.
func (e *Engine) worker(ctx context.Context, wg *sync.WaitGroup, targets <-chan models.Target, results chan<- models.ScanResult, down *hostSet) {
	defer wg.Done()

	p := prober{dial: e.dial}

	for t := range targets {
		// The feeder stays one target ahead of the pool, so a target for a
		// host marked down can still arrive here. Drop it without dialing.
		if down.Has(t.IP) {
			continue
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return
			}
		}

		// Timeout sampled at dispatch, not re-evaluated mid-probe.
		state := p.probe(ctx, t, e.timing.Timeout())

		switch {
		case state.Kind == models.StateHostDown:
			down.Add(t.IP)
			e.log.Debug("host marked down", zap.Stringer("addr", t.IP))
		case state.Resolved():
			e.timing.Observe(state.Elapsed)
		}

		// Blocking send is the backpressure point. A consumer that went
		// away cancels ctx, which ends the run.
		select {
		case results <- models.ScanResult{Target: t, State: state}:
		case <-ctx.Done():
			return
		}
	}
}
