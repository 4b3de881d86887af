package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrGracePeriodExceeded is returned by Shutdown when in-flight calls did
// not finish in time. Their results are discarded.
var ErrGracePeriodExceeded = errors.New("shutdown grace period exceeded")

// Shutdown stops the engine: new requests fail with AlreadyShutdown,
// in-flight transport calls are cancelled, every live handle is invalidated
// and its body released, and the body store is closed once in-flight calls
// have finished or the grace period runs out. Only the first call does
// anything; later calls return the first call's result.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.shutdownErr = e.shutdown(ctx)
	})
	return e.shutdownErr
}

func (e *Engine) shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()

	live := e.registry.Close()
	for _, rec := range live {
		if err := rec.release(); err != nil {
			e.log.WarnObj("release response body failed", "release", map[string]any{
				"id":    rec.id,
				"error": err.Error(),
			})
		}
	}
	e.metrics.AddLiveHandles(-len(live))
	e.log.InfoObj("engine shutting down", "shutdown", map[string]any{
		"released_handles": len(live),
		"in_flight":        e.active.Load(),
		"grace_period":     e.grace.String(),
	})

	graceCtx, cancel := context.WithTimeout(ctx, e.grace)
	defer cancel()

	var finalErr error
	if !e.waitForShutdown(graceCtx, &e.inflight) {
		finalErr = fmt.Errorf("%w: %d calls still running after %s", ErrGracePeriodExceeded, e.active.Load(), e.grace)
	}
	e.metrics.RecordShutdown(time.Since(start).Seconds())

	if err := e.bodies.Close(); err != nil {
		e.log.ErrorObj("body store close failed", "error", err)
		if finalErr == nil {
			finalErr = fmt.Errorf("close body store: %w", err)
		}
	}

	e.log.InfoObj("engine shut down", "shutdown", map[string]any{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"forced":     finalErr != nil && errors.Is(finalErr, ErrGracePeriodExceeded),
	})
	return finalErr
}

func (e *Engine) waitForShutdown(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		e.log.WarnObj("grace period exceeded; abandoning in-flight calls", "in_flight", e.active.Load())
		return false
	}
}
