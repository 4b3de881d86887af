// Package engine issues HTTP requests on behalf of callers that cannot hold
// Go values. Every successful request yields an opaque handle to a stored
// response whose body is pulled out in caller-sized chunks, every failure
// leaves a message in the engine's last-error slot, and Shutdown tears the
// whole thing down without racing in-progress reads or frees.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/samvad-hq/httpbridge/internal/domain"
	"github.com/samvad-hq/httpbridge/internal/handles"
	"github.com/samvad-hq/httpbridge/internal/lasterror"
	"github.com/samvad-hq/httpbridge/internal/logger"
	"github.com/samvad-hq/httpbridge/internal/storage"
	"github.com/samvad-hq/httpbridge/pkg/httpclient"
)

const (
	// DefaultGracePeriod bounds how long Shutdown waits for in-flight requests.
	DefaultGracePeriod = 5 * time.Second
	// DefaultMaxInFlight caps concurrent transport calls.
	DefaultMaxInFlight = 64
)

// Option configures an Engine.
type Option func(*Engine)

// WithGracePeriod sets how long Shutdown waits for in-flight requests.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.grace = d
		}
	}
}

// WithMaxInFlight caps the number of concurrent transport calls.
func WithMaxInFlight(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxInFlight = n
		}
	}
}

// WithRateLimit paces transport calls with a token bucket. A non-positive
// rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(e *Engine) {
		if perSecond <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMetrics reports engine activity to m.
func WithMetrics(m MetricsReporter) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// Engine owns the handle registry, the stored bodies and the last-error slot
// for one embedding. It is safe for concurrent use.
type Engine struct {
	client  httpclient.Client
	bodies  storage.BodyStore
	log     logger.Logger
	metrics MetricsReporter

	registry *handles.Registry[*response]
	errs     *lasterror.Reporter

	grace       time.Duration
	maxInFlight int
	sem         chan struct{}
	limiter     *rate.Limiter

	// root is cancelled by Shutdown; every transport call derives from it.
	root   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
	active   atomic.Int64

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an engine around client. A nil body store means bodies stay
// in memory.
func New(client httpclient.Client, bodies storage.BodyStore, log logger.Logger, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, errors.New("engine: http client must not be nil")
	}
	if bodies == nil {
		bodies = storage.NewMemoryStore()
	}

	root, cancel := context.WithCancel(context.Background())
	e := &Engine{
		client:      client,
		bodies:      bodies,
		log:         logger.OrNop(log),
		metrics:     noopMetrics{},
		registry:    handles.New[*response](),
		errs:        lasterror.New(),
		grace:       DefaultGracePeriod,
		maxInFlight: DefaultMaxInFlight,
		root:        root,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sem = make(chan struct{}, e.maxInFlight)
	return e, nil
}

// Closed reports whether Shutdown has started.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// begin registers an in-flight call. It fails once Shutdown has started so
// that Shutdown's wait never races a late Add.
func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.enter()
	return true
}

// enter and leave bracket every caller and transport goroutine Shutdown
// waits for. enter is only called under mu or while the caller already
// holds a count.
func (e *Engine) enter() {
	e.active.Add(1)
	e.inflight.Add(1)
}

func (e *Engine) leave() {
	e.active.Add(-1)
	e.inflight.Done()
}

// fail records err in the last-error slot, counts it and logs it.
func (e *Engine) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		err = domain.Wrap(domain.KindInternal, op, "unexpected failure", err)
	}
	kind := domain.KindOf(err)
	e.errs.Record(err)
	e.metrics.RecordFailure(op, kind.String())

	fields := map[string]any{"op": op, "kind": kind.String(), "error": err.Error()}
	switch kind {
	case domain.KindInternal:
		e.log.ErrorObj("operation failed", "failure", fields)
	case domain.KindTransport, domain.KindTimeout:
		e.log.WarnObj("operation failed", "failure", fields)
	default:
		e.log.DebugObj("operation failed", "failure", fields)
	}
	return err
}
