package engine

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/samvad-hq/httpbridge/internal/domain"
	"github.com/samvad-hq/httpbridge/internal/handles"
	"github.com/samvad-hq/httpbridge/internal/storage"
	"github.com/samvad-hq/httpbridge/pkg/headers"
	"github.com/samvad-hq/httpbridge/pkg/httpclient"
)

const opRequest = "request"

// Request is one call as a foreign caller describes it.
type Request struct {
	Method string
	URL    string
	// Headers is a JSON object of string values. Empty means no headers.
	Headers string
	// Body is only allowed for POST, PUT and PATCH.
	Body []byte
	// Timeout of zero means no timeout.
	Timeout time.Duration
}

// Get issues a GET request.
func (e *Engine) Get(ctx context.Context, url, headers string, timeout time.Duration) (domain.Result, error) {
	return e.Do(ctx, Request{Method: string(domain.MethodGet), URL: url, Headers: headers, Timeout: timeout})
}

// Post issues a POST request.
func (e *Engine) Post(ctx context.Context, url, headers string, body []byte, timeout time.Duration) (domain.Result, error) {
	return e.Do(ctx, Request{Method: string(domain.MethodPost), URL: url, Headers: headers, Body: body, Timeout: timeout})
}

// Put issues a PUT request.
func (e *Engine) Put(ctx context.Context, url, headers string, body []byte, timeout time.Duration) (domain.Result, error) {
	return e.Do(ctx, Request{Method: string(domain.MethodPut), URL: url, Headers: headers, Body: body, Timeout: timeout})
}

// Patch issues a PATCH request.
func (e *Engine) Patch(ctx context.Context, url, headers string, body []byte, timeout time.Duration) (domain.Result, error) {
	return e.Do(ctx, Request{Method: string(domain.MethodPatch), URL: url, Headers: headers, Body: body, Timeout: timeout})
}

// Delete issues a DELETE request.
func (e *Engine) Delete(ctx context.Context, url, headers string, timeout time.Duration) (domain.Result, error) {
	return e.Do(ctx, Request{Method: string(domain.MethodDelete), URL: url, Headers: headers, Timeout: timeout})
}

// Do validates req, performs it and stores the response behind a new
// handle. Any HTTP status is a success; only transport failures, timeouts,
// bad input and shutdown are errors.
func (e *Engine) Do(ctx context.Context, req Request) (domain.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.Closed() {
		return domain.Result{}, e.fail(opRequest, errShutdown(opRequest))
	}

	cfg, err := e.prepare(req)
	if err != nil {
		return domain.Result{}, e.fail(opRequest, err)
	}

	if !e.begin() {
		return domain.Result{}, e.fail(opRequest, errShutdown(opRequest))
	}
	defer e.leave()

	start := time.Now()
	res, err := e.execute(ctx, cfg)
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	e.metrics.RecordRequest(cfg.Method.String(), outcome, time.Since(start).Seconds())
	if err != nil {
		return domain.Result{}, e.fail(opRequest, err)
	}
	return res, nil
}

// prepare validates req without touching the network.
func (e *Engine) prepare(req Request) (domain.RequestConfig, error) {
	method, ok := domain.ParseMethod(req.Method)
	if !ok {
		return domain.RequestConfig{}, domain.Errorf(domain.KindInvalidArgument, opRequest, "unsupported method %q", req.Method)
	}
	if !utf8.ValidString(req.URL) {
		// The URL is left out of the message so the error slot stays UTF-8.
		return domain.RequestConfig{}, domain.Errorf(domain.KindInvalidArgument, opRequest, "url is not valid UTF-8")
	}
	if err := ValidateURL(req.URL); err != nil {
		return domain.RequestConfig{}, domain.Wrap(domain.KindInvalidArgument, opRequest, "invalid url", err)
	}
	if req.Timeout < 0 {
		return domain.RequestConfig{}, domain.Errorf(domain.KindInvalidArgument, opRequest, "timeout must not be negative, got %s", req.Timeout)
	}
	if len(req.Body) > 0 && !method.AcceptsBody() {
		return domain.RequestConfig{}, domain.Errorf(domain.KindInvalidArgument, opRequest, "%s requests must not carry a body", method)
	}
	hdrs, err := headers.Decode(req.Headers)
	if err != nil {
		return domain.RequestConfig{}, domain.Wrap(domain.KindInvalidArgument, opRequest, "invalid headers", err)
	}

	var body []byte
	if method.AcceptsBody() {
		// Foreign callers may reuse their buffer once the call returns.
		body = append([]byte{}, req.Body...)
	}
	return domain.RequestConfig{
		ID:      uuid.NewString(),
		Method:  method,
		URL:     req.URL,
		Headers: hdrs,
		Body:    body,
		Timeout: req.Timeout,
	}, nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL must not be empty")
	}
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}

type transportResult struct {
	resp httpclient.Response
	err  error
}

func (e *Engine) execute(ctx context.Context, cfg domain.RequestConfig) (domain.Result, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.root, cancel)
	defer stop()

	if cfg.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		callCtx, cancelTimeout = context.WithTimeout(callCtx, cfg.Timeout)
		defer cancelTimeout()
	}

	select {
	case e.sem <- struct{}{}:
	case <-callCtx.Done():
		return domain.Result{}, e.classify(cfg, callCtx.Err())
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(callCtx); err != nil {
			<-e.sem
			if callCtx.Err() == nil && !e.Closed() {
				return domain.Result{}, domain.Wrap(domain.KindTimeout, opRequest, "rate limit delay exceeds the request deadline", err)
			}
			return domain.Result{}, e.classify(cfg, err)
		}
	}

	e.log.DebugObj("request started", "request", map[string]any{
		"id":         cfg.ID,
		"method":     cfg.Method.String(),
		"url":        cfg.URL,
		"timeout_ms": cfg.Timeout.Milliseconds(),
	})

	// The transport runs on its own goroutine so a call that ignores
	// cancellation cannot hold the caller past its deadline or shutdown.
	// It keeps its max_in_flight slot until it actually returns, and
	// Shutdown still waits for it, up to the grace period.
	done := make(chan transportResult, 1)
	e.enter()
	go func() {
		defer e.leave()
		defer func() { <-e.sem }()
		resp, err := e.client.Do(callCtx, httpclient.Request{
			Method:  cfg.Method.String(),
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Body:    cfg.Body,
		})
		done <- transportResult{resp: resp, err: err}
	}()

	var out transportResult
	select {
	case out = <-done:
	case <-callCtx.Done():
		return domain.Result{}, e.classify(cfg, callCtx.Err())
	}
	if out.err != nil {
		return domain.Result{}, e.classify(cfg, out.err)
	}
	if out.resp == nil {
		return domain.Result{}, domain.Errorf(domain.KindInternal, opRequest, "transport returned no response")
	}
	if e.Closed() {
		return domain.Result{}, domain.Errorf(domain.KindAlreadyShutdown, opRequest, "engine shut down before the response could be stored")
	}

	return e.store(cfg, out.resp)
}

// store keeps the body and publishes it behind a fresh handle.
func (e *Engine) store(cfg domain.RequestConfig, resp httpclient.Response) (domain.Result, error) {
	status := resp.StatusCode()
	body, err := e.bodies.Put(cfg.ID, resp.Body())
	if err != nil {
		if errors.Is(err, storage.ErrClosed) || e.Closed() {
			return domain.Result{}, domain.Wrap(domain.KindAlreadyShutdown, opRequest, "engine shut down before the response could be stored", err)
		}
		return domain.Result{}, domain.Wrap(domain.KindInternal, opRequest, "store response body", err)
	}

	h, err := e.registry.Allocate(newResponse(cfg.ID, status, body))
	if err != nil {
		_ = body.Release()
		if errors.Is(err, handles.ErrClosed) {
			return domain.Result{}, domain.Wrap(domain.KindAlreadyShutdown, opRequest, "engine shut down before a handle could be issued", err)
		}
		return domain.Result{}, domain.Wrap(domain.KindInternal, opRequest, "allocate handle", err)
	}
	e.metrics.AddLiveHandles(1)

	e.log.DebugObj("request completed", "request", map[string]any{
		"id":     cfg.ID,
		"method": cfg.Method.String(),
		"status": status,
		"length": body.Len(),
		"handle": uint64(h),
	})
	return domain.Result{Handle: uint64(h), Length: body.Len(), Status: status}, nil
}

// classify maps a transport or context failure to an error kind.
func (e *Engine) classify(cfg domain.RequestConfig, err error) error {
	switch {
	case e.Closed():
		return domain.Wrap(domain.KindAlreadyShutdown, opRequest, "engine shut down while the request was in flight", err)
	case httpclient.IsTimeout(err):
		msg := "request timed out"
		if cfg.Timeout > 0 {
			msg = fmt.Sprintf("request timed out after %s", cfg.Timeout)
		}
		return domain.Wrap(domain.KindTimeout, opRequest, msg, err)
	case httpclient.IsCanceled(err):
		return domain.Wrap(domain.KindTransport, opRequest, "request canceled", err)
	default:
		return domain.Wrap(domain.KindTransport, opRequest, fmt.Sprintf("%s %s failed", cfg.Method, cfg.URL), err)
	}
}

func errShutdown(op string) error {
	return domain.Errorf(domain.KindAlreadyShutdown, op, "engine is shut down")
}
