package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultMaxRedirects is the number of redirects followed when none is configured.
	DefaultMaxRedirects = 10
	// DefaultKeepAlive is the TCP keep-alive period of the dialer.
	DefaultKeepAlive = 30 * time.Second
	// DefaultUserAgent is sent when the caller does not set one.
	DefaultUserAgent = "httpbridge/1"
)

// Options configures the resty-backed transport.
type Options struct {
	FollowRedirects    bool
	MaxRedirects       int
	KeepAlive          time.Duration
	InsecureSkipVerify bool
	UserAgent          string
	Debug              bool
	// Logger receives resty's own diagnostics. A *zap.SugaredLogger fits.
	Logger resty.Logger
}

// DefaultOptions mirrors the transport the engine ships with.
func DefaultOptions() Options {
	return Options{
		FollowRedirects: true,
		MaxRedirects:    DefaultMaxRedirects,
		KeepAlive:       DefaultKeepAlive,
		UserAgent:       DefaultUserAgent,
	}
}

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a RestyClient. Timeouts are per request, taken from
// the context passed to Do, so the client itself has none.
func NewRestyClient(opts Options) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(opts)}
}

// newRestyBaseClient creates a new resty.Client from opts.
func newRestyBaseClient(opts Options) *resty.Client {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	dialer := &net.Dialer{KeepAlive: opts.KeepAlive}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	c := resty.New()
	c.SetTransport(transport)
	c.SetRedirectPolicy(redirectPolicy(opts.FollowRedirects, opts.MaxRedirects))
	c.SetHeader("User-Agent", opts.UserAgent)
	c.SetDebug(opts.Debug)
	if opts.Logger != nil {
		c.SetLogger(opts.Logger)
	}
	return c
}

// redirectPolicy never turns a redirect into an error: once redirects are
// disabled or the cap is reached, the last 3xx response is returned as-is.
func redirectPolicy(follow bool, max int) resty.RedirectPolicy {
	if max <= 0 {
		max = DefaultMaxRedirects
	}
	return resty.RedirectPolicyFunc(func(_ *http.Request, via []*http.Request) error {
		if !follow || len(via) >= max {
			return http.ErrUseLastResponse
		}
		return nil
	})
}

// Do performs req with the deadline and cancellation carried by ctx.
func (r *RestyClient) Do(ctx context.Context, req Request) (Response, error) {
	rr := r.client.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		rr.SetHeaders(req.Headers)
	}
	if req.Body != nil {
		rr.SetBody(req.Body)
	}
	resp, err := rr.Execute(req.Method, req.URL)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }

// IsTimeout reports whether err means the exchange ran out of time.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsCanceled reports whether err came from a cancelled context.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}
