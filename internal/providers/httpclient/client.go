package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aistack/controlpanel/internal/infrastructure/monitoring"
	"github.com/aistack/controlpanel/internal/infrastructure/resilience"
	"github.com/aistack/controlpanel/internal/shared/upstream"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

const userAgent = "aistack-controlpanel/1.0"

// Options configures a backend client
type Options struct {
	// Name labels the backend in errors, metrics and breaker transitions
	Name    string
	BaseURL string
	Timeout time.Duration
	// UnixSocket, when set, routes every request over this socket
	UnixSocket string
	// Breaker overrides resilience.DefaultSettings; zero fields keep their defaults
	Breaker *resilience.Settings
}

// Client wraps resty with a circuit breaker and upstream error mapping
type Client struct {
	name    string
	resty   *resty.Client
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
}

// New creates a client for one backend
func New(opts Options) *Client {
	// Pooled transport only; resty owns the request and retries stay off
	// because lifecycle and transcription calls are not idempotent.
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = 0

	transport := pooledTransport(retryClient)
	if opts.UnixSocket != "" {
		socket := opts.UnixSocket
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", socket)
		}
	}

	restyClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("User-Agent", userAgent).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTransport(transport)
	if opts.Timeout > 0 {
		restyClient.SetTimeout(opts.Timeout)
	}

	settings := resilience.DefaultSettings()
	if opts.Breaker != nil {
		settings = *opts.Breaker
	}
	// Only unreachable backends count; a reply of any status proves it is up.
	settings.IsFailure = upstream.IsUnavailable
	settings.IsIgnored = func(err error) bool { return errors.Is(err, upstream.ErrAbandoned) }

	c := &Client{name: opts.Name, resty: restyClient}
	notify := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to resilience.State) {
		c.metrics.SetBreakerOpen(name, to.Openness())
		if notify != nil {
			notify(name, from, to)
		}
	}
	c.breaker = resilience.New(opts.Name, settings)
	return c
}

func pooledTransport(rc *retryablehttp.Client) *http.Transport {
	if t, ok := rc.HTTPClient.Transport.(*http.Transport); ok {
		return t.Clone()
	}
	return http.DefaultTransport.(*http.Transport).Clone()
}

// WithMetrics attaches upstream latency and breaker metrics. Call it before
// the client is shared.
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	metrics.SetBreakerOpen(c.name, c.breaker.State().Openness())
	return c
}

// Name returns the backend label
func (c *Client) Name() string {
	return c.name
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Do builds a request bound to ctx, hands it to send and classifies the
// outcome. Transport faults and an open breaker become upstream.ErrUnavailable;
// replies outside 2xx become *upstream.Error and the response is still
// returned for callers that want the body. A call cut short because the
// caller gave up becomes upstream.ErrAbandoned and leaves the breaker alone.
func (c *Client) Do(ctx context.Context, operation string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	defer c.metrics.TimeUpstream(c.name, operation)()

	resp, err := resilience.Call(c.breaker, func() (*resty.Response, error) {
		resp, err := send(c.resty.R().SetContext(ctx))
		if err != nil {
			if upstream.IsAbandoned(ctx) {
				return nil, upstream.Abandoned(ctx, c.name)
			}
			return nil, upstream.Unavailable(c.name, err)
		}
		if !resp.IsSuccess() {
			return resp, &upstream.Error{
				Service: c.name,
				Status:  resp.StatusCode(),
				Body:    strings.TrimSpace(resp.String()),
			}
		}
		return resp, nil
	})
	if resilience.IsOpen(err) {
		return nil, upstream.Unavailable(c.name, err)
	}
	return resp, err
}
