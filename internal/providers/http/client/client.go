package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/logging"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/resilience"
)

// ErrUpstreamUnavailable means the upstream host's breaker is open
var ErrUpstreamUnavailable = errors.New("upstream temporarily unavailable")

// Config configures the upstream client. Timeout bounds connecting and
// waiting for response headers; bodies stream for as long as the caller's
// context allows.
type Config struct {
	Timeout           time.Duration
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns client defaults for fetching media
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		RetryMax:          2,
		RetryWaitMin:      200 * time.Millisecond,
		RetryWaitMax:      2 * time.Second,
		RequestsPerSecond: 50,
		Burst:             100,
	}
}

// Client wraps resty with rate limiting, retries and per-host circuit breakers
type Client struct {
	Resty    *resty.Client
	Limiter  *rate.Limiter
	Breakers *resilience.Group
}

// NewClient creates the upstream client. Retries live in the transport so
// streamed responses are retried before any byte reaches the caller.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("upstream")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = retryLogger{logger.Sugar()}
	// Hand the last upstream response back instead of an error so its
	// status can be relayed
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient.Timeout = 0
	if t, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok && cfg.Timeout > 0 {
		t.ResponseHeaderTimeout = cfg.Timeout
		t.DialContext = (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetRetryCount(0)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(burst, 1))
	}

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// CDNs flap; trip only on a clear streak
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(host string, from, to resilience.State) {
			logger.Warn("Upstream breaker state changed",
				zap.String("host", host),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Client{
		Resty:    restyClient,
		Limiter:  limiter,
		Breakers: breakers,
	}
}

// Request creates a rate-limited request bound to ctx
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	return c.Resty.R().SetContext(ctx), nil
}

// Stream issues a GET whose body is left unread. The caller must close
// resp.RawBody(). Only transport errors count against the host's breaker.
func (c *Client) Stream(ctx context.Context, target *url.URL, headers map[string]string) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}
	req.SetHeaders(headers).SetDoNotParseResponse(true)

	resp, err := resilience.Call(c.Breakers.Get(target.Host), func() (*resty.Response, error) {
		return req.Get(target.String())
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, target.Host)
	case err != nil:
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		return nil, err
	}
	return resp, nil
}

// BreakerStates returns the breaker state of every upstream host seen
func (c *Client) BreakerStates() map[string]resilience.State {
	return c.Breakers.States()
}

// retryLogger adapts zap to retryablehttp's leveled logger
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }
