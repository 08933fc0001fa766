package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"pricescout-backend/internal/components/assert"
	"pricescout-backend/internal/components/telemetry"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	report_client_extract = "client.extract"
	report_client_attempt = "client.attempt"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second
)

type ClientOptions struct {
	// Endpoint is the url of the streaming extraction endpoint.
	Endpoint string
	APIKey   string
	// Timeout bounds a single attempt, reading the stream included.
	Timeout time.Duration
	// MaxRetries is the total number of attempts per extraction.
	MaxRetries int
	// BackoffBase is the delay after the first failed attempt, it doubles after every attempt.
	BackoffBase time.Duration
	// RequestsPerSecond throttles all requests made by the client, 0 means unlimited.
	RequestsPerSecond float64
}

func (o *ClientOptions) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
}

// Client drives extraction requests against the streaming extraction service.
// It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	opts   ClientOptions
	tel    telemetry.API
	tracer trace.Tracer
}

func NewClient(opts ClientOptions, tel telemetry.API) *Client {
	assert.NotEmptyStr(opts.Endpoint, "endpoint")
	assert.NotNil(tel, "tel")
	opts.setDefaults()

	tel = telemetry.NewScopedAPI("extraction", tel)

	httpClient := resty.New()
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeader("X-API-Key", opts.APIKey)
	httpClient.SetHeader("Content-Type", "application/json")
	httpClient.SetHeader("Accept", "text/event-stream")

	if opts.RequestsPerSecond > 0 {
		// burst >= 1 just means that no requests will be dropped
		burst := int(math.Max(1, math.Ceil(opts.RequestsPerSecond)))
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}
	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		http:   httpClient,
		opts:   opts,
		tel:    tel,
		tracer: otel.Tracer("pricescout-backend/internal/extraction"),
	}
}

// Extract runs one extraction of goal against url, it retries up to the configured
// MaxRetries attempts in total.
func (c *Client) Extract(ctx context.Context, url, goal string) (json.RawMessage, error) {
	return c.ExtractWithRetries(ctx, url, goal, c.opts.MaxRetries)
}

// ExtractWithRetries is Extract with an explicit number of total attempts.
//
// The result is the raw payload of the first COMPLETED event. Errors wrap one of
// ErrUnreachable, ErrUpstreamRejected or ErrNoResult, or are the context's error
// when ctx is done.
func (c *Client) ExtractWithRetries(ctx context.Context, url, goal string, maxRetries int) (json.RawMessage, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	ctx, span := c.tracer.Start(ctx, "Extract", trace.WithAttributes(
		attribute.String("extraction.url", url),
		attribute.Int("extraction.max_retries", maxRetries),
	))
	defer span.End()

	req := Request{URL: url, Goal: goal}
	attempt := 0
	var result json.RawMessage

	operation := func() error {
		attempt++
		c.tel.ReportDebug(
			"extract attempt",
			telemetry.KV{Key: "url", Value: url},
			telemetry.KV{Key: "attempt", Value: fmt.Sprintf("%d/%d", attempt, maxRetries)},
		)

		var err error
		result, err = c.attempt(ctx, req)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, ErrUpstreamRejected) {
			return backoff.Permanent(err)
		}
		return err
	}

	onRetry := func(err error, wait time.Duration) {
		c.tel.ReportWarning(
			report_client_attempt,
			err,
			telemetry.KV{Key: "url", Value: url},
			telemetry.KV{Key: "attempt", Value: attempt},
			telemetry.KV{Key: "retry_in", Value: wait.String()},
		)
	}

	err := backoff.RetryNotify(operation, c.retryPolicy(ctx, maxRetries), onRetry)
	span.SetAttributes(attribute.Int("extraction.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrUpstreamRejected) || ctx.Err() != nil {
			c.tel.ReportWarning(report_client_extract, err, telemetry.KV{Key: "url", Value: url})
		} else {
			c.tel.ReportBroken(report_client_extract, err, telemetry.KV{Key: "url", Value: url})
		}
		return nil, err
	}

	c.tel.ReportDebug(
		"extract completed",
		telemetry.KV{Key: "url", Value: url},
		telemetry.KV{Key: "attempts", Value: attempt},
	)
	return result, nil
}

// retryPolicy waits base, 2*base, 4*base, ... between attempts.
func (c *Client) retryPolicy(ctx context.Context, maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.opts.BackoffBase << 10
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(maxRetries-1)),
		ctx,
	)
}

// attempt makes a single request and runs its stream through the protocol.
func (c *Client) attempt(ctx context.Context, req Request) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post(c.opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	body := res.RawBody()
	if body == nil {
		return nil, fmt.Errorf("%w: empty response", ErrUnreachable)
	}
	defer body.Close()

	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnreachable, res.StatusCode(), string(snippet))
	}

	var protocol Protocol
	err = Consume(body, &protocol)

	switch protocol.State() {
	case StateCompleted:
		return protocol.Result(), nil
	case StateFailed:
		return nil, fmt.Errorf("%w: %s", ErrUpstreamRejected, protocol.Failure())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read stream: %w", ErrUnreachable, err)
	}
	return nil, ErrNoResult
}
