package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/resilience"
)

const (
	statusOK        = 1
	maxResponseSize = 4 << 20
	genericRejected = "The request could not be completed. Please try again."
)

var (
	// ErrUnavailable marks transport failures, 5xx answers and unreadable responses.
	ErrUnavailable = errors.New("order api unavailable")
	// ErrRejected marks answers whose status discriminator is not success.
	ErrRejected = errors.New("order api rejected request")
	// ErrNotConfigured is returned when the client has no base URL.
	ErrNotConfigured = errors.New("order api not configured")
)

// RejectedError carries the server-provided message of a rejected request.
type RejectedError struct {
	Operation string
	Message   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("orderapi %s: %s", e.Operation, e.Message)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// RejectionMessage extracts the user-facing message from a rejection, falling back to a
// generic text.
func RejectionMessage(err error) string {
	var rej *RejectedError
	if errors.As(err, &rej) && strings.TrimSpace(rej.Message) != "" {
		return rej.Message
	}
	return genericRejected
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Breaker *resilience.Breaker
	Logger  zerolog.Logger
}

// Client talks to the remote order-management API. Every call is a single attempt.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// New builds a client with an instrumented transport and a circuit breaker.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("order-api").WithLogger(cfg.Logger)
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		APIKey:  strings.TrimSpace(cfg.APIKey),
		HTTP: resilience.HTTPClient{
			Client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker: breaker,
			Timeout: timeout,
		},
		Logger: cfg.Logger,
	}
}

// Ping checks that the order API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.BaseURL == "" {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	c.decorate(req)
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("orderapi ping: %w: %w", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("orderapi ping: %w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) call(ctx context.Context, operation, method, path string, query url.Values, body any, dst any) (string, error) {
	if c == nil || c.BaseURL == "" {
		return "", ErrNotConfigured
	}
	ctx, span := otel.Tracer("orderapi.Client").Start(ctx, "orderapi."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("orderapi.operation", operation))

	start := time.Now()
	message, err := c.roundTrip(ctx, operation, method, path, query, body, dst)
	result := "ok"
	switch {
	case errors.Is(err, ErrRejected):
		result = "rejected"
	case err != nil:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if obs.OrderAPIRequestDuration != nil {
		obs.OrderAPIRequestDuration.WithLabelValues(operation, result).Observe(obs.DurationMillis(time.Since(start)))
	}
	if result == "error" {
		c.Logger.Warn().Err(err).Str("operation", operation).Msg("order_api_call_failed")
	}
	return message, err
}

func (c *Client) roundTrip(ctx context.Context, operation, method, path string, query url.Values, body any, dst any) (string, error) {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("orderapi %s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", fmt.Errorf("orderapi %s: build request: %w", operation, err)
	}
	c.decorate(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("orderapi %s: %w: %w", operation, ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("orderapi %s: read response: %w: %w", operation, ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("orderapi %s: %w: status %d", operation, ErrUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return "", &RejectedError{Operation: operation, Message: genericRejected}
		}
		return "", fmt.Errorf("orderapi %s: decode response: %w: %w", operation, ErrUnavailable, err)
	}
	if env.Status != statusOK {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = genericRejected
		}
		return "", &RejectedError{Operation: operation, Message: msg}
	}
	if dst != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return "", fmt.Errorf("orderapi %s: decode data: %w: %w", operation, ErrUnavailable, err)
		}
	}
	return env.Message, nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "storefront-api/1.0")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
}
