package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every backend call
const DefaultTimeout = 10 * time.Second

// ErrContractViolation is returned in strict mode when a backend response does
// not match the documented shape
var ErrContractViolation = errors.New("backend response violates contract")

// ResponseValidator checks a backend response against the consumed API contract
type ResponseValidator interface {
	ValidateResponse(ctx context.Context, req *http.Request, status int, header http.Header, body []byte) error
}

// APIError is a non-2xx answer from the backend
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("%s: backend returned status %d: %s", e.Endpoint, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: backend returned status %d", e.Endpoint, e.StatusCode)
}

// Language returns the language tag carried in the error body, if any
func (e *APIError) Language() string {
	var body struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return ""
	}
	return body.Language
}

// Message returns the server's error text, if the body carries one
func (e *APIError) Message() string {
	var body map[string]any
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return ""
	}
	for _, key := range []string{"error", "detail", "message"} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Config holds backend connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the shared HTTP client for every backend gateway
type Client struct {
	http      *resty.Client
	validator ResponseValidator
	metrics   *metrics.PortalMetrics
	logger    *zap.Logger
}

// NewClient creates a backend client. Requests are never retried.
func NewClient(cfg Config, m *metrics.PortalMetrics, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{
		http:    httpClient,
		metrics: m,
		logger:  logger,
	}
}

// SetValidator enables strict contract checking of every successful response
func (c *Client) SetValidator(v ResponseValidator) {
	c.validator = v
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// execute issues req and classifies the outcome. The returned body is only
// valid for 2xx answers; anything else comes back as *APIError.
func (c *Client) execute(ctx context.Context, endpoint, method, path string, req *resty.Request) ([]byte, error) {
	start := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveGatewayRequest(endpoint, "transport_error", elapsed.Seconds())
		c.logger.Error("backend request failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("processing_time", elapsed),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to call %s: %w", endpoint, err)
	}

	if !resp.IsSuccess() {
		c.metrics.ObserveGatewayRequest(endpoint, "backend_error", elapsed.Seconds())
		apiErr := &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode(), Body: resp.Body()}
		c.logger.Error("backend returned error",
			zap.String("endpoint", endpoint),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("processing_time", elapsed),
		)
		return nil, apiErr
	}

	if c.validator != nil && resp.Request != nil && resp.Request.RawRequest != nil {
		if err := c.validator.ValidateResponse(ctx, resp.Request.RawRequest, resp.StatusCode(), resp.Header(), resp.Body()); err != nil {
			c.metrics.ObserveGatewayRequest(endpoint, "contract_violation", elapsed.Seconds())
			c.logger.Error("backend response failed contract validation",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%s: %w: %v", endpoint, ErrContractViolation, err)
		}
	}

	c.metrics.ObserveGatewayRequest(endpoint, "ok", elapsed.Seconds())
	c.logger.Debug("backend request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("processing_time", elapsed),
	)
	return resp.Body(), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string) ([]byte, error) {
	return c.execute(ctx, endpoint, http.MethodGet, path, c.request(ctx))
}

func (c *Client) sendJSON(ctx context.Context, endpoint, method, path string, body any) ([]byte, error) {
	req := c.request(ctx).SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	return c.execute(ctx, endpoint, method, path, req)
}
