package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	errs "retrying/pkg/errors"
	"retrying/pkg/logger"
	"retrying/pkg/retry"
)

// DefaultUserAgent is sent unless overridden with SetHeader.
const DefaultUserAgent = "retrying-httpclient/1.0"

// Client sends HTTP requests and retries failed ones under an executor.
// Failures are classified into errs kinds so policies can choose which
// statuses to retry.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	executor   *retry.Executor
	logger     logger.Logger
}

// NewClient creates a client with a per-attempt timeout. A nil executor
// sends every request exactly once.
func NewClient(timeout time.Duration, executor *retry.Executor, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": DefaultUserAgent,
			"Accept":     "*/*",
		},
		executor: executor,
		logger:   logger.Or(log),
	}
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// Do sends req, retrying under the client's policy. A response is only
// returned for a 2xx or 3xx status; its body must be closed by the caller.
// Requests with a body must set GetBody to be retried.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.executor == nil {
		return c.attempt(ctx, req, 1)
	}

	var (
		resp   *http.Response
		number uint
	)
	err := c.executor.Run(ctx, func() error {
		number++
		r, err := c.attempt(ctx, req, number)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// attempt performs one round trip and maps failures to typed errors.
func (c *Client) attempt(ctx context.Context, req *http.Request, number uint) (*http.Response, error) {
	r := req.Clone(ctx)
	if number > 1 && req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errs.New(errs.ErrorTypeInvalid, 0, "request body cannot be replayed")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeInvalid, 0, err)
		}
		r.Body = body
	}
	for key, value := range c.headers {
		if r.Header.Get(key) == "" {
			r.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method":  r.Method,
		"url":     r.URL.String(),
		"attempt": number,
	})

	resp, err := c.httpClient.Do(r)
	duration := time.Since(start)
	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   r.Method,
			"url":      r.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, classifyTransport(ctx, err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   r.Method,
		"url":      r.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := c.checkResponseStatus(resp); err != nil {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// Get performs a GET request to the specified URL
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalid, 0, fmt.Errorf("failed to create request: %w", err))
	}
	return c.Do(ctx, req)
}

// GetJSON performs a GET request and decodes the JSON response. A body
// that fails to decode is not retried.
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.Wrap(errs.ErrorTypeInvalid, resp.StatusCode, fmt.Errorf("failed to parse JSON: %w", err))
	}

	return nil
}

// checkResponseStatus maps an HTTP status to a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	t := StatusType(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
		"kind":   t,
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		fields["retry_after"] = ra
	}
	if resp.StatusCode >= 500 {
		c.logger.ErrorWithFields("server error", fields)
	} else {
		c.logger.WarnWithFields("request rejected", fields)
	}

	return errs.New(t, resp.StatusCode, fmt.Sprintf("%s %s returned %s", resp.Request.Method, resp.Request.URL.Redacted(), resp.Status))
}

// StatusType classifies an HTTP error status.
func StatusType(code int) errs.ErrorType {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.ErrorTypeAuth
	case code == http.StatusNotFound || code == http.StatusGone:
		return errs.ErrorTypeNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return errs.ErrorTypeTimeout
	case code == http.StatusTooManyRequests:
		return errs.ErrorTypeRateLimit
	case code == http.StatusServiceUnavailable || code == http.StatusBadGateway:
		return errs.ErrorTypeUnavailable
	case code >= 500:
		return errs.ErrorTypeServerError
	case code >= 400:
		return errs.ErrorTypeInvalid
	default:
		return errs.ErrorTypeUnknown
	}
}

// classifyTransport maps an error from http.Client.Do. Cancellation of ctx
// is returned unwrapped.
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Wrap(errs.ErrorTypeTimeout, 0, err)
	}
	return errs.Wrap(errs.ErrorTypeNetwork, 0, err)
}
