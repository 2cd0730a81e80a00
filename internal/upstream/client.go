package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20 // 1 MB

// Client calls the provider's generation endpoint. Each call is bounded by
// the configured timeout; a timeout surfaces as context.DeadlineExceeded
// wrapped in the returned error so the breaker counts it as a failure.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

var _ Generator = (*Client)(nil)

// NewClient creates a provider client from configuration.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.GetModel(),
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		limiter: limiter,
		log:     log.With().Str("component", "upstream").Logger(),
	}
}

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.httpClient.Timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("upstream: outbound throttle: %w", err)
		}
	}

	body, err := c.buildBody(req)
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("upstream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("upstream: generation timed out: %w", context.DeadlineExceeded)
		}
		return Result{}, fmt.Errorf("upstream: request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Warn().Err(closeErr).Msg("failed to close upstream response body")
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("upstream: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		upErr := &Error{
			Status:  resp.StatusCode,
			Code:    gjson.GetBytes(data, "error.type").String(),
			Message: gjson.GetBytes(data, "error.message").String(),
		}
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("code", upErr.Code).
			Msg("upstream generation failed")
		return Result{}, upErr
	}

	result := Result{
		Caption:   gjson.GetBytes(data, "caption").String(),
		Model:     gjson.GetBytes(data, "model").String(),
		RequestID: gjson.GetBytes(data, "request_id").String(),
	}
	if result.Caption == "" {
		return Result{}, fmt.Errorf("upstream: response missing caption")
	}
	if result.Model == "" {
		result.Model = c.model
	}
	return result, nil
}

// buildBody renders the provider payload, setting optional fields only
// when present so the provider's own defaults apply otherwise.
func (c *Client) buildBody(req Request) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "model", c.model)
	if err != nil {
		return nil, fmt.Errorf("upstream: encode body: %w", err)
	}
	if body, err = sjson.SetBytes(body, "prompt", req.Prompt); err != nil {
		return nil, fmt.Errorf("upstream: encode body: %w", err)
	}
	if req.Mode != "" {
		if body, err = sjson.SetBytes(body, "mode", req.Mode); err != nil {
			return nil, fmt.Errorf("upstream: encode body: %w", err)
		}
	}
	if req.ImageData != "" {
		if body, err = sjson.SetBytes(body, "image_data", req.ImageData); err != nil {
			return nil, fmt.Errorf("upstream: encode body: %w", err)
		}
	}
	return body, nil
}
