// Package genai is the HTTP client for the external plan and image
// generation service. It performs no retries; failures are returned in the
// shapes the retry classifier understands.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/infra/retry"
)

const (
	planPath  = "/v1/plans"
	imagePath = "/v1/images"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4096
)

// Config holds client settings.
type Config struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	PlanModel  string
	ImageModel string
}

// Client talks to the generation service over HTTP/JSON.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new generation client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type planRequest struct {
	Model   string             `json:"model,omitempty"`
	Request domain.PlanRequest `json:"request"`
}

type planResponse struct {
	Plan *domain.Plan `json:"plan"`
}

// GeneratePlan asks the service for a subdivision plan. The plan is returned
// as-is; validation is up to the caller.
func (c *Client) GeneratePlan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	var resp planResponse
	body := planRequest{Model: c.cfg.PlanModel, Request: req}
	if err := c.post(ctx, planPath, body, &resp); err != nil {
		return nil, err
	}
	if resp.Plan == nil {
		return nil, retry.NewCodeError(retry.CodeInvalidPlan, "response contained no plan")
	}
	return resp.Plan, nil
}

type imageRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []domain.Image `json:"data"`
}

// GenerateImage asks the service to render a preview image.
func (c *Client) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.Image, error) {
	var resp imageResponse
	body := imageRequest{Model: c.cfg.ImageModel, Prompt: req.Prompt, Size: req.Size}
	if err := c.post(ctx, imagePath, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("image response contained no data")
	}
	return &resp.Data[0], nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Keep the chain intact so the classifier can see the network error.
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		if path == planPath {
			return retry.NewCodeError(retry.CodeInvalidPlan, "parse plan response: %v", err)
		}
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &retry.APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, &apiErr.Data); err != nil || apiErr.Data.Error.Message == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		apiErr.Data.Error.Message = msg
	}
	return apiErr
}
