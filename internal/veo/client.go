// Package veo is a stateless protocol adapter for the remote
// long-running-operation video generation API. It performs exactly one
// network call per method; retry and polling cadence live in the
// orchestration layer so each call stays independently testable.
package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyreel/internal/domain"
)

// SubmissionError reports that the remote service rejected a request.
type SubmissionError struct {
	StatusCode int
	Message    string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("veo: remote rejected request (status %d): %s", e.StatusCode, e.Message)
}

// ProtocolError reports a response whose shape violates the expected
// contract, e.g. a creation response without an operation name.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "veo: protocol violation: " + e.Message
}

// DownloadError reports a failed fetch of the final binary asset.
type DownloadError struct {
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("veo: binary download failed (status %d)", e.StatusCode)
}

// OperationFailure is the structured error a completed operation may carry.
type OperationFailure struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Operation is the remote job handle observed through Poll. Response is kept
// raw because the provider's success envelope differs by model tier; the
// pipeline package probes it through its extraction table.
type Operation struct {
	Name     string            `json:"name"`
	Done     bool              `json:"done"`
	Error    *OperationFailure `json:"error,omitempty"`
	Response json.RawMessage   `json:"response,omitempty"`
}

type instanceImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

type instance struct {
	Prompt string         `json:"prompt,omitempty"`
	Image  *instanceImage `json:"image,omitempty"`
}

type parameters struct {
	AspectRatio    string `json:"aspectRatio,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	SampleCount    int    `json:"sampleCount,omitempty"`
}

type predictRequest struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type predictResponse struct {
	Name string `json:"name"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// Options controls how the client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client issues requests against the LRO video API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a client with sane defaults. Callers may provide a
// nil HTTP client; a reusable one with a generous timeout will be created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     opts.Logger,
	}
}

// Submit builds the provider request body from req and issues the creation
// call, returning the opaque operation name assigned by the service.
func (c *Client) Submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = domain.DefaultModel
	}

	inst := instance{Prompt: strings.TrimSpace(req.Prompt)}
	if len(req.StartFrame) > 0 {
		mime := req.StartFrameMIME
		if mime == "" {
			mime = "image/png"
		}
		inst.Image = &instanceImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.StartFrame),
			MimeType:           mime,
		}
	}

	payload := predictRequest{
		Instances: []instance{inst},
		Parameters: parameters{
			AspectRatio:    req.AspectRatio,
			NegativePrompt: req.NegativePrompt,
			SampleCount:    1,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, url.PathEscape(string(model)))
	var resp predictResponse
	if err := c.postJSON(ctx, endpoint, payload, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Name) == "" {
		return "", &ProtocolError{Message: "creation response lacks operation name"}
	}

	c.logger.Debug().Str("model", string(model)).Str("operation", resp.Name).Msg("veo: operation submitted")
	return resp.Name, nil
}

// Poll fetches the current state of an operation once. It does not loop.
func (c *Client) Poll(ctx context.Context, operationName string) (*Operation, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(operationName, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: create poll request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("veo: poll operation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.submissionError(resp)
	}

	var op Operation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, &ProtocolError{Message: "decode operation state: " + err.Error()}
	}
	if op.Name == "" {
		op.Name = operationName
	}
	return &op, nil
}

// FetchBinary retrieves the final asset from the locator a completed
// operation returned.
func (c *Client) FetchBinary(ctx context.Context, locator string) ([]byte, error) {
	target := locator
	if !strings.HasPrefix(locator, "http://") && !strings.HasPrefix(locator, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(locator, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("veo: create download request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("veo: download binary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &DownloadError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("veo: read binary: %w", err)
	}
	return data, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("veo: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("veo: invoke api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.submissionError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProtocolError{Message: "decode response: " + err.Error()}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
}

func (c *Client) submissionError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &SubmissionError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
	}
	return &SubmissionError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
}
