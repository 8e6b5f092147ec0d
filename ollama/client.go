package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/notewell/inference"
)

// Interface compliance checks.
var (
	_ inference.Backend  = (*Client)(nil)
	_ inference.Streamer = (*Client)(nil)
)

// Client implements [inference.Backend] for the Ollama HTTP API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client

	mu        sync.Mutex
	lastErr   string
	reachable bool
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithModel sets the model name. Default is llama3.1:8b.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new Ollama [Client] with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: http.DefaultClient,
		reachable:  true, // assumed up until a call or probe says otherwise
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate sends a non-streaming request to /api/generate.
func (c *Client) Generate(ctx context.Context, req inference.Request) (inference.Result, error) {
	if err := req.Validate(); err != nil {
		return inference.Result{}, fmt.Errorf("ollama: %w", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return inference.Result{}, err
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return inference.Result{}, c.fail(fmt.Errorf("ollama: decoding response: %v: %w", err, inference.ErrGeneration))
	}
	c.setLastErr("")

	return inference.Result{
		Text:     ar.Response,
		Backend:  Name,
		Duration: time.Since(start),
		Usage: inference.Usage{
			InputTokens:  ar.PromptEvalCount,
			OutputTokens: ar.EvalCount,
		},
	}, nil
}

// GenerateStream sends a streaming request to /api/generate and wraps
// the newline-delimited JSON response in an [inference.Stream].
func (c *Client) GenerateStream(ctx context.Context, req inference.Request) (inference.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return newStream(ctx, resp.Body), nil
}

// Available probes /api/version and caches the outcome for Status. It
// returns false rather than propagating transient errors.
func (c *Client) Available(ctx context.Context) bool {
	ok := c.probe(ctx)
	c.setReachable(ok)
	return ok
}

func (c *Client) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+versionPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Status reports the last-known operational state. It performs no
// network I/O; Available refreshes the snapshot.
func (c *Client) Status() inference.StatusReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return inference.StatusReport{
		Name:      Name,
		Available: c.reachable,
		Metered:   false,
		LastError: c.lastErr,
	}
}

// post builds and sends the /api/generate request, translating
// transport and HTTP-status failures into the shared error taxonomy.
func (c *Client) post(ctx context.Context, req inference.Request, stream bool) (*http.Response, error) {
	body, err := json.Marshal(apiRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: stream,
		Options: &apiOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return nil, c.fail(fmt.Errorf("ollama: encoding request: %v: %w", err, inference.ErrGeneration))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(fmt.Errorf("ollama: %v: %w", err, inference.ErrGeneration))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.setReachable(false)
		return nil, c.fail(fmt.Errorf("ollama: %v: %w", err, inference.ErrUnavailable))
	}
	c.setReachable(true)
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr apiErrorResponse
		msg := resp.Status
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, c.fail(fmt.Errorf("ollama: %s: %w", msg, inference.ErrGeneration))
	}
	return resp, nil
}

// fail records the error summary for Status and returns the error.
func (c *Client) fail(err error) error {
	c.setLastErr(err.Error())
	return err
}

func (c *Client) setLastErr(s string) {
	c.mu.Lock()
	c.lastErr = s
	c.mu.Unlock()
}

func (c *Client) setReachable(ok bool) {
	c.mu.Lock()
	c.reachable = ok
	c.mu.Unlock()
}
