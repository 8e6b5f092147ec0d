package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/notewell/inference"
)

// Interface compliance checks.
var (
	_ inference.Backend  = (*Client)(nil)
	_ inference.Streamer = (*Client)(nil)
)

// Client implements [inference.Backend] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string

	mu      sync.Mutex
	lastErr string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model ID. Default is gemini-2.5-pro.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client: gc,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Generate sends a non-streaming request to the Gemini API.
func (c *Client) Generate(ctx context.Context, req inference.Request) (inference.Result, error) {
	if err := req.Validate(); err != nil {
		return inference.Result{}, fmt.Errorf("gemini: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), buildConfig(req))
	if err != nil {
		return inference.Result{}, c.fail(fmt.Errorf("gemini: %v: %w", err, classifyErr(err)))
	}
	c.setLastErr("")

	return inference.Result{
		Text:     resp.Text(),
		Backend:  Name,
		Duration: time.Since(start),
		Usage:    convertUsage(resp.UsageMetadata),
	}, nil
}

// GenerateStream sends a streaming request to the Gemini API and
// returns an [inference.Stream] over the response chunks.
func (c *Client) GenerateStream(ctx context.Context, req inference.Request) (inference.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	iter := c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(req.Prompt), buildConfig(req))
	return newStream(iter), nil
}

// Available reports whether the client is configured. A Gemini liveness
// probe would itself be a metered call, so availability reflects
// construction success and the most recent call outcome.
func (c *Client) Available(_ context.Context) bool {
	return c.client != nil
}

// Status reports an operational snapshot.
func (c *Client) Status() inference.StatusReport {
	c.mu.Lock()
	lastErr := c.lastErr
	c.mu.Unlock()
	return inference.StatusReport{
		Name:      Name,
		Available: c.client != nil,
		Metered:   true,
		LastError: lastErr,
	}
}

// classifyErr maps a failed API call onto the shared error taxonomy:
// transport and deadline failures mean the backend cannot be reached,
// anything else is a generation failure.
func classifyErr(err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &nerr) {
		return inference.ErrUnavailable
	}
	return inference.ErrGeneration
}

func (c *Client) fail(err error) error {
	c.setLastErr(err.Error())
	return err
}

func (c *Client) setLastErr(s string) {
	c.mu.Lock()
	c.lastErr = s
	c.mu.Unlock()
}

func buildConfig(req inference.Request) *genai.GenerateContentConfig {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}

	return config
}

// convertUsage normalizes genai usage metadata to the domain invariant:
// InputTokens excludes cache reads, which arrive as a separate count.
func convertUsage(md *genai.GenerateContentResponseUsageMetadata) inference.Usage {
	if md == nil {
		return inference.Usage{}
	}
	input := int(md.PromptTokenCount) - int(md.CachedContentTokenCount)
	if input < 0 {
		input = 0
	}
	return inference.Usage{
		InputTokens:     input,
		OutputTokens:    int(md.CandidatesTokenCount),
		CacheReadTokens: int(md.CachedContentTokenCount),
	}
}
