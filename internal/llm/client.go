// Package llm wraps generative model invocation with structured-output
// parsing, bounded repair retries for malformed responses, and the shared
// network retry policy.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"

	"github.com/medkb/kbgen/internal/retry"
)

const (
	// DefaultModel is used when configuration does not name one.
	DefaultModel = "gemini-2.0-flash"

	// DefaultRepairAttempts bounds how many times malformed output is fed
	// back to the model for correction. Separate from the network retry
	// budget so a persistently confused model cannot consume it.
	DefaultRepairAttempts = 2

	// DefaultMaxInFlight caps concurrent model calls across all
	// conditions.
	DefaultMaxInFlight = 4
)

// Invoker issues one generation call and returns the raw response text.
// The production implementation talks to Gemini; tests substitute fakes.
type Invoker interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client executes prompts and parses their JSON responses against caller
// schemas, repairing malformed output within a bounded budget.
type Client struct {
	invoker        Invoker
	retrier        *retry.Retrier
	sem            *semaphore.Weighted
	logger         *zap.Logger
	repairAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithRetrier replaces the default retry policy.
func WithRetrier(r *retry.Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// WithRepairAttempts sets the malformed-output repair budget.
func WithRepairAttempts(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.repairAttempts = n
		}
	}
}

// WithMaxInFlight caps concurrent model calls.
func WithMaxInFlight(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a Client around any Invoker.
func NewClient(invoker Invoker, opts ...Option) *Client {
	c := &Client{
		invoker:        invoker,
		retrier:        retry.New(retry.DefaultPolicy()),
		sem:            semaphore.NewWeighted(DefaultMaxInFlight),
		logger:         zap.NewNop(),
		repairAttempts: DefaultRepairAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateJSON runs the prompt and unmarshals the response into out.
// Network faults retry under the shared policy; responses that arrive but
// fail to parse are cleaned locally, then fed back to the model for repair
// up to the repair budget.
func (c *Client) GenerateJSON(ctx context.Context, op, prompt string, out any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	raw, err := c.generate(ctx, op, prompt)
	if err != nil {
		return err
	}

	parseErr := unmarshalClean(raw, out)
	for attempt := 0; parseErr != nil && attempt < c.repairAttempts; attempt++ {
		c.logger.Warn("malformed model output, requesting repair",
			zap.String("op", op),
			zap.Int("repair_attempt", attempt+1),
			zap.Int("repair_budget", c.repairAttempts),
			zap.Error(parseErr))

		raw, err = c.generate(ctx, op+" repair", repairPrompt(raw, parseErr))
		if err != nil {
			return err
		}
		parseErr = unmarshalClean(raw, out)
	}
	if parseErr != nil {
		return fmt.Errorf("%s: repair budget exhausted: %w", op, parseErr)
	}
	return nil
}

// generate issues one model call under the network retry policy.
func (c *Client) generate(ctx context.Context, op, prompt string) (string, error) {
	var raw string
	err := c.retrier.Do(ctx, op, func(ctx context.Context) error {
		text, err := c.invoker.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	return raw, err
}

func unmarshalClean(raw string, out any) error {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return errors.New("empty response")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("parsing model output: %w", err)
	}
	return nil
}

func repairPrompt(raw string, parseErr error) string {
	return fmt.Sprintf(`The following output was supposed to be strict JSON but failed to parse (%v).

Return the same content as valid JSON. Do not add commentary, explanations, or code fences. Output only the corrected JSON.

OUTPUT TO FIX:
%s`, parseErr, raw)
}

// GeminiInvoker calls the Gemini API through the official SDK.
type GeminiInvoker struct {
	client *genai.Client
	model  string
}

// NewGeminiInvoker creates the production Invoker. The model defaults to
// DefaultModel when empty.
func NewGeminiInvoker(ctx context.Context, apiKey, model string) (*GeminiInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("model API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiInvoker{client: client, model: model}, nil
}

// Generate issues one generation call requesting a JSON response.
func (g *GeminiInvoker) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
	if err != nil {
		return "", classifyGenAIError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", retry.ErrUnavailable)
	}
	return text, nil
}

// classifyGenAIError maps SDK errors onto the shared retry taxonomy.
// Transport failures with no HTTP status count as network errors.
func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if clsErr := retry.HTTPError(apiErr.Code); clsErr != nil {
			return fmt.Errorf("model call: %w: %s", clsErr, apiErr.Message)
		}
		return fmt.Errorf("model call: %s", apiErr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("model call: %w: %v", retry.ErrNetwork, err)
}
