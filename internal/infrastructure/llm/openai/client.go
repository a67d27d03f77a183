// Package openai talks to an OpenAI-compatible chat-completions endpoint to
// derive analysis metadata (summary, key insights, confidence) for a
// document's extracted text.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dkotenko/doc-analysis-service/internal/core/domain"
	"github.com/dkotenko/doc-analysis-service/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	RequestsPerSecond  float64
	Burst              int
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey, model string) *Client {
	return NewWithOptions(baseURL, apiKey, model, Options{})
}

func NewWithOptions(baseURL, apiKey, model string, options Options) *Client {
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := options.Burst
	if burst <= 0 {
		burst = 4
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		executor:   options.ResilienceExecutor,
	}
}

type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze sends the document text through the provider and parses the
// structured result. Every provider-side fault comes back wrapped in
// ErrProviderFault so the worker can convert it into a terminal status.
func (a *Analyzer) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Analysis{}, domain.WrapError(domain.ErrInvalidInput, "analyze document", errors.New("empty input text"))
	}

	content, err := a.client.complete(ctx, buildAnalysisPrompt(text))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Analysis{}, err
		}
		return domain.Analysis{}, domain.WrapError(domain.ErrProviderFault, "analyze document", err)
	}

	var result domain.Analysis
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &result); err != nil {
		parseErr := &ParseError{Raw: content, Cause: err}
		return domain.Analysis{}, domain.WrapError(domain.ErrProviderFault, "parse analysis response", parseErr)
	}
	if result.KeyInsights == nil {
		result.KeyInsights = []string{}
	}
	return result, nil
}

// ParseError keeps the raw provider response verbatim for manual inspection.
type ParseError struct {
	Raw   string
	Cause error
}

func (e *ParseError) Error() string {
	return "unparseable provider response: " + e.Cause.Error() + "; raw: " + e.Raw
}

func (e *ParseError) Unwrap() error { return e.Cause }

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &formatSpec{Type: "json_object"},
	}

	var response chatResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/chat/completions", request, &response, "analyze")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openai.analyze", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", errors.New("provider returned no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
