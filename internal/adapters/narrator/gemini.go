package narrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/pkg/logger"
	"github.com/okian/diarisk/pkg/metrics"
)

// Gemini defaults.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-1.5-flash"

	defaultTimeout      = 30 * time.Second
	defaultRetries      = 2
	defaultRetryWait    = 500 * time.Millisecond
	defaultRetryMaxWait = 5 * time.Second

	generatePath = "/v1beta/models/{model}:generateContent"
)

// Gemini narrates through the Generative Language REST API.
type Gemini struct {
	http   *resty.Client
	model  string
	logger logger.Logger

	baseURL      string
	timeout      time.Duration
	retries      int
	retryWait    time.Duration
	retryMaxWait time.Duration
}

// GeminiOption configures a Gemini narrator.
type GeminiOption func(*Gemini)

// WithBaseURL points the client at another endpoint, e.g. a test server.
func WithBaseURL(url string) GeminiOption {
	return func(g *Gemini) {
		if url != "" {
			g.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel selects the generative model.
func WithModel(name string) GeminiOption {
	return func(g *Gemini) {
		if name != "" {
			g.model = name
		}
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) GeminiOption {
	return func(g *Gemini) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetries sets how many times a rate-limited or failed call is retried.
func WithRetries(n int) GeminiOption {
	return func(g *Gemini) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// WithRetryWait sets the backoff bounds between attempts.
func WithRetryWait(wait, maxWait time.Duration) GeminiOption {
	return func(g *Gemini) {
		if wait > 0 && maxWait >= wait {
			g.retryWait = wait
			g.retryMaxWait = maxWait
		}
	}
}

// WithLogger sets the logger used for failed attempts.
func WithLogger(l logger.Logger) GeminiOption {
	return func(g *Gemini) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGemini builds a Gemini narrator. apiKey must not be empty.
func NewGemini(apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	g := &Gemini{
		model:        DefaultGeminiModel,
		logger:       logger.Nop(),
		baseURL:      DefaultGeminiBaseURL,
		timeout:      defaultTimeout,
		retries:      defaultRetries,
		retryWait:    defaultRetryWait,
		retryMaxWait: defaultRetryMaxWait,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.http = resty.New().
		SetBaseURL(g.baseURL).
		SetTimeout(g.timeout).
		SetRetryCount(g.retries).
		SetRetryWaitTime(g.retryWait).
		SetRetryMaxWaitTime(g.retryMaxWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-goog-api-key", apiKey).
		AddRetryCondition(func(r *resty.Response, _ error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests ||
				r.StatusCode() >= http.StatusInternalServerError)
		}).
		AddRetryHook(func(*resty.Response, error) {
			metrics.RecordWorkerRetry()
		})
	return g, nil
}

// Name implements Narrator.
func (g *Gemini) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type       string            `json:"type"`
	Properties map[string]schema `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// reportSchema asks the model to answer with {"report": "..."}.
var reportSchema = schema{
	Type:       "OBJECT",
	Properties: map[string]schema{"report": {Type: "STRING"}},
	Required:   []string{"report"},
}

// Generate implements Narrator.
func (g *Gemini) Generate(ctx context.Context, in model.NarrativeInput) (string, error) {
	start := time.Now()
	defer func() {
		metrics.RecordNarrationLatency(g.Name(), float64(time.Since(start).Milliseconds()))
	}()

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: BuildPrompt(in)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   reportSchema,
		},
	}

	var out generateResponse
	var apiErr apiError
	resp, err := g.http.R().
		SetContext(ctx).
		SetPathParam("model", g.model).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post(generatePath)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		err := classify(resp.StatusCode(), apiErr)
		g.logger.Warn(ctx, "gemini request failed",
			logger.Int("status", resp.StatusCode()),
			logger.String("apiStatus", apiErr.Error.Status),
			logger.Error(err),
		)
		return "", err
	}
	return parseReport(out)
}

func classify(status int, apiErr apiError) error {
	msg := apiErr.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case status >= http.StatusInternalServerError,
		strings.Contains(strings.ToLower(msg), "overloaded"):
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrNarration, status, msg)
	}
}

// parseReport extracts the report from the first candidate. The candidate
// text is itself JSON because of the response schema.
func parseReport(out generateResponse) (string, error) {
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrBadResponse)
	}
	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	var body struct {
		Report string `json:"report"`
	}
	if err := json.Unmarshal([]byte(text.String()), &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if strings.TrimSpace(body.Report) == "" {
		return "", fmt.Errorf("%w: empty report", ErrBadResponse)
	}
	return body.Report, nil
}
