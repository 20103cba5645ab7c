package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/pavelanni/biopractice/internal/llm/prompts"
	"github.com/pavelanni/biopractice/internal/metrics"
	"github.com/pavelanni/biopractice/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration // per attempt; zero means no limit
	Retries int           // extra attempts on transient failures
	Backoff time.Duration // wait before a retry, multiplied by the attempt number
}

// Client wraps an OpenAI-compatible API client and implements the
// generator, marker and holistic feedback contracts.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	retries int
	backoff time.Duration
}

// New creates a new LLM client.
func New(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		backoff: cfg.Backoff,
	}
}

// Ping checks that the endpoint is reachable by listing models.
func (c *Client) Ping(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

type generateResponse struct {
	Questions []model.Question `json:"questions"`
}

// Generate asks the model for count questions on scope.
func (c *Client) Generate(ctx context.Context, scope string, board model.ExamBoard, count int) ([]model.Question, error) {
	prompt, err := prompts.BuildGeneratePrompt(scope, board, count)
	if err != nil {
		return nil, fmt.Errorf("build generate prompt: %w", err)
	}

	raw, err := c.complete(ctx, "generate", openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a helpful assistant. Return valid JSON only."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
		MaxTokens:   1500 + 300*count,
	})
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		slog.Error("invalid JSON from generator", "raw", raw, "error", err)
		return nil, model.External(fmt.Errorf("%w: %v", model.ErrGeneratorResponse, err))
	}
	for _, q := range resp.Questions {
		if err := q.Validate(); err != nil {
			slog.Error("invalid question from generator", "raw", raw, "error", err)
			return nil, model.External(fmt.Errorf("%w: %v", model.ErrGeneratorResponse, err))
		}
	}
	if resp.Questions == nil {
		resp.Questions = []model.Question{}
	}
	return resp.Questions, nil
}

type markResponse struct {
	Score    float64 `json:"score"`
	OutOf    float64 `json:"out_of"`
	Feedback string  `json:"feedback"`
}

// Mark asks the model to mark answer against markScheme.
func (c *Client) Mark(ctx context.Context, question string, markScheme []string, answer string, board model.ExamBoard) (model.MarkResult, error) {
	prompt, err := prompts.BuildMarkPrompt(question, markScheme, answer, board)
	if err != nil {
		return model.MarkResult{}, fmt.Errorf("build mark prompt: %w", err)
	}

	raw, err := c.complete(ctx, "mark", openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a strict but fair exam marker. Return only valid JSON."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return model.MarkResult{}, err
	}

	var resp markResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		slog.Error("invalid JSON from marker", "raw", raw, "error", err)
		return model.MarkResult{}, model.External(fmt.Errorf("%w: %v", model.ErrMarkerResponse, err))
	}
	return model.MarkResult{
		Score:    resp.Score,
		OutOf:    int(math.Round(resp.OutOf)),
		Feedback: resp.Feedback,
	}, nil
}

// Summarize asks the model for three strengths and three improvements.
// A reply that is not the expected JSON degrades to empty lists plus the raw text.
func (c *Client) Summarize(ctx context.Context, narrative string) (model.Feedback, error) {
	system, err := prompts.BuildFeedbackPrompt()
	if err != nil {
		return model.Feedback{}, fmt.Errorf("build feedback prompt: %w", err)
	}

	raw, err := c.complete(ctx, "feedback", openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: narrative},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.6,
		MaxTokens:   500,
	})
	if err != nil {
		return model.Feedback{}, err
	}
	return parseFeedback(raw), nil
}

func parseFeedback(raw string) model.Feedback {
	fb := model.Feedback{Version: model.FeedbackVersion}
	if err := json.Unmarshal([]byte(raw), &fb); err != nil {
		slog.Warn("feedback reply is not JSON, keeping raw text", "error", err)
		return model.Feedback{
			Version:      model.FeedbackVersion,
			Strengths:    []string{},
			Improvements: []string{},
			Raw:          raw,
		}
	}
	fb.Version = model.FeedbackVersion
	fb.Raw = ""
	if fb.Strengths == nil {
		fb.Strengths = []string{}
	}
	if fb.Improvements == nil {
		fb.Improvements = []string{}
	}
	return fb
}

// complete runs one chat completion with a per-attempt timeout, retrying
// transient failures up to c.retries times.
func (c *Client) complete(ctx context.Context, op string, req openai.ChatCompletionRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying LLM call", "operation", op, "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(c.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return "", model.External(fmt.Errorf("LLM %s call: %w", op, ctx.Err()))
			}
		}

		raw, err := c.attempt(ctx, op, req)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil || !transient(err) || attempt == c.retries {
			break
		}
		metrics.LLMCalls.WithLabelValues(op, "retry").Inc()
	}
	return "", model.External(fmt.Errorf("LLM %s call: %w", op, lastErr))
}

func (c *Client) attempt(ctx context.Context, op string, req openai.ChatCompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("LLM returned no choices")
	}
	metrics.ObserveLLMCall(op, metrics.Status(err), time.Since(start))
	if err != nil {
		return "", err
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return raw, nil
}

// transient reports whether err is worth one more attempt: rate limits,
// server errors, timeouts and network failures.
func transient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
