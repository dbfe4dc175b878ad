package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nugget/pulse/internal/httpkit"
)

// DefaultGroqBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

// GroqClient talks to Groq through its OpenAI-compatible chat
// completions API. When the caller does not set them, temperature and
// max tokens follow the mood detected in the user's recent messages.
type GroqClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// GroqOption configures a GroqClient.
type GroqOption func(*groqConfig)

type groqConfig struct {
	baseURL    string
	httpClient *http.Client
}

// WithGroqBaseURL points the client at another OpenAI-compatible server.
func WithGroqBaseURL(u string) GroqOption {
	return func(c *groqConfig) { c.baseURL = u }
}

// WithGroqHTTPClient replaces the HTTP client (rate limits, tests).
func WithGroqHTTPClient(hc *http.Client) GroqOption {
	return func(c *groqConfig) { c.httpClient = hc }
}

// NewGroqClient creates a Groq client for model.
func NewGroqClient(apiKey, model string, logger *slog.Logger, opts ...GroqOption) *GroqClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := &groqConfig{baseURL: DefaultGroqBaseURL}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.httpClient == nil {
		t := httpkit.NewTransport()
		t.ResponseHeaderTimeout = 60 * time.Second
		cfg.httpClient = httpkit.NewClient(httpkit.WithTimeout(0), httpkit.WithTransport(t))
	}

	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = cfg.baseURL
	oc.HTTPClient = cfg.httpClient

	return &GroqClient{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		logger: logger.With("provider", "groq"),
	}
}

// Name implements Provider.
func (c *GroqClient) Name() string { return "groq" }

// Generate sends a chat completion: system persona, prior turns as
// role-tagged messages, then the prompt as the final user message.
func (c *GroqClient) Generate(ctx context.Context, req Request) (*Response, error) {
	mood := DetectMood(userTexts(req.History, req.Prompt))

	temperature := req.Temperature
	if temperature == 0 {
		temperature = mood.Temperature()
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = ReplyBudget(req.Prompt, mood)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(messages),
		"mood", mood,
		"temperature", temperature,
		"max_tokens", maxTokens,
	)
	c.logger.Log(ctx, LevelTrace, "request prompt", "prompt", req.Prompt)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "groq", Err: errors.New("no choices in response")}
	}

	out := &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		Provider:     "groq",
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if out.Model == "" {
		out.Model = model
	}

	c.logger.Debug("response received",
		"model", out.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", out.Content)
	return out, nil
}

func (c *GroqClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("API error", "status", apiErr.HTTPStatusCode, "message", apiErr.Message)
		return &ProviderError{Provider: "groq", StatusCode: apiErr.HTTPStatusCode, Err: errors.New(apiErr.Message)}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		cause := reqErr.Err
		if cause == nil {
			cause = errors.New(http.StatusText(reqErr.HTTPStatusCode))
		}
		c.logger.Error("request error", "status", reqErr.HTTPStatusCode, "error", cause)
		return &ProviderError{Provider: "groq", StatusCode: reqErr.HTTPStatusCode, Err: cause}
	}
	return &ProviderError{Provider: "groq", Err: fmt.Errorf("request failed: %w", err)}
}
