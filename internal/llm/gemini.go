package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/pulse/internal/httpkit"
)

// DefaultGeminiBaseURL is the Generative Language API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini decoding defaults used when the caller does not override them.
const (
	geminiTemperature = 0.7
	geminiMaxTokens   = 1000
	geminiTopP        = 0.95
	geminiTopK        = 64
)

// GeminiClient is a client for the Gemini generateContent API. Unlike
// chat-style providers it sends the persona, history and prompt as a
// single text part.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiClient creates a Gemini client. An empty baseURL selects
// DefaultGeminiBaseURL; a nil httpClient gets an httpkit client.
func NewGeminiClient(apiKey, model, baseURL string, httpClient *http.Client, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if httpClient == nil {
		t := httpkit.NewTransport()
		t.ResponseHeaderTimeout = 60 * time.Second
		httpClient = httpkit.NewClient(httpkit.WithTimeout(0), httpkit.WithTransport(t))
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
		logger:     logger.With("provider", "gemini"),
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// Name implements Provider.
func (c *GeminiClient) Name() string { return "gemini" }

// Generate sends one generateContent request.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	gc := geminiGenerationConfig{
		Temperature:     geminiTemperature,
		MaxOutputTokens: geminiMaxTokens,
		TopP:            geminiTopP,
		TopK:            geminiTopK,
	}
	if req.Temperature != 0 {
		gc.Temperature = req.Temperature
	}
	if req.MaxTokens != 0 {
		gc.MaxOutputTokens = req.MaxTokens
	}

	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildGeminiPrompt(req)}},
		}},
		GenerationConfig: gc,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("preparing request",
		"model", model,
		"history", len(req.History),
		"temperature", gc.Temperature,
		"max_tokens", gc.MaxOutputTokens,
	)
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, &ProviderError{Provider: "gemini", StatusCode: resp.StatusCode, Err: errors.New(errBody)}
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{Provider: "gemini", Err: errors.New("no response generated")}
	}

	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	out := &Response{
		Content:      text.String(),
		Model:        model,
		Provider:     "gemini",
		InputTokens:  gr.UsageMetadata.PromptTokenCount,
		OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
	}
	if gr.ModelVersion != "" {
		out.Model = gr.ModelVersion
	}

	c.logger.Debug("response received",
		"model", out.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"finish_reason", gr.Candidates[0].FinishReason,
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", out.Content)
	return out, nil
}

// buildGeminiPrompt flattens a Request into one prompt. Raw requests
// (no System) are passed through untouched.
func buildGeminiPrompt(req Request) string {
	if req.System == "" && len(req.History) == 0 {
		return req.Prompt
	}

	var sb strings.Builder
	if req.System != "" {
		sb.WriteString(req.System)
		sb.WriteString("\n\n")
	}
	if len(req.History) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, m := range req.History {
			who := "User"
			if m.Role == "assistant" {
				who = "You"
			}
			fmt.Fprintf(&sb, "%s: %s\n", who, m.Content)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Current user message: ")
	sb.WriteString(req.Prompt)
	if req.System != "" {
		sb.WriteString("\n\nReply now in the style above.")
	}
	return sb.String()
}
