// Package llm provides the generative-text providers Pulse talks to and
// the Adapter that selects between them.
package llm

import "context"

// Provider is the interface every LLM backend implements. A provider
// turns one Request into one HTTP call and normalizes the reply.
type Provider interface {
	// Name is the provider's config key ("groq", "gemini").
	Name() string

	// Generate sends a single generation request.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is a provider-neutral generation request.
type Request struct {
	// System is the persona/instruction block. Empty for raw prompts
	// (structured extraction) where only Prompt is sent.
	System string

	// History holds prior turns, oldest first.
	History []Message

	// Prompt is the current user input.
	Prompt string

	// Temperature and MaxTokens override the provider's own choice
	// when non-zero.
	Temperature float64
	MaxTokens   int

	// Model overrides the provider's configured model when non-empty.
	Model string
}

// Message is one prior conversation turn.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Response is the normalized reply from any provider.
type Response struct {
	Content      string
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
}

// userTexts returns the content of the user turns in history followed
// by prompt, for mood detection.
func userTexts(history []Message, prompt string) []string {
	var out []string
	for _, m := range history {
		if m.Role == "user" {
			out = append(out, m.Content)
		}
	}
	if prompt != "" {
		out = append(out, prompt)
	}
	return out
}
