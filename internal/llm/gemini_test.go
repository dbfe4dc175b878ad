package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiClient_Generate(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "g-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "there"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3, "totalTokenCount": 15},
			"modelVersion": "gemini-2.5-flash-001"
		}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", "gemini-2.5-flash", srv.URL+"/", srv.Client(), nil)
	resp, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Content != "Hello there" || resp.Model != "gemini-2.5-flash-001" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("usage = %d/%d, want 12/3", resp.InputTokens, resp.OutputTokens)
	}
	gc := got.GenerationConfig
	if gc.Temperature != 0.7 || gc.MaxOutputTokens != 1000 || gc.TopP != 0.95 || gc.TopK != 64 {
		t.Errorf("generationConfig = %+v", gc)
	}
	if got.Contents[0].Parts[0].Text != "hi" {
		t.Errorf("raw prompt should pass through, got %q", got.Contents[0].Parts[0].Text)
	}
}

func TestGeminiClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewGeminiClient("bad", "gemini-2.5-flash", srv.URL, srv.Client(), nil)
	_, err := c.Generate(context.Background(), Request{Prompt: "hi"})

	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v, want ProviderError 400", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("error should carry body: %v", err)
	}
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("k", "m", srv.URL, srv.Client(), nil)
	if _, err := c.Generate(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestBuildGeminiPrompt(t *testing.T) {
	p := buildGeminiPrompt(Request{
		System:  "Be kind.",
		History: []Message{{Role: "user", Content: "hey"}, {Role: "assistant", Content: "hello!"}},
		Prompt:  "how are you",
	})
	for _, want := range []string{"Be kind.", "Recent conversation:", "User: hey", "You: hello!", "Current user message: how are you", "Reply now"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}
