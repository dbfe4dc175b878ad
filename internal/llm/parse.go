package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Generator is the part of the Adapter used by callers that only need
// text generation. Tests substitute a fake.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Message, opts Options) (*Response, error)
}

// ParseKind tags the outcome of turning model output into a value.
type ParseKind int

const (
	// ParseOK means Value holds a decoded and validated result.
	ParseOK ParseKind = iota

	// ParseMalformed means the provider answered but the text was not
	// usable JSON of the expected shape. Raw holds the reply.
	ParseMalformed

	// ParseProviderError means no reply was obtained. Err holds the cause.
	ParseProviderError
)

func (k ParseKind) String() string {
	switch k {
	case ParseOK:
		return "ok"
	case ParseMalformed:
		return "malformed"
	case ParseProviderError:
		return "provider_error"
	default:
		return "unknown"
	}
}

// ParseResult is the tagged union produced by Decode and GenerateJSON.
// Exactly one of Value (ParseOK), Raw (ParseMalformed) or Err
// (ParseProviderError) is meaningful; Err also carries the decode or
// validation error for ParseMalformed.
type ParseResult[T any] struct {
	Kind  ParseKind
	Value T
	Raw   string
	Err   error
}

// OK reports whether the result holds a value.
func (r ParseResult[T]) OK() bool { return r.Kind == ParseOK }

// Decode extracts the first JSON object from content (tolerating
// markdown code fences and surrounding prose), unmarshals it into T and
// runs validate. validate may normalize fields; a nil validate accepts
// anything that decodes.
func Decode[T any](content string, validate func(*T) error) ParseResult[T] {
	obj, ok := ExtractJSON(content)
	if !ok {
		return ParseResult[T]{Kind: ParseMalformed, Raw: content, Err: fmt.Errorf("no JSON object in reply")}
	}

	var v T
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return ParseResult[T]{Kind: ParseMalformed, Raw: content, Err: fmt.Errorf("decode reply: %w", err)}
	}
	if validate != nil {
		if err := validate(&v); err != nil {
			return ParseResult[T]{Kind: ParseMalformed, Raw: content, Err: fmt.Errorf("validate reply: %w", err)}
		}
	}
	return ParseResult[T]{Kind: ParseOK, Value: v}
}

// GenerateJSON runs one generation and decodes the reply into T.
func GenerateJSON[T any](ctx context.Context, g Generator, prompt string, opts Options, validate func(*T) error) ParseResult[T] {
	resp, err := g.Generate(ctx, prompt, nil, opts)
	if err != nil {
		return ParseResult[T]{Kind: ParseProviderError, Err: err}
	}
	return Decode(resp.Content, validate)
}

// ExtractJSON returns the first balanced {...} block in s after removing
// markdown code fences. Braces inside JSON strings are ignored.
func ExtractJSON(s string) (string, bool) {
	s = stripFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var fenceReplacer = strings.NewReplacer("```json", "", "```JSON", "", "```", "")

func stripFences(s string) string {
	return strings.TrimSpace(fenceReplacer.Replace(s))
}
