package llm

import (
	"context"
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"single line fence", "```json {\"a\":1} ```", `{"a":1}`, true},
		{"prose around", `Sure! {"a":{"b":2}} hope that helps {"c":3}`, `{"a":{"b":2}}`, true},
		{"brace in string", `{"a":"}{"}`, `{"a":"}{"}`, true},
		{"escaped quote", `{"a":"say \"hi\" }"}`, `{"a":"say \"hi\" }"}`, true},
		{"none", "Got it!", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

type sample struct {
	Name string `json:"name"`
}

func requireName(s *sample) error {
	if s.Name == "" {
		return errors.New("name required")
	}
	return nil
}

func TestDecode_Kinds(t *testing.T) {
	if r := Decode(`{"name":"x"}`, requireName); !r.OK() || r.Value.Name != "x" {
		t.Errorf("valid: %+v", r)
	}
	if r := Decode(`no json here`, requireName); r.Kind != ParseMalformed || r.Raw != "no json here" {
		t.Errorf("no json: %+v", r)
	}
	if r := Decode(`{"name":""}`, requireName); r.Kind != ParseMalformed || r.Err == nil {
		t.Errorf("invalid: %+v", r)
	}
	if r := Decode(`{"name":5}`, requireName); r.Kind != ParseMalformed {
		t.Errorf("type mismatch: %+v", r)
	}
}

type staticGenerator struct {
	content string
	err     error
	opts    Options
}

func (g *staticGenerator) Generate(_ context.Context, _ string, _ []Message, opts Options) (*Response, error) {
	g.opts = opts
	if g.err != nil {
		return nil, g.err
	}
	return &Response{Content: g.content}, nil
}

func TestGenerateJSON_ProviderError(t *testing.T) {
	cause := &AllProvidersFailedError{}
	r := GenerateJSON(context.Background(), &staticGenerator{err: cause}, "p", Options{}, requireName)
	if r.Kind != ParseProviderError || !errors.Is(r.Err, cause) {
		t.Errorf("result = %+v", r)
	}
	if r.Kind.String() != "provider_error" {
		t.Errorf("Kind.String() = %q", r.Kind.String())
	}
}
