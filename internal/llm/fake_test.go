package llm

import (
	"context"
	"errors"
	"sync"
)

// fakeProvider returns canned replies and records requests.
type fakeProvider struct {
	name string

	mu       sync.Mutex
	replies  []string
	err      error
	requests []Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(_ context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("no canned reply")
	}
	content := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return &Response{Content: content, Model: f.name + "-model", InputTokens: 10, OutputTokens: 5}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
