package llm

import (
	"context"
	"sync"
)

// MockCompleter is a configurable Completer for tests. It is safe for
// concurrent use.
type MockCompleter struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, Response and Err are returned.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	Response string
	Err      error

	mu      sync.Mutex
	prompts []string
}

// NewMockCompleter returns a mock that always answers with response.
func NewMockCompleter(response string) *MockCompleter {
	return &MockCompleter{Response: response}
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return m.Response, m.Err
}

// Calls returns how many times Complete was invoked.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns the prompts received, in call order.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
