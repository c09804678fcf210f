// Package llm provides the language model clients that turn a prompt into
// candidate SQL text.
package llm

import (
	"context"
)

// Completer sends one prompt to a language model and returns its raw text
// response. Implementations make a single request with no internal retries
// and never interpret the response.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Ensure implementations satisfy Completer at compile time.
var (
	_ Completer = (*Client)(nil)
	_ Completer = (*AnthropicClient)(nil)
	_ Completer = (*BreakerCompleter)(nil)
	_ Completer = (*MockCompleter)(nil)
)
