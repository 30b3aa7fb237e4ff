// Package llm provides the chat completion client used by the fallback chain.
package llm

import (
	"context"
	"errors"
)

// CompletionRequest is one system+user exchange against a single model.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserText     string
}

// Completer sends a completion request to a remote model and returns its text.
// Implementations: OpenAIProvider
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f(ctx, req)
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// ErrNoChoices is returned when the endpoint answers without any choices.
var ErrNoChoices = errors.New("completion returned no choices")

// ErrUnavailable is returned when a provider is not usable
type ErrUnavailable struct {
	Provider string
	Reason   string
}

func (e ErrUnavailable) Error() string {
	if e.Reason != "" {
		return e.Provider + " is unavailable: " + e.Reason
	}
	return e.Provider + " is unavailable"
}
