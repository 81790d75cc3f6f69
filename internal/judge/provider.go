// Package judge talks to the LLM that classifies commits. It abstracts over
// several providers behind one interface; callers bound each call with a
// context deadline sized by the transport planner.
package judge

import "context"

// Provider is a single LLM backend.
type Provider interface {
	// Complete sends a completion request and returns the raw reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the provider identifier ("ollama", "openai", ...).
	Name() string
}
