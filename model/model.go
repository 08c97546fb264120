// Package model abstracts the language-model completion service behind a
// minimal blocking interface. Participants depend on this interface only;
// provider adapters live in the openai and anthropic subpackages.
package model

import (
	"context"
	"fmt"

	"github.com/hupe1980/sitecrew/transcript"
)

// CompletionError wraps a provider transport, auth or rate-limit failure.
// The orchestrator aborts the current run when it surfaces.
type CompletionError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *CompletionError) Unwrap() error { return e.Err }

// Request captures the normalized model input for one participant reply:
// the participant's behavioral contract plus the full conversation so far.
type Request struct {
	Instructions string            `json:"instructions"`
	Turns        []transcript.Turn `json:"turns"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal completion capability consumed by participants.
// Complete blocks until the reply is available, the context is cancelled,
// or the provider fails; failures are reported as *CompletionError.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Replies are served in registration order; when exhausted it echoes the
// last turn of the request.
type MockModel struct {
	info    Info
	replies []string
	calls   int
	err     error
}

// NewMockModel constructs a MockModel serving the given canned replies.
func NewMockModel(replies ...string) *MockModel {
	return &MockModel{info: Info{Name: "mock", Provider: "mock"}, replies: replies}
}

// FailWith makes every subsequent Complete call return the given error.
func (m *MockModel) FailWith(err error) { m.err = err }

// Calls returns how many times Complete has been invoked.
func (m *MockModel) Calls() int { return m.calls }

// Complete implements Model.
func (m *MockModel) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.calls++
	if m.err != nil {
		return "", &CompletionError{Provider: "mock", Err: m.err}
	}
	if m.calls <= len(m.replies) {
		return m.replies[m.calls-1], nil
	}
	if len(req.Turns) == 0 {
		return "", &CompletionError{Provider: "mock", Err: fmt.Errorf("no turns provided")}
	}
	return fmt.Sprintf("Mock reply to: %s", req.Turns[len(req.Turns)-1].Text), nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
