// Package llm provides the completion service adapter. All stages call
// the text-generation backend through the Client interface so the
// orchestration state machines stay testable with deterministic stubs.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client is the completion service adapter interface.
type Client interface {
	// Complete sends a conversation to the backend and returns the
	// generated text. Timeouts and malformed output surface as the
	// distinct, recoverable error kinds below.
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single completion call.
type Request struct {
	System      string
	Messages    []Message
	Temperature float32
	// MaxTokens limits the response length; 0 means provider default.
	MaxTokens int
}

// Message is one conversation entry sent to the backend.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrTimeout indicates the backend call exceeded its deadline. Callers
// retry once, then degrade per their component policy.
var ErrTimeout = errors.New("llm: completion timed out")

// ErrCallFailed indicates a transport or provider error other than a
// timeout. Same retry policy as ErrTimeout.
var ErrCallFailed = errors.New("llm: completion call failed")

// MalformedOutputError indicates the backend produced output that could
// not be parsed against the requested schema. The raw output is kept for
// logging; the value is discarded, never written.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("llm: malformed output: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is a malformed-output error.
func IsMalformed(err error) bool {
	var m *MalformedOutputError
	return errors.As(err, &m)
}
