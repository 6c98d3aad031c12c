// Package provider defines the upstream generation endpoint interface used
// by skills. Providers decode the endpoint's framing into a stream of events;
// everything above this package deals in events, never in wire bytes.
package provider

import "context"

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a streaming generation request.
type Request struct {
	Messages    []Message
	Temperature float64 // 0 means provider default
}

// StreamEvent is emitted while a streaming response is decoded.
type StreamEvent struct {
	Type  string `json:"type"` // "text", "done", "error"
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Provider is a generation backend.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string

	// Stream sends a streaming request. Events are delivered on the
	// returned channel, which is closed after "done" or "error".
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}
