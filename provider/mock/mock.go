// Package mock provides a scripted generation provider for testing.
package mock

import (
	"context"

	"github.com/dispatchd/dispatch/provider"
)

const defaultResponse = "Request acknowledged."

// Provider implements provider.Provider with scripted output. Responses
// cycle in order; Err, when set, replaces output with an error event.
type Provider struct {
	responses []string
	idx       int

	// ChunkSize splits each response into fixed-size text events.
	// Zero means one event per response.
	ChunkSize int

	// Err makes every stream emit a single error event.
	Err string
}

// New creates a Provider that cycles through the given responses.
func New(responses ...string) *Provider {
	return &Provider{responses: responses}
}

func (m *Provider) Name() string { return "mock" }

// Stream emits the next scripted response as text events followed by done.
func (m *Provider) Stream(_ context.Context, _ provider.Request) (<-chan provider.StreamEvent, error) {
	resp := defaultResponse
	if len(m.responses) > 0 {
		resp = m.responses[m.idx%len(m.responses)]
		m.idx++
	}

	ch := make(chan provider.StreamEvent, len(resp)+2)
	go func() {
		defer close(ch)
		if m.Err != "" {
			ch <- provider.StreamEvent{Type: "error", Error: m.Err}
			return
		}
		size := m.ChunkSize
		if size <= 0 {
			size = len(resp)
		}
		for i := 0; i < len(resp); i += size {
			end := i + size
			if end > len(resp) {
				end = len(resp)
			}
			ch <- provider.StreamEvent{Type: "text", Text: resp[i:end]}
		}
		ch <- provider.StreamEvent{Type: "done"}
	}()
	return ch, nil
}
