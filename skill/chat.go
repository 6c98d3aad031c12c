package skill

import (
	"context"

	"github.com/dispatchd/dispatch/fault"
	"github.com/dispatchd/dispatch/provider"
)

const chatSystemPrompt = "You are a helpful assistant. Answer clearly and concisely."

// ChatSkill is the plain-text generation strategy.
type ChatSkill struct {
	Provider provider.Provider
}

func (s *ChatSkill) Name() string { return "chat" }

func (s *ChatSkill) Execute(ctx context.Context, in Input, sc Context) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		messages := append([]provider.Message{
			{Role: provider.RoleSystem, Content: chatSystemPrompt},
		}, in.Messages...)
		streamGeneration(ctx, s.Provider, provider.Request{
			Messages:    messages,
			Temperature: in.Temperature,
		}, sc, out)
	}()
	return out
}

// streamGeneration drives one provider stream into chunk form, applying
// the generation deadline from the environment. Shared by every skill.
func streamGeneration(ctx context.Context, p provider.Provider, req provider.Request, sc Context, out chan<- Chunk) {
	genCtx, cancel := context.WithTimeout(ctx, sc.Env.GenerationTimeout())
	defer cancel()

	events, err := p.Stream(genCtx, req)
	if err != nil {
		out <- Chunk{Kind: ChunkError, Error: err.Error()}
		return
	}

	for {
		select {
		case <-genCtx.Done():
			out <- Chunk{Kind: ChunkError, Error: fault.Timeout("generation exceeded %s", sc.Env.GenerationTimeout()).Error()}
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case "text":
				out <- Chunk{Kind: ChunkContent, Content: ev.Text}
			case "error":
				out <- Chunk{Kind: ChunkError, Error: ev.Error}
				return
			case "done":
				// Channel close follows; nothing to forward.
			}
		}
	}
}
