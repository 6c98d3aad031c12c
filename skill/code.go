package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dispatchd/dispatch/provider"
	"github.com/dispatchd/dispatch/tool"
)

const codeSystemPrompt = "You are a helpful assistant with access to tool results. When tool results are provided, base your answer on them rather than recomputing."

// CodeSkill is the tool-augmented strategy. It runs fenced code blocks in
// the user's message through the sandboxed code tool before generation and
// hands the model both the available tool catalog and the results.
type CodeSkill struct {
	Provider provider.Provider
	Tools    *tool.Registry
}

func (s *CodeSkill) Name() string { return "code" }

func (s *CodeSkill) Execute(ctx context.Context, in Input, sc Context) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)

		messages := []provider.Message{
			{Role: provider.RoleSystem, Content: codeSystemPrompt},
			{Role: provider.RoleSystem, Content: s.catalog()},
		}
		if results := s.runExtracted(ctx, in, sc); results != "" {
			messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: results})
		}
		messages = append(messages, in.Messages...)

		streamGeneration(ctx, s.Provider, provider.Request{
			Messages:    messages,
			Temperature: in.Temperature,
		}, sc, out)
	}()
	return out
}

// catalog renders the registered tool definitions for the system prompt.
func (s *CodeSkill) catalog() string {
	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, d := range s.Tools.Defs() {
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
	}
	return sb.String()
}

// runExtracted executes every fenced code block from the last user message
// in the sandbox, concurrently, and renders the results. Failures are
// rendered per block so the model sees what went wrong; they never abort
// the skill.
func (s *CodeSkill) runExtracted(ctx context.Context, in Input, sc Context) string {
	blocks := extractCodeBlocks(lastUserContent(in.Messages))
	if len(blocks) == 0 {
		return ""
	}

	invocations := make([]tool.Invocation, len(blocks))
	for i, b := range blocks {
		invocations[i] = tool.Invocation{Name: "run_code", Args: map[string]any{"code": b}}
	}

	results := s.Tools.ExecuteMany(ctx, invocations)

	var sb strings.Builder
	sb.WriteString("Tool results:\n")
	for i, res := range results {
		entry := TranscriptEntry{Tool: res.Name, Cached: res.Cached, Duration: res.Duration}
		if res.Err != nil {
			entry.Error = res.Err.Error()
			fmt.Fprintf(&sb, "- block %d failed: %v\n", i+1, res.Err)
		} else {
			rendered, _ := json.Marshal(res.Value)
			fmt.Fprintf(&sb, "- block %d: %s\n", i+1, rendered)
		}
		sc.Transcript.Record(entry)
	}
	return sb.String()
}

// lastUserContent returns the content of the final user-role message.
func lastUserContent(messages []provider.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == provider.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// extractCodeBlocks pulls the bodies of ``` fenced blocks out of text.
// Language hints on the opening fence are dropped.
func extractCodeBlocks(text string) []string {
	var blocks []string
	for {
		open := strings.Index(text, "```")
		if open < 0 {
			return blocks
		}
		rest := text[open+3:]
		closeIdx := strings.Index(rest, "```")
		if closeIdx < 0 {
			return blocks
		}
		body := rest[:closeIdx]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if body = strings.TrimSpace(body); body != "" {
			blocks = append(blocks, body)
		}
		text = rest[closeIdx+3:]
	}
}
