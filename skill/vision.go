package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/dispatchd/dispatch/provider"
)

const visionSystemPrompt = "You are a helpful assistant. The user's request includes attachments, described below. Incorporate them into your answer."

// VisionSkill handles requests carrying image or file attachments. The
// provider boundary speaks plain messages, so attachments are folded into
// the prompt as a manifest the model can reason over.
type VisionSkill struct {
	Provider provider.Provider
}

func (s *VisionSkill) Name() string { return "vision" }

func (s *VisionSkill) Execute(ctx context.Context, in Input, sc Context) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		messages := append([]provider.Message{
			{Role: provider.RoleSystem, Content: visionSystemPrompt},
			{Role: provider.RoleSystem, Content: attachmentManifest(in)},
		}, in.Messages...)
		streamGeneration(ctx, s.Provider, provider.Request{
			Messages:    messages,
			Temperature: in.Temperature,
		}, sc, out)
	}()
	return out
}

func attachmentManifest(in Input) string {
	var sb strings.Builder
	sb.WriteString("Attachments:\n")
	for i, img := range in.Images {
		fmt.Fprintf(&sb, "- image %d: %s\n", i+1, describeAttachment(img))
	}
	for i, f := range in.Files {
		fmt.Fprintf(&sb, "- file %d: %s\n", i+1, describeAttachment(f))
	}
	return sb.String()
}

// describeAttachment keeps inline payloads (data URLs, raw base64) out of
// the prompt, passing through only references short enough to be a name
// or URL.
func describeAttachment(ref string) string {
	if strings.HasPrefix(ref, "data:") || len(ref) > 256 {
		return fmt.Sprintf("inline payload (%d bytes)", len(ref))
	}
	return ref
}
