// Package skill defines the pluggable generation strategies a task's skill
// step dispatches to. A skill turns one request into a stream of chunks,
// optionally calling tools along the way. Skills never fail by panicking
// or by closing the stream early without explanation: terminal failures
// travel as an error chunk.
package skill

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dispatchd/dispatch/config"
	"github.com/dispatchd/dispatch/provider"
	"github.com/dispatchd/dispatch/tool"
)

// ChunkKind tags one unit of skill output.
type ChunkKind string

const (
	ChunkContent ChunkKind = "content" // incremental text
	ChunkError   ChunkKind = "error"   // terminal failure; no chunks follow
)

// Chunk is one unit of streamed skill output. The stream is complete when
// the channel closes.
type Chunk struct {
	Kind    ChunkKind `json:"kind"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Input is the request shape every skill consumes.
type Input struct {
	Messages    []provider.Message `json:"messages"`
	Images      []string           `json:"images,omitempty"`
	Files       []string           `json:"files,omitempty"`
	EnableTools bool               `json:"enableTools,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// Context carries per-execution wiring from the task manager into a skill.
// The environment handle is opaque to the core: skills may read it, the
// manager only forwards it.
type Context struct {
	TaskID     string
	StepID     string
	Env        *config.Config
	Tools      *tool.Registry
	Transcript *Transcript
	Logger     *slog.Logger
}

// Skill is one generation strategy.
type Skill interface {
	// Name returns the skill identifier.
	Name() string

	// Execute produces a single-consumption chunk stream. The channel is
	// closed when generation finishes, after an error chunk if it failed.
	Execute(ctx context.Context, in Input, sc Context) <-chan Chunk
}

// Select picks the skill variant for a request. Pure function of request
// shape; precedence matches task-type derivation: images, then files, then
// tool enablement, then plain chat.
func Select(in Input, p provider.Provider, reg *tool.Registry) Skill {
	switch {
	case len(in.Images) > 0:
		return &VisionSkill{Provider: p}
	case len(in.Files) > 0:
		return &VisionSkill{Provider: p}
	case in.EnableTools:
		return &CodeSkill{Provider: p, Tools: reg}
	default:
		return &ChatSkill{Provider: p}
	}
}

// TranscriptEntry records one tool invocation made during a skill run.
type TranscriptEntry struct {
	Tool     string        `json:"tool"`
	Cached   bool          `json:"cached,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Transcript is an append-only record of a skill's tool usage, read by the
// task manager after the skill step finishes.
type Transcript struct {
	mu      sync.Mutex
	entries []TranscriptEntry
}

// Record appends one entry.
func (tr *Transcript) Record(e TranscriptEntry) {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.entries = append(tr.entries, e)
}

// Entries returns a copy of the recorded entries in append order.
func (tr *Transcript) Entries() []TranscriptEntry {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]TranscriptEntry, len(tr.entries))
	copy(out, tr.entries)
	return out
}
