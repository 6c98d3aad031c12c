// Package task defines the task/step execution record and the manager that
// drives the plan/skill/respond pipeline.
package task

import (
	"time"

	"github.com/dispatchd/dispatch/provider"
)

// Status represents the lifecycle state of a task. Transitions only move
// forward: pending, running, then exactly one of completed or failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Type classifies a task by its request shape, derived once at creation.
type Type string

const (
	TypeChat  Type = "chat"
	TypeImage Type = "image"
	TypeCode  Type = "code"
	TypeFile  Type = "file"
)

// StepType identifies a phase of task execution.
type StepType string

const (
	StepPlan    StepType = "plan"
	StepSkill   StepType = "skill"
	StepRespond StepType = "respond"
)

// StepStatus is the lifecycle state of a step. Steps are created running.
type StepStatus string

const (
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// Task is one user request's end-to-end execution record.
type Task struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Status      Status    `json:"status"`
	UserMessage string    `json:"userMessage"`
	Steps       []*Step   `json:"steps"`
	Result      string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Step is one tracked phase of a task's execution.
type Step struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId"`
	Type        StepType   `json:"type"`
	Status      StepStatus `json:"status"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Request is an incoming chat request.
type Request struct {
	Messages    []provider.Message `json:"messages"`
	Images      []string           `json:"images,omitempty"`
	Files       []string           `json:"files,omitempty"`
	EnableTools bool               `json:"enableTools,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// LastMessage returns the content of the request's final message.
func (r Request) LastMessage() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// DeriveType classifies a request. Precedence: image attachments, then
// file attachments, then tool enablement, then plain chat. Deterministic
// for a given request shape.
func DeriveType(r Request) Type {
	switch {
	case len(r.Images) > 0:
		return TypeImage
	case len(r.Files) > 0:
		return TypeFile
	case r.EnableTools:
		return TypeCode
	default:
		return TypeChat
	}
}

// snapshot returns a deep copy safe to hand outside the manager's lock.
func (t *Task) snapshot() *Task {
	cp := *t
	cp.Steps = make([]*Step, len(t.Steps))
	for i, s := range t.Steps {
		sc := *s
		if s.CompletedAt != nil {
			at := *s.CompletedAt
			sc.CompletedAt = &at
		}
		cp.Steps[i] = &sc
	}
	return &cp
}
