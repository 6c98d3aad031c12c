package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dispatchd/dispatch/config"
	"github.com/dispatchd/dispatch/fault"
	"github.com/dispatchd/dispatch/ident"
	"github.com/dispatchd/dispatch/provider"
	"github.com/dispatchd/dispatch/skill"
	"github.com/dispatchd/dispatch/tool"
)

// EventType tags one entry of the execution event stream.
type EventType string

const (
	EventTask     EventType = "task"     // task lifecycle change, data is a Task
	EventStep     EventType = "step"     // step lifecycle change, data is a Step
	EventContent  EventType = "content"  // incremental text, data is Content
	EventError    EventType = "error"    // terminal failure, data is Failure
	EventComplete EventType = "complete" // terminal success, data is a Task
)

// Event is one unit of the stream ExecuteTask produces.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Content is the payload of a content event.
type Content struct {
	TaskID  string `json:"taskId"`
	Content string `json:"content"`
}

// Failure is the payload of a terminal error event. Task is the snapshot
// at failure time; nil when the task was never found.
type Failure struct {
	Error string `json:"error"`
	Task  *Task  `json:"task,omitempty"`
}

// Manager owns every Task for the lifetime of the process and drives the
// plan/skill/respond pipeline. No other component mutates a Task; readers
// only ever see snapshots.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string

	provider provider.Provider
	tools    *tool.Registry
	env      *config.Config
	journal  *Journal // optional audit record of terminal tasks
	logger   *slog.Logger
}

// ManagerOptions wires a Manager's collaborators.
type ManagerOptions struct {
	Provider provider.Provider
	Tools    *tool.Registry
	Env      *config.Config
	Journal  *Journal
	Logger   *slog.Logger
}

// NewManager creates a Manager with an empty registry.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Env == nil {
		opts.Env = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		tasks:    make(map[string]*Task),
		provider: opts.Provider,
		tools:    opts.Tools,
		env:      opts.Env,
		journal:  opts.Journal,
		logger:   opts.Logger,
	}
}

// CreateTask derives the task type from the request shape, registers the
// task, and returns a snapshot. The only side effect is registration.
func (m *Manager) CreateTask(req Request) (*Task, error) {
	if len(req.Messages) == 0 {
		return nil, fault.Validation("request has no messages")
	}
	now := time.Now().UTC()
	t := &Task{
		ID:          ident.New(),
		Type:        DeriveType(req),
		Status:      StatusPending,
		UserMessage: req.LastMessage(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	snap := t.snapshot()
	m.mu.Unlock()

	m.logger.Info("task created", slog.String("task", t.ID), slog.String("type", string(t.Type)))
	return snap, nil
}

// GetTask returns a snapshot of the task with the given ID.
func (m *Manager) GetTask(id string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return t.snapshot(), true
}

// ListTasks returns snapshots of all tasks in insertion order.
func (m *Manager) ListTasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].snapshot())
	}
	return out
}

// DeleteTask removes a task from the registry. Returns false for unknown
// IDs; deleting nothing is not an error.
func (m *Manager) DeleteTask(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return false
	}
	delete(m.tasks, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// ExecuteTask runs the task pipeline and streams its events. The sequence
// is single-pass and non-restartable; the channel closes after the
// terminal complete or error event. An unknown ID yields exactly one error
// event. The caller's ctx cancels the run when the consumer walks away.
func (m *Manager) ExecuteTask(ctx context.Context, id string, req Request) <-chan Event {
	events := make(chan Event, 16)
	go m.run(ctx, id, req, events)
	return events
}

func (m *Manager) run(ctx context.Context, id string, req Request, events chan<- Event) {
	defer close(events)

	emit := func(e Event) bool {
		select {
		case events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		emit(Event{Type: EventError, Data: Failure{Error: fault.NotFound("task %s not found", id).Error()}})
		return
	}
	if t.Status != StatusPending {
		snap := t.snapshot()
		m.mu.Unlock()
		emit(Event{Type: EventError, Data: Failure{
			Error: fault.Validation("task %s already %s", id, snap.Status).Error(),
			Task:  snap,
		}})
		return
	}
	t.Status = StatusRunning
	t.UpdatedAt = time.Now().UTC()
	snap := t.snapshot()
	m.mu.Unlock()

	// Unexpected faults anywhere below are caught exactly once here and
	// become the task's terminal failure.
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("task panicked", slog.String("task", id), slog.Any("panic", r))
			emit(Event{Type: EventError, Data: Failure{
				Error: fmt.Sprintf("internal: %v", r),
				Task:  m.failTask(id, fmt.Sprintf("internal: %v", r)),
			}})
		}
	}()

	m.logger.Info("task started", slog.String("task", id), slog.String("type", string(snap.Type)))
	if !emit(Event{Type: EventTask, Data: snap}) {
		m.failTask(id, "abandoned by consumer")
		return
	}

	// Plan: synchronous request analysis. Has no failure mode.
	planStep := m.beginStep(id, StepPlan, "Analyze request")
	if !emit(Event{Type: EventStep, Data: planStep}) {
		m.failTask(id, "abandoned by consumer")
		return
	}
	plan := fmt.Sprintf("type=%s multimodal=%t tools=%t messages=%d",
		snap.Type, len(req.Images) > 0 || len(req.Files) > 0, req.EnableTools, len(req.Messages))
	if !emit(Event{Type: EventStep, Data: m.endStep(id, planStep.ID, plan, "")}) {
		m.failTask(id, "abandoned by consumer")
		return
	}

	// Skill: delegate generation, forwarding content as it arrives.
	result, err := m.runSkillStep(ctx, id, req, emit)
	if err != nil {
		emit(Event{Type: EventError, Data: Failure{Error: err.Error(), Task: m.failTask(id, err.Error())}})
		return
	}

	// Respond: finalize the task record. The respond step must reach its
	// terminal state before the task does, so the complete event's snapshot
	// has every step finished and nothing mutates a terminal task.
	respondStep := m.beginStep(id, StepRespond, "Finalize response")
	if !emit(Event{Type: EventStep, Data: respondStep}) {
		m.failTask(id, "abandoned by consumer")
		return
	}
	finished := m.endStep(id, respondStep.ID, "", "")
	done := m.completeTask(id, result)
	if !emit(Event{Type: EventStep, Data: finished}) {
		return
	}
	emit(Event{Type: EventComplete, Data: done})
	m.logger.Info("task completed", slog.String("task", id), slog.Int("result_len", len(result)))
}

// runSkillStep selects a skill, consumes its chunk stream, and returns the
// accumulated result. An error chunk fails the step and aborts the task.
func (m *Manager) runSkillStep(ctx context.Context, id string, req Request, emit func(Event) bool) (string, error) {
	in := skill.Input{
		Messages:    req.Messages,
		Images:      req.Images,
		Files:       req.Files,
		EnableTools: req.EnableTools,
		Temperature: req.Temperature,
	}
	sk := skill.Select(in, m.provider, m.tools)

	step := m.beginStep(id, StepSkill, "Run "+sk.Name()+" skill")
	if !emit(Event{Type: EventStep, Data: step}) {
		return "", fault.New(fault.KindInternal, "abandoned by consumer")
	}

	transcript := &skill.Transcript{}
	chunks := sk.Execute(ctx, in, skill.Context{
		TaskID:     id,
		StepID:     step.ID,
		Env:        m.env,
		Tools:      m.tools,
		Transcript: transcript,
		Logger:     m.logger,
	})

	var buf strings.Builder
	for chunk := range chunks {
		switch chunk.Kind {
		case skill.ChunkContent:
			buf.WriteString(chunk.Content)
			if !emit(Event{Type: EventContent, Data: Content{TaskID: id, Content: chunk.Content}}) {
				return "", fault.New(fault.KindInternal, "abandoned by consumer")
			}
		case skill.ChunkError:
			err := fault.New(fault.KindUpstream, "%s skill: %s", sk.Name(), chunk.Error)
			emit(Event{Type: EventStep, Data: m.endStep(id, step.ID, "", chunk.Error)})
			return "", err
		}
	}

	if !emit(Event{Type: EventStep, Data: m.endStep(id, step.ID, stepOutput(buf.Len(), transcript), "")}) {
		return "", fault.New(fault.KindInternal, "abandoned by consumer")
	}
	return buf.String(), nil
}

// stepOutput summarizes a successful skill step, including its tool
// transcript when tools were used.
func stepOutput(resultLen int, transcript *skill.Transcript) string {
	entries := transcript.Entries()
	if len(entries) == 0 {
		return fmt.Sprintf("generated %d bytes", resultLen)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "generated %d bytes; %d tool call(s):", resultLen, len(entries))
	for _, e := range entries {
		switch {
		case e.Error != "":
			fmt.Fprintf(&sb, " %s(failed: %s)", e.Tool, e.Error)
		case e.Cached:
			fmt.Fprintf(&sb, " %s(cached)", e.Tool)
		default:
			fmt.Fprintf(&sb, " %s(%s)", e.Tool, e.Duration.Round(time.Millisecond))
		}
	}
	return sb.String()
}

// beginStep appends a running step to the task and returns its snapshot.
func (m *Manager) beginStep(taskID string, st StepType, name string) *Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[taskID]
	step := &Step{
		ID:        ident.New(),
		TaskID:    taskID,
		Type:      st,
		Status:    StepStatusRunning,
		Name:      name,
		StartedAt: time.Now().UTC(),
	}
	t.Steps = append(t.Steps, step)
	t.UpdatedAt = step.StartedAt
	cp := *step
	return &cp
}

// endStep moves a step to its terminal status and returns its snapshot.
// A non-empty errMsg marks it failed, otherwise completed.
func (m *Manager) endStep(taskID, stepID, output, errMsg string) *Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[taskID]
	for _, step := range t.Steps {
		if step.ID != stepID {
			continue
		}
		now := time.Now().UTC()
		step.CompletedAt = &now
		step.Output = output
		step.Error = errMsg
		if errMsg != "" {
			step.Status = StepStatusFailed
		} else {
			step.Status = StepStatusCompleted
		}
		t.UpdatedAt = now
		cp := *step
		cp.CompletedAt = &now
		return &cp
	}
	return nil
}

// completeTask transitions the task to completed with the given result.
func (m *Manager) completeTask(id, result string) *Task {
	m.mu.Lock()
	t := m.tasks[id]
	t.Status = StatusCompleted
	t.Result = result
	t.UpdatedAt = time.Now().UTC()
	snap := t.snapshot()
	m.mu.Unlock()

	m.record(snap)
	return snap
}

// failTask transitions the task to failed with the given error. Calling
// it on an already-terminal task leaves the record untouched.
func (m *Manager) failTask(id, errMsg string) *Task {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if t.Status.Terminal() {
		snap := t.snapshot()
		m.mu.Unlock()
		return snap
	}
	t.Status = StatusFailed
	t.Error = errMsg
	t.UpdatedAt = time.Now().UTC()
	snap := t.snapshot()
	m.mu.Unlock()

	m.logger.Warn("task failed", slog.String("task", id), slog.String("error", errMsg))
	m.record(snap)
	return snap
}

// History returns recent journal entries, newest first. Without a journal
// there is no history.
func (m *Manager) History(limit int) ([]Entry, error) {
	if m.journal == nil {
		return nil, nil
	}
	return m.journal.Tasks(limit)
}

// HistoryEntry returns one journal entry by task ID.
func (m *Manager) HistoryEntry(id string) (*Entry, error) {
	if m.journal == nil {
		return nil, fault.NotFound("no journal configured")
	}
	return m.journal.Task(id)
}

// record appends a terminal task to the journal, when one is configured.
func (m *Manager) record(t *Task) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(t); err != nil {
		m.logger.Error("journal record failed", slog.String("task", t.ID), slog.Any("error", err))
	}
}
