package task

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dispatchd/dispatch/provider/mock"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func terminalTask(id string, status Status) *Task {
	now := time.Now().UTC().Truncate(time.Second)
	done := now.Add(time.Second)
	return &Task{
		ID:          id,
		Type:        TypeChat,
		Status:      status,
		UserMessage: "hello",
		Result:      "world",
		CreatedAt:   now,
		UpdatedAt:   done,
		Steps: []*Step{
			{
				ID:          id + "-s1",
				TaskID:      id,
				Type:        StepPlan,
				Status:      StepStatusCompleted,
				Name:        "Analyze request",
				Output:      "type=chat",
				StartedAt:   now,
				CompletedAt: &done,
			},
			{
				ID:        id + "-s2",
				TaskID:    id,
				Type:      StepSkill,
				Status:    StepStatusRunning,
				Name:      "Run chat skill",
				StartedAt: now.Add(time.Second),
			},
		},
	}
}

func TestJournal_RecordAndFetch(t *testing.T) {
	j := newTestJournal(t)
	if err := j.Record(terminalTask("t1", StatusCompleted)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entry, err := j.Task("t1")
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if entry.Task.Status != StatusCompleted {
		t.Errorf("status = %q", entry.Task.Status)
	}
	if entry.Task.UserMessage != "hello" || entry.Task.Result != "world" {
		t.Errorf("round trip lost fields: %+v", entry.Task)
	}
	if len(entry.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(entry.Steps))
	}
	if entry.Steps[0].Type != StepPlan || entry.Steps[1].Type != StepSkill {
		t.Errorf("steps out of order: %s, %s", entry.Steps[0].Type, entry.Steps[1].Type)
	}
	if entry.Steps[0].CompletedAt == nil {
		t.Error("completed step lost CompletedAt")
	}
	if entry.Steps[1].CompletedAt != nil {
		t.Error("running step gained CompletedAt")
	}
}

func TestJournal_RejectsNonTerminal(t *testing.T) {
	j := newTestJournal(t)
	for _, status := range []Status{StatusPending, StatusRunning} {
		task := terminalTask("t1", status)
		if err := j.Record(task); err == nil {
			t.Errorf("Record accepted %s task", status)
		}
	}
}

func TestJournal_RecordOnce(t *testing.T) {
	j := newTestJournal(t)
	task := terminalTask("t1", StatusFailed)
	if err := j.Record(task); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if err := j.Record(task); err == nil {
		t.Fatal("Record accepted the same task twice")
	}
	entries, err := j.Tasks(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries after double record", len(entries))
	}
}

func TestJournal_TasksMostRecentFirst(t *testing.T) {
	j := newTestJournal(t)
	// IDs are time-ordered in production; mimic that here.
	for _, id := range []string{"t1", "t2", "t3"} {
		if err := j.Record(terminalTask(id, StatusCompleted)); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := j.Tasks(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Task.ID != "t3" || entries[1].Task.ID != "t2" {
		t.Errorf("order = %s, %s; want t3, t2", entries[0].Task.ID, entries[1].Task.ID)
	}
}

func TestJournal_TaskNotFound(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Task("missing")
	if err == nil {
		t.Fatal("Task returned no error for unknown id")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestManager_JournalsTerminalTasks(t *testing.T) {
	j := newTestJournal(t)
	m := NewManager(ManagerOptions{
		Provider: mock.New("done"),
		Journal:  j,
	})
	task, err := m.CreateTask(chatRequest("hi"))
	if err != nil {
		t.Fatal(err)
	}
	collectEvents(t, m.ExecuteTask(context.Background(), task.ID, chatRequest("hi")))

	entry, err := j.Task(task.ID)
	if err != nil {
		t.Fatalf("completed task not journaled: %v", err)
	}
	if entry.Task.Status != StatusCompleted || entry.Task.Result != "done" {
		t.Errorf("journaled task = %s/%q", entry.Task.Status, entry.Task.Result)
	}
	if len(entry.Steps) != 3 {
		t.Fatalf("journaled %d steps, want 3", len(entry.Steps))
	}
	// The record is written only after every step has finished.
	for _, s := range entry.Steps {
		if s.Status != StepStatusCompleted {
			t.Errorf("journaled step %s status = %q", s.Type, s.Status)
		}
		if s.CompletedAt == nil {
			t.Errorf("journaled step %s has no CompletedAt", s.Type)
		}
	}
}
