package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dispatchd/dispatch/config"
	"github.com/dispatchd/dispatch/provider/mock"
	"github.com/dispatchd/dispatch/task"
	"github.com/dispatchd/dispatch/tool"
)

func newTestServer(t *testing.T, responses ...string) *Server {
	t.Helper()
	tools := tool.NewDefaultRegistry(tool.Options{})
	manager := task.NewManager(task.ManagerOptions{
		Provider: mock.New(responses...),
		Tools:    tools,
	})
	return New(config.DefaultConfig(), manager, tools, "test", nil)
}

func chatBody(t *testing.T, text string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"messages": []map[string]string{{"role": "user", "content": text}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(body)
}

func doRequest(s *Server, method, path string, body *bytes.Reader) *httptest.ResponseRecorder {
	if body == nil {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func createTask(t *testing.T, s *Server, text string) task.Task {
	t.Helper()
	rec := doRequest(s, http.MethodPost, "/api/tasks", chatBody(t, text))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: status %d, body %s", rec.Code, rec.Body.String())
	}
	var created task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created task: %v", err)
	}
	return created
}

func TestCreateTask(t *testing.T) {
	s := newTestServer(t)
	created := createTask(t, s, "hello")
	if created.ID == "" {
		t.Error("created task has no id")
	}
	if created.Status != task.StatusPending {
		t.Errorf("status = %q, want pending", created.Status)
	}
	if created.Type != task.TypeChat {
		t.Errorf("type = %q, want chat", created.Type)
	}
}

func TestCreateTask_BadBody(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/tasks", bytes.NewReader([]byte("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateTask_NoMessages(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/tasks", bytes.NewReader([]byte("{}")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestGetTask(t *testing.T) {
	s := newTestServer(t)
	created := createTask(t, s, "hello")

	rec := doRequest(s, http.MethodGet, "/api/tasks/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != created.ID {
		t.Errorf("id = %q, want %q", got.ID, created.ID)
	}

	rec = doRequest(s, http.MethodGet, "/api/tasks/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestListTasks(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/tasks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty list = %s, want []", got)
	}

	createTask(t, s, "one")
	createTask(t, s, "two")
	rec = doRequest(s, http.MethodGet, "/api/tasks", nil)
	var list []task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d tasks, want 2", len(list))
	}
	if list[0].UserMessage != "one" || list[1].UserMessage != "two" {
		t.Errorf("list order: %q, %q", list[0].UserMessage, list[1].UserMessage)
	}
}

func TestDeleteTask(t *testing.T) {
	s := newTestServer(t)
	created := createTask(t, s, "hello")

	rec := doRequest(s, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	rec = doRequest(s, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", rec.Code)
	}
}

func TestStreamTask(t *testing.T) {
	s := newTestServer(t, "streamed reply")
	created := createTask(t, s, "hello")

	rec := doRequest(s, http.MethodPost, "/api/tasks/"+created.ID+"/events", chatBody(t, "hello"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	var events []task.Event
	var sawDone bool
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			sawDone = true
			break
		}
		var e task.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			t.Fatalf("bad event %q: %v", payload, err)
		}
		events = append(events, e)
	}
	if !sawDone {
		t.Error("stream did not end with [DONE]")
	}
	if len(events) == 0 {
		t.Fatal("no events in stream")
	}
	if events[0].Type != task.EventTask {
		t.Errorf("first event = %q, want task", events[0].Type)
	}
	if last := events[len(events)-1]; last.Type != task.EventComplete {
		t.Errorf("last event = %q, want complete", last.Type)
	}

	var content strings.Builder
	for _, e := range events {
		if e.Type != task.EventContent {
			continue
		}
		m := e.Data.(map[string]any)
		content.WriteString(m["content"].(string))
	}
	if content.String() != "streamed reply" {
		t.Errorf("streamed content = %q", content.String())
	}
}

func TestStreamTask_UnknownID(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/tasks/unknown/events", chatBody(t, "hello"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Errorf("stream for unknown id lacks error event: %s", body)
	}
	if strings.Contains(body, `"type":"complete"`) {
		t.Error("stream for unknown id carries a complete event")
	}
}

func TestListTools(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/tools", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var defs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &defs); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range defs {
		names = append(names, d["name"].(string))
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"calculate", "clock", "json", "run_code"} {
		if !strings.Contains(joined, want) {
			t.Errorf("tool list %q missing %s", joined, want)
		}
	}
}

func TestHistory(t *testing.T) {
	journal, err := task.NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { journal.Close() })

	tools := tool.NewDefaultRegistry(tool.Options{})
	manager := task.NewManager(task.ManagerOptions{
		Provider: mock.New("recorded"),
		Tools:    tools,
		Journal:  journal,
	})
	s := New(config.DefaultConfig(), manager, tools, "test", nil)

	rec := doRequest(s, http.MethodGet, "/api/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty history = %s, want []", got)
	}

	created := createTask(t, s, "hello")
	rec = doRequest(s, http.MethodPost, "/api/tasks/"+created.ID+"/events", chatBody(t, "hello"))
	if rec.Code != http.StatusOK {
		t.Fatalf("stream status = %d", rec.Code)
	}

	var entries []task.Entry
	rec = doRequest(s, http.MethodGet, "/api/history", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d history entries, want 1", len(entries))
	}
	if entries[0].Task.ID != created.ID || entries[0].Task.Result != "recorded" {
		t.Errorf("entry = %+v", entries[0].Task)
	}

	rec = doRequest(s, http.MethodGet, "/api/history/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("single entry status = %d", rec.Code)
	}
	rec = doRequest(s, http.MethodGet, "/api/history/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown entry status = %d, want 404", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "ok" {
		t.Errorf("status field = %v", got["status"])
	}
	if got["version"] != "test" {
		t.Errorf("version field = %v", got["version"])
	}
}
