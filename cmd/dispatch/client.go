package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dispatchd/dispatch/task"
	"github.com/dispatchd/dispatch/tool"
)

// client is a thin HTTP wrapper around the dispatchd API.
type client struct {
	base string
	hc   *http.Client
}

func newClient() *client {
	return &client{
		base: strings.TrimRight(serverAddr, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) getJSON(path string, out any) error {
	resp, err := c.hc.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) createTask(req task.Request) (*task.Task, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Post(c.base+"/api/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST /api/tasks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp)
	}
	var t task.Task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// streamTask executes a task and invokes fn for each event. Streaming has
// no client-side deadline; the server bounds the run.
func (c *client) streamTask(id string, req task.Request, fn func(task.Event) error) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	hc := &http.Client{}
	resp, err := hc.Post(c.base+"/api/tasks/"+id+"/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST /api/tasks/%s/events: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return nil
		}
		var e task.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (c *client) listTasks() ([]task.Task, error) {
	var tasks []task.Task
	if err := c.getJSON("/api/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *client) getTask(id string) (*task.Task, error) {
	var t task.Task
	if err := c.getJSON("/api/tasks/"+id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *client) listTools() ([]tool.Def, error) {
	var defs []tool.Def
	if err := c.getJSON("/api/tools", &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (c *client) status() (map[string]any, error) {
	var st map[string]any
	if err := c.getJSON("/api/status", &st); err != nil {
		return nil, err
	}
	return st, nil
}

// apiError turns a non-2xx response into an error, preferring the
// server's JSON error field over the raw body.
func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return fmt.Errorf("server: %s", body.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}
