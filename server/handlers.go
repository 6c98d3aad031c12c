package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dispatchd/dispatch/task"
	"github.com/dispatchd/dispatch/tool"
)

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req task.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.manager.CreateTask(req)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.manager.ListTasks()
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.manager.GetTask(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.manager.DeleteTask(id) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamTask executes a task and streams its events over SSE. The request
// body carries the same payload that created the task.
func (s *Server) streamTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req task.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	events := s.manager.ExecuteTask(r.Context(), id, req)
	for e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			s.logger.Error("event marshal", slog.String("task", id), slog.Any("error", err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data) //nolint:errcheck
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n") //nolint:errcheck
	flusher.Flush()
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	entries, err := s.manager.History(limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	if entries == nil {
		entries = []task.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	entry, err := s.manager.HistoryEntry(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	defs := s.tools.Defs()
	if defs == nil {
		defs = []tool.Def{}
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	stats := s.tools.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"provider":   s.cfg.Provider.Name,
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"tool_cache": stats,
	})
}
