package task

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS task_journal (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	status       TEXT NOT NULL,
	user_message TEXT NOT NULL DEFAULT '',
	result       TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS step_journal (
	id           TEXT PRIMARY KEY,
	task_id      TEXT NOT NULL REFERENCES task_journal(id),
	type         TEXT NOT NULL,
	status       TEXT NOT NULL,
	name         TEXT NOT NULL,
	output       TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);
`

// Journal is an append-only record of terminal tasks and their steps. With
// the default in-memory DSN it lives and dies with the process; it exists
// for within-process audit, not persistence.
type Journal struct {
	db *sql.DB
}

// NewJournal opens the journal database at dsn and ensures the schema
// exists. The caller is responsible for calling Close.
func NewJournal(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database connection.
func (j *Journal) Close() error { return j.db.Close() }

// Record appends a terminal task and its steps. Recording the same task
// twice is rejected by the primary key; the journal never rewrites history.
func (j *Journal) Record(t *Task) error {
	if !t.Status.Terminal() {
		return fmt.Errorf("journal: task %s is %s, not terminal", t.ID, t.Status)
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO task_journal (id, type, status, user_message, result, error, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, string(t.Type), string(t.Status), t.UserMessage, t.Result, t.Error, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("journal insert task %s: %w", t.ID, err)
	}
	for _, s := range t.Steps {
		_, err = tx.Exec(`
			INSERT INTO step_journal (id, task_id, type, status, name, output, error, started_at, completed_at)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			s.ID, s.TaskID, string(s.Type), string(s.Status), s.Name, s.Output, s.Error,
			s.StartedAt, nullTime(s.CompletedAt),
		)
		if err != nil {
			return fmt.Errorf("journal insert step %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

// Entry is one journal row returned by Tasks.
type Entry struct {
	Task  Task   `json:"task"`
	Steps []Step `json:"steps"`
}

// Tasks returns up to limit journal entries, most recent first.
func (j *Journal) Tasks(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`
		SELECT id, type, status, user_message, result, error, created_at, updated_at
		FROM task_journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var t Task
		var typ, status string
		if err := rows.Scan(&t.ID, &typ, &status, &t.UserMessage, &t.Result, &t.Error, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Type = Type(typ)
		t.Status = Status(status)
		entries = append(entries, Entry{Task: t})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		steps, err := j.taskSteps(entries[i].Task.ID)
		if err != nil {
			return nil, err
		}
		entries[i].Steps = steps
	}
	return entries, nil
}

// Task returns one journal entry by task ID.
func (j *Journal) Task(id string) (*Entry, error) {
	row := j.db.QueryRow(`
		SELECT id, type, status, user_message, result, error, created_at, updated_at
		FROM task_journal WHERE id = ?`, id)

	var t Task
	var typ, status string
	err := row.Scan(&t.ID, &typ, &status, &t.UserMessage, &t.Result, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("journal: task %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	t.Type = Type(typ)
	t.Status = Status(status)

	steps, err := j.taskSteps(id)
	if err != nil {
		return nil, err
	}
	return &Entry{Task: t, Steps: steps}, nil
}

func (j *Journal) taskSteps(taskID string) ([]Step, error) {
	rows, err := j.db.Query(`
		SELECT id, task_id, type, status, name, output, error, started_at, completed_at
		FROM step_journal WHERE task_id = ? ORDER BY started_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("journal steps for %s: %w", taskID, err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		var typ, status string
		var completedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.TaskID, &typ, &status, &s.Name, &s.Output, &s.Error, &s.StartedAt, &completedAt); err != nil {
			return nil, err
		}
		s.Type = StepType(typ)
		s.Status = StepStatus(status)
		if completedAt.Valid {
			s.CompletedAt = &completedAt.Time
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
