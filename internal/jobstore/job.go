package jobstore

import (
	"time"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobError is one recorded error from a job run, ordered by occurrence.
type JobError struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
}

// Job is the persisted record of one migration run. It is created on
// submission, mutated by every orchestration step, and immutable once a
// terminal status is reached.
type Job struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Progress   map[string]any    `json:"progress"`
	Errors     []JobError        `json:"errors"`
	Artifacts  map[string]string `json:"artifacts"`
	Params     map[string]any    `json:"params"`
}

// clone returns a deep enough copy for handing out to callers. Maps and the
// error slice are copied so callers cannot mutate stored state.
func (j *Job) clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Progress = make(map[string]any, len(j.Progress))
	for k, v := range j.Progress {
		c.Progress[k] = v
	}
	c.Artifacts = make(map[string]string, len(j.Artifacts))
	for k, v := range j.Artifacts {
		c.Artifacts[k] = v
	}
	c.Params = make(map[string]any, len(j.Params))
	for k, v := range j.Params {
		c.Params[k] = v
	}
	c.Errors = make([]JobError, len(j.Errors))
	copy(c.Errors, j.Errors)
	return &c
}
