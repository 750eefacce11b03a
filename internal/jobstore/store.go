// Package jobstore persists migration job records, one JSON file per job,
// with an in-memory read-through cache for repeat lookups within a run.
package jobstore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/cartbridge/cartbridge/internal/errors"
)

const (
	cacheTTL     = 10 * time.Minute
	cacheCleanup = 30 * time.Minute
)

// Store handles persistence of job records.
//
// Concurrent mutations of the same job id are not serialized beyond the
// store's internal lock; callers must drive each job from a single control
// loop, which the migration orchestrator does.
type Store struct {
	dir    string
	cache  *cache.Cache
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a job store rooted at <dataDir>/jobs.
func NewStore(dataDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Join(dataDir, "jobs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("jobstore").
			Category(errors.CategoryJobStore).
			Context("path", dir).
			Build()
	}

	return &Store{
		dir:    dir,
		cache:  cache.New(cacheTTL, cacheCleanup),
		logger: logger.With("service", "jobstore"),
	}, nil
}

// Create registers a new queued job and persists it.
func (s *Store) Create(kind string, params map[string]any) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Progress:  make(map[string]any),
		Errors:    make([]JobError, 0),
		Artifacts: make(map[string]string),
		Params:    params,
	}
	if job.Params == nil {
		job.Params = make(map[string]any)
	}

	if err := s.persist(job); err != nil {
		return nil, err
	}

	s.logger.Info("job created", "job_id", job.ID, "kind", kind)
	return job.clone(), nil
}

// Get returns the job with the given id, or nil when unknown.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// List returns all known jobs, newest first.
func (s *Store) List() ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.New(err).
			Component("jobstore").
			Category(errors.CategoryJobStore).
			Context("path", s.dir).
			Build()
	}

	jobs := make([]*Job, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		job, err := s.get(id)
		if err != nil {
			s.logger.Warn("skipping unreadable job file", "file", entry.Name(), "error", err)
			continue
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// UpdateStatus transitions a job to the given status. StartedAt is set on the
// first transition to running, FinishedAt on the first terminal status; once
// set neither is ever overwritten. Extra fields are merged into Progress.
// A failed job may be reopened by transitioning it back to running, so a
// resumed run can record fresh progress; completed and cancelled jobs stay
// immutable. Returns nil when the job does not exist.
func (s *Store) UpdateStatus(id string, status Status, extra map[string]any) (*Job, error) {
	return s.mutate(id, func(job *Job) {
		if job.Status.IsTerminal() {
			if job.Status != StatusFailed || status != StatusRunning {
				return
			}
			// Reopening clears FinishedAt so the next terminal
			// transition stamps it fresh.
			job.FinishedAt = nil
		}

		job.Status = status
		now := time.Now().UTC()
		if status == StatusRunning && job.StartedAt == nil {
			job.StartedAt = &now
		}
		if status.IsTerminal() && job.FinishedAt == nil {
			job.FinishedAt = &now
		}
		for k, v := range extra {
			job.Progress[k] = v
		}
	})
}

// UpdateProgress merges the partial progress map into the job's progress.
func (s *Store) UpdateProgress(id string, partial map[string]any) (*Job, error) {
	return s.mutate(id, func(job *Job) {
		if job.Status.IsTerminal() {
			return
		}
		for k, v := range partial {
			job.Progress[k] = v
		}
	})
}

// AddError appends an error entry to the job's ordered error list.
func (s *Store) AddError(id, message string, cause error) (*Job, error) {
	return s.mutate(id, func(job *Job) {
		if job.Status.IsTerminal() {
			return
		}
		entry := JobError{
			Timestamp: time.Now().UTC(),
			Message:   message,
		}
		if cause != nil {
			entry.Detail = cause.Error()
		}
		job.Errors = append(job.Errors, entry)
	})
}

// AttachArtifact records a named artifact path or URL on the job.
func (s *Store) AttachArtifact(id, key, value string) (*Job, error) {
	return s.mutate(id, func(job *Job) {
		if job.Status.IsTerminal() {
			return
		}
		job.Artifacts[key] = value
	})
}

// mutate performs a read-modify-persist-cache cycle on one job.
func (s *Store) mutate(id string, fn func(*Job)) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	fn(job)
	job.UpdatedAt = time.Now().UTC()

	if err := s.persist(job); err != nil {
		return nil, err
	}
	return job.clone(), nil
}

// get loads a job from cache or disk. Caller holds s.mu.
func (s *Store) get(id string) (*Job, error) {
	if cached, found := s.cache.Get(id); found {
		return cached.(*Job).clone(), nil
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("jobstore").
			Category(errors.CategoryJobStore).
			Context("job_id", id).
			Build()
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, errors.New(err).
			Component("jobstore").
			Category(errors.CategoryJobStore).
			Context("job_id", id).
			Build()
	}
	if job.Progress == nil {
		job.Progress = make(map[string]any)
	}
	if job.Artifacts == nil {
		job.Artifacts = make(map[string]string)
	}
	if job.Params == nil {
		job.Params = make(map[string]any)
	}

	s.cache.Set(id, job.clone(), cache.DefaultExpiration)
	return &job, nil
}

// persist writes the job file atomically and refreshes the cache.
// Caller holds s.mu.
func (s *Store) persist(job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("jobstore").
			Category(errors.CategoryJobStore).
			Context("job_id", job.ID).
			Build()
	}

	path := s.path(job.ID)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return errors.New(err).
			Component("jobstore").
			Category(errors.CategoryJobStore).
			Context("path", tempFile).
			Build()
	}
	if err := os.Rename(tempFile, path); err != nil {
		return errors.New(err).
			Component("jobstore").
			Category(errors.CategoryJobStore).
			Context("path", path).
			Build()
	}

	s.cache.Set(job.ID, job.clone(), cache.DefaultExpiration)
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
