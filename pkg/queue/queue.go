package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Queue is a thread-safe in-memory job registry. All reads return copies,
// so callers never hold references into the queue's internal state.
type Queue struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	counter int
	log     *zap.Logger
}

// New returns an empty queue.
func New(log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		jobs: make(map[string]*Job),
		log:  log,
	}
}

// AddJob registers a new pending job for briefPath and returns its id.
// Safe for concurrent submitters.
func (q *Queue) AddJob(briefPath string, priority int) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.counter++
	id := fmt.Sprintf("job_%06d", q.counter)
	q.jobs[id] = &Job{
		ID:        id,
		BriefPath: briefPath,
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	q.log.Debug("job added", zap.String("job_id", id), zap.String("brief_path", briefPath), zap.Int("priority", priority))
	return id
}

// NextJob returns a copy of the pending job that would be dequeued next:
// highest priority first, FIFO within a priority tier. It does not claim
// the job; use ClaimNext for an atomic read-and-claim.
func (q *Queue) NextJob() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := q.nextPendingLocked()
	if next == nil {
		return Job{}, false
	}
	return *next.clone(), true
}

// ClaimNext atomically selects the next pending job and marks it
// in_progress, returning a copy. The select-and-claim happens under one
// lock acquisition so two workers can never claim the same job.
func (q *Queue) ClaimNext() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := q.nextPendingLocked()
	if next == nil {
		return Job{}, false
	}
	q.applyStatusLocked(next, StatusInProgress, "", nil)
	return *next.clone(), true
}

func (q *Queue) nextPendingLocked() *Job {
	var next *Job
	for _, j := range q.jobs {
		if j.Status != StatusPending {
			continue
		}
		if next == nil {
			next = j
			continue
		}
		switch {
		case j.Priority > next.Priority:
			next = j
		case j.Priority == next.Priority && j.CreatedAt.Before(next.CreatedAt):
			next = j
		case j.Priority == next.Priority && j.CreatedAt.Equal(next.CreatedAt) && j.ID < next.ID:
			next = j
		}
	}
	return next
}

// UpdateStatus moves a job to the requested status. It returns false for
// an unknown job, an unknown status, or a transition out of a terminal
// state. Use RetryJob to deliberately re-queue a terminal job.
func (q *Queue) UpdateStatus(jobID string, status Status, errorMessage string, result map[string]any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok {
		q.log.Warn("status update for unknown job", zap.String("job_id", jobID))
		return false
	}
	if !status.Valid() {
		q.log.Warn("invalid status", zap.String("job_id", jobID), zap.String("status", string(status)))
		return false
	}
	if j.Status.Terminal() && status != j.Status {
		q.log.Warn("rejected transition out of terminal state",
			zap.String("job_id", jobID),
			zap.String("from", string(j.Status)),
			zap.String("to", string(status)))
		return false
	}
	q.applyStatusLocked(j, status, errorMessage, result)
	return true
}

func (q *Queue) applyStatusLocked(j *Job, status Status, errorMessage string, result map[string]any) {
	j.Status = status
	now := time.Now().UTC()
	if status == StatusInProgress && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if status.Terminal() && j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	if errorMessage != "" {
		j.ErrorMessage = errorMessage
	}
	if result != nil {
		j.Result = result
	}
}

// RetryJob re-queues a terminal job as pending, clearing its run
// timestamps, error and result. Returns false for an unknown job or one
// that is not in a terminal state.
func (q *Queue) RetryJob(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok || !j.Status.Terminal() {
		return false
	}
	j.Status = StatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.ErrorMessage = ""
	j.Result = nil
	q.log.Info("job re-queued", zap.String("job_id", jobID))
	return true
}

// GetJob returns a copy of the job with the given id.
func (q *Queue) GetJob(jobID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *j.clone(), true
}

// Jobs returns copies of all jobs, optionally filtered by status (pass ""
// for no filter), ordered by creation.
func (q *Queue) Jobs(filter Status) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		if filter != "" && j.Status != filter {
			continue
		}
		out = append(out, *j.clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// Stats summarizes the queue. AvgProcessingTime is the mean wall time in
// seconds over completed jobs, 0 when none have completed.
type Stats struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	InProgress        int     `json:"in_progress"`
	Completed         int     `json:"completed"`
	Failed            int     `json:"failed"`
	Cancelled         int     `json:"cancelled"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
}

// Statistics returns current per-status counts and processing-time stats.
func (q *Queue) Statistics() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	var totalProcessing time.Duration
	var timed int
	for _, j := range q.jobs {
		s.Total++
		switch j.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress:
			s.InProgress++
		case StatusCompleted:
			s.Completed++
			if d, ok := j.ProcessingTime(); ok {
				totalProcessing += d
				timed++
			}
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	if timed > 0 {
		s.AvgProcessingTime = totalProcessing.Seconds() / float64(timed)
	}
	return s
}

type queueState struct {
	JobCounter int   `json:"job_counter"`
	Jobs       []Job `json:"jobs"`
}

// SaveState writes the full queue state to path as JSON. The write is
// atomic: a rename of a temp file in the destination directory, so a
// crash never leaves a truncated state file behind.
func (q *Queue) SaveState(path string) error {
	q.mu.Lock()
	state := queueState{
		JobCounter: q.counter,
		Jobs:       make([]Job, 0, len(q.jobs)),
	}
	for _, j := range q.jobs {
		state.Jobs = append(state.Jobs, *j.clone())
	}
	q.mu.Unlock()

	sort.Slice(state.Jobs, func(a, b int) bool { return state.Jobs[a].ID < state.Jobs[b].ID })

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal queue state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".adlift-queue-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write queue state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// LoadState replaces the queue's entire state from a file previously
// written by SaveState. On any read or parse failure it logs, leaves the
// current state untouched and returns false.
func (q *Queue) LoadState(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		q.log.Warn("queue state not loaded", zap.String("path", path), zap.Error(err))
		return false
	}
	var state queueState
	if err := json.Unmarshal(data, &state); err != nil {
		q.log.Warn("queue state malformed", zap.String("path", path), zap.Error(err))
		return false
	}
	for i := range state.Jobs {
		if state.Jobs[i].ID == "" || !state.Jobs[i].Status.Valid() {
			q.log.Warn("queue state malformed", zap.String("path", path), zap.Int("job_index", i))
			return false
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.counter = state.JobCounter
	q.jobs = make(map[string]*Job, len(state.Jobs))
	for i := range state.Jobs {
		j := state.Jobs[i]
		q.jobs[j.ID] = j.clone()
	}
	q.log.Info("queue state restored", zap.String("path", path), zap.Int("jobs", len(state.Jobs)))
	return true
}

// Len returns the number of jobs in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
