package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddJob(t *testing.T) {
	q := New(nil)

	id := q.AddJob("briefs/spring.json", 0)
	assert.Equal(t, "job_000001", id)

	job, ok := q.GetJob(id)
	require.True(t, ok)
	assert.Equal(t, "briefs/spring.json", job.BriefPath)
	assert.Equal(t, StatusPending, job.Status)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)
	assert.False(t, job.CreatedAt.IsZero())

	id2 := q.AddJob("briefs/summer.json", 0)
	assert.Equal(t, "job_000002", id2)
}

func TestAddJobConcurrent(t *testing.T) {
	q := New(nil)
	const n = 100

	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = q.AddJob(fmt.Sprintf("briefs/%d.json", i), 0)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, n, q.Len())
}

func TestNextJobPriorityOrder(t *testing.T) {
	q := New(nil)

	// Priorities [0, 5, 5, 0]: dequeue order is both priority-5 jobs in
	// submission order, then both priority-0 jobs in submission order.
	a := q.AddJob("a.json", 0)
	b := q.AddJob("b.json", 5)
	c := q.AddJob("c.json", 5)
	d := q.AddJob("d.json", 0)

	var order []string
	for {
		job, ok := q.NextJob()
		if !ok {
			break
		}
		order = append(order, job.ID)
		require.True(t, q.UpdateStatus(job.ID, StatusInProgress, "", nil))
	}
	assert.Equal(t, []string{b, c, a, d}, order)
}

func TestNextJobEmpty(t *testing.T) {
	q := New(nil)
	_, ok := q.NextJob()
	assert.False(t, ok)
}

func TestNextJobDoesNotClaim(t *testing.T) {
	q := New(nil)
	id := q.AddJob("a.json", 0)

	job, ok := q.NextJob()
	require.True(t, ok)
	assert.Equal(t, id, job.ID)

	again, ok := q.NextJob()
	require.True(t, ok)
	assert.Equal(t, id, again.ID, "NextJob must not mark the job in_progress")
}

func TestClaimNext(t *testing.T) {
	q := New(nil)
	id := q.AddJob("a.json", 0)

	job, ok := q.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, StatusInProgress, job.Status)
	require.NotNil(t, job.StartedAt)

	_, ok = q.ClaimNext()
	assert.False(t, ok, "claimed job must not be claimable again")
}

func TestClaimNextConcurrent(t *testing.T) {
	q := New(nil)
	const n = 50
	for i := 0; i < n; i++ {
		q.AddJob(fmt.Sprintf("%d.json", i), 0)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := make(map[string]int, n)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := q.ClaimNext()
				if !ok {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, n)
	for id, count := range claimed {
		assert.Equal(t, 1, count, "job %s claimed %d times", id, count)
	}
}

func TestUpdateStatusTimestamps(t *testing.T) {
	q := New(nil)
	id := q.AddJob("a.json", 0)

	require.True(t, q.UpdateStatus(id, StatusInProgress, "", nil))
	job, _ := q.GetJob(id)
	require.NotNil(t, job.StartedAt)
	firstStart := *job.StartedAt

	// A second in_progress update must not move started_at.
	require.True(t, q.UpdateStatus(id, StatusInProgress, "", nil))
	job, _ = q.GetJob(id)
	assert.True(t, firstStart.Equal(*job.StartedAt))

	require.True(t, q.UpdateStatus(id, StatusCompleted, "", map[string]any{"ok": true}))
	job, _ = q.GetJob(id)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, map[string]any{"ok": true}, job.Result)
	assert.False(t, job.CompletedAt.Before(*job.StartedAt))
}

func TestUpdateStatusRejections(t *testing.T) {
	q := New(nil)

	t.Run("unknown job", func(t *testing.T) {
		assert.False(t, q.UpdateStatus("job_999999", StatusCompleted, "", nil))
	})

	t.Run("unknown status", func(t *testing.T) {
		id := q.AddJob("a.json", 0)
		assert.False(t, q.UpdateStatus(id, Status("paused"), "", nil))
	})

	t.Run("terminal states are final", func(t *testing.T) {
		for _, terminal := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
			id := q.AddJob("a.json", 0)
			require.True(t, q.UpdateStatus(id, StatusInProgress, "", nil))
			require.True(t, q.UpdateStatus(id, terminal, "", nil))

			assert.False(t, q.UpdateStatus(id, StatusPending, "", nil))
			assert.False(t, q.UpdateStatus(id, StatusInProgress, "", nil))

			// Re-asserting the same terminal state is allowed and keeps
			// completed_at unchanged.
			job, _ := q.GetJob(id)
			completedAt := *job.CompletedAt
			assert.True(t, q.UpdateStatus(id, terminal, "", nil))
			job, _ = q.GetJob(id)
			assert.True(t, completedAt.Equal(*job.CompletedAt))
		}
	})
}

func TestUpdateStatusErrorMessage(t *testing.T) {
	q := New(nil)
	id := q.AddJob("a.json", 0)

	require.True(t, q.UpdateStatus(id, StatusInProgress, "", nil))
	require.True(t, q.UpdateStatus(id, StatusFailed, "render timed out", nil))

	job, _ := q.GetJob(id)
	assert.Equal(t, "render timed out", job.ErrorMessage)
	assert.Nil(t, job.Result)
}

func TestRetryJob(t *testing.T) {
	q := New(nil)
	id := q.AddJob("a.json", 0)

	t.Run("pending job is not retryable", func(t *testing.T) {
		assert.False(t, q.RetryJob(id))
	})

	require.True(t, q.UpdateStatus(id, StatusInProgress, "", nil))

	t.Run("in_progress job is not retryable", func(t *testing.T) {
		assert.False(t, q.RetryJob(id))
	})

	require.True(t, q.UpdateStatus(id, StatusFailed, "boom", map[string]any{"partial": true}))

	t.Run("failed job re-enters pending clean", func(t *testing.T) {
		require.True(t, q.RetryJob(id))

		job, _ := q.GetJob(id)
		assert.Equal(t, StatusPending, job.Status)
		assert.Nil(t, job.StartedAt)
		assert.Nil(t, job.CompletedAt)
		assert.Empty(t, job.ErrorMessage)
		assert.Nil(t, job.Result)

		// The retried job picks up fresh timestamps on its next run.
		require.True(t, q.UpdateStatus(id, StatusInProgress, "", nil))
		job, _ = q.GetJob(id)
		assert.NotNil(t, job.StartedAt)
	})

	t.Run("unknown job", func(t *testing.T) {
		assert.False(t, q.RetryJob("job_999999"))
	})
}

func TestJobsFilter(t *testing.T) {
	q := New(nil)
	a := q.AddJob("a.json", 0)
	b := q.AddJob("b.json", 0)
	q.AddJob("c.json", 0)
	require.True(t, q.UpdateStatus(a, StatusInProgress, "", nil))
	require.True(t, q.UpdateStatus(a, StatusCompleted, "", nil))
	require.True(t, q.UpdateStatus(b, StatusInProgress, "", nil))

	assert.Len(t, q.Jobs(""), 3)
	assert.Len(t, q.Jobs(StatusPending), 1)
	assert.Len(t, q.Jobs(StatusInProgress), 1)
	assert.Len(t, q.Jobs(StatusCompleted), 1)
	assert.Empty(t, q.Jobs(StatusFailed))
}

func TestJobsReturnsCopies(t *testing.T) {
	q := New(nil)
	id := q.AddJob("a.json", 0)

	jobs := q.Jobs("")
	require.Len(t, jobs, 1)
	jobs[0].Status = StatusCancelled
	jobs[0].BriefPath = "mutated"

	job, _ := q.GetJob(id)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, "a.json", job.BriefPath)
}

func TestStatistics(t *testing.T) {
	q := New(nil)

	t.Run("empty queue", func(t *testing.T) {
		s := q.Statistics()
		assert.Zero(t, s.Total)
		assert.Zero(t, s.AvgProcessingTime)
	})

	a := q.AddJob("a.json", 1)
	s := q.Statistics()
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.Pending)

	require.True(t, q.UpdateStatus(a, StatusInProgress, "", nil))
	require.True(t, q.UpdateStatus(a, StatusCompleted, "", map[string]any{"ok": true}))

	b := q.AddJob("b.json", 0)
	require.True(t, q.UpdateStatus(b, StatusInProgress, "", nil))
	require.True(t, q.UpdateStatus(b, StatusFailed, "boom", nil))

	q.AddJob("c.json", 0)

	s = q.Statistics()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Zero(t, s.InProgress)
	assert.Zero(t, s.Cancelled)
	assert.GreaterOrEqual(t, s.AvgProcessingTime, 0.0)
}

func TestScenario(t *testing.T) {
	q := New(nil)

	id := q.AddJob("brief_a.json", 1)
	require.NotEmpty(t, id)

	s := q.Statistics()
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.Pending)

	require.True(t, q.UpdateStatus(id, StatusInProgress, "", nil))
	require.True(t, q.UpdateStatus(id, StatusCompleted, "", map[string]any{"ok": true}))

	job, ok := q.GetJob(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, map[string]any{"ok": true}, job.Result)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.StartedAt)
	assert.False(t, job.CompletedAt.Before(*job.StartedAt))
}

func TestSaveLoadState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "queue_state.json")

	q := New(nil)
	a := q.AddJob("a.json", 3)
	b := q.AddJob("b.json", 0)
	require.True(t, q.UpdateStatus(a, StatusInProgress, "", nil))
	require.True(t, q.UpdateStatus(a, StatusCompleted, "", map[string]any{"assets": 12.0}))

	require.NoError(t, q.SaveState(path))

	t.Run("file shape", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, 2.0, raw["job_counter"])

		jobs, ok := raw["jobs"].([]any)
		require.True(t, ok)
		require.Len(t, jobs, 2)

		first, ok := jobs[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, a, first["job_id"])
		assert.Equal(t, "a.json", first["brief_path"])
		assert.Equal(t, "completed", first["status"])
		assert.NotNil(t, first["started_at"])

		second, ok := jobs[1].(map[string]any)
		require.True(t, ok)
		assert.Nil(t, second["started_at"], "pending job serializes null timestamps")
	})

	t.Run("round trip", func(t *testing.T) {
		restored := New(nil)
		require.True(t, restored.LoadState(path))

		assert.Equal(t, 2, restored.Len())
		job, ok := restored.GetJob(a)
		require.True(t, ok)
		assert.Equal(t, StatusCompleted, job.Status)
		assert.Equal(t, map[string]any{"assets": 12.0}, job.Result)

		// Counter continues where it left off.
		next := restored.AddJob("c.json", 0)
		assert.Equal(t, "job_000003", next)

		// b is still dispatchable.
		claimed, ok := restored.ClaimNext()
		require.True(t, ok)
		assert.Equal(t, b, claimed.ID)
	})
}

func TestLoadStateFailSoft(t *testing.T) {
	dir := t.TempDir()

	q := New(nil)
	q.AddJob("keep.json", 0)

	t.Run("missing file", func(t *testing.T) {
		assert.False(t, q.LoadState(filepath.Join(dir, "nope.json")))
		assert.Equal(t, 1, q.Len())
	})

	t.Run("malformed JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{truncated"), 0o644))

		assert.False(t, q.LoadState(bad))
		assert.Equal(t, 1, q.Len(), "prior state must survive a failed restore")
	})

	t.Run("wrong shape", func(t *testing.T) {
		bad := filepath.Join(dir, "shape.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"job_counter":1,"jobs":[{"status":"nonsense"}]}`), 0o644))

		assert.False(t, q.LoadState(bad))
		assert.Equal(t, 1, q.Len())
	})
}

func TestProcessingTime(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(90 * time.Second)

	j := &Job{StartedAt: &now, CompletedAt: &later}
	d, ok := j.ProcessingTime()
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	_, ok = (&Job{StartedAt: &now}).ProcessingTime()
	assert.False(t, ok)
}
