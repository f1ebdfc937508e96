package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeguardian/types"
)

func instantRunner(results []*types.AnalysisResult, err error) Runner {
	return func(ctx context.Context, root string) ([]*types.AnalysisResult, error) {
		return results, err
	}
}

// blockingRunner holds every job until release is closed
func blockingRunner(release <-chan struct{}) Runner {
	return func(ctx context.Context, root string) ([]*types.AnalysisResult, error) {
		select {
		case <-release:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func waitForJobState(t *testing.T, m *Manager, id string, want JobState) *Job {
	t.Helper()
	var got *Job
	require.Eventually(t, func() bool {
		job, ok := m.Job(id)
		if !ok {
			return false
		}
		got = job
		return job.State == want
	}, 2*time.Second, 10*time.Millisecond, "job %s never reached %s", id, want)
	return got
}

func TestManager_SubmitRunsToCompletion(t *testing.T) {
	results := []*types.AnalysisResult{{FileName: "a.java"}, {FileName: "b.java"}}
	m := NewManager(instantRunner(results, nil), 2)
	defer m.Stop()

	job, err := m.Submit("/repo")
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, job.State)

	final := waitForJobState(t, m, job.ID, JobStateComplete)
	assert.Equal(t, 100.0, final.Progress)
	assert.Len(t, final.Results, 2)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.CompletedAt)
}

func TestManager_RunnerErrorFailsJob(t *testing.T) {
	m := NewManager(instantRunner(nil, errors.New("walk failed")), 1)
	defer m.Stop()

	job, err := m.Submit("/repo")
	require.NoError(t, err)

	final := waitForJobState(t, m, job.ID, JobStateError)
	assert.Contains(t, final.Error, "walk failed")
}

func TestManager_DeduplicatesPerRoot(t *testing.T) {
	release := make(chan struct{})
	m := NewManager(blockingRunner(release), 2)
	defer m.Stop()

	first, err := m.Submit("/repo")
	require.NoError(t, err)
	waitForJobState(t, m, first.ID, JobStateRunning)

	_, err = m.Submit("/repo")
	require.Error(t, err, "second submission for a live root is rejected")
	assert.Contains(t, err.Error(), "/repo")

	_, err = m.Submit("/other")
	assert.NoError(t, err, "different roots run independently")

	close(release)
	waitForJobState(t, m, first.ID, JobStateComplete)

	_, err = m.Submit("/repo")
	assert.NoError(t, err, "finished roots accept new jobs")
}

func TestManager_CancelRunningJob(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m := NewManager(blockingRunner(release), 1)
	defer m.Stop()

	job, err := m.Submit("/repo")
	require.NoError(t, err)
	waitForJobState(t, m, job.ID, JobStateRunning)

	require.NoError(t, m.Cancel(job.ID))

	final := waitForJobState(t, m, job.ID, JobStateCancelled)
	assert.NotNil(t, final.CompletedAt)

	// The root frees up immediately on cancel.
	_, err = m.Submit("/repo")
	assert.NoError(t, err)
}

func TestManager_CancelFinishedJobFails(t *testing.T) {
	m := NewManager(instantRunner(nil, nil), 1)
	defer m.Stop()

	job, err := m.Submit("/repo")
	require.NoError(t, err)
	waitForJobState(t, m, job.ID, JobStateComplete)

	assert.Error(t, m.Cancel(job.ID))
	assert.Error(t, m.Cancel("no-such-job"))
}

func TestManager_TransitionListenerSeesLifecycle(t *testing.T) {
	m := NewManager(instantRunner(nil, nil), 1)
	defer m.Stop()

	var mu sync.Mutex
	var states []JobState
	m.OnTransition(func(job *Job) {
		mu.Lock()
		states = append(states, job.State)
		mu.Unlock()
	})

	job, err := m.Submit("/repo")
	require.NoError(t, err)
	waitForJobState(t, m, job.ID, JobStateComplete)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, JobStateQueued, states[0])
	assert.Equal(t, JobStateRunning, states[1])
	assert.Equal(t, JobStateComplete, states[2])
}

func TestManager_CleanupOldJobs(t *testing.T) {
	m := NewManager(instantRunner(nil, nil), 1)
	defer m.Stop()

	job, err := m.Submit("/repo")
	require.NoError(t, err)
	waitForJobState(t, m, job.ID, JobStateComplete)

	assert.Equal(t, 0, m.CleanupOldJobs(time.Hour), "fresh jobs survive")
	assert.Equal(t, 1, m.CleanupOldJobs(0))

	_, ok := m.Job(job.ID)
	assert.False(t, ok)
}

func TestManager_QueueStatus(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m := NewManager(blockingRunner(release), 1)
	defer m.Stop()

	job, err := m.Submit("/repo")
	require.NoError(t, err)
	waitForJobState(t, m, job.ID, JobStateRunning)

	status := m.QueueStatus()
	assert.Equal(t, 1, status["running"])
	assert.Equal(t, 1, status["total"])
}

func TestManager_JobsReturnsCopies(t *testing.T) {
	m := NewManager(instantRunner(nil, nil), 1)
	defer m.Stop()

	job, err := m.Submit("/repo")
	require.NoError(t, err)
	waitForJobState(t, m, job.ID, JobStateComplete)

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	jobs[0].State = JobStateError

	reread, ok := m.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, JobStateComplete, reread.State, "mutating a returned job does not touch the manager's copy")
}
