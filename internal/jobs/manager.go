package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"codeguardian/types"
)

// JobState tracks a batch analysis job through its lifecycle
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateComplete  JobState = "complete"
	JobStateError     JobState = "error"
	JobStateCancelled JobState = "cancelled"
)

// terminal reports whether the state is final
func (s JobState) terminal() bool {
	return s == JobStateComplete || s == JobStateError || s == JobStateCancelled
}

// Job is one batch analysis request over a directory root
type Job struct {
	ID          string                  `json:"id"`
	Root        string                  `json:"root"`
	State       JobState                `json:"state"`
	Progress    float64                 `json:"progress"`
	Message     string                  `json:"message"`
	CreatedAt   time.Time               `json:"createdAt"`
	StartedAt   *time.Time              `json:"startedAt,omitempty"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Results     []*types.AnalysisResult `json:"results,omitempty"`

	cancel context.CancelFunc
}

// Clone returns a copy safe to hand to API callers
func (j *Job) Clone() *Job {
	copied := *j
	copied.cancel = nil
	return &copied
}

// Runner performs the batch analysis for one root
type Runner func(ctx context.Context, root string) ([]*types.AnalysisResult, error)

// TransitionListener observes job state changes, for event publishing and
// websocket broadcasts.
type TransitionListener func(job *Job)

// Manager queues batch analysis jobs, runs them on a bounded worker pool,
// and deduplicates by root: one live job per directory at a time.
type Manager struct {
	runner    Runner
	listeners []TransitionListener

	mu          sync.RWMutex
	jobs        map[string]*Job
	activeRoots map[string]string

	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a job manager with the given worker count and starts
// its workers.
func NewManager(runner Runner, workers int) *Manager {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		runner:      runner,
		jobs:        make(map[string]*Job),
		activeRoots: make(map[string]string),
		queue:       make(chan string, 64),
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	log.Printf("✅ Job manager started with %d workers", workers)
	return m
}

// OnTransition registers a listener for job state changes. Listeners are
// called synchronously with a cloned job; register before submitting work.
func (m *Manager) OnTransition(listener TransitionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// Submit queues a batch analysis job for the root. A root with a queued or
// running job rejects new submissions until the live job finishes.
func (m *Manager) Submit(root string) (*Job, error) {
	m.mu.Lock()
	if liveID, busy := m.activeRoots[root]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("root %s is already being analyzed by job %s", root, liveID)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Root:      root,
		State:     JobStateQueued,
		Message:   "queued",
		CreatedAt: time.Now(),
	}
	m.jobs[job.ID] = job
	m.activeRoots[root] = job.ID
	m.mu.Unlock()

	// Notify before the queue send so listeners always see queued first.
	m.notify(job.ID)

	select {
	case m.queue <- job.ID:
	default:
		m.failJob(job.ID, fmt.Errorf("job queue is full"))
		return nil, fmt.Errorf("job queue is full")
	}

	log.Printf("📋 Queued analysis job %s for %s", job.ID, root)
	return job.Clone(), nil
}

// Job returns a copy of the job with the given ID
func (m *Manager) Job(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Jobs returns copies of all known jobs
func (m *Manager) Jobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job.Clone())
	}
	return out
}

// Cancel cancels a queued or running job. Finished jobs stay as they are.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("job %s not found", id)
	}
	if job.State.terminal() {
		m.mu.Unlock()
		return fmt.Errorf("job %s is already finished", id)
	}

	cancel := job.cancel
	job.State = JobStateCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Message = "cancelled"
	delete(m.activeRoots, job.Root)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	log.Printf("🛑 Cancelled job %s", id)
	m.notify(id)
	return nil
}

// CleanupOldJobs drops finished jobs older than maxAge and returns how many
// were removed.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	cleaned := 0
	for id, job := range m.jobs {
		if job.State.terminal() && job.CreatedAt.Before(cutoff) {
			delete(m.jobs, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		log.Printf("🧹 Cleaned up %d finished jobs", cleaned)
	}
	return cleaned
}

// QueueStatus summarizes the job population by state
func (m *Manager) QueueStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[JobState]int)
	for _, job := range m.jobs {
		counts[job.State]++
	}
	return map[string]interface{}{
		"queued":    counts[JobStateQueued],
		"running":   counts[JobStateRunning],
		"complete":  counts[JobStateComplete],
		"error":     counts[JobStateError],
		"cancelled": counts[JobStateCancelled],
		"total":     len(m.jobs),
	}
}

// Stop shuts down the workers, waiting up to 30 seconds for in-flight jobs
func (m *Manager) Stop() error {
	log.Println("🛑 Stopping job manager...")
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ Job manager stopped")
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("job manager stop timed out")
	}
}

// worker consumes queued jobs until the manager shuts down
func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for {
		select {
		case jobID := <-m.queue:
			m.runJob(id, jobID)
		case <-m.ctx.Done():
			return
		}
	}
}

// runJob executes one job, honoring cancellations that raced the queue
func (m *Manager) runJob(workerID int, jobID string) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.State != JobStateQueued {
		m.mu.Unlock()
		return
	}
	jobCtx, cancel := context.WithCancel(m.ctx)
	job.State = JobStateRunning
	job.Message = "analyzing"
	job.Progress = 10.0
	now := time.Now()
	job.StartedAt = &now
	job.cancel = cancel
	root := job.Root
	m.mu.Unlock()
	defer cancel()

	log.Printf("👷 Worker %d running job %s on %s", workerID, jobID, root)
	m.notify(jobID)

	results, err := m.runner(jobCtx, root)
	if err != nil {
		if jobCtx.Err() != nil {
			// Cancelled jobs keep their cancelled state.
			return
		}
		m.failJob(jobID, err)
		return
	}
	m.completeJob(jobID, results)
}

func (m *Manager) completeJob(jobID string, results []*types.AnalysisResult) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.State != JobStateRunning {
		m.mu.Unlock()
		return
	}
	job.State = JobStateComplete
	job.Progress = 100.0
	job.Message = fmt.Sprintf("analyzed %d files", len(results))
	job.Results = results
	now := time.Now()
	job.CompletedAt = &now
	delete(m.activeRoots, job.Root)
	m.mu.Unlock()

	log.Printf("✅ Job %s complete: %d files", jobID, len(results))
	m.notify(jobID)
}

func (m *Manager) failJob(jobID string, err error) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.State.terminal() {
		m.mu.Unlock()
		return
	}
	job.State = JobStateError
	job.Error = err.Error()
	job.Message = fmt.Sprintf("analysis failed: %v", err)
	now := time.Now()
	job.CompletedAt = &now
	delete(m.activeRoots, job.Root)
	m.mu.Unlock()

	log.Printf("❌ Job %s failed: %v", jobID, err)
	m.notify(jobID)
}

// notify fans a job snapshot out to the transition listeners
func (m *Manager) notify(jobID string) {
	m.mu.RLock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.RUnlock()
		return
	}
	snapshot := job.Clone()
	listeners := make([]TransitionListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}
