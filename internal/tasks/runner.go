package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is a snapshot of one CSV import.
type Job struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	Status     Status     `json:"status"`
	Message    string     `json:"message,omitempty"`
	Processed  int        `json:"processed"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ProcessFunc imports one file and reports how many records it handled.
type ProcessFunc func(ctx context.Context, d *gorm.DB, path string) (int, error)

// Runner executes each enqueued job on its own goroutine and keeps the
// results in memory for the life of the process.
type Runner struct {
	ctx     context.Context
	db      *gorm.DB
	process ProcessFunc

	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewRunner returns a Runner that imports with ProcessYieldCSV. Jobs see ctx.
func NewRunner(ctx context.Context, d *gorm.DB) *Runner {
	return NewRunnerWith(ctx, d, ProcessYieldCSV)
}

func NewRunnerWith(ctx context.Context, d *gorm.DB, fn ProcessFunc) *Runner {
	return &Runner{ctx: ctx, db: d, process: fn, jobs: map[string]*Job{}}
}

// Enqueue starts a job for path and returns its initial snapshot.
func (r *Runner) Enqueue(path string) Job {
	job := &Job{
		ID:        uuid.NewString(),
		Path:      path,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	snapshot := *job
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(job)
	return snapshot
}

func (r *Runner) run(job *Job) {
	defer r.wg.Done()

	r.update(job, func(j *Job) { j.Status = StatusRunning })
	log.Printf("[tasks] job %s started: %s", job.ID, job.Path)

	n, err := r.process(r.ctx, r.db, job.Path)

	r.update(job, func(j *Job) {
		now := time.Now()
		j.FinishedAt = &now
		j.Processed = n
		if err != nil {
			j.Status = StatusFailed
			j.Message = err.Error()
			return
		}
		j.Status = StatusSucceeded
		j.Message = fmt.Sprintf("Processed %d records", n)
	})

	if err != nil {
		log.Printf("[tasks] job %s failed: %v", job.ID, err)
	} else {
		log.Printf("[tasks] job %s processed %d records", job.ID, n)
	}
}

func (r *Runner) update(job *Job, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(job)
}

// Get returns a snapshot of the job with id.
func (r *Runner) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Wait blocks until every started job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
