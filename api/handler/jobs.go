package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/serpwalk/models"
	"github.com/use-agent/serpwalk/pipeline"
	"github.com/use-agent/serpwalk/webhook"
)

// Job is one asynchronous batch.
type Job struct {
	ID         string
	Queries    []string
	WebhookURL string
	CreatedAt  time.Time

	mu         sync.Mutex
	status     string
	records    []models.Record
	summary    *models.Summary
	err        *models.ErrorDetail
	finishedAt time.Time
}

// Write appends a finished record. The pipeline calls it once per query.
func (j *Job) Write(rec models.Record) error {
	j.mu.Lock()
	j.records = append(j.records, rec)
	j.mu.Unlock()
	return nil
}

// Status returns a consistent view of the job.
func (j *Job) Status() models.BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	return models.BatchStatusResponse{
		ID:        j.ID,
		Status:    j.status,
		Completed: len(j.records),
		Total:     len(j.Queries),
		Records:   append([]models.Record(nil), j.records...),
		Summary:   j.summary,
		Error:     j.err,
	}
}

func (j *Job) setStatus(s string) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *Job) finish(summary *models.Summary, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summary = summary
	j.finishedAt = time.Now()
	if err != nil {
		j.status = models.JobFailed
		j.err = &models.ErrorDetail{Code: models.CodeOf(err), Message: err.Error()}
		return
	}
	j.status = models.JobCompleted
}

func (j *Job) expired(cutoff time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.finishedAt.IsZero() && j.finishedAt.Before(cutoff)
}

// jobWriter feeds the job and the durable store.
type jobWriter struct {
	job   *Job
	store pipeline.RecordWriter
}

func (w jobWriter) Write(rec models.Record) error {
	_ = w.job.Write(rec)
	if w.store != nil {
		if err := w.store.Write(rec); err != nil {
			slog.Error("record store write failed", "job_id", w.job.ID, "query", rec.Query, "error", err)
		}
	}
	return nil
}

// JobQueue runs batch jobs one at a time on a single worker goroutine, so the
// browser session is never driven concurrently.
type JobQueue struct {
	runner Runner
	store  pipeline.RecordWriter
	hook   *webhook.Client
	secret string
	ttl    time.Duration

	mu      sync.Mutex
	jobs    map[string]*Job
	pending chan *Job
}

// NewJobQueue creates a queue holding at most capacity waiting jobs. hook may
// be nil; secret signs per-job webhook URLs.
func NewJobQueue(runner Runner, store pipeline.RecordWriter, hook *webhook.Client, secret string, capacity int) *JobQueue {
	if capacity <= 0 {
		capacity = 16
	}
	return &JobQueue{
		runner:  runner,
		store:   store,
		hook:    hook,
		secret:  secret,
		ttl:     time.Hour,
		jobs:    make(map[string]*Job),
		pending: make(chan *Job, capacity),
	}
}

// Start launches the worker and the expiry loop. Both stop with ctx.
func (q *JobQueue) Start(ctx context.Context) {
	go q.worker(ctx)
	go q.cleanupLoop(ctx)
}

// Submit enqueues a job. It fails when the queue is full.
func (q *JobQueue) Submit(queries []string, webhookURL string) (*Job, error) {
	job := &Job{
		ID:         "batch-" + uuid.NewString(),
		Queries:    queries,
		WebhookURL: webhookURL,
		CreatedAt:  time.Now(),
		status:     models.JobQueued,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case q.pending <- job:
	default:
		return nil, models.NewScrapeError(models.ErrCodeRateLimited, "job queue is full, retry later", nil)
	}
	q.jobs[job.ID] = job
	return job, nil
}

// Get looks a job up by ID.
func (q *JobQueue) Get(id string) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	return job, ok
}

// Pending reports how many jobs wait for the worker.
func (q *JobQueue) Pending() int {
	return len(q.pending)
}

func (q *JobQueue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.pending:
			q.run(ctx, job)
		}
	}
}

func (q *JobQueue) run(ctx context.Context, job *Job) {
	job.setStatus(models.JobProcessing)
	slog.Info("batch job started", "id", job.ID, "total", len(job.Queries))

	summary, err := q.runner.Run(ctx, job.Queries, jobWriter{job: job, store: q.store})
	job.finish(summary, err)

	st := job.Status()
	slog.Info("batch job finished",
		"id", job.ID,
		"status", st.Status,
		"completed", st.Completed,
		"total", st.Total,
	)

	hook := q.hook
	if job.WebhookURL != "" {
		hook = webhook.New(job.WebhookURL, q.secret)
	}
	hook.SendAsync(webhook.NewEvent(webhook.EventBatchCompleted, job.ID, st))
}

func (q *JobQueue) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.expire(time.Now().Add(-q.ttl))
		}
	}
}

// expire drops finished jobs older than cutoff.
func (q *JobQueue) expire(cutoff time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, job := range q.jobs {
		if job.expired(cutoff) {
			delete(q.jobs, id)
		}
	}
}
