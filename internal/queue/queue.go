package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a named fire-and-forget side effect. Errors are logged, never
// returned to the producer.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue is a single-consumer in-process FIFO for side effects that must
// not block a request path: notification fan-out, blob-cleanup retries,
// audit writes. Insertion order is preserved for a single producer; no
// cross-producer ordering is claimed.
type Queue struct {
	mu      sync.Mutex
	jobs    []Job
	tick    time.Duration
	logger  *logrus.Entry
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// New creates a queue draining once per tick. A zero tick defaults to 1s.
func New(logger *logrus.Logger, tick time.Duration) *Queue {
	if tick <= 0 {
		tick = time.Second
	}
	return &Queue{
		tick:   tick,
		logger: logger.WithField("component", "async-queue"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Enqueue appends a job. Safe for concurrent producers.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) {
	q.mu.Lock()
	q.jobs = append(q.jobs, Job{Name: name, Run: run})
	q.mu.Unlock()
}

// Len reports the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Start launches the single background worker.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go q.loop()
}

// Stop drains the current batch and stops the worker.
func (q *Queue) Stop() {
	close(q.stop)
	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)

	ticker := time.NewTicker(q.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.drain()
		case <-q.stop:
			q.drain()
			return
		}
	}
}

// drain runs every queued job in insertion order.
func (q *Queue) drain() {
	q.mu.Lock()
	batch := q.jobs
	q.jobs = nil
	q.mu.Unlock()

	for _, job := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := job.Run(ctx); err != nil {
			q.logger.WithField("job", job.Name).WithError(err).Error("Async job failed")
		}
		cancel()
	}
}
