package service

import (
	"context"
	"sync"
)

// Job is a unit of work run by the queue
type Job func(ctx context.Context)

// queuedJob is a job with the context it was enqueued with
type queuedJob struct {
	ctx context.Context
	run Job
}

// KeyedQueue runs jobs FIFO per key, at most one in flight per key,
// with a global limit on concurrently running jobs.
type KeyedQueue struct {
	mu        sync.Mutex
	pending   map[string][]queuedJob
	busy      map[string]bool
	order     []string // keys with pending jobs, each once
	active    int
	maxActive int
	wg        sync.WaitGroup
}

// NewKeyedQueue creates a queue limited to maxConcurrent running jobs
func NewKeyedQueue(maxConcurrent int) *KeyedQueue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &KeyedQueue{
		pending:   make(map[string][]queuedJob),
		busy:      make(map[string]bool),
		maxActive: maxConcurrent,
	}
}

// Enqueue adds a job for key. The job runs with ctx, whenever it is started.
func (q *KeyedQueue) Enqueue(ctx context.Context, key string, job Job) {
	q.mu.Lock()
	if len(q.pending[key]) == 0 {
		q.order = append(q.order, key)
	}
	q.pending[key] = append(q.pending[key], queuedJob{ctx: ctx, run: job})
	q.wg.Add(1)
	q.mu.Unlock()

	q.dispatch()
}

// Wait blocks until every enqueued job has finished
func (q *KeyedQueue) Wait() {
	q.wg.Wait()
}

func (q *KeyedQueue) dispatch() {
	for {
		q.mu.Lock()
		if q.active >= q.maxActive {
			q.mu.Unlock()
			return
		}
		key, job, ok := q.next()
		if !ok {
			q.mu.Unlock()
			return
		}
		q.busy[key] = true
		q.active++
		q.mu.Unlock()

		go func() {
			defer q.wg.Done()
			job.run(job.ctx)

			q.mu.Lock()
			delete(q.busy, key)
			q.active--
			q.mu.Unlock()
			q.dispatch()
		}()
	}
}

// next pops the oldest job whose key is idle. Caller holds mu.
func (q *KeyedQueue) next() (string, queuedJob, bool) {
	for i, key := range q.order {
		if q.busy[key] {
			continue
		}
		jobs := q.pending[key]
		job := jobs[0]
		q.order = append(q.order[:i:i], q.order[i+1:]...)
		if len(jobs) == 1 {
			delete(q.pending, key)
		} else {
			q.pending[key] = jobs[1:]
			q.order = append(q.order, key)
		}
		return key, job, true
	}
	return "", queuedJob{}, false
}
