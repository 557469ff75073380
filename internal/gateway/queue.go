package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/claimline/internal/types"
)

// laneBuffer is how many runs a single user may have waiting.
const laneBuffer = 100

// Queue manages per-user lanes with a global concurrency semaphore.
// Each user gets a FIFO lane so their turns run one at a time, while the
// semaphore limits how many turns run at once across all users.
type Queue struct {
	lanes     map[types.UserKey]chan *Run
	semaphore *semaphore.Weighted
	processor func(*Run) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent runs to execute
// simultaneously across all lanes.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Queue{
		lanes:     make(map[types.UserKey]chan *Run),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for key, lane := range q.lanes {
		close(lane)
		delete(q.lanes, key)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Run to its user's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(run *Run) error {
	if q.ctx == nil {
		return fmt.Errorf("queue not started")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[run.UserKey]
	if !exists {
		lane = make(chan *Run, laneBuffer)
		q.lanes[run.UserKey] = lane
		q.wg.Add(1)
		go q.processLane(run.UserKey, lane)
	}

	select {
	case lane <- run:
		return nil
	default:
		return fmt.Errorf("queue full for user %s", run.UserKey)
	}
}

// processLane drains a single lane, acquiring a semaphore slot before
// running the processor synchronously.
func (q *Queue) processLane(user types.UserKey, lane chan *Run) {
	defer q.wg.Done()
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			if q.processor != nil {
				q.active.Add(1)
				run.Ctx = q.ctx
				if err := q.processor(run); err != nil {
					slog.Error("run failed", "run_id", string(run.ID), "user", string(user), "error", err)
				}
				q.active.Add(-1)
			}
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

// Lanes returns the number of users with a lane.
func (q *Queue) Lanes() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.lanes)
}

// WaitIdle blocks until no runs are being processed or waiting, or the
// timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 && q.pending() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (q *Queue) pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, lane := range q.lanes {
		n += len(lane)
	}
	return n
}

// SetProcessor sets the function invoked for each dequeued Run.
func (q *Queue) SetProcessor(fn func(*Run) error) {
	q.processor = fn
}
