package proxy

import (
	"context"
	"sync"
	"time"
)

// Task is one unit of work on a shard's cooperative loop.
type Task func()

// loop is a single-goroutine task queue. All of a shard's request handling,
// stat mutation and bin rotation runs through it, which is what lets the
// shard's counter table go unlocked: one writer, total order.
type loop struct {
	mu    sync.Mutex
	queue []queuedTask
	wake  chan struct{}
}

type queuedTask struct {
	fn       Task
	enqueued time.Time
}

func newLoop() *loop {
	return &loop{wake: make(chan struct{}, 1)}
}

// submit enqueues a task. Never blocks; safe from any goroutine, including
// the loop goroutine itself (a task enqueued mid-pass runs on a later
// pass, never nested).
func (l *loop) submit(fn Task) {
	l.mu.Lock()
	l.queue = append(l.queue, queuedTask{fn: fn, enqueued: time.Now()})
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// pendingLen reports the queue depth at call time.
func (l *loop) pendingLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// run drains the queue until ctx is cancelled. onTask, when set, observes
// each task's queue wait before the task runs. On cancellation, onShutdown
// runs and then the queue is drained one final time: a request already
// accepted must still resolve to a terminal reply, even at shutdown.
func (l *loop) run(ctx context.Context, onTask func(qt queuedTask, wait time.Duration), onShutdown func()) {
	for {
		select {
		case <-ctx.Done():
		case <-l.wake:
			// Cancellation takes priority over a simultaneous wake, so
			// the shutdown hook always precedes the final drain.
			if ctx.Err() == nil {
				l.drain(onTask)
				continue
			}
		}
		if onShutdown != nil {
			onShutdown()
		}
		l.drain(onTask)
		return
	}
}

// drain runs every queued task, including tasks enqueued mid-pass, until
// the queue is empty.
func (l *loop) drain(onTask func(qt queuedTask, wait time.Duration)) {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		now := time.Now()
		for _, qt := range batch {
			if onTask != nil {
				onTask(qt, now.Sub(qt.enqueued))
			}
			qt.fn()
		}
	}
}
