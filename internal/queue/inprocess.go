package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InProcess runs tasks on goroutines inside the current process. It implements
// both Client and Server so the API binary can work without Redis. Tasks are
// not persisted; the job record in the document store is the durable trace.
type InProcess struct {
	mu       sync.Mutex
	handlers map[string]Handler
	inflight map[string]struct{}
	closed   bool
	wg       sync.WaitGroup

	// base is the parent of every handler context. It is detached from request
	// contexts and canceled only when Stop gives up waiting.
	base   context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
}

var (
	_ Client = (*InProcess)(nil)
	_ Server = (*InProcess)(nil)
)

func NewInProcess() *InProcess {
	base, cancel := context.WithCancel(context.Background())
	return &InProcess{
		handlers: make(map[string]Handler),
		inflight: make(map[string]struct{}),
		base:     base,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
	}
}

func (q *InProcess) Register(taskType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

func (q *InProcess) Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", fmt.Errorf("inprocess: task type is required")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	h, ok := q.handlers[t.Type]
	if !ok {
		q.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNoHandler, t.Type)
	}
	id := ulid.Make().String()
	if len(opts) > 0 && opts[0].TaskID != "" {
		id = opts[0].TaskID
		if _, dup := q.inflight[id]; dup {
			q.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrDuplicateTask, id)
		}
	}
	q.inflight[id] = struct{}{}
	q.wg.Add(1)
	q.mu.Unlock()

	delay := delayOf(opts, time.Now())
	go q.run(id, t, h, delay)
	return id, nil
}

// run releases the task ID when it returns, so IDs are only unique among
// queued and running tasks. The job record guards against reruns.
func (q *InProcess) run(id string, t Task, h Handler, delay time.Duration) {
	defer q.wg.Done()
	defer q.release(id)
	logCtx := slog.With("taskId", id, "taskType", t.Type)

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-q.stopCh:
			timer.Stop()
			logCtx.Warn("Queue stopped before delayed task became due. Dropping.", "delay", delay.String())
			return
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logCtx.Error("Task handler panicked.", "panic", r)
		}
	}()
	if err := h(q.base, t); err != nil {
		logCtx.Error("Task failed.", "error", err)
	}
}

func (q *InProcess) release(id string) {
	q.mu.Lock()
	delete(q.inflight, id)
	q.mu.Unlock()
}

func (q *InProcess) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// Run blocks until ctx is canceled or Stop is called, then drains.
func (q *InProcess) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-q.stopCh:
		return nil
	}
	return q.Stop(context.Background())
}

// Stop refuses new tasks, abandons tasks still waiting on a delay and waits for
// running handlers until ctx expires.
func (q *InProcess) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.stopCh)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *InProcess) Close() error {
	return q.Stop(context.Background())
}
