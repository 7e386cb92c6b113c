package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Task is a background job message with a type and opaque payload bytes.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks the backend to retry the task
// unless it wraps ErrPermanent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption controls enqueue behavior. Backends map the fields they
// support and ignore the rest. Zero values mean "unspecified".
type EnqueueOption struct {
	TaskID    string        // dedupe key; a second enqueue with the same ID fails with ErrDuplicateTask
	Queue     string        // logical queue name
	ProcessIn time.Duration // delay before processing
	ProcessAt time.Time     // absolute schedule time, wins over ProcessIn
	MaxRetry  int
	Retention time.Duration
	Deadline  time.Time
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs workers that handle tasks. Run blocks until ctx is canceled or
// Stop is called.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}

var (
	ErrPermanent     = errors.New("permanent task failure")
	ErrDuplicateTask = errors.New("task id already enqueued")
	ErrClosed        = errors.New("queue closed")
	ErrNoHandler     = errors.New("no handler registered for task type")
)

// Permanent marks err so that backends do not retry the task.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func delayOf(opts []EnqueueOption, now time.Time) time.Duration {
	if len(opts) == 0 {
		return 0
	}
	op := opts[0]
	if !op.ProcessAt.IsZero() {
		if d := op.ProcessAt.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	if op.ProcessIn > 0 {
		return op.ProcessIn
	}
	return 0
}
