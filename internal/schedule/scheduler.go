// ABOUTME: Cancellable background tasks grouped by key (a conversation ID)
// ABOUTME: Cancel(key) stops every task for that key; Close stops all and waits

package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when scheduling on a closed Scheduler.
var ErrClosed = errors.New("scheduler closed")

// Scheduler runs tasks on their own goroutines. Each task gets a context
// that is cancelled by Cancel(key), Close, or the task returning.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]map[string]context.CancelFunc // key -> taskID -> cancel
	wg     sync.WaitGroup
	root   context.Context
	stop   context.CancelFunc
	closed bool
	logger *slog.Logger
}

// New creates a Scheduler. Pass nil logger for default.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	root, stop := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[string]map[string]context.CancelFunc),
		root:   root,
		stop:   stop,
		logger: logger.With("component", "scheduler"),
	}
}

// Go starts fn under key and returns the task ID.
func (s *Scheduler) Go(key string, fn func(ctx context.Context)) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}

	taskID := uuid.New().String()
	ctx, cancel := context.WithCancel(s.root)
	if _, ok := s.tasks[key]; !ok {
		s.tasks[key] = make(map[string]context.CancelFunc)
	}
	s.tasks[key][taskID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Debug("task scheduled", "key", key, "task_id", taskID)

	go func() {
		defer s.wg.Done()
		defer s.finish(key, taskID)
		fn(ctx)
	}()

	return taskID, nil
}

// finish forgets a task and releases its context
func (s *Scheduler) finish(key, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, ok := s.tasks[key]
	if !ok {
		return
	}
	if cancel, exists := tasks[taskID]; exists {
		cancel()
		delete(tasks, taskID)
	}
	if len(tasks) == 0 {
		delete(s.tasks, key)
	}
}

// Cancel cancels every task under key and returns how many were cancelled.
// Cancelled tasks are forgotten immediately; their goroutines exit on their own.
func (s *Scheduler) Cancel(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, ok := s.tasks[key]
	if !ok {
		return 0
	}
	for _, cancel := range tasks {
		cancel()
	}
	delete(s.tasks, key)

	s.logger.Debug("tasks cancelled", "key", key, "count", len(tasks))
	return len(tasks)
}

// Pending returns the number of live tasks under key.
func (s *Scheduler) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks[key])
}

// Wait blocks until every started task has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close cancels all tasks, refuses new ones, and waits for running ones.
// It is safe to call multiple times.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.stop()
		s.tasks = make(map[string]map[string]context.CancelFunc)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
