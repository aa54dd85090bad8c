package retry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is work run by the Scheduler once its delay elapses. The context is
// cancelled when the Scheduler is closed.
type Task func(ctx context.Context)

// Scheduler is a keyed delay queue. At most one task is pending per key;
// scheduling under a key that already has a pending task replaces it.
type Scheduler struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]*entry
	running sync.WaitGroup
	closed  bool
}

type entry struct {
	id    uuid.UUID
	key   string
	timer *time.Timer
}

// Handle identifies one scheduled task.
type Handle struct {
	id        uuid.UUID
	key       string
	scheduler *Scheduler
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		entries: map[string]*entry{},
	}
}

// Schedule runs task after delay under key. Returns nil if the Scheduler is
// closed.
func (s *Scheduler) Schedule(key string, delay time.Duration, task Task) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if prev, ok := s.entries[key]; ok {
		prev.timer.Stop()
		delete(s.entries, key)
	}
	e := &entry{id: uuid.New(), key: key}
	e.timer = time.AfterFunc(delay, func() { s.fire(e, task) })
	s.entries[key] = e
	return &Handle{id: e.id, key: key, scheduler: s}
}

func (s *Scheduler) fire(e *entry, task Task) {
	s.mu.Lock()
	current, ok := s.entries[e.key]
	if s.closed || !ok || current.id != e.id {
		// Replaced or cancelled after the timer had already fired
		s.mu.Unlock()
		return
	}
	delete(s.entries, e.key)
	s.running.Add(1)
	ctx := s.ctx
	s.mu.Unlock()

	defer s.running.Done()
	task(ctx)
}

// Cancel removes the pending task for key. Reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// Pending reports whether a task is waiting under key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close cancels every pending task, cancels the context handed to running
// tasks and waits for them to return. Close is idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
	s.cancel()
	s.mu.Unlock()

	s.running.Wait()
}

// Key returns the key the task was scheduled under.
func (h *Handle) Key() string {
	return h.key
}

// Cancel removes the task if it is still the one pending under its key.
func (h *Handle) Cancel() bool {
	s := h.scheduler
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h.key]
	if !ok || e.id != h.id {
		return false
	}
	e.timer.Stop()
	delete(s.entries, h.key)
	return true
}
