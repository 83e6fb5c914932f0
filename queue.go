package veldscan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TaskState represents the current state of a scan task.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskScanning
	TaskCompleted
	TaskFailed
	TaskCanceled
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskScanning:
		return "scanning"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Finished reports whether the state is terminal.
func (s TaskState) Finished() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCanceled
}

// Common queue errors.
var (
	ErrQueueNotStarted = errors.New("queue not started, call Start() first")
	ErrQueueFull       = errors.New("queue is full")
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskCanceled    = errors.New("task canceled")
)

// Task is one URL scheduled on a Queue.
type Task struct {
	ID          string
	URL         string
	Mode        Mode
	Headers     map[string]string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu       sync.RWMutex
	state    TaskState
	manifest *Manifest
	cancel   context.CancelFunc
	done     chan struct{}
}

// State returns the task's current state.
func (t *Task) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Manifest returns the parse result once the task has run.
func (t *Task) Manifest() *Manifest {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.manifest
}

// Done is closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) setState(s TaskState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// finish moves the task to a terminal state once.
func (t *Task) finish(s TaskState, m *Manifest) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Finished() {
		return false
	}
	t.state = s
	t.manifest = m
	t.CompletedAt = time.Now()
	close(t.done)
	return true
}

// QueueStats holds queue statistics.
type QueueStats struct {
	Total     int
	Pending   int
	Active    int
	Completed int
	Failed    int
	Canceled  int
}

// Queue scans many URLs through one Scanner with bounded concurrency. A URL
// already being scanned reports StatusProcessing, like any other duplicate
// in-flight request.
type Queue struct {
	scanner       *Scanner
	maxConcurrent int
	capacity      int

	tasks     sync.Map // map[string]*Task
	taskOrder []string
	orderMu   sync.RWMutex

	queue   chan *Task
	active  atomic.Int32
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	mu      sync.Mutex

	// Callbacks
	onStateChange func(task *Task)
	onComplete    func(task *Task)
	onError       func(task *Task, m *Manifest)
}

// QueueOption configures the Queue.
type QueueOption func(*Queue)

// WithMaxConcurrent sets the number of workers (1..64, default 4).
func WithMaxConcurrent(n int) QueueOption {
	return func(q *Queue) {
		if n < 1 {
			n = 1
		}
		if n > 64 {
			n = 64
		}
		q.maxConcurrent = n
	}
}

// WithCapacity sets how many tasks may wait in the queue (default 1000).
func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithOnStateChange sets a callback for task state changes.
func WithOnStateChange(fn func(task *Task)) QueueOption {
	return func(q *Queue) { q.onStateChange = fn }
}

// WithOnComplete sets a callback for successful tasks.
func WithOnComplete(fn func(task *Task)) QueueOption {
	return func(q *Queue) { q.onComplete = fn }
}

// WithOnError sets a callback for tasks whose manifest did not parse.
func WithOnError(fn func(task *Task, m *Manifest)) QueueOption {
	return func(q *Queue) { q.onError = fn }
}

// NewQueue creates a queue scanning through s.
func NewQueue(s *Scanner, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		scanner:       s,
		maxConcurrent: 4,
		capacity:      1000,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.queue = make(chan *Task, q.capacity)
	return q
}

// Start begins processing the queue.
func (q *Queue) Start() {
	if q.running.Swap(true) {
		return // Already running
	}

	for i := 0; i < q.maxConcurrent; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop cancels pending work and waits for the workers to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running.Swap(false) {
		q.mu.Unlock()
		return // Not running
	}
	close(q.queue)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()

	// Anything left unscanned is canceled.
	q.tasks.Range(func(_, value any) bool {
		task := value.(*Task)
		if task.finish(TaskCanceled, nil) {
			q.notifyStateChange(task)
		}
		return true
	})
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for task := range q.queue {
		if q.ctx.Err() != nil {
			return
		}
		if task.State() != TaskPending {
			continue
		}
		q.active.Add(1)
		q.processTask(task)
		q.active.Add(-1)
	}
}

// Add schedules url for a full parse. An empty id gets a generated one.
func (q *Queue) Add(id, url string) (*Task, error) {
	return q.AddTask(id, url, ModeFull, nil)
}

// AddTask schedules url with the given mode and per-request headers.
func (q *Queue) AddTask(id, url string, mode Mode, headers map[string]string) (*Task, error) {
	if id == "" {
		id = uuid.NewString()
	}

	task := &Task{
		ID:        id,
		URL:       url,
		Mode:      mode,
		Headers:   headers,
		CreatedAt: time.Now(),
		state:     TaskPending,
		done:      make(chan struct{}),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running.Load() {
		return nil, ErrQueueNotStarted
	}
	if _, exists := q.tasks.LoadOrStore(id, task); exists {
		return nil, fmt.Errorf("task with ID %q already exists", id)
	}

	select {
	case q.queue <- task:
	default:
		q.tasks.Delete(id)
		return nil, ErrQueueFull
	}

	q.orderMu.Lock()
	q.taskOrder = append(q.taskOrder, id)
	q.orderMu.Unlock()
	return task, nil
}

// GetTask returns a task by ID.
func (q *Queue) GetTask(id string) *Task {
	if t, ok := q.tasks.Load(id); ok {
		return t.(*Task)
	}
	return nil
}

// Tasks returns all tasks in insertion order.
func (q *Queue) Tasks() []*Task {
	q.orderMu.RLock()
	defer q.orderMu.RUnlock()

	tasks := make([]*Task, 0, len(q.taskOrder))
	for _, id := range q.taskOrder {
		if t, ok := q.tasks.Load(id); ok {
			tasks = append(tasks, t.(*Task))
		}
	}
	return tasks
}

// CancelTask cancels a pending or running task.
func (q *Queue) CancelTask(id string) error {
	task := q.GetTask(id)
	if task == nil {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}

	task.mu.RLock()
	cancel := task.cancel
	task.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	if !task.finish(TaskCanceled, nil) {
		return fmt.Errorf("task %q already finished", id)
	}
	q.notifyStateChange(task)
	return nil
}

// RemoveTask forgets a finished task.
func (q *Queue) RemoveTask(id string) error {
	task := q.GetTask(id)
	if task == nil {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	if !task.State().Finished() {
		return fmt.Errorf("cannot remove active task %q", id)
	}

	q.tasks.Delete(id)

	q.orderMu.Lock()
	for i, tid := range q.taskOrder {
		if tid == id {
			q.taskOrder = append(q.taskOrder[:i], q.taskOrder[i+1:]...)
			break
		}
	}
	q.orderMu.Unlock()
	return nil
}

// Stats returns current queue statistics.
func (q *Queue) Stats() QueueStats {
	var stats QueueStats
	q.tasks.Range(func(_, value any) bool {
		stats.Total++
		switch value.(*Task).State() {
		case TaskPending:
			stats.Pending++
		case TaskScanning:
			stats.Active++
		case TaskCompleted:
			stats.Completed++
		case TaskFailed:
			stats.Failed++
		case TaskCanceled:
			stats.Canceled++
		}
		return true
	})
	return stats
}

func (q *Queue) processTask(task *Task) {
	ctx, cancel := context.WithCancel(q.ctx)
	defer cancel()

	task.mu.Lock()
	if task.state != TaskPending {
		task.mu.Unlock()
		return
	}
	task.cancel = cancel
	task.StartedAt = time.Now()
	task.state = TaskScanning
	task.mu.Unlock()
	q.notifyStateChange(task)

	m := q.scanner.ParseManifest(ctx, task.URL, task.Headers, task.Mode)

	state := TaskCompleted
	switch {
	case ctx.Err() != nil:
		state = TaskCanceled
	case !m.OK():
		state = TaskFailed
	}
	if !task.finish(state, m) {
		return
	}
	q.notifyStateChange(task)

	switch state {
	case TaskCompleted:
		if q.onComplete != nil {
			q.onComplete(task)
		}
	case TaskFailed:
		if q.onError != nil {
			q.onError(task, m)
		}
	}
}

func (q *Queue) notifyStateChange(task *Task) {
	if q.onStateChange != nil {
		q.onStateChange(task)
	}
}

// Wait blocks until the task finishes or ctx ends, and returns its manifest.
func (q *Queue) Wait(ctx context.Context, id string) (*Manifest, error) {
	task := q.GetTask(id)
	if task == nil {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}

	select {
	case <-task.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if task.State() == TaskCanceled {
		return nil, ErrTaskCanceled
	}
	return task.Manifest(), nil
}

// WaitAll blocks until every task added so far has finished or ctx ends.
func (q *Queue) WaitAll(ctx context.Context) error {
	for _, task := range q.Tasks() {
		select {
		case <-task.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
