package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	uuid "github.com/google/uuid"
	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	events "github.com/inference-gateway/adgate/internal/infra/events"
	logger "github.com/inference-gateway/adgate/internal/logger"
	metrics "github.com/inference-gateway/adgate/internal/metrics"
	zap "go.uber.org/zap"
)

// Registry defaults applied when the configuration leaves a value unset
const (
	DefaultMaxTasks          = 1000
	DefaultTaskRetention     = time.Hour
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultTaskTimeout       = 10 * time.Minute
)

// TaskFunc is the work run by Submit. Returned errors implementing
// TaskError control the error code and details of the failed task.
type TaskFunc func(ctx context.Context, reporter domain.ProgressReporter) (map[string]any, error)

// TaskError lets work report a structured failure
type TaskError interface {
	error
	Code() string
	Details() map[string]any
}

// BackgroundTaskManager is the process-wide registry of background tasks.
// It is constructed explicitly and passed to whatever needs it.
type BackgroundTaskManager struct {
	mutex          sync.RWMutex
	tasks          map[string]*BackgroundTask
	maxTasks       int
	retention      time.Duration
	heartbeat      time.Duration
	defaultTimeout time.Duration
	publisher      domain.EventPublisher
	running        atomic.Int64
	now            func() time.Time
}

// NewBackgroundTaskManager creates a new background task manager
func NewBackgroundTaskManager(cfg config.TasksConfig, publisher domain.EventPublisher) *BackgroundTaskManager {
	m := &BackgroundTaskManager{
		tasks:          make(map[string]*BackgroundTask),
		maxTasks:       cfg.MaxTasks,
		retention:      cfg.Retention,
		heartbeat:      cfg.HeartbeatInterval,
		defaultTimeout: cfg.DefaultTimeout,
		publisher:      publisher,
		now:            time.Now,
	}
	if m.maxTasks <= 0 {
		m.maxTasks = DefaultMaxTasks
	}
	if m.retention <= 0 {
		m.retention = DefaultTaskRetention
	}
	if m.heartbeat <= 0 {
		m.heartbeat = DefaultHeartbeatInterval
	}
	if m.defaultTimeout <= 0 {
		m.defaultTimeout = DefaultTaskTimeout
	}
	if m.publisher == nil {
		m.publisher = events.NoopPublisher{}
	}
	return m
}

// WithClock replaces the manager's time source for tasks created afterwards
func (m *BackgroundTaskManager) WithClock(now func() time.Time) *BackgroundTaskManager {
	m.now = now
	return m
}

// CreateTask registers a pending task. When the registry is full, finished
// tasks past the retention window are purged first, then the oldest finished
// tasks; if every slot is still held by an unfinished task the call fails
// with *domain.TaskCapacityError.
func (m *BackgroundTaskManager) CreateTask(name string, timeout time.Duration) (*BackgroundTask, error) {
	return m.CreateTaskFor("", name, timeout)
}

// CreateTaskFor is CreateTask for a task owned by userID
func (m *BackgroundTaskManager) CreateTaskFor(userID, name string, timeout time.Duration) (*BackgroundTask, error) {
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.tasks) >= m.maxTasks {
		removed := m.cleanupLocked(m.now().Add(-m.retention))
		if len(m.tasks) >= m.maxTasks {
			removed += m.evictOldestFinishedLocked(len(m.tasks) - m.maxTasks + 1)
		}
		if removed > 0 {
			logger.Info("Cleaned up old background tasks", "count", removed)
		}
		if len(m.tasks) >= m.maxTasks {
			return nil, &domain.TaskCapacityError{Capacity: m.maxTasks}
		}
	}

	task := newBackgroundTask(uuid.NewString(), name, timeout, m.now)
	task.owner = userID
	task.onTransition = func(from, to domain.BackgroundTaskStatus) {
		m.onTransition(task, from, to)
	}
	m.tasks[task.id] = task
	return task, nil
}

func (m *BackgroundTaskManager) onTransition(task *BackgroundTask, from, to domain.BackgroundTaskStatus) {
	switch {
	case to == domain.BackgroundTaskStatusRunning:
		m.running.Add(1)
	case from == domain.BackgroundTaskStatusRunning:
		m.running.Add(-1)
	}
	metrics.RecordTaskTransition(string(to))
	metrics.SetTasksRunning(int(m.running.Load()))

	payload := map[string]any{"task_id": task.id, "name": task.name, "from": from, "status": to}
	if err := m.publisher.Publish(context.Background(), events.SubjectTaskTransition, payload); err != nil {
		logger.Warn("failed to publish task event", "task_id", task.id, "error", err)
	}
}

// Submit creates a task and runs fn in its own goroutine. The task is
// started before fn runs and completed or failed with fn's outcome; a panic
// fails the task with code "panic". fn outlives the caller's context.
func (m *BackgroundTaskManager) Submit(ctx context.Context, name string, timeout time.Duration, fn TaskFunc) (*BackgroundTask, error) {
	return m.SubmitFor(ctx, "", name, timeout, fn)
}

// SubmitFor is Submit for a task owned by userID. Owned tasks are only
// reachable through OwnedTask and ListTasksFor by that user.
func (m *BackgroundTaskManager) SubmitFor(ctx context.Context, userID, name string, timeout time.Duration, fn TaskFunc) (*BackgroundTask, error) {
	task, err := m.CreateTaskFor(userID, name, timeout)
	if err != nil {
		return nil, err
	}

	runCtx := context.WithoutCancel(ctx)
	go m.execute(runCtx, task, fn)

	logger.L(ctx).Info("background task submitted", zap.String("task_id", task.id), zap.String("name", name))
	return task, nil
}

func (m *BackgroundTaskManager) execute(ctx context.Context, task *BackgroundTask, fn TaskFunc) {
	log := logger.L(ctx).With(zap.String("task_id", task.id))

	defer func() {
		if r := recover(); r != nil {
			log.Error("background task panicked", zap.Any("panic", r))
			_ = task.Fail(fmt.Sprintf("task panicked: %v", r), domain.TaskErrorPanic, nil)
		}
	}()

	if err := task.Start(); err != nil {
		log.Debug("background task not started", zap.Error(err))
		return
	}

	result, err := fn(ctx, taskReporter{task: task})

	var finishErr error
	if err != nil {
		code, details := domain.TaskErrorExecution, map[string]any(nil)
		var te TaskError
		if errors.As(err, &te) {
			code, details = te.Code(), te.Details()
		}
		finishErr = task.Fail(err.Error(), code, details)
	} else {
		finishErr = task.Complete(result, "")
	}

	if finishErr != nil {
		// cancelled or timed out while fn was running
		log.Debug("dropping late task outcome", zap.Error(finishErr))
	}
}

// GetTask returns a task by id
func (m *BackgroundTaskManager) GetTask(taskID string) (*BackgroundTask, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return nil, &domain.TaskNotFoundError{TaskID: taskID}
	}
	return task, nil
}

// OwnedTask returns a task owned by userID. Tasks of other users, and tasks
// without an owner, are reported as *domain.TaskNotFoundError.
func (m *BackgroundTaskManager) OwnedTask(taskID, userID string) (*BackgroundTask, error) {
	task, err := m.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if userID == "" || task.owner != userID {
		return nil, &domain.TaskNotFoundError{TaskID: taskID}
	}
	return task, nil
}

// ListTasks returns snapshots of every tracked task, oldest first
func (m *BackgroundTaskManager) ListTasks() []domain.TaskSnapshot {
	return m.listTasks(func(*BackgroundTask) bool { return true })
}

// ListTasksFor returns snapshots of the tasks owned by userID, oldest first
func (m *BackgroundTaskManager) ListTasksFor(userID string) []domain.TaskSnapshot {
	return m.listTasks(func(t *BackgroundTask) bool { return userID != "" && t.owner == userID })
}

func (m *BackgroundTaskManager) listTasks(keep func(*BackgroundTask) bool) []domain.TaskSnapshot {
	m.mutex.RLock()
	tasks := make([]*BackgroundTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		if keep(task) {
			tasks = append(tasks, task)
		}
	}
	m.mutex.RUnlock()

	snaps := make([]domain.TaskSnapshot, 0, len(tasks))
	for _, task := range tasks {
		snaps = append(snaps, task.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].TaskID < snaps[j].TaskID
		}
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	return snaps
}

// RunningCount returns the number of running tasks
func (m *BackgroundTaskManager) RunningCount() int {
	return int(m.running.Load())
}

// CancelTask cancels a pending or running task
func (m *BackgroundTaskManager) CancelTask(taskID string) error {
	task, err := m.GetTask(taskID)
	if err != nil {
		return err
	}
	if err := task.Cancel(); err != nil {
		return err
	}
	logger.Info("Background task cancelled", "task_id", taskID)
	return nil
}

// CancelAll cancels every unfinished task and reports how many. Finished
// tasks are untouched, so repeated calls are harmless.
func (m *BackgroundTaskManager) CancelAll() int {
	m.mutex.RLock()
	tasks := make([]*BackgroundTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, task)
	}
	m.mutex.RUnlock()

	cancelled := 0
	for _, task := range tasks {
		if task.Cancel() == nil {
			cancelled++
		}
	}
	return cancelled
}

// Cleanup fails running tasks past their timeout and removes finished tasks
// older than the retention window
func (m *BackgroundTaskManager) Cleanup() int {
	now := m.now()
	for _, snap := range m.ListTasks() {
		if taskTimedOut(snap, now) {
			if task, err := m.GetTask(snap.TaskID); err == nil {
				m.failTimedOut(task)
			}
		}
	}

	m.mutex.Lock()
	removed := m.cleanupLocked(now.Add(-m.retention))
	m.mutex.Unlock()

	if removed > 0 {
		logger.Info("Cleaned up old background tasks", "count", removed)
	}
	return removed
}

func (m *BackgroundTaskManager) failTimedOut(task *BackgroundTask) {
	err := task.Fail(
		fmt.Sprintf("task exceeded its timeout of %s", task.timeout),
		domain.TaskErrorTimeout,
		map[string]any{"timeout_seconds": task.timeout.Seconds()},
	)
	if err == nil {
		logger.Warn("background task timed out", "task_id", task.id)
	}
}

// cleanupLocked removes finished tasks completed before cutoff
func (m *BackgroundTaskManager) cleanupLocked(cutoff time.Time) int {
	removed := 0
	for id, task := range m.tasks {
		snap := task.Snapshot()
		if snap.CompletedAt != nil && snap.CompletedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

// evictOldestFinishedLocked removes up to n finished tasks, oldest completion first
func (m *BackgroundTaskManager) evictOldestFinishedLocked(n int) int {
	var finished []domain.TaskSnapshot
	for _, task := range m.tasks {
		if snap := task.Snapshot(); snap.CompletedAt != nil {
			finished = append(finished, snap)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CompletedAt.Before(*finished[j].CompletedAt)
	})

	removed := 0
	for _, snap := range finished {
		if removed >= n {
			break
		}
		delete(m.tasks, snap.TaskID)
		removed++
	}
	return removed
}

// Stream returns the task's progress events. Each call is an independent
// subscription that starts from the first recorded update. When no event
// arrives within the heartbeat interval a heartbeat carrying the last known
// progress is synthesized. The channel closes after the terminal
// task_complete or task_error event, or when ctx is done.
func (m *BackgroundTaskManager) Stream(ctx context.Context, taskID string) (<-chan domain.TaskEvent, error) {
	task, err := m.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.TaskEvent)
	go m.stream(ctx, task, out)
	return out, nil
}

func (m *BackgroundTaskManager) stream(ctx context.Context, task *BackgroundTask, out chan<- domain.TaskEvent) {
	defer close(out)

	send := func(ev domain.TaskEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	cursor := 0
	lastSent := time.Now()
	timer := time.NewTimer(m.heartbeat)
	defer timer.Stop()

	for {
		pending, changed, snap := task.eventsSince(cursor)
		cursor += len(pending)
		for _, ev := range pending {
			if !send(ev) {
				return
			}
			lastSent = time.Now()
		}

		if snap.Status.IsTerminal() {
			send(task.terminalEvent())
			return
		}

		if taskTimedOut(snap, m.now()) {
			m.failTimedOut(task)
			continue
		}

		wait := m.heartbeat - time.Since(lastSent)
		if snap.Status == domain.BackgroundTaskStatusRunning && snap.StartedAt != nil {
			if untilDeadline := snap.StartedAt.Add(snap.Timeout).Sub(m.now()); untilDeadline < wait {
				wait = untilDeadline
			}
		}
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-changed:
		case <-timer.C:
			if time.Since(lastSent) >= m.heartbeat {
				progress := snap.Progress
				if !send(domain.TaskEvent{
					Type:      domain.TaskEventProgress,
					TaskID:    snap.TaskID,
					Progress:  &progress,
					Message:   snap.Message,
					Heartbeat: true,
				}) {
					return
				}
				lastSent = time.Now()
			}
		}
	}
}
