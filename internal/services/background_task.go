package services

import (
	"maps"
	"math"
	"sync"
	"time"

	domain "github.com/inference-gateway/adgate/internal/domain"
)

// BackgroundTask tracks one long-running operation. Progress updates are
// appended to an ordered, unbounded event log that stream subscribers read
// with their own cursor.
type BackgroundTask struct {
	mu sync.Mutex

	id          string
	name        string
	owner       string
	status      domain.BackgroundTaskStatus
	progress    float64
	message     string
	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
	timeout     time.Duration

	result       map[string]any
	errMsg       string
	errCode      string
	errDetails   map[string]any
	log          []domain.TaskEvent
	notify       chan struct{}
	cancelled    chan struct{}
	now          func() time.Time
	onTransition func(from, to domain.BackgroundTaskStatus)
}

func newBackgroundTask(id, name string, timeout time.Duration, now func() time.Time) *BackgroundTask {
	return &BackgroundTask{
		id:        id,
		name:      name,
		status:    domain.BackgroundTaskStatusPending,
		createdAt: now(),
		timeout:   timeout,
		notify:    make(chan struct{}),
		cancelled: make(chan struct{}),
		now:       now,
	}
}

// ID returns the task id
func (t *BackgroundTask) ID() string {
	return t.id
}

// Owner returns the id of the user the task runs for; empty for tasks
// created outside a user request
func (t *BackgroundTask) Owner() string {
	return t.owner
}

// broadcastLocked wakes every waiting subscriber
func (t *BackgroundTask) broadcastLocked() {
	close(t.notify)
	t.notify = make(chan struct{})
}

// transitionLocked moves to status if from is allowed; callers hold the lock
// and must call the returned hook after unlocking
func (t *BackgroundTask) transitionLocked(to domain.BackgroundTaskStatus, allowed ...domain.BackgroundTaskStatus) (func(), error) {
	from := t.status
	ok := false
	for _, s := range allowed {
		if from == s {
			ok = true
			break
		}
	}
	if !ok {
		return nil, &domain.InvalidTaskTransitionError{TaskID: t.id, From: from, To: to}
	}

	now := t.now()
	t.status = to
	switch to {
	case domain.BackgroundTaskStatusRunning:
		t.startedAt = &now
	default:
		t.completedAt = &now
	}
	if to == domain.BackgroundTaskStatusCancelled {
		close(t.cancelled)
	}
	t.broadcastLocked()

	hook := t.onTransition
	return func() {
		if hook != nil {
			hook(from, to)
		}
	}, nil
}

// Start moves a pending task to running
func (t *BackgroundTask) Start() error {
	t.mu.Lock()
	after, err := t.transitionLocked(domain.BackgroundTaskStatusRunning, domain.BackgroundTaskStatusPending)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	after()
	return nil
}

// UpdateProgress records progress while running. Values are clamped to
// [0,1] and never move backwards. Updates for tasks that are not running
// are dropped.
func (t *BackgroundTask) UpdateProgress(value float64, message string, eta *time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != domain.BackgroundTaskStatusRunning {
		return
	}

	value = clampProgress(value)
	if value < t.progress {
		value = t.progress
	}
	t.progress = value
	if message != "" {
		t.message = message
	}

	progress := t.progress
	t.log = append(t.log, domain.TaskEvent{
		Type:               domain.TaskEventProgress,
		TaskID:             t.id,
		Progress:           &progress,
		Message:            t.message,
		EstimatedRemaining: eta,
	})
	t.broadcastLocked()
}

func clampProgress(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Complete finishes a running task with its result
func (t *BackgroundTask) Complete(result map[string]any, message string) error {
	t.mu.Lock()
	after, err := t.transitionLocked(domain.BackgroundTaskStatusComplete, domain.BackgroundTaskStatusRunning)
	if err == nil {
		t.progress = 1
		t.result = result
		if message != "" {
			t.message = message
		}
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	after()
	return nil
}

// Fail finishes a running task with an error code and structured details
func (t *BackgroundTask) Fail(errMsg, code string, details map[string]any) error {
	t.mu.Lock()
	after, err := t.transitionLocked(domain.BackgroundTaskStatusError, domain.BackgroundTaskStatusRunning)
	if err == nil {
		if code == "" {
			code = domain.TaskErrorExecution
		}
		t.errMsg = errMsg
		t.errCode = code
		t.errDetails = details
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	after()
	return nil
}

// Cancel marks a pending or running task cancelled. It is cooperative: work
// in flight is only told through the reporter's Cancelled channel.
func (t *BackgroundTask) Cancel() error {
	t.mu.Lock()
	after, err := t.transitionLocked(domain.BackgroundTaskStatusCancelled,
		domain.BackgroundTaskStatusPending, domain.BackgroundTaskStatusRunning)
	if err == nil {
		t.errMsg = "task was cancelled"
		t.errCode = domain.TaskErrorCancelled
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	after()
	return nil
}

// Cancelled is closed when the task is cancelled
func (t *BackgroundTask) Cancelled() <-chan struct{} {
	return t.cancelled
}

// Snapshot returns an immutable copy of the task state
func (t *BackgroundTask) Snapshot() domain.TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *BackgroundTask) snapshotLocked() domain.TaskSnapshot {
	snap := domain.TaskSnapshot{
		TaskID:    t.id,
		Name:      t.name,
		OwnerID:   t.owner,
		Status:    t.status,
		Progress:  t.progress,
		Message:   t.message,
		CreatedAt: t.createdAt,
		Timeout:   t.timeout,
	}
	if t.startedAt != nil {
		s := *t.startedAt
		snap.StartedAt = &s
	}
	if t.completedAt != nil {
		c := *t.completedAt
		snap.CompletedAt = &c
	}
	return snap
}

// Result returns the terminal snapshot; ok is false while the task is unfinished
func (t *BackgroundTask) Result() (*domain.TaskResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.status.IsTerminal() {
		return nil, false
	}
	return &domain.TaskResult{
		TaskID:       t.id,
		Status:       t.status,
		Message:      t.message,
		Result:       maps.Clone(t.result),
		Error:        t.errMsg,
		ErrorCode:    t.errCode,
		ErrorDetails: maps.Clone(t.errDetails),
	}, true
}

// terminalEvent renders the closing stream event for a finished task
func (t *BackgroundTask) terminalEvent() domain.TaskEvent {
	res, _ := t.Result()
	if res.Status == domain.BackgroundTaskStatusComplete {
		progress := 1.0
		return domain.TaskEvent{
			Type:     domain.TaskEventComplete,
			TaskID:   t.id,
			Progress: &progress,
			Message:  res.Message,
			Result:   res.Result,
		}
	}
	return domain.TaskEvent{
		Type:    domain.TaskEventError,
		TaskID:  t.id,
		Message: res.Message,
		Error:   res.Error,
		Code:    res.ErrorCode,
		Details: res.ErrorDetails,
	}
}

// eventsSince returns log entries after cursor, the channel that signals the
// next change, and the current snapshot
func (t *BackgroundTask) eventsSince(cursor int) ([]domain.TaskEvent, <-chan struct{}, domain.TaskSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []domain.TaskEvent
	if cursor < len(t.log) {
		pending = append(pending, t.log[cursor:]...)
	}
	return pending, t.notify, t.snapshotLocked()
}

// taskTimedOut reports whether a running task has exceeded its timeout at now
func taskTimedOut(s domain.TaskSnapshot, now time.Time) bool {
	return s.Status == domain.BackgroundTaskStatusRunning &&
		s.Timeout > 0 && s.StartedAt != nil && !now.Before(s.StartedAt.Add(s.Timeout))
}

// taskReporter is the ProgressReporter handed to submitted work
type taskReporter struct {
	task *BackgroundTask
}

func (r taskReporter) Report(value float64, message string, eta *time.Duration) {
	r.task.UpdateProgress(value, message, eta)
}

func (r taskReporter) Cancelled() <-chan struct{} {
	return r.task.Cancelled()
}

var _ domain.ProgressReporter = taskReporter{}
