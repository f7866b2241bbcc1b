package domain

import "time"

// BackgroundTaskStatus represents the status of a background task
type BackgroundTaskStatus string

const (
	BackgroundTaskStatusPending   BackgroundTaskStatus = "pending"
	BackgroundTaskStatusRunning   BackgroundTaskStatus = "running"
	BackgroundTaskStatusComplete  BackgroundTaskStatus = "complete"
	BackgroundTaskStatusError     BackgroundTaskStatus = "error"
	BackgroundTaskStatusCancelled BackgroundTaskStatus = "cancelled"
)

// IsTerminal reports whether the task has finished
func (s BackgroundTaskStatus) IsTerminal() bool {
	switch s {
	case BackgroundTaskStatusComplete, BackgroundTaskStatusError, BackgroundTaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskSnapshot is an immutable copy of a background task's state
type TaskSnapshot struct {
	TaskID      string               `json:"task_id"`
	Name        string               `json:"name"`
	OwnerID     string               `json:"owner_id,omitempty"`
	Status      BackgroundTaskStatus `json:"status"`
	Progress    float64              `json:"progress"`
	Message     string               `json:"message"`
	CreatedAt   time.Time            `json:"created_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Timeout     time.Duration        `json:"timeout"`
}

// TaskProgress is an ephemeral progress update
type TaskProgress struct {
	TaskID             string         `json:"task_id"`
	Progress           float64        `json:"progress"`
	Message            string         `json:"message"`
	EstimatedRemaining *time.Duration `json:"estimated_remaining,omitempty"`
}

// TaskResult is the terminal snapshot of a background task
type TaskResult struct {
	TaskID       string               `json:"task_id"`
	Status       BackgroundTaskStatus `json:"status"`
	Message      string               `json:"message"`
	Result       map[string]any       `json:"result,omitempty"`
	Error        string               `json:"error,omitempty"`
	ErrorCode    string               `json:"error_code,omitempty"`
	ErrorDetails map[string]any       `json:"error_details,omitempty"`
}

// TaskEventType is the wire type of a progress stream event
type TaskEventType string

const (
	TaskEventProgress TaskEventType = "task_progress"
	TaskEventComplete TaskEventType = "task_complete"
	TaskEventError    TaskEventType = "task_error"
)

// TaskEvent is one element of a task's progress stream
type TaskEvent struct {
	Type               TaskEventType  `json:"type"`
	TaskID             string         `json:"task_id"`
	Progress           *float64       `json:"progress,omitempty"`
	Message            string         `json:"message,omitempty"`
	EstimatedRemaining *time.Duration `json:"estimated_remaining,omitempty"`
	Heartbeat          bool           `json:"heartbeat,omitempty"`
	Result             map[string]any `json:"result,omitempty"`
	Error              string         `json:"error,omitempty"`
	Code               string         `json:"code,omitempty"`
	Details            map[string]any `json:"details,omitempty"`
}

// Task error codes set by the tracker itself
const (
	TaskErrorCancelled = "cancelled"
	TaskErrorTimeout   = "timeout"
	TaskErrorPanic     = "panic"
	TaskErrorExecution = "execution_failed"
)

// ProgressReporter is handed to long-running work so it can publish progress
type ProgressReporter interface {
	Report(value float64, message string, eta *time.Duration)
	Cancelled() <-chan struct{}
}
