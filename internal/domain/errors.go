package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by collaborators when a record legitimately does not exist
var ErrNotFound = errors.New("not found")

// UserFacingError is implemented by errors whose message can be shown to end users
type UserFacingError interface {
	error
	UserMessage() string
}

func displayOr(displayName, network string) string {
	if displayName != "" {
		return displayName
	}
	if network != "" {
		return network
	}
	return "This network"
}

// CredentialsNotFoundError means no credential record exists for the network
type CredentialsNotFoundError struct {
	Network     string
	DisplayName string
}

func (e *CredentialsNotFoundError) Error() string { return e.UserMessage() }

// UserMessage implements UserFacingError
func (e *CredentialsNotFoundError) UserMessage() string {
	name := displayOr(e.DisplayName, e.Network)
	return fmt.Sprintf("%s is not connected. Connect your %s account in Settings to continue.", name, name)
}

// CredentialsExpiredError means a credential exists but has expired
type CredentialsExpiredError struct {
	Network     string
	DisplayName string
	ExpiredAt   time.Time
}

func (e *CredentialsExpiredError) Error() string { return e.UserMessage() }

// UserMessage implements UserFacingError
func (e *CredentialsExpiredError) UserMessage() string {
	name := displayOr(e.DisplayName, e.Network)
	return fmt.Sprintf("Your %s connection has expired. Reconnect your %s account in Settings to continue.", name, name)
}

// ProviderNotConnectedError means a tool is hidden because its network is not connected
type ProviderNotConnectedError struct {
	Network     string
	DisplayName string
	ToolName    string
}

func (e *ProviderNotConnectedError) Error() string { return e.UserMessage() }

// UserMessage implements UserFacingError
func (e *ProviderNotConnectedError) UserMessage() string {
	name := displayOr(e.DisplayName, e.Network)
	return fmt.Sprintf("%s is not connected. Connect your %s account in Settings to use this tool.", name, name)
}

// ToolBlockedError means the tool is on a standing block list
type ToolBlockedError struct {
	ToolName string
	Reason   string
}

func (e *ToolBlockedError) Error() string { return e.UserMessage() }

// UserMessage implements UserFacingError
func (e *ToolBlockedError) UserMessage() string {
	return fmt.Sprintf("The %s action has been blocked. Clear it from your blocked actions in Settings to allow it again.", e.ToolName)
}

// ApprovalNotFoundError means no approval record exists (never created, or already consumed)
type ApprovalNotFoundError struct {
	ApprovalID string
}

func (e *ApprovalNotFoundError) Error() string {
	return fmt.Sprintf("approval not found: %s", e.ApprovalID)
}

// ApprovalAlreadyResolvedError is returned when resolving a terminal approval
type ApprovalAlreadyResolvedError struct {
	ApprovalID string
	Status     ApprovalStatus
}

func (e *ApprovalAlreadyResolvedError) Error() string {
	return fmt.Sprintf("approval %s is already %s", e.ApprovalID, e.Status)
}

// ApprovalPendingError is returned when consuming an approval that is still awaiting a decision
type ApprovalPendingError struct {
	ApprovalID string
}

func (e *ApprovalPendingError) Error() string {
	return fmt.Sprintf("approval %s is still pending", e.ApprovalID)
}

// ApprovalExpiredError is a recoverable timeout: the caller may request approval again
type ApprovalExpiredError struct {
	ApprovalID string
	ToolName   string
}

func (e *ApprovalExpiredError) Error() string { return e.UserMessage() }

// UserMessage implements UserFacingError
func (e *ApprovalExpiredError) UserMessage() string {
	return fmt.Sprintf("The approval request for %s expired before a decision was made. Ask again to request a new approval.", e.ToolName)
}

// ApprovalRejectedError is returned when a human rejected the call
type ApprovalRejectedError struct {
	ApprovalID string
	ToolName   string
}

func (e *ApprovalRejectedError) Error() string { return e.UserMessage() }

// UserMessage implements UserFacingError
func (e *ApprovalRejectedError) UserMessage() string {
	return fmt.Sprintf("The %s action was rejected and was not run.", e.ToolName)
}

// InvalidTaskTransitionError is returned for state machine violations
type InvalidTaskTransitionError struct {
	TaskID string
	From   BackgroundTaskStatus
	To     BackgroundTaskStatus
}

func (e *InvalidTaskTransitionError) Error() string {
	return fmt.Sprintf("task %s cannot transition from %s to %s", e.TaskID, e.From, e.To)
}

// TaskNotFoundError is returned for unknown task ids
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// TaskCapacityError is returned when the registry is full of unfinished tasks
type TaskCapacityError struct {
	Capacity int
}

func (e *TaskCapacityError) Error() string {
	return fmt.Sprintf("background task capacity reached (%d active tasks)", e.Capacity)
}

// UserMessageOf returns the user-facing sentence for err, or a generic one
func UserMessageOf(err error) string {
	var uf UserFacingError
	if errors.As(err, &uf) {
		return uf.UserMessage()
	}
	return "Something went wrong while running this action. Please try again."
}
