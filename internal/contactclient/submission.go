// Package contactclient drives a contact form submission from validation to the final notification.
package contactclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// State is one of idle, loading, succeeded or failed.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"

	DefaultSuccessText = "Message sent successfully"
	NoResponseText     = "Server is not responding"
	UnexpectedText     = "Unexpected error"
	ServerErrorText    = "Server error"

	// DefaultAutoHide is how long a notification stays visible unless dismissed.
	DefaultAutoHide = 6 * time.Second
)

var (
	// ErrSubmissionInProgress is returned while a previous Submit is still waiting for the server.
	ErrSubmissionInProgress = errors.New("contactclient: submission in progress")
	// ErrSubmissionFailed wraps the user-facing failure text of a completed submission.
	ErrSubmissionFailed = errors.New("contactclient: submission failed")
)

// Status is a snapshot of the submission. Message is set only when succeeded, Error only when failed.
type Status struct {
	State   State
	Message string
	Error   string
}

// Severity selects how a notification is presented.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is emitted once per terminal state.
type Notification struct {
	Severity Severity
	Text     string
	AutoHide time.Duration
	dismiss  func()
}

// Dismiss closes the notification and resets the submission to idle.
func (notification Notification) Dismiss() {
	if notification.dismiss != nil {
		notification.dismiss()
	}
}

// Notifier presents notifications to the visitor.
type Notifier interface {
	Notify(notification Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(notification Notification)

func (notifierFunc NotifierFunc) Notify(notification Notification) {
	notifierFunc(notification)
}

// Submission is the client-side state machine: idle, loading, then succeeded or failed until Clear.
type Submission struct {
	transport Transport
	notifier  Notifier
	autoHide  time.Duration

	mutex  sync.Mutex
	status Status
}

// NewSubmission creates an idle submission. notifier may be nil.
func NewSubmission(transport Transport, notifier Notifier) *Submission {
	return &Submission{
		transport: transport,
		notifier:  notifier,
		autoHide:  DefaultAutoHide,
		status:    Status{State: StateIdle},
	}
}

// Snapshot returns the current status.
func (submission *Submission) Snapshot() Status {
	submission.mutex.Lock()
	defer submission.mutex.Unlock()
	return submission.status
}

// Clear returns the submission to idle and drops any texts.
func (submission *Submission) Clear() {
	submission.mutex.Lock()
	defer submission.mutex.Unlock()
	submission.status = Status{State: StateIdle}
}

// Submit validates form and, when valid, sends it once. On success the returned form is empty so the
// caller can reset its inputs; otherwise form is returned unchanged.
func (submission *Submission) Submit(ctx context.Context, form Form) (Form, error) {
	submission.mutex.Lock()
	if submission.status.State == StateLoading {
		submission.mutex.Unlock()
		return form, ErrSubmissionInProgress
	}
	if fieldErrors := form.Validate(); len(fieldErrors) > 0 {
		submission.mutex.Unlock()
		return form, &ValidationError{Fields: fieldErrors}
	}
	submission.status = Status{State: StateLoading}
	submission.mutex.Unlock()

	response, sendErr := submission.transport.Send(ctx, form)
	terminal := resolveTerminalStatus(response, sendErr)

	submission.mutex.Lock()
	submission.status = terminal
	submission.mutex.Unlock()

	submission.notify(terminal)

	if terminal.State == StateFailed {
		return form, fmt.Errorf("%w: %s", ErrSubmissionFailed, terminal.Error)
	}
	return Form{}, nil
}

func (submission *Submission) notify(status Status) {
	if submission.notifier == nil {
		return
	}
	notification := Notification{
		Severity: SeveritySuccess,
		Text:     status.Message,
		AutoHide: submission.autoHide,
		dismiss:  submission.Clear,
	}
	if status.State == StateFailed {
		notification.Severity = SeverityError
		notification.Text = status.Error
	}
	submission.notifier.Notify(notification)
}

func resolveTerminalStatus(response Response, sendErr error) Status {
	if sendErr != nil {
		var noResponseError *NoResponseError
		if errors.As(sendErr, &noResponseError) {
			return Status{State: StateFailed, Error: NoResponseText}
		}
		return Status{State: StateFailed, Error: UnexpectedText}
	}
	if response.Succeeded() {
		return Status{State: StateSucceeded, Message: firstNonEmpty(response.Message, DefaultSuccessText)}
	}
	return Status{State: StateFailed, Error: firstNonEmpty(response.Error, response.Message, ServerErrorText)}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
