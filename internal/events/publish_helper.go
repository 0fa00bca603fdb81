package events

import (
	"time"
)

// PublishHelper wraps event publishing with nil-safety and convenience methods.
// All methods are safe to call even when the underlying publisher is nil.
//
// Thread-safe: All methods can be called concurrently.
type PublishHelper struct {
	publisher Publisher
}

// NewPublishHelper creates a new PublishHelper wrapping the given publisher.
// If p is nil, all publish operations become no-ops.
func NewPublishHelper(p Publisher) *PublishHelper {
	return &PublishHelper{publisher: p}
}

// Publish sends an event to the underlying publisher.
// Safe to call with nil publisher (no-op).
func (ep *PublishHelper) Publish(ev Event) {
	if ep == nil || ep.publisher == nil {
		return
	}
	ep.publisher.Publish(ev)
}

// Queued publishes a job queued event.
func (ep *PublishHelper) Queued(jobID string, job JobData) {
	ep.Publish(NewEvent(EventQueued, jobID, job))
}

// Started publishes a job started event.
func (ep *PublishHelper) Started(jobID string, job JobData) {
	ep.Publish(NewEvent(EventStarted, jobID, job))
}

// Complete publishes a job completion event.
func (ep *PublishHelper) Complete(jobID, kind, summary string, elapsed time.Duration, warnings int, detail any) {
	ep.Publish(NewEvent(EventComplete, jobID, CompleteData{
		Kind:     kind,
		Summary:  summary,
		Duration: elapsed.Round(time.Millisecond).String(),
		Warnings: warnings,
		Detail:   detail,
	}))
}

// Failed publishes an error event for a job that did not finish.
func (ep *PublishHelper) Failed(jobID, kind, code string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	ep.Publish(NewEvent(EventError, jobID, ErrorData{
		Kind:    kind,
		Code:    code,
		Message: msg,
	}))
}

// Warning publishes a row warning event.
func (ep *PublishHelper) Warning(jobID, category string, row int, reason string) {
	ep.Publish(NewEvent(EventWarning, jobID, WarningData{
		Category: category,
		Row:      row,
		Reason:   reason,
	}))
}
