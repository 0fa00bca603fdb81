// Package events provides job lifecycle events for the backup engine and the
// infrastructure to publish them.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventQueued indicates a job was accepted and is waiting for the worker.
	EventQueued EventType = "queued"
	// EventStarted indicates the worker picked the job up.
	EventStarted EventType = "started"
	// EventWarning indicates a skipped or degraded row.
	EventWarning EventType = "warning"
	// EventComplete indicates the job finished successfully.
	EventComplete EventType = "complete"
	// EventError indicates the job failed.
	EventError EventType = "error"
)

// Job kinds.
const (
	KindExport = "export"
	KindImport = "import"
)

// Event represents a published event.
type Event struct {
	Type  EventType `json:"type"`
	JobID string    `json:"job_id"`
	Data  any       `json:"data"`
	Time  time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, jobID string, data any) Event {
	return Event{
		Type:  eventType,
		JobID: jobID,
		Data:  data,
		Time:  time.Now(),
	}
}

// JobData describes a job when it is queued or started.
type JobData struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Scope  string `json:"scope,omitempty"`
	Format string `json:"format,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// CompleteData describes a finished job.
type CompleteData struct {
	Kind     string `json:"kind"`
	Summary  string `json:"summary"`
	Duration string `json:"duration,omitempty"`
	Warnings int    `json:"warnings,omitempty"`
	// Detail carries the kind-specific result, such as an export summary.
	Detail any `json:"detail,omitempty"`
}

// ErrorData represents error information.
type ErrorData struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WarningData represents a non-fatal row warning.
type WarningData struct {
	Category string `json:"category"`
	Row      int    `json:"row"`
	Reason   string `json:"reason"`
}
