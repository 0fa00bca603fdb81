package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// CLIPublisher writes job events to an io.Writer (typically stderr).
// It wraps another publisher to also fan out events to subscribers.
type CLIPublisher struct {
	inner    Publisher
	out      io.Writer
	mu       sync.Mutex
	jsonMode bool
	warnings bool
}

// CLIPublisherOption configures a CLIPublisher.
type CLIPublisherOption func(*CLIPublisher)

// WithInnerPublisher sets an inner publisher to fan out events to.
func WithInnerPublisher(p Publisher) CLIPublisherOption {
	return func(c *CLIPublisher) {
		c.inner = p
	}
}

// WithJSONLines writes every event as one JSON object per line.
func WithJSONLines(enabled bool) CLIPublisherOption {
	return func(c *CLIPublisher) {
		c.jsonMode = enabled
	}
}

// WithWarnings streams row warnings as they happen.
func WithWarnings(enabled bool) CLIPublisherOption {
	return func(c *CLIPublisher) {
		c.warnings = enabled
	}
}

// NewCLIPublisher creates a publisher that writes events to the given writer.
func NewCLIPublisher(out io.Writer, opts ...CLIPublisherOption) *CLIPublisher {
	p := &CLIPublisher{out: out}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes the event and fans out to the inner publisher.
func (p *CLIPublisher) Publish(event Event) {
	if p.inner != nil {
		p.inner.Publish(event)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.jsonMode {
		b, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Fprintln(p.out, string(b))
		return
	}

	switch data := event.Data.(type) {
	case JobData:
		if event.Type == EventStarted {
			fmt.Fprintf(p.out, "%s %s: %s\n", event.JobID, data.Kind, data.Path)
		}
	case WarningData:
		if p.warnings {
			fmt.Fprintf(p.out, "  ! %s row %d: %s\n", data.Category, data.Row, data.Reason)
		}
	case ErrorData:
		fmt.Fprintf(p.out, "%s %s failed: %s\n", event.JobID, data.Kind, data.Message)
	}
}

// Subscribe delegates to inner publisher or returns closed channel.
func (p *CLIPublisher) Subscribe(jobID string) <-chan Event {
	if p.inner != nil {
		return p.inner.Subscribe(jobID)
	}
	ch := make(chan Event)
	close(ch)
	return ch
}

// Unsubscribe delegates to inner publisher.
func (p *CLIPublisher) Unsubscribe(jobID string, ch <-chan Event) {
	if p.inner != nil {
		p.inner.Unsubscribe(jobID, ch)
	}
}

// Close delegates to inner publisher.
func (p *CLIPublisher) Close() {
	if p.inner != nil {
		p.inner.Close()
	}
}
