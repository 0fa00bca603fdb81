package events

import (
	"sync"
)

// GlobalJobID is the special job ID for subscribing to all job events.
// Subscribers to this ID receive events for every job the engine runs,
// including jobs queued after the subscription was made.
const GlobalJobID = "*"

// Publisher defines the interface for event publishing.
type Publisher interface {
	// Publish sends an event to all subscribers of the job.
	Publish(event Event)
	// Subscribe returns a channel that receives events for the given job.
	// Use GlobalJobID ("*") to receive events for all jobs.
	Subscribe(jobID string) <-chan Event
	// Unsubscribe removes a subscription channel.
	Unsubscribe(jobID string, ch <-chan Event)
	// Close shuts down the publisher and all subscriptions.
	Close()
}

// MemoryPublisher is an in-memory implementation of Publisher.
//
// Publishing never blocks the engine's worker. A subscriber that falls
// behind loses events rather than stalling an export or import, so the CLI
// subscribes before it submits and reads until the job completes.
type MemoryPublisher struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
	bufferSize  int
	closed      bool
}

// PublisherOption configures a MemoryPublisher.
type PublisherOption func(*MemoryPublisher)

// WithBufferSize sets the channel buffer size for subscribers.
func WithBufferSize(size int) PublisherOption {
	return func(p *MemoryPublisher) {
		p.bufferSize = size
	}
}

// NewMemoryPublisher creates a new in-memory publisher.
func NewMemoryPublisher(opts ...PublisherOption) *MemoryPublisher {
	p := &MemoryPublisher{
		subscribers: make(map[string][]chan Event),
		bufferSize:  100, // an import publishes one event per warning
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an event to the job's subscribers and to global subscribers.
// Non-blocking: skips subscribers with full buffers.
func (p *MemoryPublisher) Publish(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	offer(p.subscribers[event.JobID], event)

	// An event published under the global ID already reached the global
	// subscribers above.
	if event.JobID != GlobalJobID {
		offer(p.subscribers[GlobalJobID], event)
	}
}

// offer hands event to each channel that has room.
func offer(subs []chan Event, event Event) {
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Full buffer, this subscriber misses the event.
		}
	}
}

// Subscribe returns a channel that receives events for the given job.
func (p *MemoryPublisher) Subscribe(jobID string) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		// Closed publisher: hand back a closed channel so range loops end.
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, p.bufferSize)
	p.subscribers[jobID] = append(p.subscribers[jobID], ch)
	return ch
}

// Unsubscribe removes a subscription channel and closes it. Unknown channels
// are ignored.
func (p *MemoryPublisher) Unsubscribe(jobID string, ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subscribers[jobID]
	for i, sub := range subs {
		if sub == ch {
			p.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	// Drop the job entry once nobody listens to it.
	if len(p.subscribers[jobID]) == 0 {
		delete(p.subscribers, jobID)
	}
}

// Close shuts down the publisher and closes all subscription channels.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true

	// Closing the channels ends every subscriber's range loop.
	for jobID, subs := range p.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(p.subscribers, jobID)
	}
}

// SubscriberCount returns the number of subscribers for a job.
func (p *MemoryPublisher) SubscriberCount(jobID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers[jobID])
}

// JobCount returns the number of jobs with subscribers.
func (p *MemoryPublisher) JobCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// NopPublisher is a no-op publisher for callers that need a Publisher but
// have nobody listening.
type NopPublisher struct{}

// Publish does nothing.
func (p *NopPublisher) Publish(event Event) {}

// Subscribe returns a closed channel.
func (p *NopPublisher) Subscribe(jobID string) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

// Unsubscribe does nothing.
func (p *NopPublisher) Unsubscribe(jobID string, ch <-chan Event) {}

// Close does nothing.
func (p *NopPublisher) Close() {}

// NewNopPublisher creates a no-op publisher.
func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}
