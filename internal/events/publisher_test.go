package events

import (
	"sync"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	before := time.Now()
	event := NewEvent(EventStarted, "job-001", map[string]string{"status": "running"})
	after := time.Now()

	if event.Type != EventStarted {
		t.Errorf("expected type %s, got %s", EventStarted, event.Type)
	}
	if event.JobID != "job-001" {
		t.Errorf("expected task ID job-001, got %s", event.JobID)
	}
	if event.Time.Before(before) || event.Time.After(after) {
		t.Errorf("event time %v not between %v and %v", event.Time, before, after)
	}
}

func TestMemoryPublisher_PublishAndSubscribe(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	// Subscribe to task
	ch := pub.Subscribe("job-001")

	// Publish event
	event := NewEvent(EventStarted, "job-001", "test data")
	pub.Publish(event)

	// Receive event
	select {
	case received := <-ch:
		if received.Type != EventStarted {
			t.Errorf("expected type %s, got %s", EventStarted, received.Type)
		}
		if received.JobID != "job-001" {
			t.Errorf("expected task ID job-001, got %s", received.JobID)
		}
		if received.Data != "test data" {
			t.Errorf("expected data 'test data', got %v", received.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestMemoryPublisher_MultipleSubscribers(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	// Multiple subscribers
	ch1 := pub.Subscribe("job-001")
	ch2 := pub.Subscribe("job-001")

	// Publish event
	event := NewEvent(EventQueued, "job-001", "phase data")
	pub.Publish(event)

	// Both should receive
	received := 0
loop:
	for i := 0; i < 2; i++ {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-time.After(100 * time.Millisecond):
			break loop
		}
	}

	if received != 2 {
		t.Errorf("expected 2 receivers, got %d", received)
	}
}

func TestMemoryPublisher_DifferentJobs(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	ch1 := pub.Subscribe("job-001")
	ch2 := pub.Subscribe("job-002")

	// Publish to job-001 only
	event := NewEvent(EventStarted, "job-001", "data")
	pub.Publish(event)

	// job-001 should receive
	select {
	case <-ch1:
		// Expected
	case <-time.After(100 * time.Millisecond):
		t.Error("job-001 subscriber should have received event")
	}

	// job-002 should not receive
	select {
	case <-ch2:
		t.Error("job-002 subscriber should not have received event")
	case <-time.After(50 * time.Millisecond):
		// Expected
	}
}

func TestMemoryPublisher_Unsubscribe(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	ch := pub.Subscribe("job-001")

	if pub.SubscriberCount("job-001") != 1 {
		t.Errorf("expected 1 subscriber, got %d", pub.SubscriberCount("job-001"))
	}

	pub.Unsubscribe("job-001", ch)

	if pub.SubscriberCount("job-001") != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", pub.SubscriberCount("job-001"))
	}

	// Channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel should be closed")
		}
	default:
		// Channel might be empty but should be closed
	}
}

func TestMemoryPublisher_Close(t *testing.T) {
	pub := NewMemoryPublisher()

	ch1 := pub.Subscribe("job-001")
	ch2 := pub.Subscribe("job-002")

	pub.Close()

	// Channels should be closed
	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case _, ok := <-ch:
			if ok {
				t.Error("channel should be closed after publisher Close()")
			}
		default:
			// Empty but might not be closed yet - wait a bit
		}
	}

	// Publish after close should not panic
	pub.Publish(NewEvent(EventStarted, "job-001", "data"))

	// Subscribe after close should return closed channel
	ch := pub.Subscribe("job-003")
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("subscribe after close should return closed channel")
		}
	default:
		// Empty closed channel
	}
}

func TestMemoryPublisher_NonBlockingPublish(t *testing.T) {
	// Small buffer to test non-blocking behavior
	pub := NewMemoryPublisher(WithBufferSize(1))
	defer pub.Close()

	ch := pub.Subscribe("job-001")

	// Fill the buffer
	pub.Publish(NewEvent(EventStarted, "job-001", "event1"))

	// This should not block even though buffer is full
	done := make(chan bool)
	go func() {
		pub.Publish(NewEvent(EventStarted, "job-001", "event2"))
		pub.Publish(NewEvent(EventStarted, "job-001", "event3"))
		done <- true
	}()

	select {
	case <-done:
		// Good, didn't block
	case <-time.After(100 * time.Millisecond):
		t.Error("publish should not block when buffer is full")
	}

	// Drain the channel
	<-ch
}

func TestMemoryPublisher_Concurrent(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	var wg sync.WaitGroup
	jobID := "job-001"

	// Concurrent subscribers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := pub.Subscribe(jobID)
			// Read some events
			for j := 0; j < 5; j++ {
				select {
				case <-ch:
				case <-time.After(200 * time.Millisecond):
				}
			}
			pub.Unsubscribe(jobID, ch)
		}()
	}

	// Concurrent publishers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				pub.Publish(NewEvent(EventStarted, jobID, i*10+j))
			}
		}(i)
	}

	wg.Wait()
}

func TestMemoryPublisher_SubscriberCount(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	if pub.JobCount() != 0 {
		t.Errorf("expected 0 jobs, got %d", pub.JobCount())
	}

	ch1 := pub.Subscribe("job-001")
	ch2 := pub.Subscribe("job-001")
	pub.Subscribe("job-002")

	if pub.SubscriberCount("job-001") != 2 {
		t.Errorf("expected 2 subscribers for job-001, got %d", pub.SubscriberCount("job-001"))
	}
	if pub.SubscriberCount("job-002") != 1 {
		t.Errorf("expected 1 subscriber for job-002, got %d", pub.SubscriberCount("job-002"))
	}
	if pub.JobCount() != 2 {
		t.Errorf("expected 2 jobs, got %d", pub.JobCount())
	}

	pub.Unsubscribe("job-001", ch1)
	pub.Unsubscribe("job-001", ch2)

	if pub.JobCount() != 1 {
		t.Errorf("expected 1 job after unsubscribe, got %d", pub.JobCount())
	}
}

func TestNopPublisher(t *testing.T) {
	pub := NewNopPublisher()

	// Should not panic
	pub.Publish(NewEvent(EventStarted, "job-001", "data"))

	// Subscribe returns closed channel
	ch := pub.Subscribe("job-001")
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("nop publisher subscribe should return closed channel")
		}
	default:
		// Empty closed channel
	}

	// Should not panic
	pub.Unsubscribe("job-001", ch)
	pub.Close()
}

func TestMemoryPublisher_GlobalSubscriber(t *testing.T) {
	pub := NewMemoryPublisher()
	defer pub.Close()

	global := pub.Subscribe(GlobalJobID)
	pub.Publish(NewEvent(EventQueued, "job-007", JobData{Kind: KindImport, Path: "a.zip"}))

	select {
	case ev := <-global:
		if ev.JobID != "job-007" {
			t.Errorf("expected job-007, got %s", ev.JobID)
		}
		data, ok := ev.Data.(JobData)
		if !ok || data.Kind != KindImport {
			t.Errorf("unexpected data %#v", ev.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("global subscriber should receive every job's events")
	}
}
