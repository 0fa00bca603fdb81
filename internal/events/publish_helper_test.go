package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// mockPublisher captures published events for testing.
type mockPublisher struct {
	mu     sync.Mutex
	events []Event
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{events: make([]Event, 0)}
}

func (m *mockPublisher) Publish(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockPublisher) Subscribe(jobID string) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

func (m *mockPublisher) Unsubscribe(jobID string, ch <-chan Event) {}

func (m *mockPublisher) Close() {}

func (m *mockPublisher) getEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Event, len(m.events))
	copy(result, m.events)
	return result
}

func (m *mockPublisher) lastEvent() *Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	ev := m.events[len(m.events)-1]
	return &ev
}

func TestNewPublishHelper_NilPublisher_DoesNotPanic(t *testing.T) {
	t.Parallel()

	ep := NewPublishHelper(nil)
	if ep == nil {
		t.Fatal("expected non-nil PublishHelper")
	}
}

func TestPublishHelper_Publish_NilPublisher_NoOp(t *testing.T) {
	t.Parallel()

	ep := NewPublishHelper(nil)
	ep.Publish(NewEvent(EventStarted, "job-001", nil))

	var nilEP *PublishHelper
	nilEP.Publish(NewEvent(EventStarted, "job-001", nil))
	nilEP.Warning("job-001", "plants", 1, "invalid id")
}

func TestPublishHelper_Queued_PublishesJobData(t *testing.T) {
	t.Parallel()

	mock := newMockPublisher()
	ep := NewPublishHelper(mock)
	ep.Queued("job-001", JobData{Kind: KindExport, Path: "/tmp/out.zip", Format: "csv", Scope: "all plants"})

	ev := mock.lastEvent()
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Type != EventQueued {
		t.Errorf("expected type %s, got %s", EventQueued, ev.Type)
	}
	if ev.JobID != "job-001" {
		t.Errorf("expected job-001, got %s", ev.JobID)
	}
	data, ok := ev.Data.(JobData)
	if !ok {
		t.Fatalf("expected JobData, got %T", ev.Data)
	}
	if data.Kind != KindExport || data.Format != "csv" {
		t.Errorf("unexpected job data %#v", data)
	}
}

func TestPublishHelper_Complete_RoundsDuration(t *testing.T) {
	t.Parallel()

	mock := newMockPublisher()
	ep := NewPublishHelper(mock)
	ep.Complete("job-002", KindImport, "Imported 3 plants", 1500*time.Microsecond+2*time.Second, 2, nil)

	data, ok := mock.lastEvent().Data.(CompleteData)
	if !ok {
		t.Fatalf("expected CompleteData, got %T", mock.lastEvent().Data)
	}
	if data.Duration != "2.002s" {
		t.Errorf("expected duration 2.002s, got %s", data.Duration)
	}
	if data.Warnings != 2 {
		t.Errorf("expected 2 warnings, got %d", data.Warnings)
	}
}

func TestPublishHelper_Failed_IncludesErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"with error", errors.New("disk full"), "disk full"},
		{"nil error", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := newMockPublisher()
			ep := NewPublishHelper(mock)
			ep.Failed("job-003", KindImport, "STORAGE_FAILED", tt.err)

			ev := mock.lastEvent()
			if ev.Type != EventError {
				t.Errorf("expected type %s, got %s", EventError, ev.Type)
			}
			data := ev.Data.(ErrorData)
			if data.Message != tt.want {
				t.Errorf("expected message %q, got %q", tt.want, data.Message)
			}
			if data.Code != "STORAGE_FAILED" {
				t.Errorf("expected code STORAGE_FAILED, got %s", data.Code)
			}
		})
	}
}

func TestPublishHelper_ConcurrentPublish_Safe(t *testing.T) {
	t.Parallel()

	mock := newMockPublisher()
	ep := NewPublishHelper(mock)

	const numGoroutines = 100
	const numPublishesPerGoroutine = 10

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < numPublishesPerGoroutine; j++ {
				switch j % 4 {
				case 0:
					ep.Started("job-001", JobData{Kind: KindImport})
				case 1:
					ep.Warning("job-001", "measurements", j, "unknown plant id")
				case 2:
					ep.Complete("job-001", KindImport, "done", time.Second, 0, nil)
				case 3:
					ep.Failed("job-001", KindImport, "", errors.New("boom"))
				}
			}
		}()
	}

	wg.Wait()

	evts := mock.getEvents()
	expectedEvents := numGoroutines * numPublishesPerGoroutine
	if len(evts) != expectedEvents {
		t.Errorf("expected %d events, got %d", expectedEvents, len(evts))
	}
}
