package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, eventType string, payload interface{}, recipientID string) error {
	args := m.Called(ctx, eventType, payload, recipientID)
	return args.Error(0)
}

// RecordingDispatcher collects dispatched events for assertions without the
// expectation ceremony. Safe for concurrent use.
type RecordingDispatcher struct {
	mu     sync.Mutex
	events []RecordedEvent
	err    error
}

type RecordedEvent struct {
	EventType   string
	Payload     interface{}
	RecipientID string
}

func (d *RecordingDispatcher) Dispatch(ctx context.Context, eventType string, payload interface{}, recipientID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, RecordedEvent{EventType: eventType, Payload: payload, RecipientID: recipientID})
	return d.err
}

func (d *RecordingDispatcher) Events() []RecordedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RecordedEvent, len(d.events))
	copy(out, d.events)
	return out
}

func (d *RecordingDispatcher) EventsOfType(eventType string) []RecordedEvent {
	var out []RecordedEvent
	for _, e := range d.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
