package activity

import (
	"context"
	"sync"
)

// Recorder stores and lists activity events.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
	List(ctx context.Context, filter Filter) ([]*Event, error)
}

const memoryRecorderCap = 10000

// MemoryRecorder keeps the trail in process memory. It backs the
// service when the event store is not configured or unreachable; the
// trail then lasts only as long as the process.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []*Event
}

// NewMemoryRecorder creates an in-memory activity recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends an event, evicting the oldest entries past capacity
func (r *MemoryRecorder) Record(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	if len(r.events) > memoryRecorderCap {
		r.events = r.events[len(r.events)-memoryRecorderCap:]
	}
	return nil
}

// List returns matching events, newest first
func (r *MemoryRecorder) List(ctx context.Context, filter Filter) ([]*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matches := make([]*Event, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		event := r.events[i]
		if !filter.matches(event) {
			continue
		}
		matches = append(matches, event)
		if filter.Limit > 0 && len(matches) >= filter.Limit {
			break
		}
	}
	return matches, nil
}

func (f Filter) matches(event *Event) bool {
	if f.PatientID != "" && event.PatientID != f.PatientID {
		return false
	}
	if f.Action != "" && event.Action != f.Action {
		return false
	}
	return true
}

var _ Recorder = (*MemoryRecorder)(nil)
