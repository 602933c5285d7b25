package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"
)

const (
	// DefaultStream is the stream all activity events are appended to
	DefaultStream = "clinic-activity"
	// EventType marks activity entries in the stream
	EventType = "ActivityEvent"
)

// StoreRecorder persists the activity trail in EventStoreDB. The
// store is inherently append-only, which is exactly the property a
// clinical trail needs.
type StoreRecorder struct {
	client *esdb.Client
	stream string
}

// NewStoreRecorder connects to EventStoreDB using a connection string
func NewStoreRecorder(connectionString, stream string) (*StoreRecorder, error) {
	settings, err := esdb.ParseConnectionString(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid activity store connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity store client: %w", err)
	}

	if stream == "" {
		stream = DefaultStream
	}

	return &StoreRecorder{client: client, stream: stream}, nil
}

// Initialize verifies the store is reachable. A missing stream is
// fine; it appears on the first write.
func (r *StoreRecorder) Initialize(ctx context.Context) error {
	opts := esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}

	stream, err := r.client.ReadStream(ctx, r.stream, opts, 1)
	if err != nil {
		if esdbErr, ok := esdb.FromError(err); ok {
			if esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
				return nil
			}
		}
		return fmt.Errorf("failed to read activity stream: %w", err)
	}
	stream.Close()
	return nil
}

// Health reports whether the store is reachable.
func (r *StoreRecorder) Health(ctx context.Context) error {
	return r.Initialize(ctx)
}

// Close releases the store connection
func (r *StoreRecorder) Close() error {
	return r.client.Close()
}

// Record appends an event to the activity stream
func (r *StoreRecorder) Record(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	eventData := esdb.EventData{
		EventID:     uuid.New(),
		EventType:   EventType,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
	}

	if _, err := r.client.AppendToStream(ctx, r.stream, esdb.AppendToStreamOptions{}, eventData); err != nil {
		return fmt.Errorf("failed to append activity event: %w", err)
	}
	return nil
}

// List reads matching events from the stream, newest first
func (r *StoreRecorder) List(ctx context.Context, filter Filter) ([]*Event, error) {
	opts := esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}

	maxEvents := uint64(1000)
	if filter.Limit > 0 {
		// Read extra to account for filtering
		maxEvents = uint64(filter.Limit + 200)
	}

	stream, err := r.client.ReadStream(ctx, r.stream, opts, maxEvents)
	if err != nil {
		if esdbErr, ok := esdb.FromError(err); ok {
			if esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
				return []*Event{}, nil
			}
		}
		return nil, fmt.Errorf("failed to read activity stream: %w", err)
	}
	defer stream.Close()

	events := make([]*Event, 0)
	for {
		resolved, err := stream.Recv()
		if err != nil {
			break
		}

		if resolved.Event == nil || resolved.Event.EventType != EventType {
			continue
		}

		var event Event
		if err := json.Unmarshal(resolved.Event.Data, &event); err != nil {
			continue
		}

		if !filter.matches(&event) {
			continue
		}

		events = append(events, &event)
		if filter.Limit > 0 && len(events) >= filter.Limit {
			break
		}
	}

	return events, nil
}

var _ Recorder = (*StoreRecorder)(nil)
