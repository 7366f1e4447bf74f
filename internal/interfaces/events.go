package interfaces

import "context"

// EventType represents job lifecycle event types published by the pipeline.
type EventType string

const (
	EventJobSubmitted EventType = "job_submitted"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
)

// Event is a published job lifecycle event.
type Event struct {
	Type    EventType
	Payload map[string]interface{}
}

// EventHandler is a function that handles events.
type EventHandler func(ctx context.Context, event Event) error

// EventService is a process-local pub/sub bus for job lifecycle events.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish sends an event to all subscribers asynchronously.
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes and waits for all handlers to complete.
	PublishSync(ctx context.Context, event Event) error
}
