package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/venator/internal/models"
)

// ErrNoMessage is returned by Receive when the queue is empty.
var ErrNoMessage = errors.New("no messages in queue")

// AckFunc acknowledges a delivered message. Calling it moves the message to
// the bounded completed set; not calling it before the lease expires returns
// the message to the queue as a new attempt.
type AckFunc func() error

// NackFunc reports a processing failure for a delivered message. The queue
// applies the retry policy: re-deliver after exponential backoff, or move to
// the bounded failed set once attempts are exhausted.
type NackFunc func(reason string) error

// Delivery is a message handed to a worker together with its settlement
// functions.
type Delivery struct {
	Message *models.JobMessage
	Ack     AckFunc
	Nack    NackFunc
}

// JobQueue is one named queue over the durable transport. Messages are
// released in priority order (ties broken by enqueue order) under a
// visibility-timeout lease, so a message is in-flight and invisible to other
// workers until acknowledged or its lease expires.
type JobQueue interface {
	// Name returns the queue name.
	Name() models.QueueName

	// Enqueue writes the message to the durable transport and returns its job
	// ID. It never blocks past the transport write; if the transport is
	// unavailable it fails loudly so the caller can fall back.
	Enqueue(ctx context.Context, msg models.JobMessage) (string, error)

	// Receive returns the next visible message, or ErrNoMessage.
	Receive(ctx context.Context) (*Delivery, error)

	// Extend pushes out the lease of an in-flight message.
	Extend(ctx context.Context, messageID string, d time.Duration) error

	// Stats returns queue depth counters for observability.
	Stats(ctx context.Context) (QueueStats, error)

	// Sweep evicts completed/failed entries beyond the retention caps.
	Sweep(ctx context.Context) error
}

// QueueStats are depth counters for a single queue.
type QueueStats struct {
	Queue     models.QueueName `json:"queue"`
	Ready     int              `json:"ready"`
	InFlight  int              `json:"in_flight"`
	Completed int              `json:"completed"`
	Failed    int              `json:"failed"`
}
