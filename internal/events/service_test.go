package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
)

func TestPublishSyncDeliversToAllSubscribers(t *testing.T) {
	s := NewService(arbor.NewLogger())

	var count atomic.Int64
	handler := func(ctx context.Context, event interfaces.Event) error {
		count.Add(1)
		return nil
	}

	require.NoError(t, s.Subscribe(interfaces.EventJobCompleted, handler))
	require.NoError(t, s.Subscribe(interfaces.EventJobCompleted, handler))

	err := s.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobCompleted,
		Payload: map[string]interface{}{"job_id": "job_a"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count.Load())
}

func TestPublishSyncSurfacesHandlerErrors(t *testing.T) {
	s := NewService(arbor.NewLogger())

	require.NoError(t, s.Subscribe(interfaces.EventJobFailed, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("handler broke")
	}))

	err := s.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventJobFailed})
	assert.Error(t, err)
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	s := NewService(arbor.NewLogger())

	assert.NoError(t, s.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobSubmitted}))
	assert.NoError(t, s.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventJobSubmitted}))
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	s := NewService(arbor.NewLogger())
	assert.Error(t, s.Subscribe(interfaces.EventJobSubmitted, nil))
}
