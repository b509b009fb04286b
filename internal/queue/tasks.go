package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Tasks is the producer-side handle on the task stream and cancel flags.
type Tasks struct {
	client *redis.Client
	stream string
}

func NewTasks(client *redis.Client, stream string) *Tasks {
	return &Tasks{client: client, stream: stream}
}

func (t *Tasks) Enqueue(ctx context.Context, payload TaskPayload) error {
	return Enqueue(ctx, t.client, t.stream, payload)
}

func (t *Tasks) RequestCancel(ctx context.Context, taskID string) error {
	return RequestCancel(ctx, t.client, taskID)
}

func (t *Tasks) ClearCancel(ctx context.Context, taskID string) error {
	return ClearCancel(ctx, t.client, taskID)
}

func (t *Tasks) CancelRequested(ctx context.Context, taskID string) (bool, error) {
	return CancelRequested(ctx, t.client, taskID)
}
