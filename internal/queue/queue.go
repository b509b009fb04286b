// Package queue carries generation tasks between the API and the renderer
// worker over a redis stream, plus the cancel flags checked mid-render.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TaskGenerate = "generate"
	TaskCleanup  = "cleanup"
	TaskRequeue  = "requeue"
)

// cancelTTL bounds how long a cancel flag lingers for tasks that already
// finished.
const cancelTTL = time.Hour

type TaskPayload struct {
	Type     string `json:"type"`
	TaskID   string `json:"taskId"`
	ImageID  string `json:"imageId"`
	EffectID string `json:"effectId"`
	UserID   string `json:"userId"`
}

func Enqueue(ctx context.Context, client *redis.Client, stream string, payload TaskPayload) error {
	_, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"type":     payload.Type,
			"taskId":   payload.TaskID,
			"imageId":  payload.ImageID,
			"effectId": payload.EffectID,
			"userId":   payload.UserID,
		},
	}).Result()
	return err
}

func DecodePayload(values map[string]interface{}, out *TaskPayload) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func cancelKey(taskID string) string {
	return "generation:cancel:" + taskID
}

// RequestCancel raises the cancel flag for a task; the worker checks it
// between render phases.
func RequestCancel(ctx context.Context, client *redis.Client, taskID string) error {
	return client.Set(ctx, cancelKey(taskID), 1, cancelTTL).Err()
}

// ClearCancel drops the flag, used when a failed task is retried.
func ClearCancel(ctx context.Context, client *redis.Client, taskID string) error {
	return client.Del(ctx, cancelKey(taskID)).Err()
}

func CancelRequested(ctx context.Context, client *redis.Client, taskID string) (bool, error) {
	n, err := client.Exists(ctx, cancelKey(taskID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
