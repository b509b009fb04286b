// Package notify fans out library-change events over redis pub/sub so every
// session viewing a library reloads when the worker or another session
// mutates it.
package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"prismfx/internal/models"
)

const channel = "library:updates"

// Event describes one library mutation. Consumers treat it as a hint to
// reload the full snapshot, not as a partial update.
type Event struct {
	UserID  string                  `json:"userId"`
	ImageID string                  `json:"imageId"`
	Status  models.GenerationStatus `json:"status"`
}

type Publisher struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewPublisher(client *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

// LibraryChanged publishes the event; delivery is best effort and failures
// only log.
func (p *Publisher) LibraryChanged(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal library event")
		return
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.log.Warn().Err(err).Str("image_id", event.ImageID).Msg("publish library event failed")
	}
}

type Subscriber struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewSubscriber(client *redis.Client, log zerolog.Logger) *Subscriber {
	return &Subscriber{client: client, log: log}
}

// Subscribe delivers events until ctx is cancelled. Malformed payloads are
// dropped with a log line.
func (s *Subscriber) Subscribe(ctx context.Context) <-chan Event {
	sub := s.client.Subscribe(ctx, channel)
	out := make(chan Event)

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.Warn().Err(err).Msg("drop malformed library event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
