package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"prismfx/internal/queue"
)

// Scheduler enqueues periodic maintenance for the renderer worker: purging
// old cancelled records and requeueing pending tasks whose stream message
// was lost.
type Scheduler struct {
	cron   *cron.Cron
	client *redis.Client
	stream string
	log    zerolog.Logger
}

func NewScheduler(client *redis.Client, stream string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		client: client,
		stream: stream,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.client == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 3 * * *", s.enqueueCleanup); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 */5 * * * *", s.enqueueRequeue); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs, up to a short grace
// period.
func (s *Scheduler) Stop() {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueCleanup() {
	if err := s.enqueueTask(queue.TaskCleanup); err != nil {
		s.log.Error().Err(err).Msg("enqueue cleanup failed")
	}
}

func (s *Scheduler) enqueueRequeue() {
	if err := s.enqueueTask(queue.TaskRequeue); err != nil {
		s.log.Error().Err(err).Msg("enqueue requeue failed")
	}
}

func (s *Scheduler) enqueueTask(taskType string) error {
	return queue.Enqueue(context.Background(), s.client, s.stream, queue.TaskPayload{
		Type: taskType,
	})
}
