package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
)

// Sweeper periodically evicts completed/failed retention entries across all
// queues on a cron schedule.
type Sweeper struct {
	queues []interfaces.JobQueue
	cron   *cron.Cron
	logger arbor.ILogger
}

// NewSweeper creates a retention sweeper over the given queues.
func NewSweeper(queues []interfaces.JobQueue, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		queues: queues,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start schedules sweeps with the given cron expression.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = "*/5 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()

	s.logger.Info().
		Str("schedule", schedule).
		Int("queues", len(s.queues)).
		Msg("Retention sweeper started")

	return nil
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, q := range s.queues {
		if err := q.Sweep(ctx); err != nil {
			s.logger.Warn().
				Err(err).
				Str("queue", string(q.Name())).
				Msg("Retention sweep failed")
		}
	}
}
