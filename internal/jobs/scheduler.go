// Package jobs runs the periodic maintenance work of the bridge.
package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mightymop/avatarbridge/internal/cache"
)

// Scheduler sweeps expired entries out of the in-process snapshot cache.
// When the cache backend is redis the TTL is enforced server-side and no
// scheduler is needed; memory is nil then and Start is a no-op.
type Scheduler struct {
	cron   *cron.Cron
	memory *cache.Memory
	log    zerolog.Logger
}

func NewScheduler(memory *cache.Memory, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		memory: memory,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.memory == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 * * * * *", s.sweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits briefly for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) sweep() {
	if removed := s.memory.SweepExpired(); removed > 0 {
		s.log.Debug().
			Int("removed", removed).
			Int("remaining", s.memory.Len()).
			Msg("snapshot cache sweep")
	}
}
