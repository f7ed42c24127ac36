// Package scheduler re-tabulates dirty races on a cron schedule, so that
// standings catch up overnight even when nobody triggers tabulation by hand.
package scheduler

import (
	"context"

	"raceadmin/internal/config"
	"raceadmin/internal/constants"
	"raceadmin/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Scheduler struct {
	c      *cron.Cron
	spec   string
	logger zerolog.Logger
}

// New wires the sweep job. An empty cron spec disables the scheduler; Start
// and Stop stay safe to call either way.
func New(cfg *config.Config, standingsSvc *service.StandingsService, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		c:      cron.New(), // standard 5-field spec, server local time
		spec:   cfg.SweepCronSpec,
		logger: logger,
	}
	if s.spec == "" {
		return s, nil
	}

	_, err := s.c.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.SweepTimeout)
		defer cancel()

		logger.Info().Msg("sweep tick: re-tabulating dirty races")
		if err := standingsSvc.SweepDirtyRaces(ctx); err != nil {
			logger.Error().Err(err).Msg("sweep failed")
			return
		}
		logger.Info().Msg("sweep finished")
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	if s.spec == "" {
		s.logger.Info().Msg("tabulation sweep disabled (no SWEEP_CRON)")
		return
	}
	s.logger.Info().Str("cron", s.spec).Msg("starting tabulation sweep")
	s.c.Start()
}

func (s *Scheduler) Stop() {
	s.c.Stop()
}
