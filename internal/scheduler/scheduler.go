// Package scheduler runs the periodic refresh sweep that keeps pod
// analyses from going stale between change events.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/services"
)

// Scheduler owns the cron runner. A single refresh job re-analyzes the
// portfolio on the configured cadence; per-event recomputation stays
// with the HTTP surface.
type Scheduler struct {
	cron    *cron.Cron
	service *services.EngineService
	spec    string
	log     zerolog.Logger
}

// New creates a scheduler. spec is a cron expression or descriptor
// (e.g. "@hourly").
func New(service *services.EngineService, spec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		spec:    spec,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the refresh job and starts the cron runner
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.refresh)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("Refresh scheduler started")
	return nil
}

// Stop halts the cron runner and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Refresh scheduler stopped")
}

// refresh recomputes stale pods only; fresh cached analyses are left alone
func (s *Scheduler) refresh() {
	started := time.Now()
	result, err := s.service.RefreshStale(started)
	if err != nil {
		s.log.Error().Err(err).Msg("Scheduled refresh failed")
		return
	}
	s.log.Info().
		Int("analyses", len(result.Analyses)).
		Int("suggestions", len(result.Suggestions)).
		Dur("elapsed", time.Since(started)).
		Msg("Scheduled refresh completed")
}
