// Package scheduler drives the periodic pricing loops.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/aggregator"
	"github.com/voltmark/hwpricer/internal/events"
	"github.com/voltmark/hwpricer/internal/history"
	"github.com/voltmark/hwpricer/internal/rental"
)

// RentalInterval is the cadence of the rental refresh loop.
const RentalInterval = 5 * time.Minute

// cleanupSpec runs the retention sweep once a day, off-peak.
const cleanupSpec = "0 3 * * *"

// Options configures the scheduler's loops.
type Options struct {
	HardwareInterval time.Duration
	RetentionDays    int
	Bus              *events.Bus // optional, notified after each rental cycle
}

// Scheduler owns the cron runner and its jobs: the hardware pricing loop,
// the rental refresh loop (only when a history store is configured, since
// its purpose is feeding the rental time series) and the daily retention
// cleanup.
type Scheduler struct {
	cron       *cron.Cron
	aggregator *aggregator.Aggregator
	rental     *rental.Service
	store      history.Store // nil when history is disabled
	opts       Options
	log        zerolog.Logger
}

// New creates a scheduler. rentalSvc and store may be nil.
func New(agg *aggregator.Aggregator, rentalSvc *rental.Service, store history.Store, opts Options, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		aggregator: agg,
		rental:     rentalSvc,
		store:      store,
		opts:       opts,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
	cronLog := &cronLogger{log: s.log}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	return s
}

// Start runs both loops once synchronously, then enters periodic mode.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info().Dur("hardware_interval", s.opts.HardwareInterval).Msg("Running initial update")
	s.runHardware(ctx)
	if s.rentalLoopEnabled() {
		s.runRental(ctx)
	}

	spec := fmt.Sprintf("@every %s", s.opts.HardwareInterval)
	if _, err := s.cron.AddFunc(spec, func() { s.runHardware(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule hardware loop: %w", err)
	}

	if s.rentalLoopEnabled() {
		rentalSpec := fmt.Sprintf("@every %s", RentalInterval)
		if _, err := s.cron.AddFunc(rentalSpec, func() { s.runRental(context.Background()) }); err != nil {
			return fmt.Errorf("failed to schedule rental loop: %w", err)
		}
	}

	if s.store != nil && s.opts.RetentionDays > 0 {
		if _, err := s.cron.AddFunc(cleanupSpec, func() { s.runCleanup(context.Background()) }); err != nil {
			return fmt.Errorf("failed to schedule retention cleanup: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) rentalLoopEnabled() bool {
	return s.rental != nil && s.store != nil
}

func (s *Scheduler) runHardware(ctx context.Context) {
	start := time.Now()
	updates := s.aggregator.UpdateAllPrices(ctx)

	changed := 0
	for _, u := range updates {
		if u.Changed {
			changed++
		}
	}
	s.log.Debug().Int("updated", len(updates)).Int("changed", changed).
		Dur("took", time.Since(start)).Msg("Hardware round complete")
}

func (s *Scheduler) runRental(ctx context.Context) {
	snapshot, err := s.rental.Refresh(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Rental round failed")
		return
	}
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.Event{
			Type:      events.RentalRefreshed,
			Timestamp: snapshot.Timestamp,
		})
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.opts.RetentionDays).UnixMilli()
	removed, err := s.store.Cleanup(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("Retention cleanup failed")
		return
	}
	s.log.Info().Int64("removed", removed).Int("retention_days", s.opts.RetentionDays).
		Msg("Retention cleanup complete")
}

// cronLogger adapts zerolog to cron's logging interface.
type cronLogger struct {
	log zerolog.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
