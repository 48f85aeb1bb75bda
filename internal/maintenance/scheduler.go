// Package maintenance runs periodic housekeeping against the database.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"glucowizard/internal/infra"
	"glucowizard/internal/sqlinline"
)

// StaleReportMessage is stored on reports abandoned in the processing state.
const StaleReportMessage = "processing interrupted"

// Result counts the rows touched by one maintenance pass.
type Result struct {
	ExpiredFlows int64
	StaleReports int64
}

// Scheduler purges expired OAuth flows and fails reports stuck in processing.
type Scheduler struct {
	sql        infra.SQLExecutor
	logger     zerolog.Logger
	schedule   string
	staleAfter time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(sql infra.SQLExecutor, schedule string, staleAfter time.Duration, logger zerolog.Logger) *Scheduler {
	if schedule == "" {
		schedule = "@every 5m"
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Scheduler{
		sql:        sql,
		logger:     logger,
		schedule:   schedule,
		staleAfter: staleAfter,
	}
}

// Start registers the job and starts the cron loop. Calling Start twice is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	c := cron.New()
	ctx, cancel := context.WithCancel(context.Background())
	id, err := c.AddFunc(s.schedule, func() { s.scheduledRun(ctx) })
	if err != nil {
		cancel()
		return fmt.Errorf("maintenance schedule %q: %w", s.schedule, err)
	}
	s.cron, s.entryID, s.cancel = c, id, cancel
	c.Start()
	s.running = true

	s.logger.Info().Str("schedule", s.schedule).Dur("stale_after", s.staleAfter).Msg("maintenance scheduler started")
	return nil
}

// Stop cancels a running pass and waits for it to return. The wait happens
// without holding the lock so an in-flight pass can finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c, cancel := s.cron, s.cancel
	s.cron, s.entryID, s.cancel = nil, 0, nil
	s.running = false
	s.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	s.logger.Info().Msg("maintenance scheduler stopped")
}

// Running reports whether the cron loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pass, or the zero time when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) scheduledRun(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("maintenance pass failed")
	}
}

// RunOnce performs both jobs synchronously. The second job still runs when the first fails.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	var (
		res      Result
		firstErr error
	)
	tag, err := s.sql.Exec(ctx, sqlinline.QPurgeExpiredOAuthFlows)
	if err != nil {
		firstErr = fmt.Errorf("purge oauth flows: %w", err)
	} else {
		res.ExpiredFlows = tag.RowsAffected()
	}
	tag, err = s.sql.Exec(ctx, sqlinline.QFailStaleReports, int(s.staleAfter/time.Second), StaleReportMessage)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("fail stale reports: %w", err)
		}
	} else {
		res.StaleReports = tag.RowsAffected()
	}
	if res.ExpiredFlows > 0 || res.StaleReports > 0 {
		s.logger.Info().
			Int64("expired_flows", res.ExpiredFlows).
			Int64("stale_reports", res.StaleReports).
			Msg("maintenance pass")
	}
	return res, firstErr
}
