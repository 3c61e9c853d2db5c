package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bilgisen/kova/internal/logger"
	"github.com/bilgisen/kova/internal/models"
	"github.com/bilgisen/kova/internal/store"
	"github.com/robfig/cron/v3"
)

const sweepBatchSize = 200

type SweeperOptions struct {
	Schedule     string
	PendingAfter time.Duration
	StaleAfter   time.Duration
}

// SweepResult counts what one sweep re-admitted
type SweepResult struct {
	Requeued int `json:"requeued"`
	Reset    int `json:"reset"`
}

// Sweeper re-admits records the pipeline lost track of: pending records
// whose task was refused or dropped, and processing records whose worker
// died with the process.
type Sweeper struct {
	pipeline     *Pipeline
	store        store.Store
	cron         *cron.Cron
	pendingAfter time.Duration
	staleAfter   time.Duration

	mu  sync.Mutex
	now func() time.Time
}

func NewSweeper(p *Pipeline, st store.Store, opts SweeperOptions) (*Sweeper, error) {
	if opts.Schedule == "" {
		opts.Schedule = "@every 1m"
	}
	if opts.PendingAfter <= 0 {
		opts.PendingAfter = 2 * time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Minute
	}

	s := &Sweeper{
		pipeline:     p,
		store:        st,
		cron:         cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		pendingAfter: opts.PendingAfter,
		staleAfter:   opts.StaleAfter,
		now:          time.Now,
	}

	_, err := s.cron.AddFunc(opts.Schedule, func() {
		if _, err := s.RunNow(context.Background()); err != nil {
			logger.With("sweeper").Error().Err(err).Msg("Scheduled sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", opts.Schedule, err)
	}
	return s, nil
}

// Start runs one sweep in the background and then follows the schedule
func (s *Sweeper) Start() {
	go func() {
		if _, err := s.RunNow(context.Background()); err != nil {
			logger.With("sweeper").Error().Err(err).Msg("Startup sweep failed")
		}
	}()
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to expire
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunNow performs one sweep. Concurrent calls are serialized.
func (s *Sweeper) RunNow(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.With("sweeper")
	var result SweepResult
	now := s.now()

	pending, err := s.store.ListStale(ctx, models.StatusPending, now.Add(-s.pendingAfter), sweepBatchSize)
	if err != nil {
		return result, fmt.Errorf("list pending: %w", err)
	}
	for _, c := range pending {
		err := s.pipeline.Submit(c)
		if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrStopped) {
			log.Warn().Err(err).Int("requeued", result.Requeued).Msg("Sweep stopped early")
			return result, nil
		}
		result.Requeued++
		s.pipeline.metrics.SweepRequeued.WithLabelValues("pending").Inc()
	}

	stuck, err := s.store.ListStale(ctx, models.StatusProcessing, now.Add(-s.staleAfter), sweepBatchSize)
	if err != nil {
		return result, fmt.Errorf("list processing: %w", err)
	}
	for _, c := range stuck {
		reset, err := s.store.Update(ctx, c.ID, func(cur *models.Content) error {
			if cur.ProcessingStatus != models.StatusProcessing || cur.Generation != c.Generation {
				return errStale
			}
			cur.Generation++
			cur.ProcessingStatus = models.StatusPending
			cur.UpdatedAt = s.now()
			return nil
		})
		if errors.Is(err, errStale) || errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("id", c.ID).Msg("Failed to reset stuck content")
			continue
		}

		result.Reset++
		s.pipeline.metrics.SweepRequeued.WithLabelValues("stale").Inc()
		if err := s.pipeline.Submit(reset); err != nil {
			// still pending, so the next sweep retries it
			log.Warn().Err(err).Str("id", c.ID).Msg("Reset content not queued")
		}
	}

	if result.Requeued > 0 || result.Reset > 0 {
		log.Info().Int("requeued", result.Requeued).Int("reset", result.Reset).Msg("Sweep complete")
	}
	return result, nil
}
