package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bilgisen/kova/internal/ai"
	"github.com/bilgisen/kova/internal/logger"
	"github.com/bilgisen/kova/internal/models"
	"github.com/bilgisen/kova/internal/store"
	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull is returned by Enqueue when every queue slot is taken
	ErrQueueFull = errors.New("enrichment queue is full")
	// ErrStopped is returned by Enqueue after Shutdown
	ErrStopped = errors.New("enrichment pipeline stopped")

	// errStale aborts a store write made on behalf of an outdated generation
	errStale = errors.New("stale generation")
)

// Outcomes recorded in metrics and logs
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
	OutcomeAborted   = "aborted"
)

// Analyzer enriches a single URL
type Analyzer interface {
	Analyze(ctx context.Context, url string, contentType models.ContentType) (*ai.Analysis, error)
}

// Task asks for one enrichment attempt of a record at a given generation
type Task struct {
	ID         string
	Generation int64
}

type Options struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Metrics     *Metrics
}

// Stats is a point-in-time view of the pipeline
type Stats struct {
	Workers       int  `json:"workers"`
	QueueDepth    int  `json:"queueDepth"`
	QueueCapacity int  `json:"queueCapacity"`
	InFlight      int  `json:"inFlight"`
	Stopped       bool `json:"stopped"`
}

// Pipeline runs enrichment tasks on a fixed pool of workers fed by a
// bounded queue. Records move pending -> processing -> completed|failed.
// Claims and terminal writes only apply while the record still carries the
// task's generation, so a reprocess always wins over an older attempt.
type Pipeline struct {
	store    store.Store
	analyzer Analyzer
	metrics  *Metrics

	queue       chan Task
	workers     int
	taskTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	inFlight atomic.Int64
	now      func() time.Time
}

func New(st store.Store, analyzer Analyzer, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 3 * time.Minute
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		store:       st,
		analyzer:    analyzer,
		metrics:     opts.Metrics,
		queue:       make(chan Task, opts.QueueSize),
		workers:     opts.Workers,
		taskTimeout: opts.TaskTimeout,
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
	}
}

// Start launches the worker pool. Calling it more than once has no effect.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	p.metrics.Workers.Set(float64(p.workers))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.With("pipeline").Info().
		Int("workers", p.workers).
		Int("queue_size", cap(p.queue)).
		Dur("task_timeout", p.taskTimeout).
		Msg("Enrichment pipeline started")
}

// Enqueue admits a task without blocking
func (p *Pipeline) Enqueue(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.metrics.Rejected.WithLabelValues("stopped").Inc()
		return ErrStopped
	}

	select {
	case p.queue <- task:
		p.metrics.Enqueued.Inc()
		p.metrics.QueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		p.metrics.Rejected.WithLabelValues("full").Inc()
		return ErrQueueFull
	}
}

// Submit enqueues a freshly stored record
func (p *Pipeline) Submit(c *models.Content) error {
	return p.Enqueue(Task{ID: c.ID, Generation: c.Generation})
}

// Reprocess forces a record back to pending under a new generation and
// queues it. A full queue is not an error: the record stays pending and the
// sweeper picks it up.
func (p *Pipeline) Reprocess(ctx context.Context, id string) (*models.Content, error) {
	updated, err := p.store.Update(ctx, id, func(c *models.Content) error {
		now := p.now()
		c.Generation++
		c.ProcessingStatus = models.StatusPending
		c.ErrorMessage = ""
		c.ProcessedAt = nil
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.With("pipeline")
	if err := p.Submit(updated); err != nil {
		if errors.Is(err, ErrStopped) {
			return nil, err
		}
		log.Warn().Err(err).Str("id", id).Msg("Reprocess left pending for the sweeper")
	}

	log.Info().Str("id", id).Int64("generation", updated.Generation).Msg("Content queued for reprocessing")
	return updated, nil
}

// Stats reports the current load
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()

	return Stats{
		Workers:       p.workers,
		QueueDepth:    len(p.queue),
		QueueCapacity: cap(p.queue),
		InFlight:      int(p.inFlight.Load()),
		Stopped:       stopped,
	}
}

// Shutdown stops intake, cancels running tasks and waits for the workers
// until ctx expires. Tasks still queued are dropped; their records stay
// pending for the next sweep.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.With("pipeline").Info().Msg("Enrichment pipeline stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown: %w", ctx.Err())
	}
}

func (p *Pipeline) worker(n int) {
	defer p.wg.Done()

	for task := range p.queue {
		p.metrics.QueueDepth.Set(float64(len(p.queue)))
		if p.ctx.Err() != nil {
			continue
		}
		p.process(task)
	}

	logger.With("pipeline").Debug().Int("worker", n).Msg("Worker exited")
}

func (p *Pipeline) process(task Task) {
	log := logger.With("pipeline").With().
		Str("id", task.ID).
		Int64("generation", task.Generation).
		Logger()

	p.inFlight.Add(1)
	p.metrics.InFlight.Inc()
	start := time.Now()
	defer func() {
		p.inFlight.Add(-1)
		p.metrics.InFlight.Dec()
		p.metrics.TaskDuration.Observe(time.Since(start).Seconds())
	}()

	claimed, err := p.claim(task)
	if err != nil {
		if errors.Is(err, errStale) || errors.Is(err, store.ErrNotFound) {
			log.Debug().Err(err).Msg("Skipping task")
			p.metrics.Outcomes.WithLabelValues(OutcomeStale).Inc()
			return
		}
		log.Error().Err(err).Msg("Failed to claim content")
		p.metrics.Outcomes.WithLabelValues(OutcomeAborted).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	defer cancel()

	analysis, err := p.analyzer.Analyze(ctx, claimed.URL, claimed.ContentType)

	if p.ctx.Err() != nil {
		// Shutting down: leave the record in processing for the sweeper.
		log.Warn().Msg("Enrichment interrupted by shutdown")
		p.metrics.Outcomes.WithLabelValues(OutcomeAborted).Inc()
		return
	}

	if err != nil {
		p.fail(task, fmt.Sprintf("analysis failed: %v", err), log)
		return
	}

	_, err = p.store.Update(context.Background(), task.ID, p.guard(task, func(c *models.Content) error {
		applyAnalysis(c, analysis, p.now())
		return nil
	}))
	switch {
	case err == nil:
		log.Info().Str("source", analysis.Source).Str("category", analysis.Category).Msg("Content enriched")
		p.metrics.Outcomes.WithLabelValues(OutcomeCompleted).Inc()
	case errors.Is(err, errStale) || errors.Is(err, store.ErrNotFound):
		log.Info().Err(err).Msg("Dropping enrichment result")
		p.metrics.Outcomes.WithLabelValues(OutcomeStale).Inc()
	default:
		p.fail(task, fmt.Sprintf("save enrichment: %v", err), log)
	}
}

// claim moves the record from pending to processing before any external call
func (p *Pipeline) claim(task Task) (*models.Content, error) {
	return p.store.Update(p.ctx, task.ID, func(c *models.Content) error {
		if c.ProcessingStatus != models.StatusPending || c.Generation != task.Generation {
			return errStale
		}
		c.ProcessingStatus = models.StatusProcessing
		c.UpdatedAt = p.now()
		return nil
	})
}

// guard wraps a terminal mutation so it only applies to the claimed generation
func (p *Pipeline) guard(task Task, fn store.Mutator) store.Mutator {
	return func(c *models.Content) error {
		if c.ProcessingStatus != models.StatusProcessing || c.Generation != task.Generation {
			return errStale
		}
		return fn(c)
	}
}

func (p *Pipeline) fail(task Task, message string, log zerolog.Logger) {
	_, err := p.store.Update(context.Background(), task.ID, p.guard(task, func(c *models.Content) error {
		now := p.now()
		c.ProcessingStatus = models.StatusFailed
		c.ErrorMessage = message
		c.ProcessedAt = &now
		c.UpdatedAt = now
		return nil
	}))
	switch {
	case err == nil:
		log.Warn().Str("error_message", message).Msg("Content enrichment failed")
		p.metrics.Outcomes.WithLabelValues(OutcomeFailed).Inc()
	case errors.Is(err, errStale) || errors.Is(err, store.ErrNotFound):
		log.Info().Err(err).Msg("Dropping failure for outdated generation")
		p.metrics.Outcomes.WithLabelValues(OutcomeStale).Inc()
	default:
		log.Error().Err(err).Msg("Failed to record enrichment failure")
		p.metrics.Outcomes.WithLabelValues(OutcomeAborted).Inc()
	}
}

// applyAnalysis copies enrichment fields, keeping current values for
// anything the analysis left empty.
func applyAnalysis(c *models.Content, a *ai.Analysis, now time.Time) {
	c.Title = firstNonEmpty(a.Title, c.Title)
	c.Description = firstNonEmpty(a.Description, a.KeyInfo, c.Description)
	if len(a.Tags) > 0 {
		c.AITags = append([]string(nil), a.Tags...)
	}
	c.Thumbnail = firstNonEmpty(a.Thumbnail, c.Thumbnail)
	c.Category = firstNonEmpty(a.Category, c.Category)
	if !a.StructuredData.Empty() {
		c.StructuredData = a.StructuredData.Clone()
	}
	if len(a.Insights) > 0 {
		c.Insights = append([]models.Insight(nil), a.Insights...)
	}
	c.DisplaySummary = firstNonEmpty(a.DisplaySummary, c.DisplaySummary)

	c.ProcessingStatus = models.StatusCompleted
	c.ProcessedAt = &now
	c.ErrorMessage = ""
	c.UpdatedAt = now
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
