package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bilgisen/kova/internal/ai"
	"github.com/bilgisen/kova/internal/models"
	"github.com/bilgisen/kova/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type analyzerFunc func(ctx context.Context, url string, ct models.ContentType) (*ai.Analysis, error)

func (f analyzerFunc) Analyze(ctx context.Context, url string, ct models.ContentType) (*ai.Analysis, error) {
	return f(ctx, url, ct)
}

func newRecord(t *testing.T, st store.Store, id string, updatedAt time.Time) *models.Content {
	t.Helper()
	c := &models.Content{
		ID:               id,
		DeviceID:         "device-1",
		URL:              "https://www.tiktok.com/@chef/video/1",
		ContentType:      models.ContentTypeTikTok,
		Title:            "TikTok Video",
		Description:      "Processing...",
		AITags:           []string{"tiktok"},
		Thumbnail:        "placeholder.png",
		Category:         "other",
		Insights:         []models.Insight{},
		ProcessingStatus: models.StatusPending,
		SavedAt:          updatedAt,
		UpdatedAt:        updatedAt,
	}
	require.NoError(t, st.Create(context.Background(), c))
	return c
}

func waitForStatus(t *testing.T, st store.Store, id string, status models.ProcessingStatus) *models.Content {
	t.Helper()
	var got *models.Content
	require.Eventually(t, func() bool {
		c, err := st.GetByID(context.Background(), id)
		if err != nil {
			return false
		}
		got = c
		return c.ProcessingStatus == status
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func newTestPipeline(st store.Store, analyzer Analyzer, workers, queue int) *Pipeline {
	return New(st, analyzer, Options{
		Workers:     workers,
		QueueSize:   queue,
		TaskTimeout: time.Second,
		Metrics:     NewMetrics(prometheus.NewRegistry()),
	})
}

func TestPipelineCompletesRecord(t *testing.T) {
	st := store.NewMemoryStore()
	c := newRecord(t, st, "c1", time.Now())

	analyzer := analyzerFunc(func(ctx context.Context, url string, ct models.ContentType) (*ai.Analysis, error) {
		assert.Equal(t, c.URL, url)
		assert.Equal(t, models.ContentTypeTikTok, ct)
		return &ai.Analysis{
			Title:          "Garlic Pasta",
			Description:    "Fast dinner",
			Tags:           []string{"pasta", "dinner"},
			Category:       "cooking",
			StructuredData: models.StructuredData{Type: models.CategoryCooking, Cooking: &models.Recipe{Dish: "Garlic Pasta"}},
			Insights:       []models.Insight{{Icon: "⚡", Title: "Quick & Easy", Text: "Ready in 10 minutes"}},
			DisplaySummary: "Garlic Pasta • 10 min",
		}, nil
	})

	p := newTestPipeline(st, analyzer, 2, 10)
	p.Start()
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(c))
	got := waitForStatus(t, st, "c1", models.StatusCompleted)

	assert.Equal(t, "Garlic Pasta", got.Title)
	assert.Equal(t, "Fast dinner", got.Description)
	assert.Equal(t, []string{"pasta", "dinner"}, got.AITags)
	assert.Equal(t, "placeholder.png", got.Thumbnail)
	assert.Equal(t, "cooking", got.Category)
	require.NotNil(t, got.StructuredData.Cooking)
	assert.Len(t, got.Insights, 1)
	assert.Equal(t, "Garlic Pasta • 10 min", got.DisplaySummary)
	require.NotNil(t, got.ProcessedAt)
	assert.Empty(t, got.ErrorMessage)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Outcomes.WithLabelValues(OutcomeCompleted)))
}

func TestPipelineFailsRecord(t *testing.T) {
	st := store.NewMemoryStore()
	c := newRecord(t, st, "c1", time.Now())

	analyzer := analyzerFunc(func(context.Context, string, models.ContentType) (*ai.Analysis, error) {
		return nil, errors.New("model unavailable")
	})

	p := newTestPipeline(st, analyzer, 1, 10)
	p.Start()
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(c))
	got := waitForStatus(t, st, "c1", models.StatusFailed)

	assert.Contains(t, got.ErrorMessage, "model unavailable")
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, "TikTok Video", got.Title)
	assert.Equal(t, []string{"tiktok"}, got.AITags)
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	p := newTestPipeline(store.NewMemoryStore(), nil, 1, 1)

	require.NoError(t, p.Enqueue(Task{ID: "a"}))

	done := make(chan error, 1)
	go func() { done <- p.Enqueue(Task{ID: "b"}) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	stats := p.Stats()
	assert.Equal(t, 1, stats.QueueDepth)
	assert.Equal(t, 1, stats.QueueCapacity)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Rejected.WithLabelValues("full")))
}

func TestEnqueueAfterShutdown(t *testing.T) {
	p := newTestPipeline(store.NewMemoryStore(), nil, 1, 1)
	p.Start()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.ErrorIs(t, p.Enqueue(Task{ID: "a"}), ErrStopped)
	assert.True(t, p.Stats().Stopped)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestReprocessWinsOverInFlightAttempt(t *testing.T) {
	st := store.NewMemoryStore()
	c := newRecord(t, st, "c1", time.Now())

	release := make(chan struct{})
	var calls atomic.Int32
	analyzer := analyzerFunc(func(ctx context.Context, _ string, _ models.ContentType) (*ai.Analysis, error) {
		if calls.Add(1) == 1 {
			<-release
			return &ai.Analysis{Title: "old attempt", Tags: []string{"old"}}, nil
		}
		return &ai.Analysis{Title: "new attempt", Tags: []string{"new"}}, nil
	})

	p := newTestPipeline(st, analyzer, 1, 10)
	p.Start()
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(c))
	waitForStatus(t, st, "c1", models.StatusProcessing)

	updated, err := p.Reprocess(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Generation)
	assert.Equal(t, models.StatusPending, updated.ProcessingStatus)

	close(release)

	got := waitForStatus(t, st, "c1", models.StatusCompleted)
	assert.Equal(t, "new attempt", got.Title)
	assert.Equal(t, int64(1), got.Generation)
	assert.Equal(t, int32(2), calls.Load())
}

func TestReprocessResetsTerminalRecord(t *testing.T) {
	st := store.NewMemoryStore()
	newRecord(t, st, "c1", time.Now())

	_, err := st.Update(context.Background(), "c1", func(c *models.Content) error {
		now := time.Now()
		c.ProcessingStatus = models.StatusFailed
		c.ErrorMessage = "boom"
		c.ProcessedAt = &now
		return nil
	})
	require.NoError(t, err)

	p := newTestPipeline(st, nil, 1, 10)
	updated, err := p.Reprocess(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, updated.ProcessingStatus)
	assert.Empty(t, updated.ErrorMessage)
	assert.Nil(t, updated.ProcessedAt)
	assert.Equal(t, 1, p.Stats().QueueDepth)

	_, err = p.Reprocess(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStaleTaskIsSkipped(t *testing.T) {
	st := store.NewMemoryStore()
	c := newRecord(t, st, "c1", time.Now())

	var calls atomic.Int32
	analyzer := analyzerFunc(func(context.Context, string, models.ContentType) (*ai.Analysis, error) {
		calls.Add(1)
		return &ai.Analysis{Title: "done"}, nil
	})

	p := newTestPipeline(st, analyzer, 1, 10)
	require.NoError(t, p.Enqueue(Task{ID: c.ID, Generation: 7}))
	require.NoError(t, p.Enqueue(Task{ID: "missing"}))
	p.Start()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(p.metrics.Outcomes.WithLabelValues(OutcomeStale)) == 2
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Shutdown(context.Background()))

	got, err := st.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.ProcessingStatus)
	assert.Equal(t, int32(0), calls.Load())
}

func TestShutdownInterruptsInFlightWork(t *testing.T) {
	st := store.NewMemoryStore()
	c := newRecord(t, st, "c1", time.Now())

	analyzer := analyzerFunc(func(ctx context.Context, _ string, _ models.ContentType) (*ai.Analysis, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	p := newTestPipeline(st, analyzer, 1, 10)
	p.Start()
	require.NoError(t, p.Submit(c))
	waitForStatus(t, st, "c1", models.StatusProcessing)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	got, err := st.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.ProcessingStatus)
	assert.Empty(t, got.ErrorMessage)
}

func TestTaskTimeoutMarksFailed(t *testing.T) {
	st := store.NewMemoryStore()
	c := newRecord(t, st, "c1", time.Now())

	analyzer := analyzerFunc(func(ctx context.Context, _ string, _ models.ContentType) (*ai.Analysis, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	p := New(st, analyzer, Options{Workers: 1, QueueSize: 1, TaskTimeout: 20 * time.Millisecond, Metrics: NewMetrics(prometheus.NewRegistry())})
	p.Start()
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(c))
	got := waitForStatus(t, st, "c1", models.StatusFailed)
	assert.Contains(t, got.ErrorMessage, "deadline exceeded")
}
