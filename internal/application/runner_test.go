package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

func floatPtr(v float64) *float64 { return &v }

// stubReviewSource serves a fixed review slice, or a fixed error.
type stubReviewSource struct {
	reviews []domain.ExamReview
	err     error
}

func (s *stubReviewSource) Reviews(ctx context.Context) ([]domain.ExamReview, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reviews, nil
}

// recordingStore captures saved runs for assertions.
type recordingStore struct {
	mu      sync.Mutex
	saved   []*domain.Run
	saveErr error
}

func (s *recordingStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, run)
	return nil
}

func (s *recordingStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return nil, ports.ErrRunNotFound
}

func (s *recordingStore) LatestRun(ctx context.Context) (*domain.Run, error) {
	return nil, ports.ErrRunNotFound
}

func (s *recordingStore) ListRuns(ctx context.Context, limit int) ([]ports.RunInfo, error) {
	return nil, nil
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) savedRuns() []*domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Run(nil), s.saved...)
}

// recordingCollector captures metric calls keyed by metric name.
type recordingCollector struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
	}
}

func (c *recordingCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
}

func (c *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[metric] += value
}

func (c *recordingCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[metric] = value
}

func (c *recordingCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
}

func (c *recordingCollector) gauge(metric string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.gauges[metric]
	return v, ok
}

func (c *recordingCollector) counter(metric string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[metric]
}

// classificationReviews builds a small corpus with two clean providers and
// two error-prone providers, plus one duplicate review whose body part
// conflicts with the first-seen value.
func classificationReviews() []domain.ExamReview {
	review := func(exam, provider, reviewer string, fp, fn, errs int, radPeer, technical, significance float64) domain.ExamReview {
		return domain.ExamReview{
			ExamID:     exam,
			ProviderID: provider,
			ReviewerID: reviewer,
			Attributes: domain.ExamAttributes{
				PatientSex: "F",
				PatientAge: 52,
				BodyPart:   "chest",
			},
			TruePositive:              4,
			TrueNegative:              6,
			FalsePositive:             fp,
			FalseNegative:             fn,
			TotalDiagnosticErrors:     errs,
			RadPeerScore:              floatPtr(radPeer),
			TechnicalPerformanceScore: floatPtr(technical),
			SignificanceOfErrors:      floatPtr(significance),
		}
	}

	reviews := []domain.ExamReview{
		review("E01", "PGOOD1", "R1", 0, 0, 0, 1.0, 5.0, 1.0),
		review("E02", "PGOOD1", "R2", 0, 0, 0, 1.0, 5.0, 1.0),
		review("E03", "PGOOD1", "R1", 0, 0, 0, 1.0, 4.5, 1.0),
		review("E04", "PGOOD2", "R2", 0, 0, 0, 1.0, 5.0, 1.0),
		review("E05", "PGOOD2", "R3", 0, 0, 0, 1.5, 5.0, 1.0),
		review("E06", "PGOOD2", "R1", 0, 0, 0, 1.0, 5.0, 1.0),
		review("E07", "PBAD1", "R2", 4, 2, 6, 3.0, 2.0, 2.0),
		review("E08", "PBAD1", "R3", 4, 2, 6, 3.0, 2.0, 2.0),
		review("E09", "PBAD1", "R1", 4, 3, 7, 3.5, 2.5, 2.0),
		review("E10", "PBAD2", "R3", 4, 2, 6, 3.0, 2.0, 2.0),
		review("E11", "PBAD2", "R1", 4, 3, 7, 3.5, 2.0, 2.0),
		review("E12", "PBAD2", "R2", 4, 2, 6, 3.0, 1.5, 2.0),
	}

	// A second opinion on E01 that disagrees on the body part. The counts
	// agree, so only an attribute conflict should surface.
	duplicate := review("E01", "PGOOD1", "R3", 0, 0, 0, 1.0, 5.0, 1.0)
	duplicate.Attributes.BodyPart = "abdomen"
	return append(reviews, duplicate)
}

// TestRunner_Run drives the default pipeline over the fixture corpus and
// checks the assembled run end to end.
func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	pipeline, err := DefaultPipelineWithSeed(7)
	require.NoError(t, err)

	source := &stubReviewSource{reviews: classificationReviews()}
	store := &recordingStore{}
	metrics := newRecordingCollector()

	runner, err := NewRunner(pipeline, source, store, metrics, nil)
	require.NoError(t, err)

	run, err := runner.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, DefaultPipelineName, run.PipelineID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.Equal(t, int64(7), run.Seed)
	assert.Equal(t, domain.FeatureNames(), run.FeatureNames)
	require.Len(t, run.Summaries, 4)

	labels := make(map[string]domain.ClusterLabel, len(run.Summaries))
	for _, summary := range run.Summaries {
		require.NotNil(t, summary.Scaled, "provider %s should be scaled", summary.ProviderID)
		require.NotNil(t, summary.Cluster, "provider %s should be clustered", summary.ProviderID)
		assert.Equal(t, 3, summary.ExamCount, "provider %s", summary.ProviderID)
		labels[summary.ProviderID] = summary.Cluster.Label
	}
	assert.Equal(t, domain.LabelGood, labels["PGOOD1"])
	assert.Equal(t, domain.LabelGood, labels["PGOOD2"])
	assert.Equal(t, domain.LabelBad, labels["PBAD1"])
	assert.Equal(t, domain.LabelBad, labels["PBAD2"])

	require.NotNil(t, run.Diagnostics)
	assert.Equal(t, int64(7), run.Diagnostics.Seed)
	assert.Greater(t, run.Diagnostics.VarianceRatio, 0.5,
		"two well-separated groups should explain most of the variance")
	assert.ElementsMatch(t, []int{2, 2}, run.Diagnostics.ClusterSizes)
	assert.Len(t, run.Parameters.Scales, len(domain.FeatureNames()))

	// The conflicting duplicate surfaces as a single attribute warning.
	require.Len(t, run.Warnings, 1)
	violation := run.Warnings[0]
	assert.Equal(t, domain.ViolationAttributeConflict, violation.EffectiveKind())
	assert.Equal(t, "body_part", violation.Field)
	assert.Equal(t, "chest", violation.FirstSeen)
	assert.Equal(t, "abdomen", violation.Conflict)

	saved := store.savedRuns()
	require.Len(t, saved, 1)
	assert.Same(t, run, saved[0])

	providersGauge, ok := metrics.gauge("providers_classified")
	require.True(t, ok)
	assert.Equal(t, 4.0, providersGauge)
	varianceGauge, ok := metrics.gauge("clustering_variance_ratio")
	require.True(t, ok)
	assert.Equal(t, run.Diagnostics.VarianceRatio, varianceGauge)
	assert.Positive(t, metrics.counter("stage_executions_total"))
	assert.Equal(t, 1.0, metrics.counter("integrity_warnings_total"))
}

// TestRunner_Run_Reproducible verifies that two runs with the same seed
// produce identical clustering results.
func TestRunner_Run_Reproducible(t *testing.T) {
	ctx := context.Background()

	execute := func() *domain.Run {
		pipeline, err := DefaultPipelineWithSeed(13)
		require.NoError(t, err)
		runner, err := NewRunner(pipeline, &stubReviewSource{reviews: classificationReviews()}, nil, nil, nil)
		require.NoError(t, err)
		run, err := runner.Run(ctx)
		require.NoError(t, err)
		return run
	}

	first := execute()
	second := execute()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Diagnostics.WCSS, second.Diagnostics.WCSS)
	assert.Equal(t, first.Diagnostics.Centroids, second.Diagnostics.Centroids)
	assert.Equal(t, first.Summaries, second.Summaries)
}

// TestRunner_Run_Errors covers the failure paths around pipeline execution.
func TestRunner_Run_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("source failure aborts the run", func(t *testing.T) {
		pipeline, err := DefaultPipeline()
		require.NoError(t, err)
		runner, err := NewRunner(pipeline, &stubReviewSource{err: errors.New("corrupt snapshot")}, nil, nil, nil)
		require.NoError(t, err)

		_, err = runner.Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load reviews")
	})

	t.Run("stage failure propagates with stage identity", func(t *testing.T) {
		pipeline := NewPipeline("failing")
		require.NoError(t, pipeline.Add(&mockExecutable{
			id: "broken",
			executeFunc: func(ctx context.Context, state domain.State) (domain.State, error) {
				return state, errors.New("boom")
			},
		}))
		runner, err := NewRunner(pipeline, &stubReviewSource{reviews: classificationReviews()}, nil, nil, nil)
		require.NoError(t, err)

		_, err = runner.Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "execution failed at broken")
	})

	t.Run("pipeline without summaries is rejected", func(t *testing.T) {
		pipeline := NewPipeline("passthrough")
		require.NoError(t, pipeline.Add(&mockExecutable{id: "noop"}))
		runner, err := NewRunner(pipeline, &stubReviewSource{reviews: classificationReviews()}, nil, nil, nil)
		require.NoError(t, err)

		_, err = runner.Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline produced no provider summaries")
	})

	t.Run("persistence failure surfaces the run ID", func(t *testing.T) {
		pipeline, err := DefaultPipeline()
		require.NoError(t, err)
		store := &recordingStore{saveErr: errors.New("disk full")}
		runner, err := NewRunner(pipeline, &stubReviewSource{reviews: classificationReviews()}, store, nil, nil)
		require.NoError(t, err)

		_, err = runner.Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to persist run")
	})
}

// TestNewRunner validates constructor requirements.
func TestNewRunner(t *testing.T) {
	pipeline, err := DefaultPipeline()
	require.NoError(t, err)
	source := &stubReviewSource{}

	t.Run("requires a pipeline", func(t *testing.T) {
		_, err := NewRunner(nil, source, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline cannot be nil")
	})

	t.Run("requires a review source", func(t *testing.T) {
		_, err := NewRunner(pipeline, nil, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "review source cannot be nil")
	})

	t.Run("accepts optional collaborators", func(t *testing.T) {
		runner, err := NewRunner(pipeline, source, nil, nil, nil)
		require.NoError(t, err)
		assert.NotNil(t, runner)
	})
}

// TestDefaultPipeline verifies the built-in stage sequence.
func TestDefaultPipeline(t *testing.T) {
	pipeline, err := DefaultPipeline()
	require.NoError(t, err)

	assert.Equal(t, DefaultPipelineName, pipeline.ID())

	var ids []string
	for _, exec := range pipeline.Executables() {
		ids = append(ids, exec.ID())
	}
	assert.Equal(t, []string{
		StageTypeMetricDeriver,
		StageTypeExamCollapser,
		StageTypeProviderAggregator,
		StageTypeNormalizer,
		StageTypeClusterEngine,
	}, ids)
}
