package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-radqc/infrastructure/middleware"
	"github.com/ahrav/go-radqc/infrastructure/stages"
	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
	"github.com/ahrav/go-radqc/pkg/logger"
)

// DefaultPipelineName identifies the built-in pipeline definition used
// when no YAML configuration is supplied.
const DefaultPipelineName = "provider-quality"

// Runner executes a classification pipeline end to end: it loads reviews
// from the source, runs the pipeline over them with observability
// wrapping, assembles the completed run, and persists it.
// Use Runner as the single entry point for CLI commands and embedding
// applications.
type Runner struct {
	// pipeline is the stage sequence to execute.
	pipeline *Pipeline
	// source supplies the raw exam reviews.
	source ports.ReviewSource
	// store persists completed runs. A nil store skips persistence.
	store ports.ResultStore
	// metrics receives operational metrics. A nil collector disables them.
	metrics ports.MetricsCollector
	// log receives run progress and integrity warnings.
	log logger.Logger
}

// NewRunner creates a runner for the given pipeline and review source.
// The store and metrics collector are optional and may be nil; a nil
// logger falls back to a no-op logger.
// NewRunner returns an error if the pipeline or source is missing.
func NewRunner(
	pipeline *Pipeline,
	source ports.ReviewSource,
	store ports.ResultStore,
	metrics ports.MetricsCollector,
	log logger.Logger,
) (*Runner, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("review source cannot be nil")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Runner{
		pipeline: pipeline,
		source:   source,
		store:    store,
		metrics:  metrics,
		log:      log,
	}, nil
}

// Run executes the pipeline over the source's reviews and returns the
// completed run. Each stage executes inside an observability wrapper
// that records spans and metrics and logs integrity violations, so the
// stages themselves stay pure.
// Run persists the result when a store is configured and returns an
// error if loading, execution, or persistence fails.
func (r *Runner) Run(ctx context.Context) (*domain.Run, error) {
	runID := uuid.NewString()
	start := time.Now()

	reviews, err := r.source.Reviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	r.log.Info(ctx, "reviews loaded", logger.Int("count", len(reviews)))

	state := domain.With(domain.NewState(), domain.KeyReviews, reviews)
	state = state.WithRunContext(domain.RunContext{
		PipelineID: r.pipeline.ID(),
		RunID:      runID,
	})

	finalState, err := r.observedPipeline().Execute(ctx, state)
	if err != nil {
		return nil, err
	}

	run, err := buildRun(runID, r.pipeline.ID(), finalState)
	if err != nil {
		return nil, err
	}
	r.recordRunMetrics(run)

	if r.store != nil {
		if err := r.store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to persist run %s: %w", runID, err)
		}
	}

	fields := []logger.Field{
		logger.String("run_id", runID),
		logger.Int("providers", len(run.Summaries)),
		logger.Int("warnings", len(run.Warnings)),
		logger.Any("elapsed", time.Since(start)),
	}
	if run.Diagnostics != nil {
		fields = append(fields, logger.Float64("variance_ratio", run.Diagnostics.VarianceRatio))
	}
	r.log.Info(ctx, "run complete", fields...)

	return run, nil
}

// observedPipeline rebuilds the pipeline with every executable wrapped
// in the observability middleware. The original pipeline is untouched,
// so cached pipelines remain safe to share.
func (r *Runner) observedPipeline() *Pipeline {
	observed := NewPipeline(r.pipeline.ID())
	for _, exec := range r.pipeline.Executables() {
		// Add cannot fail here: IDs were already unique in the source pipeline.
		_ = observed.Add(middleware.NewOTelStageObserver(exec, r.metrics, r.log))
	}
	return observed
}

// recordRunMetrics publishes run-level gauges for the completed run.
func (r *Runner) recordRunMetrics(run *domain.Run) {
	if r.metrics == nil {
		return
	}

	labels := map[string]string{"pipeline_id": run.PipelineID}
	r.metrics.RecordGauge("providers_classified", float64(len(run.Summaries)), labels)
	if run.Diagnostics != nil {
		r.metrics.RecordGauge("clustering_variance_ratio", run.Diagnostics.VarianceRatio, labels)
		r.metrics.RecordGauge("clustering_wcss", run.Diagnostics.WCSS, labels)
	}
}

// buildRun assembles a domain.Run from the pipeline's final state.
// buildRun returns an error if the state carries no provider summaries,
// since a run without classified providers has nothing to report.
func buildRun(runID, pipelineID string, state domain.State) (*domain.Run, error) {
	summaries, ok := domain.Get(state, domain.KeySummaries)
	if !ok {
		return nil, fmt.Errorf("pipeline produced no provider summaries")
	}

	run := &domain.Run{
		ID:         runID,
		PipelineID: pipelineID,
		CreatedAt:  time.Now().UTC(),
		Summaries:  summaries,
		Warnings:   state.Warnings(),
	}

	if params, ok := domain.Get(state, domain.KeyNormalization); ok {
		run.Parameters = params
		run.FeatureNames = make([]string, len(params.Scales))
		for i, scale := range params.Scales {
			run.FeatureNames[i] = scale.Feature
		}
	}

	if diagnostics, ok := domain.Get(state, domain.KeyDiagnostics); ok {
		run.Diagnostics = diagnostics
		run.Seed = diagnostics.Seed
		run.FeatureNames = diagnostics.FeatureNames
	}

	return run, nil
}

// DefaultPipeline assembles the standard classification pipeline with
// default stage configurations: derive metrics, collapse duplicate
// reviews, aggregate per provider, normalize, and cluster.
// Sample weighting makes a separate volume expansion stage unnecessary,
// so the default pipeline omits it.
func DefaultPipeline() (*Pipeline, error) {
	return DefaultPipelineWithSeed(stages.DefaultClusterEngineConfig().Seed)
}

// DefaultPipelineWithSeed assembles the default pipeline with the cluster
// engine seeded from the given value, so callers can reproduce or vary a
// run without writing a pipeline configuration.
func DefaultPipelineWithSeed(seed int64) (*Pipeline, error) {
	pipeline := NewPipeline(DefaultPipelineName)

	deriver, err := stages.NewMetricDeriverStage(StageTypeMetricDeriver, stages.DefaultMetricDeriverConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create metric deriver: %w", err)
	}
	collapser, err := stages.NewExamCollapserStage(StageTypeExamCollapser, stages.DefaultExamCollapserConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create exam collapser: %w", err)
	}
	aggregator, err := stages.NewProviderAggregatorStage(StageTypeProviderAggregator, stages.DefaultProviderAggregatorConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create provider aggregator: %w", err)
	}
	normalizer, err := stages.NewNormalizerStage(StageTypeNormalizer, stages.DefaultNormalizerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}
	engineConfig := stages.DefaultClusterEngineConfig()
	engineConfig.Seed = seed
	engine, err := stages.NewClusterEngineStage(StageTypeClusterEngine, engineConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster engine: %w", err)
	}

	stageList := []ports.Stage{deriver, collapser, aggregator, normalizer, engine}
	for _, stage := range stageList {
		if err := pipeline.Add(NewStageAdapter(stage, stage.Name())); err != nil {
			return nil, fmt.Errorf("failed to assemble default pipeline: %w", err)
		}
	}

	return pipeline, nil
}
