// Package middleware provides cross-cutting concerns for the classification pipeline.
package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
	"github.com/ahrav/go-radqc/pkg/logger"
)

var _ ports.Executable = (*OTelStageObserver)(nil)

// OTelStageObserver implements observability for stage execution using
// OpenTelemetry tracing. It wraps any Executable with a span carrying
// stage identity and row counts, records execution metrics, and logs
// stage completion and every new integrity violation.
// Stages stay pure; all logging and instrumentation lives here.
type OTelStageObserver struct {
	next    ports.Executable
	metrics ports.MetricsCollector
	log     logger.Logger
}

// NewOTelStageObserver creates a new stage observer wrapping the given
// executable. The metrics collector may be nil to disable metrics;
// a nil logger disables logging.
func NewOTelStageObserver(next ports.Executable, metrics ports.MetricsCollector, log logger.Logger) *OTelStageObserver {
	if next == nil {
		panic("stage observer: next executable is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &OTelStageObserver{next: next, metrics: metrics, log: log}
}

// ID returns the identifier of the wrapped executable so the observer is
// transparent to pipelines and duplicate detection.
func (o *OTelStageObserver) ID() string { return o.next.ID() }

// Execute runs the wrapped executable inside an OpenTelemetry span,
// recording latency and outcome metrics and logging new integrity
// violations from the output state.
func (o *OTelStageObserver) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	tracer := otel.Tracer("stage-observer")
	ctx, span := tracer.Start(ctx, "Stage."+o.next.ID())
	defer span.End()

	runCtx, _ := state.GetRunContext()
	span.SetAttributes(
		attribute.String("stage.id", o.next.ID()),
		attribute.String("pipeline.id", runCtx.PipelineID),
		attribute.String("run.id", runCtx.RunID),
		attribute.Int("rows.in", stateRows(state)),
	)

	warningsBefore := len(state.Warnings())
	labels := map[string]string{
		"pipeline_id": runCtx.PipelineID,
		"stage":       o.next.ID(),
	}

	start := time.Now()
	newState, err := o.next.Execute(ctx, state)
	elapsed := time.Since(start)

	if o.metrics != nil {
		o.metrics.RecordLatency("stage_execution", elapsed, labels)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if o.metrics != nil {
			o.recordExecution(labels, "error")
		}
		o.log.Error(ctx, "stage failed",
			logger.String("stage", o.next.ID()),
			logger.Error(err))
		return state, err
	}

	newWarnings := newState.Warnings()[warningsBefore:]
	o.reportWarnings(ctx, labels, newWarnings)

	rowsOut := stateRows(newState)
	span.SetAttributes(
		attribute.Int("rows.out", rowsOut),
		attribute.Int("stage.new_warnings", len(newWarnings)),
	)
	if o.metrics != nil {
		o.recordExecution(labels, "success")
		o.metrics.RecordCounter("rows_processed_total", float64(rowsOut), map[string]string{
			"stage":     o.next.ID(),
			"direction": "out",
		})
	}

	o.log.Info(ctx, "stage complete",
		logger.String("stage", o.next.ID()),
		logger.Int("rows", rowsOut),
		logger.Int("new_warnings", len(newWarnings)),
		logger.Any("elapsed", elapsed))

	span.SetStatus(codes.Ok, "stage completed")
	return newState, nil
}

// recordExecution increments the execution counter with the given status.
func (o *OTelStageObserver) recordExecution(labels map[string]string, status string) {
	statusLabels := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		statusLabels[k] = v
	}
	statusLabels["status"] = status
	o.metrics.RecordCounter("stage_executions_total", 1, statusLabels)
}

// reportWarnings logs each new integrity violation and counts them by kind.
func (o *OTelStageObserver) reportWarnings(ctx context.Context, labels map[string]string, violations []domain.IntegrityViolation) {
	if len(violations) == 0 {
		return
	}

	byKind := make(map[domain.ViolationKind]int)
	for _, v := range violations {
		byKind[v.EffectiveKind()]++
		o.log.Warn(ctx, "data integrity violation",
			logger.String("stage", o.next.ID()),
			logger.String("kind", string(v.EffectiveKind())),
			logger.String("detail", v.String()))
	}

	if o.metrics == nil {
		return
	}
	for kind, count := range byKind {
		o.metrics.RecordCounter("integrity_warnings_total", float64(count), map[string]string{
			"pipeline_id": labels["pipeline_id"],
			"kind":        string(kind),
		})
	}
}

// stateRows reports the size of the most refined row collection present
// in the state, tracking how the data volume shrinks as reviews collapse
// into exams and exams aggregate into providers.
func stateRows(state domain.State) int {
	if summaries, ok := domain.Get(state, domain.KeySummaries); ok {
		return len(summaries)
	}
	if records, ok := domain.Get(state, domain.KeyExamRecords); ok {
		return len(records)
	}
	if derived, ok := domain.Get(state, domain.KeyDerivedReviews); ok {
		return len(derived)
	}
	if reviews, ok := domain.Get(state, domain.KeyReviews); ok {
		return len(reviews)
	}
	return 0
}
