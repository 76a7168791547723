// Package service orchestrates the query safety gateway: validation,
// execution, error classification, and audit dispatch.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sqlward/sqlward/internal/audit"
	"github.com/sqlward/sqlward/internal/core/domain"
	"github.com/sqlward/sqlward/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// GatewayService is the single entry point for user-submitted SQL. Every
// attempt, accepted or rejected, produces exactly one audit record; the audit
// write is detached and can never delay or fail the caller's result.
type GatewayService struct {
	validator *domain.Validator
	executor  port.QueryExecutor
	recorder  *audit.Recorder
	logger    *slog.Logger
	defaults  port.Limits
	caps      port.Limits
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewGatewayService(
	validator *domain.Validator,
	executor port.QueryExecutor,
	recorder *audit.Recorder,
	logger *slog.Logger,
	defaults port.Limits,
	caps port.Limits,
	tracer trace.Tracer,
	inst port.Instrumentation,
) *GatewayService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &GatewayService{
		validator: validator,
		executor:  executor,
		recorder:  recorder,
		logger:    logger,
		defaults:  defaults,
		caps:      caps,
		tracer:    tracer,
		inst:      inst,
	}
}

// Execute validates rawSQL and, if accepted, runs it under the effective
// limits. The caller gets the typed result or a *ValidationError /
// *ExecutionError; the audit trail gets a record in every case.
func (s *GatewayService) Execute(ctx context.Context, rawSQL string, actor port.Actor, limits port.Limits) (*domain.QueryResult, error) {
	limits = s.effectiveLimits(limits)

	ctx, span := s.tracer.Start(ctx, "GatewayService.Execute",
		trace.WithAttributes(
			attribute.String("db.operation.name", "query"),
			attribute.Int("db.query.max_rows", limits.MaxRows),
		),
	)
	defer span.End()

	executedAt := time.Now().UTC()

	attempt := audit.Attempt{
		Actor:       actor,
		OriginalSQL: rawSQL,
		Limits:      limits,
		ExecutedAt:  executedAt,
	}

	outcome := s.validator.Validate(rawSQL)
	attempt.Validation = outcome
	if !outcome.Accepted {
		s.logger.WarnContext(ctx, "query rejected",
			slog.String("reason", outcome.RejectionReason),
			slog.String("user_id", actor.UserID),
		)
		span.SetStatus(codes.Error, outcome.RejectionReason)
		s.inst.IncrementQueryRejections(ctx)
		s.recorder.Record(attempt)
		return nil, &ValidationError{Reason: outcome.RejectionReason}
	}

	// A caller that has already gone away gets a cancelled record instead of
	// a dispatched query.
	if err := ctx.Err(); err != nil {
		attempt.Cancelled = true
		s.recorder.Record(attempt)
		return nil, err
	}

	start := time.Now()
	execution := s.executor.Execute(ctx, outcome.SanitizedSQL, limits)
	s.inst.RecordQueryDuration(ctx, float64(time.Since(start).Milliseconds()))

	attempt.Outcome = &execution
	s.recorder.Record(attempt)

	if !execution.Succeeded() {
		classified := domain.Classify(execution.RawMessage)
		s.logger.WarnContext(ctx, "query execution failed",
			slog.String("status", execution.Kind.String()),
			slog.String("error", classified.Message),
			slog.String("user_id", actor.UserID),
		)
		span.RecordError(&ExecutionError{Classified: classified})
		span.SetStatus(codes.Error, classified.Message)
		s.inst.IncrementQueryErrors(ctx)
		return nil, &ExecutionError{
			Classified: classified,
			Timeout:    execution.Kind == domain.OutcomeTimeout,
		}
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", execution.Result.RowCount))
	return execution.Result, nil
}

// effectiveLimits fills in defaults for unset fields and clamps the result to
// the configured caps.
func (s *GatewayService) effectiveLimits(limits port.Limits) port.Limits {
	if limits.MaxRows <= 0 {
		limits.MaxRows = s.defaults.MaxRows
	}
	if limits.Timeout <= 0 {
		limits.Timeout = s.defaults.Timeout
	}
	if s.caps.MaxRows > 0 && limits.MaxRows > s.caps.MaxRows {
		limits.MaxRows = s.caps.MaxRows
	}
	if s.caps.Timeout > 0 && limits.Timeout > s.caps.Timeout {
		limits.Timeout = s.caps.Timeout
	}
	return limits
}
