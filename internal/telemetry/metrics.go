package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/sqlward/sqlward"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	QueryCount      metric.Int64Counter
	QueryDuration   metric.Float64Histogram
	QueryErrors     metric.Int64Counter
	QueryRejections metric.Int64Counter
	AuditDropped    metric.Int64Counter
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	queryCount, _ := meter.Int64Counter("sqlward.query.count",
		metric.WithDescription("Total number of queries executed successfully"),
	)
	queryDuration, _ := meter.Float64Histogram("sqlward.query.duration",
		metric.WithDescription("Query execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryErrors, _ := meter.Int64Counter("sqlward.query.errors",
		metric.WithDescription("Total number of queries that failed or timed out"),
	)
	queryRejections, _ := meter.Int64Counter("sqlward.query.rejections",
		metric.WithDescription("Total number of queries rejected by the safety validator"),
	)
	auditDropped, _ := meter.Int64Counter("sqlward.audit.dropped",
		metric.WithDescription("Total number of audit records lost to persistence failures"),
	)

	return &Instruments{
		QueryCount:      queryCount,
		QueryDuration:   queryDuration,
		QueryErrors:     queryErrors,
		QueryRejections: queryRejections,
		AuditDropped:    auditDropped,
	}
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.QueryDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.QueryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryRejections(ctx context.Context) {
	i.QueryRejections.Add(ctx, 1)
}

func (i *Instruments) IncrementAuditDropped(ctx context.Context) {
	i.AuditDropped.Add(ctx, 1)
}
