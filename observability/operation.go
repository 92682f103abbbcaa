package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/kbukum/smokedb/errors"
)

// Operation tracks one traced store operation.
type Operation struct {
	name    string
	store   string
	start   time.Time
	span    trace.Span
	ctx     context.Context
	metrics *Metrics
	records int
}

// StartOperation starts a span named name for an operation against store.
// A nil metrics skips metric recording.
func StartOperation(ctx context.Context, metrics *Metrics, name, store string, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	attrs = append(attrs, attribute.String(AttrStore, store), attribute.String(AttrOperation, name))
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, &Operation{
		name:    name,
		store:   store,
		start:   time.Now(),
		span:    span,
		ctx:     ctx,
		metrics: metrics,
	}
}

// AddRecords counts records handled by the operation.
func (op *Operation) AddRecords(n int) {
	op.records += n
}

// Duration returns the elapsed time since the operation started.
func (op *Operation) Duration() time.Duration {
	return time.Since(op.start)
}

// End closes the span and records metrics. A non-nil err marks the span
// failed and counts toward store.errors.total under its error code.
func (op *Operation) End(err error) {
	op.span.SetAttributes(attribute.Int(AttrRecords, op.records))
	if err != nil {
		SetSpanError(op.ctx, err)
		op.span.SetAttributes(attribute.String(AttrErrorCode, errorCode(err)))
	}
	op.span.End()

	if op.metrics == nil {
		return
	}
	switch op.name {
	case SpanStoreScan:
		op.metrics.RecordScan(op.ctx, op.store, op.records, err)
	case SpanStoreSubmit:
		op.metrics.RecordSubmit(op.ctx, op.store, op.records, op.Duration(), err)
	}
	if err != nil {
		op.metrics.RecordError(op.ctx, op.store, op.name, errorCode(err))
	}
}

func errorCode(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELLED"
	}
	return string(apperrors.ErrCodeInternal)
}
