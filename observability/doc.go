// Package observability wires OpenTelemetry tracing and metrics for smokedb.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("smokedb"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanStoreScan)
//	defer span.End()
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("smokedb"))
//	metrics.RecordScan(ctx, "users", 42, nil)
//
// Store operations combine both through StartOperation:
//
//	ctx, op := observability.StartOperation(ctx, metrics, observability.SpanStoreSubmit, "users")
//	defer func() { op.End(err) }()
//
// Without InitTracer and InitMeter the global no-op providers apply.
package observability
