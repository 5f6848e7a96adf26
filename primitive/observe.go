package primitive

import (
	"context"
	"time"

	"github.com/wprun/wpr/telemetry"
	"github.com/wprun/wpr/wfctx"
)

// Observe wraps a typed Primitive in the runtime's observability contract:
// every execute call starts a span named "<name>.execute" tagged
// with the context's trace attributes, emits start/success/failure
// structured log events, and records duration and outcome metrics.
func Observe[I, O any](name string, p Primitive[I, O]) Primitive[I, O] {
	return Lambda[I, O](func(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
		logger := telemetry.GetLogger().WithComponent(name)
		provider := telemetry.GetTelemetryProvider()

		var span telemetry.Span
		if provider != nil {
			ctx, span = provider.StartSpan(ctx, name+".execute")
			for _, attr := range wctx.TraceAttrs() {
				span.SetAttribute(string(attr.Key), attr.Value.Emit())
			}
			span.SetAttribute("primitive.name", name)
			defer span.End()
		}

		logger.Info(name+"_start", map[string]interface{}{
			"primitive":      name,
			"correlation_id": wctx.CorrelationID,
		})

		start := time.Now()
		out, err := p.Execute(ctx, wctx, input)
		duration := time.Since(start)

		labels := []string{"primitive_name", name}
		if err != nil {
			if span != nil {
				span.RecordError(err)
			}
			logger.Error(name+"_failed", map[string]interface{}{
				"primitive":      name,
				"correlation_id": wctx.CorrelationID,
				"duration_ms":    duration.Milliseconds(),
				"error":          err.Error(),
				"error_kind":     Classify(err),
			})
			telemetry.Counter(telemetry.MetricPrimitiveErrors, append(append([]string{}, labels...), "error_kind", Classify(err))...)
			telemetry.Histogram(telemetry.MetricPrimitiveDuration, float64(duration.Milliseconds()), append(append([]string{}, labels...), "primitive_kind", name, "status", "failure")...)
			telemetry.Counter(telemetry.MetricPrimitiveCount, append(append([]string{}, labels...), "primitive_kind", name, "status", "failure")...)
			return out, err
		}

		logger.Info(name+"_success", map[string]interface{}{
			"primitive":      name,
			"correlation_id": wctx.CorrelationID,
			"duration_ms":    duration.Milliseconds(),
		})
		telemetry.Histogram(telemetry.MetricPrimitiveDuration, float64(duration.Milliseconds()), append(append([]string{}, labels...), "primitive_kind", name, "status", "success")...)
		telemetry.Counter(telemetry.MetricPrimitiveCount, append(append([]string{}, labels...), "primitive_kind", name, "status", "success")...)
		return out, nil
	})
}

// ObserveNode is Observe's untyped counterpart, used by composition nodes.
func ObserveNode(name string, n Node) Node {
	return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		logger := telemetry.GetLogger().WithComponent(name)
		provider := telemetry.GetTelemetryProvider()

		var span telemetry.Span
		if provider != nil {
			ctx, span = provider.StartSpan(ctx, name+".execute")
			for _, attr := range wctx.TraceAttrs() {
				span.SetAttribute(string(attr.Key), attr.Value.Emit())
			}
			span.SetAttribute("primitive.name", name)
			defer span.End()
		}

		logger.Info(name+"_start", map[string]interface{}{
			"primitive":      name,
			"correlation_id": wctx.CorrelationID,
		})

		start := time.Now()
		out, err := n.Execute(ctx, wctx, input)
		duration := time.Since(start)

		status := "success"
		if err != nil {
			status = "failure"
			if span != nil {
				span.RecordError(err)
			}
			logger.Error(name+"_failed", map[string]interface{}{
				"primitive":      name,
				"correlation_id": wctx.CorrelationID,
				"duration_ms":    duration.Milliseconds(),
				"error":          err.Error(),
				"error_kind":     Classify(err),
			})
		} else {
			logger.Info(name+"_success", map[string]interface{}{
				"primitive":      name,
				"correlation_id": wctx.CorrelationID,
				"duration_ms":    duration.Milliseconds(),
			})
		}
		telemetry.Histogram(telemetry.MetricPrimitiveDuration, float64(duration.Milliseconds()), "primitive_name", name, "primitive_kind", name, "status", status)
		telemetry.Counter(telemetry.MetricPrimitiveCount, "primitive_name", name, "primitive_kind", name, "status", status)
		return out, err
	})
}
