package resilience

import (
	"context"
	"time"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/telemetry"
	"github.com/wprun/wpr/wfctx"
)

// Saga runs Forward and, only if it fails, runs Compensation on the same
// input and context. The caller always observes the forward error
// regardless of whether compensation succeeds - a compensation failure is
// logged as saga_compensation_failed/saga_critical_failure but never masks
// it. Event names and the three-segment span shape (saga.workflow,
// saga.forward, saga.compensation) are grounded on a Python reference's
// SagaPrimitive.execute.
type Saga[I, O any] struct {
	Name          string
	Forward       primitive.Primitive[I, O]
	Compensation  primitive.Primitive[I, any]
}

// NewSaga constructs a Saga.
func NewSaga[I, O any](name string, forward primitive.Primitive[I, O], compensation primitive.Primitive[I, any]) *Saga[I, O] {
	return &Saga[I, O]{Name: name, Forward: forward, Compensation: compensation}
}

// Execute implements primitive.Primitive.
func (s *Saga[I, O]) Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
	logger := telemetry.GetLogger().WithComponent(s.Name)
	wctx.Checkpoint("saga.start")
	workflowStart := time.Now()

	logger.Info("saga_workflow_start", map[string]interface{}{
		"correlation_id": wctx.CorrelationID,
	})

	provider := telemetry.GetTelemetryProvider()
	if provider != nil {
		var workflowSpan telemetry.Span
		ctx, workflowSpan = provider.StartSpan(ctx, "saga.workflow")
		defer workflowSpan.End()
	}

	logger.Info("saga_forward_start", map[string]interface{}{"correlation_id": wctx.CorrelationID})
	wctx.Checkpoint("saga.forward.start")
	forwardStart := time.Now()

	var forwardSpan telemetry.Span
	fctx := ctx
	if provider != nil {
		fctx, forwardSpan = provider.StartSpan(ctx, "saga.forward")
		forwardSpan.SetAttribute("saga.execution", "forward")
	}
	out, forwardErr := s.Forward.Execute(fctx, wctx, input)
	if forwardSpan != nil {
		if forwardErr != nil {
			forwardSpan.RecordError(forwardErr)
		}
		forwardSpan.End()
	}

	wctx.Checkpoint("saga.forward.end")
	forwardDuration := time.Since(forwardStart)

	if forwardErr == nil {
		telemetry.Counter(telemetry.MetricPrimitiveCount, "primitive_name", s.Name, "primitive_kind", "saga.forward", "status", "success")
		logger.Info("saga_forward_success", map[string]interface{}{
			"duration_ms": forwardDuration.Milliseconds(), "correlation_id": wctx.CorrelationID,
		})
		wctx.Checkpoint("saga.end")
		telemetry.Counter(telemetry.MetricPrimitiveCount, "primitive_name", s.Name, "primitive_kind", "saga.workflow", "status", "success")
		logger.Info("saga_workflow_complete", map[string]interface{}{
			"compensation_triggered": false, "execution_path": "forward",
			"total_duration_ms": time.Since(workflowStart).Milliseconds(), "correlation_id": wctx.CorrelationID,
		})
		return out, nil
	}

	telemetry.Counter(telemetry.MetricPrimitiveCount, "primitive_name", s.Name, "primitive_kind", "saga.forward", "status", "failure")
	logger.Warn("saga_forward_failed", map[string]interface{}{
		"duration_ms": forwardDuration.Milliseconds(), "error": forwardErr.Error(), "correlation_id": wctx.CorrelationID,
	})
	logger.Warn("saga_compensation_triggered", map[string]interface{}{
		"forward_error": forwardErr.Error(), "correlation_id": wctx.CorrelationID,
	})

	logger.Info("saga_compensation_start", map[string]interface{}{"correlation_id": wctx.CorrelationID})
	wctx.Checkpoint("saga.compensation.start")
	compensationStart := time.Now()

	var compSpan telemetry.Span
	cctx := ctx
	if provider != nil {
		cctx, compSpan = provider.StartSpan(ctx, "saga.compensation")
		compSpan.SetAttribute("saga.execution", "compensation")
		compSpan.SetAttribute("saga.forward_error", forwardErr.Error())
	}
	_, compensationErr := s.Compensation.Execute(cctx, wctx, input)
	if compSpan != nil {
		if compensationErr != nil {
			compSpan.RecordError(compensationErr)
		}
		compSpan.End()
	}

	wctx.Checkpoint("saga.compensation.end")
	compensationDuration := time.Since(compensationStart)

	if compensationErr == nil {
		telemetry.Counter(telemetry.MetricSagaCompensations, "primitive_name", s.Name, "status", "success")
		logger.Info("saga_compensation_success", map[string]interface{}{
			"duration_ms": compensationDuration.Milliseconds(), "correlation_id": wctx.CorrelationID,
		})
	} else {
		telemetry.Counter(telemetry.MetricSagaCompensations, "primitive_name", s.Name, "status", "failure")
		logger.Error("saga_compensation_failed", map[string]interface{}{
			"duration_ms": compensationDuration.Milliseconds(), "error": compensationErr.Error(), "correlation_id": wctx.CorrelationID,
		})
		logger.Error("saga_critical_failure", map[string]interface{}{
			"forward_error": forwardErr.Error(), "compensation_error": compensationErr.Error(), "correlation_id": wctx.CorrelationID,
		})
	}

	wctx.Checkpoint("saga.end")
	telemetry.Counter(telemetry.MetricPrimitiveCount, "primitive_name", s.Name, "primitive_kind", "saga.workflow", "status", "failure")
	logger.Error("saga_workflow_failed", map[string]interface{}{
		"total_duration_ms": time.Since(workflowStart).Milliseconds(), "correlation_id": wctx.CorrelationID,
	})

	var zero O
	return zero, forwardErr
}
