package monitor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/edanliahovetsky/bline-engine/internal/monitor"

// registerMetrics publishes the write pipeline depths as observable gauges.
// The global meter is a no-op unless a meter provider is installed, so the
// callbacks cost nothing in the default setup.
func (s *Service) registerMetrics() error {
	m := otel.Meter(instrumentationName)

	writeQueue, err := m.Int64ObservableGauge(
		"worker.write_queue.size",
		metric.WithDescription("Rows queued for the storage backend"),
	)
	if err != nil {
		return err
	}

	lastWrite, err := m.Float64ObservableGauge(
		"worker.write.duration_ms",
		metric.WithDescription("Duration of the last storage batch write"),
	)
	if err != nil {
		return err
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			samples, handoffs := s.deps.WorkerManager.GetWriteQueueLengths()
			o.ObserveInt64(writeQueue, int64(samples),
				metric.WithAttributes(attribute.String("queue", "samples")))
			o.ObserveInt64(writeQueue, int64(handoffs),
				metric.WithAttributes(attribute.String("queue", "handoffs")))
			o.ObserveFloat64(lastWrite, float64(s.deps.WorkerManager.GetLastDBWriteDuration().Milliseconds()))
			return nil
		},
		writeQueue, lastWrite,
	)
	return err
}
