package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kritchai/factorysim/shared/amqp"
)

// Routing keys for simulation events
const (
	RoutingKeyJobCompleted       = "job.completed"
	RoutingKeyBottleneckDetected = "bottleneck.detected"
)

// JobCompletedEvent is emitted when a job finishes its full routing
type JobCompletedEvent struct {
	JobID          int     `json:"job_id"`
	BatchSize      int     `json:"batch_size"`
	Priority       string  `json:"priority"`
	ArrivalTime    float64 `json:"arrival_time"`
	CompletionTime float64 `json:"completion_time"`
	TotalCost      float64 `json:"total_cost"`
	Defective      bool    `json:"defective"`
	ReworkCount    int     `json:"rework_count"`
}

// BottleneckDetectedEvent is emitted when a machine is graded as a
// bottleneck
type BottleneckDetectedEvent struct {
	Machine     string  `json:"machine"`
	Severity    int     `json:"severity"`
	QueueLength int     `json:"queue_length"`
	Utilization float64 `json:"utilization"`
	SimTime     float64 `json:"sim_time"`
}

// Emitter publishes simulation events to an AMQP exchange. A nil
// Emitter is valid and drops everything, so callers never branch on
// whether events are enabled.
type Emitter struct {
	publisher *amqp.Publisher
	logger    *slog.Logger
}

func NewEmitter(publisher *amqp.Publisher, logger *slog.Logger) *Emitter {
	return &Emitter{publisher: publisher, logger: logger}
}

// JobCompleted publishes a job.completed event
func (e *Emitter) JobCompleted(ctx context.Context, event JobCompletedEvent) {
	e.publish(ctx, RoutingKeyJobCompleted, event)
}

// BottleneckDetected publishes a bottleneck.detected event
func (e *Emitter) BottleneckDetected(ctx context.Context, event BottleneckDetectedEvent) {
	e.publish(ctx, RoutingKeyBottleneckDetected, event)
}

func (e *Emitter) publish(ctx context.Context, routingKey string, event any) {
	if e == nil || e.publisher == nil {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("Failed to encode event",
			slog.String("routing_key", routingKey),
			slog.Any("error", err),
		)
		return
	}

	if err := e.publisher.PublishWithRetry(ctx, routingKey, body); err != nil {
		// Delivery is best effort; a broker outage must not stall stepping.
		e.logger.Warn("Failed to publish event",
			slog.String("routing_key", routingKey),
			slog.Any("error", err),
		)
	}
}
