package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/barq-desk/barq/internal/jobs"
	"github.com/barq-desk/barq/internal/requests"
)

// DecisionNotifier stores the notification of a decision.
type DecisionNotifier interface {
	NotifyDecision(ctx context.Context, evt requests.DecisionEvent) (int64, error)
}

// DecisionNotifyJob handles TaskRequestDecided.
type DecisionNotifyJob struct {
	Notifier DecisionNotifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewDecisionNotifyJob initialises the handler.
func NewDecisionNotifyJob(notifier DecisionNotifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *DecisionNotifyJob {
	return &DecisionNotifyJob{Notifier: notifier, Logger: logger, Metrics: metrics}
}

// Handle decodes the event and stores the notification.
func (j *DecisionNotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Notifier == nil {
		return errors.New("decision notify: handler not configured")
	}
	var evt requests.DecisionEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return fmt.Errorf("decision notify: decode payload: %w", asynq.SkipRetry)
	}
	if evt.RequestID <= 0 || evt.MakerID <= 0 || !evt.Status.Terminal() {
		return fmt.Errorf("decision notify: incomplete event: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskRequestDecided)
	defer func() { err = tracker.End(err) }()

	if _, err = j.Notifier.NotifyDecision(ctx, evt); err != nil {
		j.logger().Error("store decision notification", slog.Int64("request_id", evt.RequestID), slog.Any("error", err))
		return err
	}
	return nil
}

func (j *DecisionNotifyJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
