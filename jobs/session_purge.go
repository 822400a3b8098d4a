package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/barq-desk/barq/internal/jobs"
)

// SessionPurger removes expired session audit rows.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionPurgeJob handles TaskPurgeSessions.
type SessionPurgeJob struct {
	Purger  SessionPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionPurgeJob initialises the handler.
func NewSessionPurgeJob(purger SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	return &SessionPurgeJob{Purger: purger, Logger: logger, Metrics: metrics}
}

// Handle deletes expired auth_sessions rows.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Purger == nil {
		return errors.New("session purge: handler not configured")
	}
	var payload PurgeSessionsPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Source == "" {
		payload.Source = "cron"
	}

	tracker := j.Metrics.Track(TaskPurgeSessions)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	purged, err := j.Purger.PurgeExpired(ctx)
	if err != nil {
		logger.Error("purge sessions failed", slog.String("source", payload.Source), slog.Any("error", err))
		return err
	}
	j.Metrics.AddPurged("auth_sessions", purged)
	logger.Info("expired sessions purged", slog.Int64("rows", purged), slog.String("source", payload.Source))
	return nil
}
