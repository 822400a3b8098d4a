package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/barq-desk/barq/internal/requests"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance runs housekeeping at a lower priority.
	QueueMaintenance = "maintenance"

	// TaskRequestDecided stores the maker notification for a decision.
	TaskRequestDecided = "requests:decided"
	// TaskPurgeSessions removes expired auth_sessions rows.
	TaskPurgeSessions = "maintenance:purge-sessions"
)

// PurgeSessionsSchedule runs the purge nightly at 03:10 UTC.
const PurgeSessionsSchedule = "10 3 * * *"

// PurgeSessionsPayload carries the trigger source for logs.
type PurgeSessionsPayload struct {
	Source string `json:"source"`
}

// NewRequestDecidedTask constructs the notification task for evt.
func NewRequestDecidedTask(evt requests.DecisionEvent) (*asynq.Task, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRequestDecided, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.TaskID(fmt.Sprintf("decided:%d:%s", evt.RequestID, evt.Status)),
	), nil
}

// NewPurgeSessionsTask constructs the session purge task.
func NewPurgeSessionsTask(source string) (*asynq.Task, error) {
	body, err := json.Marshal(PurgeSessionsPayload{Source: source})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeSessions, body, asynq.Queue(QueueMaintenance), asynq.MaxRetry(3)), nil
}

// TaskByName builds a manually triggered task for the CLI.
func TaskByName(name string) (*asynq.Task, error) {
	switch name {
	case TaskPurgeSessions, "purge-sessions":
		return NewPurgeSessionsTask("manual")
	default:
		return nil, fmt.Errorf("jobs: unknown task %q", name)
	}
}
