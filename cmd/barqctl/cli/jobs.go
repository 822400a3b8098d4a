package cli

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/barq-desk/barq/jobs"
)

// JobsAPI is the queue surface used by the jobs commands.
type JobsAPI interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	Inspect(ctx context.Context) ([]jobs.QueueHealth, error)
	Close() error
}

// JobsCLI wraps manual management helpers for asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := jobs.TaskByName(name)
	if err != nil {
		return nil, err
	}
	return c.client.Enqueue(ctx, task)
}

// Inspect reports the state of every worker queue.
func (c *JobsCLI) Inspect(context.Context) ([]jobs.QueueHealth, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	return jobs.Snapshot(c.inspector)
}
