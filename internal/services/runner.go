package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/clearlens/governance-backend/internal/platform/logger"
)

// TaskRunner is the narrow contract with the external asynchronous execution
// environment. The backend only ever hands work off and asks for best-effort
// cancellation; it never observes the runner's internals.
type TaskRunner interface {
	Dispatch(ctx context.Context, jobID uuid.UUID, jobType string) (handle string, err error)
	Cancel(ctx context.Context, handle string) error
}

type temporalRunner struct {
	log       *logger.Logger
	client    temporalsdkclient.Client
	taskQueue string
}

func NewTemporalRunner(log *logger.Logger, client temporalsdkclient.Client, taskQueue string) (TaskRunner, error) {
	if client == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	taskQueue = strings.TrimSpace(taskQueue)
	if taskQueue == "" {
		taskQueue = "governance"
	}
	return &temporalRunner{
		log:       log.With("service", "TemporalRunner"),
		client:    client,
		taskQueue: taskQueue,
	}, nil
}

func (r *temporalRunner) Dispatch(ctx context.Context, jobID uuid.UUID, jobType string) (string, error) {
	if jobID == uuid.Nil {
		return "", fmt.Errorf("missing job id")
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             r.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	// Workflow name kept literal to avoid an import cycle with jobrun.
	run, err := r.client.ExecuteWorkflow(ctx, opts, "job_run")
	if err != nil {
		if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
			return jobID.String(), nil
		}
		return "", fmt.Errorf("start job workflow: %w", err)
	}
	return run.GetID(), nil
}

func (r *temporalRunner) Cancel(ctx context.Context, handle string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil
	}
	err := r.client.CancelWorkflow(ctx, handle, "")
	if err != nil {
		if _, ok := err.(*serviceerror.NotFound); ok {
			return nil
		}
		return fmt.Errorf("cancel job workflow: %w", err)
	}
	return nil
}
