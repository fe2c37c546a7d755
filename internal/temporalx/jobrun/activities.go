package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/clearlens/governance-backend/internal/domain"
	jobrt "github.com/clearlens/governance-backend/internal/jobs/runtime"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/services"
)

type Activities struct {
	Log      *logger.Logger
	Jobs     services.JobService
	Registry *jobrt.Registry
}

// Tick claims the job (pending/retrying -> running under the row lock inside
// JobService.Start), runs its handler and reports the resulting status back
// to the workflow.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Jobs == nil || a.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}

	parsedJobID, err := uuid.Parse(res.JobID)
	if err != nil || parsedJobID == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id")
	}

	dbc := dbctx.New(ctx)
	job, err := a.Jobs.GetJob(dbc, parsedJobID)
	if err != nil {
		return res, err
	}
	if job.Terminal() {
		return fill(res, job), nil
	}

	switch job.Status {
	case domain.JobStatusPending, domain.JobStatusRetrying:
		job, err = a.Jobs.Start(dbc, parsedJobID)
		if err != nil {
			// A concurrent cancel wins the race; report the current row
			// instead of failing the workflow.
			if apierr.IsKind(err, apierr.KindValidation) {
				if cur, gerr := a.Jobs.GetJob(dbc, parsedJobID); gerr == nil {
					return fill(res, cur), nil
				}
			}
			return res, err
		}
	case domain.JobStatusRunning:
		// Another worker holds it; keep polling.
		return fill(res, job), nil
	}

	stopHB := startHeartbeat(ctx)
	defer stopHB()

	jc := jobrt.NewContext(ctx, job, a.Jobs)
	h, ok := a.Registry.Get(string(job.JobType))
	handlerReturnedNil := false
	if !ok {
		jc.FailWith(fmt.Errorf("no handler registered for job_type=%s", job.JobType))
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if a.Log != nil {
						a.Log.Error("Job handler panic", "job_id", parsedJobID, "job_type", job.JobType, "panic", r)
					}
					jc.FailWith(fmt.Errorf("panic: unexpected error"))
				}
			}()
			if runErr := h.Run(jc); runErr != nil {
				jc.FailWith(runErr)
				return
			}
			handlerReturnedNil = true
		}()
	}

	updated, err := a.Jobs.GetJob(dbc, parsedJobID)
	if err != nil {
		return res, err
	}

	// Safety net: a handler that returns nil without terminating the job
	// would otherwise leave it running forever. Treat that as success.
	if handlerReturnedNil && updated.Status == domain.JobStatusRunning {
		if a.Log != nil {
			a.Log.Warn("Job handler returned nil without terminal status; marking completed", "job_id", parsedJobID, "job_type", updated.JobType)
		}
		if done, cerr := a.Jobs.Complete(dbc, parsedJobID, nil, nil); cerr == nil {
			updated = done
		}
	}
	return fill(res, updated), nil
}

func fill(res TickResult, job *domain.Job) TickResult {
	if job == nil {
		return res
	}
	res.Status = string(job.Status)
	res.Progress = job.Progress
	res.Message = job.ErrorMessage
	return res
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		hb := time.NewTicker(10 * time.Second)
		defer hb.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-hb.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
