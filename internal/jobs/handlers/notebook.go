package handlers

import (
	"fmt"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/jobs/runtime"
	"github.com/clearlens/governance-backend/internal/platform/logger"
	"github.com/clearlens/governance-backend/internal/services"
)

// NotebookHandler hands notebook_execution and model_training jobs to the
// external notebook runner and registers whatever outputs it reports.
type NotebookHandler struct {
	Log     *logger.Logger
	Runner  services.NotebookRunner
	jobType domain.JobType
}

func NewNotebookExecutionHandler(log *logger.Logger, runner services.NotebookRunner) *NotebookHandler {
	return &NotebookHandler{Log: log, Runner: runner, jobType: domain.JobTypeNotebookExecution}
}

func NewModelTrainingHandler(log *logger.Logger, runner services.NotebookRunner) *NotebookHandler {
	return &NotebookHandler{Log: log, Runner: runner, jobType: domain.JobTypeModelTraining}
}

func (h *NotebookHandler) Type() string { return string(h.jobType) }

func (h *NotebookHandler) Run(jc *runtime.Context) error {
	if h.Runner == nil {
		return fmt.Errorf("notebook runner is not configured")
	}
	notebookPath := jc.ParamString("notebook_path")
	if notebookPath == "" {
		return fmt.Errorf("missing notebook_path parameter")
	}
	jc.SetProgress(5)

	result, err := h.Runner.Execute(jc.Ctx, services.NotebookRun{
		JobID:        jc.Job.ID,
		NotebookPath: notebookPath,
		Parameters:   jc.Params(),
	})
	if err != nil {
		return fmt.Errorf("execute notebook %s: %w", notebookPath, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("notebook %s exited with code %d", notebookPath, result.ExitCode)
	}
	jc.SetProgress(90)

	jc.Succeed(result.OutputURLs, map[string]any{
		"notebook_path": notebookPath,
		"exit_code":     result.ExitCode,
	})
	return nil
}
