package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/services"
)

// Context is the execution handle for a single claimed job. It wraps the
// job row, the decoded parameters and the only sanctioned ways to report
// progress or terminate execution. Handlers never write job rows directly.
type Context struct {
	Ctx    context.Context
	Job    *domain.Job
	Jobs   services.JobService
	params map[string]any
}

// NewContext eagerly decodes the job's parameter JSON so handlers can read
// inputs via Params()/ParamUUID(). A malformed payload decodes to an empty
// map; handlers validate their own required fields.
func NewContext(ctx context.Context, job *domain.Job, jobs services.JobService) *Context {
	c := &Context{
		Ctx:  ctx,
		Job:  job,
		Jobs: jobs,
	}
	c.decodeParams()
	return c
}

func (c *Context) decodeParams() {
	c.params = map[string]any{}
	if c.Job == nil || len(c.Job.Parameters) == 0 {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Parameters, &m); err == nil {
		c.params = m
	}
}

// Params never returns nil.
func (c *Context) Params() map[string]any {
	if c.params == nil {
		c.params = map[string]any{}
	}
	return c.params
}

func (c *Context) ParamString(key string) string {
	v, ok := c.Params()[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (c *Context) ParamUUID(key string) (uuid.UUID, bool) {
	s := c.ParamString(key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) dbc() dbctx.Context {
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return dbctx.New(ctx)
}

// SetProgress is best-effort; a progress write racing a cancel must not abort
// the handler.
func (c *Context) SetProgress(pct int) {
	if c == nil || c.Job == nil {
		return
	}
	job, err := c.Jobs.UpdateProgress(c.dbc(), c.Job.ID, pct)
	if err != nil {
		return
	}
	c.Job.Progress = job.Progress
}

// Succeed marks the job completed and records its artifacts.
func (c *Context) Succeed(artifactURLs []string, artifactMetadata map[string]any) {
	if c == nil || c.Job == nil {
		return
	}
	job, err := c.Jobs.Complete(c.dbc(), c.Job.ID, artifactURLs, artifactMetadata)
	if err != nil {
		return
	}
	*c.Job = *job
}

// FailWith marks the job failed with the given cause.
func (c *Context) FailWith(err error) {
	if c == nil || c.Job == nil {
		return
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	job, ferr := c.Jobs.Fail(c.dbc(), c.Job.ID, msg)
	if ferr != nil {
		return
	}
	*c.Job = *job
}
