package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/blob"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/repos"
)

func newJobFixture(tb testing.TB, runner TaskRunner, store *fakeStore) (JobService, *gorm.DB) {
	tb.Helper()
	gdb := newTestDB(tb)
	log := testLogger()
	var bs blob.Store
	if store != nil {
		bs = store
	}
	svc := NewJobService(gdb, log, repos.NewJobRepo(gdb, log), runner, bs, nil)
	return svc, gdb
}

func submitJob(tb testing.TB, svc JobService, dbc dbctx.Context, in SubmitJobInput) *domain.Job {
	tb.Helper()
	if in.JobType == "" {
		in.JobType = domain.JobTypeDataProcessing
	}
	job, err := svc.Submit(dbc, in)
	if err != nil {
		tb.Fatalf("Submit: %v", err)
	}
	return job
}

func TestSubmitDispatchesImmediately(t *testing.T) {
	runner := &fakeRunner{}
	svc, _ := newJobFixture(t, runner, nil)
	userID := uuid.New()
	dbc := testDBC(userID, uuid.Nil)

	job := submitJob(t, svc, dbc, SubmitJobInput{Name: "validate census"})

	if job.Status != domain.JobStatusPending {
		t.Fatalf("status: want=%s got=%s", domain.JobStatusPending, job.Status)
	}
	if job.OwnerUserID != userID {
		t.Fatalf("owner: want=%s got=%s", userID, job.OwnerUserID)
	}
	if job.MaxRetries != 3 {
		t.Fatalf("default max_retries: want=3 got=%d", job.MaxRetries)
	}
	if runner.dispatchCount() != 1 {
		t.Fatalf("dispatch count: want=1 got=%d", runner.dispatchCount())
	}

	wantHandle := "run-" + job.ID.String()
	if job.TaskHandle != wantHandle {
		t.Fatalf("returned task_handle: want=%q got=%q", wantHandle, job.TaskHandle)
	}
	stored, err := svc.GetJob(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.TaskHandle != wantHandle {
		t.Fatalf("stored task_handle: want=%q got=%q", wantHandle, stored.TaskHandle)
	}
}

func TestSubmitRejectsUnknownJobType(t *testing.T) {
	svc, _ := newJobFixture(t, &fakeRunner{}, nil)

	_, err := svc.Submit(testDBC(uuid.New(), uuid.Nil), SubmitJobInput{JobType: "mining"})
	if !apierr.IsKind(err, apierr.KindValidation) {
		t.Fatalf("kind: want=validation got=%v", apierr.KindOf(err))
	}
	if code := apierr.CodeOf(err); code != "unsupported_job_type" {
		t.Fatalf("code: want=unsupported_job_type got=%q", code)
	}
}

func TestSubmitRequiresOwner(t *testing.T) {
	svc, _ := newJobFixture(t, &fakeRunner{}, nil)

	_, err := svc.Submit(dbctx.New(context.Background()), SubmitJobInput{JobType: domain.JobTypeCleanup})
	if code := apierr.CodeOf(err); code != "missing_owner" {
		t.Fatalf("code: want=missing_owner got=%q err=%v", code, err)
	}
}

func TestSubmitDispatchFailureMarksJobFailed(t *testing.T) {
	runner := &fakeRunner{failWith: errors.New("queue unreachable")}
	svc, _ := newJobFixture(t, runner, nil)
	dbc := testDBC(uuid.New(), uuid.Nil)

	job, err := svc.Submit(dbc, SubmitJobInput{JobType: domain.JobTypeAssessment})
	if !apierr.IsKind(err, apierr.KindUnavailable) {
		t.Fatalf("kind: want=unavailable got=%v", apierr.KindOf(err))
	}
	if code := apierr.CodeOf(err); code != "dispatch_failed" {
		t.Fatalf("code: want=dispatch_failed got=%q", code)
	}
	if job == nil {
		t.Fatal("Submit must still return the created job on dispatch failure")
	}

	stored, err := svc.GetJob(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("status: want=%s got=%s", domain.JobStatusFailed, stored.Status)
	}
	if stored.ErrorMessage != "queue unreachable" {
		t.Fatalf("error_message: want=%q got=%q", "queue unreachable", stored.ErrorMessage)
	}
	if stored.CompletedAt == nil {
		t.Fatal("completed_at must be set on dispatch failure")
	}
}

func TestSubmitInsideTransactionDefersDispatch(t *testing.T) {
	runner := &fakeRunner{}
	svc, gdb := newJobFixture(t, runner, nil)
	ctx := testCtx(uuid.New(), uuid.Nil)

	var jobID uuid.UUID
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := svc.Submit(dbctx.Context{Ctx: ctx, Tx: tx}, SubmitJobInput{JobType: domain.JobTypeReportGeneration})
		if err != nil {
			return err
		}
		jobID = job.ID
		if runner.dispatchCount() != 0 {
			t.Fatal("dispatch must be deferred until after the commit")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	if err := svc.Dispatch(dbctx.New(ctx), jobID); err != nil {
		t.Fatalf("Dispatch after commit: %v", err)
	}
	if runner.dispatchCount() != 1 {
		t.Fatalf("dispatch count after commit: want=1 got=%d", runner.dispatchCount())
	}
}

func TestStartCompleteSetsProgressAndDuration(t *testing.T) {
	store := newFakeStore()
	svc, _ := newJobFixture(t, &fakeRunner{}, store)
	dbc := testDBC(uuid.New(), uuid.Nil)

	job := submitJob(t, svc, dbc, SubmitJobInput{})
	if _, err := svc.Start(dbc, job.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.UpdateProgress(dbc, job.ID, 55); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	url, err := store.Upload(context.Background(), "results/output.json", "application/json", strings.NewReader(`{"ok":true}`))
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	done, err := svc.Complete(dbc, job.ID, []string{url}, map[string]any{
		"output.json": map[string]any{"kind": "results"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("status: want=%s got=%s", domain.JobStatusCompleted, done.Status)
	}
	if done.Progress != 100 {
		t.Fatalf("progress: want=100 got=%d", done.Progress)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed_at must be set")
	}

	artifacts, err := svc.ListArtifacts(testCtx(job.OwnerUserID, uuid.Nil), job.ID)
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("artifacts: want=1 got=%d", len(artifacts))
	}
	a := artifacts[0]
	if a.Name != "output.json" || a.URL != url {
		t.Fatalf("artifact identity: got=%+v", a)
	}
	if a.Size != int64(len(`{"ok":true}`)) || a.ContentType != "application/json" {
		t.Fatalf("artifact attrs: got=%+v", a)
	}
	if a.Metadata["kind"] != "results" {
		t.Fatalf("artifact metadata: got=%+v", a.Metadata)
	}
}

func TestListArtifactsSkipsUnreadableObjects(t *testing.T) {
	store := newFakeStore()
	svc, _ := newJobFixture(t, &fakeRunner{}, store)
	dbc := testDBC(uuid.New(), uuid.Nil)

	job := submitJob(t, svc, dbc, SubmitJobInput{})
	if _, err := svc.Start(dbc, job.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	keepURL, err := store.Upload(context.Background(), "results/report.yaml", "application/yaml", strings.NewReader("ok: true"))
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	goneURL, err := store.Upload(context.Background(), "results/scratch.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if _, err := svc.Complete(dbc, job.ID, []string{keepURL, goneURL}, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// An object deleted after completion must not break the listing; its
	// artifact entry is simply skipped.
	if err := store.Delete(context.Background(), "results/scratch.json"); err != nil {
		t.Fatalf("delete object: %v", err)
	}

	artifacts, err := svc.ListArtifacts(testCtx(job.OwnerUserID, uuid.Nil), job.ID)
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("artifacts: want=1 got=%d", len(artifacts))
	}
	if artifacts[0].Name != "report.yaml" || artifacts[0].URL != keepURL {
		t.Fatalf("surviving artifact: got=%+v", artifacts[0])
	}
}

func TestFailThenRetryFlow(t *testing.T) {
	runner := &fakeRunner{}
	svc, _ := newJobFixture(t, runner, nil)
	dbc := testDBC(uuid.New(), uuid.Nil)

	job := submitJob(t, svc, dbc, SubmitJobInput{MaxRetries: 1, Parameters: map[string]any{"batch": "a"}})
	if _, err := svc.Start(dbc, job.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	failed, err := svc.Fail(dbc, job.ID, "OOM")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.ErrorMessage != "OOM" {
		t.Fatalf("error_message: want=OOM got=%q", failed.ErrorMessage)
	}

	retried, err := svc.Retry(dbc, job.ID, map[string]any{"batch": "b"})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.Status != domain.JobStatusRetrying {
		t.Fatalf("status: want=%s got=%s", domain.JobStatusRetrying, retried.Status)
	}
	if retried.RetryCount != 1 {
		t.Fatalf("retry_count: want=1 got=%d", retried.RetryCount)
	}
	if retried.ErrorMessage != "" || retried.Progress != 0 || retried.CompletedAt != nil {
		t.Fatalf("retry must reset failure fields: got=%+v", retried)
	}
	if runner.dispatchCount() != 2 {
		t.Fatalf("dispatch count: want=2 got=%d", runner.dispatchCount())
	}

	// Budget of one: a second failure is final.
	if _, err := svc.Fail(dbc, job.ID, "OOM again"); err != nil {
		t.Fatalf("second Fail: %v", err)
	}
	_, err = svc.Retry(dbc, job.ID, nil)
	if code := apierr.CodeOf(err); code != "retry_budget_exhausted" {
		t.Fatalf("code: want=retry_budget_exhausted got=%q err=%v", code, err)
	}
}

func TestRetryRequiresFailedStatus(t *testing.T) {
	svc, _ := newJobFixture(t, &fakeRunner{}, nil)
	dbc := testDBC(uuid.New(), uuid.Nil)

	job := submitJob(t, svc, dbc, SubmitJobInput{})
	_, err := svc.Retry(dbc, job.ID, nil)
	if code := apierr.CodeOf(err); code != "job_not_retryable" {
		t.Fatalf("code: want=job_not_retryable got=%q err=%v", code, err)
	}
}

func TestCancelLegality(t *testing.T) {
	runner := &fakeRunner{}
	svc, _ := newJobFixture(t, runner, nil)
	dbc := testDBC(uuid.New(), uuid.Nil)

	// Pending jobs cancel cleanly and signal the runner.
	job := submitJob(t, svc, dbc, SubmitJobInput{})
	cancelled, err := svc.Cancel(dbc, job.ID)
	if err != nil {
		t.Fatalf("Cancel pending: %v", err)
	}
	if cancelled.Status != domain.JobStatusCancelled {
		t.Fatalf("status: want=%s got=%s", domain.JobStatusCancelled, cancelled.Status)
	}
	if len(runner.cancelled) != 1 {
		t.Fatalf("runner cancel calls: want=1 got=%d", len(runner.cancelled))
	}

	// Terminal jobs cannot be cancelled, including already-cancelled ones.
	if _, err := svc.Cancel(dbc, job.ID); apierr.CodeOf(err) != "job_not_cancellable" {
		t.Fatalf("cancel cancelled: want=job_not_cancellable got=%v", err)
	}

	completed := submitJob(t, svc, dbc, SubmitJobInput{})
	if _, err := svc.Start(dbc, completed.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Complete(dbc, completed.ID, nil, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := svc.Cancel(dbc, completed.ID); apierr.CodeOf(err) != "job_not_cancellable" {
		t.Fatalf("cancel completed: want=job_not_cancellable got=%v", err)
	}
}

func TestUpdateProgressRequiresRunning(t *testing.T) {
	svc, _ := newJobFixture(t, &fakeRunner{}, nil)
	dbc := testDBC(uuid.New(), uuid.Nil)

	job := submitJob(t, svc, dbc, SubmitJobInput{})
	_, err := svc.UpdateProgress(dbc, job.ID, 10)
	if code := apierr.CodeOf(err); code != "job_not_running" {
		t.Fatalf("code: want=job_not_running got=%q err=%v", code, err)
	}
}

func TestUpdateProgressClamps(t *testing.T) {
	svc, _ := newJobFixture(t, &fakeRunner{}, nil)
	dbc := testDBC(uuid.New(), uuid.Nil)

	job := submitJob(t, svc, dbc, SubmitJobInput{})
	if _, err := svc.Start(dbc, job.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, err := svc.UpdateProgress(dbc, job.ID, 250)
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if got.Progress != 100 {
		t.Fatalf("progress: want=100 got=%d", got.Progress)
	}
}

func TestJobAccessDeniedForStranger(t *testing.T) {
	svc, _ := newJobFixture(t, &fakeRunner{}, nil)
	owner := uuid.New()

	job := submitJob(t, svc, testDBC(owner, uuid.Nil), SubmitJobInput{})

	_, err := svc.GetJob(testDBC(uuid.New(), uuid.Nil), job.ID)
	if !apierr.IsKind(err, apierr.KindAccessDenied) {
		t.Fatalf("kind: want=access_denied got=%v", apierr.KindOf(err))
	}
}
