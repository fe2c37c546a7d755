package domain

import "testing"

func TestJobLifecycleTable(t *testing.T) {
	allowed := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusRunning},
		{JobStatusPending, JobStatusFailed},
		{JobStatusPending, JobStatusCancelled},
		{JobStatusRunning, JobStatusCompleted},
		{JobStatusRunning, JobStatusFailed},
		{JobStatusRunning, JobStatusCancelled},
		{JobStatusFailed, JobStatusRetrying},
		{JobStatusRetrying, JobStatusRunning},
		{JobStatusRetrying, JobStatusFailed},
		{JobStatusRetrying, JobStatusCancelled},
	}
	for _, tc := range allowed {
		if !JobLifecycle.CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s): want=true got=false", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to JobStatus }{
		{JobStatusPending, JobStatusCompleted},
		{JobStatusPending, JobStatusRetrying},
		{JobStatusCompleted, JobStatusRunning},
		{JobStatusCompleted, JobStatusRetrying},
		{JobStatusCancelled, JobStatusRetrying},
		{JobStatusCancelled, JobStatusRunning},
		{JobStatusFailed, JobStatusRunning},
		{JobStatusFailed, JobStatusCompleted},
		{JobStatusRetrying, JobStatusCompleted},
	}
	for _, tc := range forbidden {
		if JobLifecycle.CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s): want=false got=true", tc.from, tc.to)
		}
	}
}

func TestJobTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		j := &Job{Status: s}
		if !j.Terminal() {
			t.Errorf("Terminal(%s): want=true got=false", s)
		}
	}
	for _, s := range []JobStatus{JobStatusPending, JobStatusRunning, JobStatusRetrying} {
		j := &Job{Status: s}
		if j.Terminal() {
			t.Errorf("Terminal(%s): want=false got=true", s)
		}
	}
}

func TestJobRetryable(t *testing.T) {
	cases := []struct {
		status  JobStatus
		retries int
		max     int
		want    bool
	}{
		{JobStatusFailed, 0, 3, true},
		{JobStatusFailed, 2, 3, true},
		{JobStatusFailed, 3, 3, false},
		{JobStatusRunning, 0, 3, false},
		{JobStatusCompleted, 0, 3, false},
		{JobStatusCancelled, 0, 3, false},
	}
	for _, tc := range cases {
		j := &Job{Status: tc.status, RetryCount: tc.retries, MaxRetries: tc.max}
		if got := j.Retryable(); got != tc.want {
			t.Errorf("Retryable(status=%s retries=%d/%d): want=%v got=%v", tc.status, tc.retries, tc.max, tc.want, got)
		}
	}
}

func TestKnownJobType(t *testing.T) {
	for _, jt := range []JobType{JobTypeNotebookExecution, JobTypeModelTraining, JobTypeDataProcessing, JobTypeAssessment, JobTypeReportGeneration, JobTypeCleanup} {
		if !KnownJobType(jt) {
			t.Errorf("KnownJobType(%s): want=true got=false", jt)
		}
	}
	if KnownJobType(JobType("mining")) {
		t.Error("KnownJobType(mining): want=false got=true")
	}
}
