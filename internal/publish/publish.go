package publish

import (
	"context"
	"fmt"

	"github.com/mkrell/chaincheck/internal/githubapi"
	"github.com/mkrell/chaincheck/internal/report"
	"github.com/mkrell/chaincheck/internal/trigger"
)

// Status is one externally published verdict. The sink keys writes on
// (revision, pipeline context); the last write for a key wins, which is what
// makes re-runs of the same revision safe.
type Status struct {
	Revision    string
	State       string
	Context     string
	Description string
	TargetURL   string
}

// Commit-status states understood by the sink.
const (
	StateSuccess = "success"
	StateFailure = "failure"
	StateError   = "error"
)

// Sink writes a commit status to the source-hosting service.
type Sink interface {
	CreateCommitStatus(ctx context.Context, owner, repo, sha string, status githubapi.CommitStatus) error
}

// Publisher reports pipeline verdicts back to the revision that triggered
// the run.
type Publisher struct {
	Sink     Sink
	Owner    string
	Repo     string
	Pipeline string
}

// ShouldPublish reports whether runs with this trigger write externally.
// Regression and Push runs execute the whole pipeline but have no requester
// to notify, so they perform zero external writes.
func ShouldPublish(trig trigger.Context) bool {
	return trig.Publishes()
}

// FromVerdict maps a run verdict onto a publishable status. A run that
// never completed setup reports "error" rather than "failure" so the
// requester can tell the two apart without opening the report.
func FromVerdict(revision string, verdict report.Verdict, pipeline, reportURL string) Status {
	status := Status{
		Revision:  revision,
		Context:   pipeline,
		TargetURL: reportURL,
	}
	switch {
	case verdict.Success:
		status.State = StateSuccess
		status.Description = "conformance pipeline passed"
	case verdict.Phase == report.PhaseComplete:
		status.State = StateFailure
		status.Description = "one or more conformance stages failed"
	default:
		status.State = StateError
		status.Description = fmt.Sprintf("pipeline aborted during %s", verdict.Phase)
	}
	return status
}

// Publish writes the status. Callers treat a failure here as a logged
// PublishError: it is not retried and never changes the run's own exit
// status.
func (p *Publisher) Publish(ctx context.Context, status Status) error {
	if p.Sink == nil {
		return fmt.Errorf("no status sink configured")
	}
	if status.Revision == "" {
		return fmt.Errorf("no revision to publish against")
	}
	err := p.Sink.CreateCommitStatus(ctx, p.Owner, p.Repo, status.Revision, githubapi.CommitStatus{
		State:       status.State,
		Context:     status.Context,
		Description: status.Description,
		TargetURL:   status.TargetURL,
	})
	if err != nil {
		return fmt.Errorf("publish status for %s: %w", status.Revision, err)
	}
	return nil
}
