package publish

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrell/chaincheck/internal/githubapi"
	"github.com/mkrell/chaincheck/internal/report"
	"github.com/mkrell/chaincheck/internal/trigger"
)

// memorySink records statuses the way the real sink does: keyed by
// (revision, context), last write wins.
type memorySink struct {
	writes   int
	statuses map[string]githubapi.CommitStatus
	err      error
}

func newMemorySink() *memorySink {
	return &memorySink{statuses: make(map[string]githubapi.CommitStatus)}
}

func (s *memorySink) CreateCommitStatus(_ context.Context, owner, repo, sha string, status githubapi.CommitStatus) error {
	if s.err != nil {
		return s.err
	}
	s.writes++
	s.statuses[sha+"/"+status.Context] = status
	return nil
}

func TestShouldPublishOnlyForDispatch(t *testing.T) {
	assert.True(t, ShouldPublish(trigger.Context{Kind: trigger.DispatchDirect}))
	assert.True(t, ShouldPublish(trigger.Context{Kind: trigger.DispatchPR}))
	assert.False(t, ShouldPublish(trigger.Context{Kind: trigger.Regression}))
	assert.False(t, ShouldPublish(trigger.Context{Kind: trigger.Push}))
}

func TestFromVerdict(t *testing.T) {
	success := FromVerdict("abc123", report.Verdict{Success: true, Phase: report.PhaseComplete}, "chaincheck-conformance", "file:///r/1")
	assert.Equal(t, StateSuccess, success.State)
	assert.Equal(t, "chaincheck-conformance", success.Context)
	assert.Equal(t, "file:///r/1", success.TargetURL)

	stageFail := FromVerdict("abc123", report.Verdict{Success: false, Phase: report.PhaseComplete}, "p", "")
	assert.Equal(t, StateFailure, stageFail.State)

	// Setup that never completed is distinguishable from a stage failure.
	aborted := FromVerdict("abc123", report.Verdict{Success: false, Phase: report.PhaseReady}, "p", "")
	assert.Equal(t, StateError, aborted.State)
	assert.Contains(t, aborted.Description, "ready")
}

func TestPublishWritesStatus(t *testing.T) {
	sink := newMemorySink()
	p := &Publisher{Sink: sink, Owner: "o", Repo: "r", Pipeline: "chaincheck-conformance"}

	err := p.Publish(context.Background(), Status{
		Revision: "abc123",
		State:    StateSuccess,
		Context:  "chaincheck-conformance",
	})
	require.NoError(t, err)
	require.Equal(t, 1, sink.writes)
	assert.Equal(t, StateSuccess, sink.statuses["abc123/chaincheck-conformance"].State)
}

func TestPublishIdempotentLastWriteWins(t *testing.T) {
	sink := newMemorySink()
	p := &Publisher{Sink: sink, Owner: "o", Repo: "r", Pipeline: "p"}

	first := Status{Revision: "abc123", State: StateFailure, Context: "p"}
	second := Status{Revision: "abc123", State: StateSuccess, Context: "p"}
	require.NoError(t, p.Publish(context.Background(), first))
	require.NoError(t, p.Publish(context.Background(), second))

	// Two writes happened but only the latest is visible externally.
	assert.Equal(t, 2, sink.writes)
	assert.Len(t, sink.statuses, 1)
	assert.Equal(t, StateSuccess, sink.statuses["abc123/p"].State)
}

func TestPublishRequiresRevision(t *testing.T) {
	p := &Publisher{Sink: newMemorySink()}
	err := p.Publish(context.Background(), Status{State: StateFailure})
	require.Error(t, err)
}

func TestPublishSurfacesSinkFailure(t *testing.T) {
	sink := newMemorySink()
	sink.err = fmt.Errorf("503 service unavailable")
	p := &Publisher{Sink: sink}
	err := p.Publish(context.Background(), Status{Revision: "abc123", State: StateFailure})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abc123")
}
