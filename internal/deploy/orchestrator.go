package deploy

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mkrell/chaincheck/internal/publish"
	"github.com/mkrell/chaincheck/internal/report"
	"github.com/mkrell/chaincheck/internal/stage"
	"github.com/mkrell/chaincheck/internal/trigger"
)

// State tracks how far a run has progressed.
type State string

const (
	StateClean    State = "clean"
	StateBuilt    State = "built"
	StateStarted  State = "started"
	StateReady    State = "ready"
	StateTestsRan State = "tests-ran"
	StateReported State = "reported"
	StateDone     State = "done"
)

// Resolver determines the revision under test.
type Resolver interface {
	Resolve(ctx context.Context, trig trigger.Context) (string, error)
}

// Gate certifies the deployed node before stages run.
type Gate interface {
	Wait(ctx context.Context) error
}

// StageRunner executes the conformance stages. Stage failures are results,
// not errors, so execution always yields a summary.
type StageRunner interface {
	Run(ctx context.Context, stages []stage.Stage) ([]report.StageResult, report.Summary)
}

// StatusPublisher writes the verdict to the external status sink.
type StatusPublisher interface {
	Publish(ctx context.Context, status publish.Status) error
}

// Orchestrator sequences one validation run:
// Clean → Built → Started → Ready → TestsRan → Reported → Done.
// Every failure path still reaches Reported; the report upload and status
// publish are never skipped once a revision is known.
type Orchestrator struct {
	Pipeline  string
	Trigger   trigger.Context
	Resolver  Resolver
	Deployer  Deployer
	Gate      Gate
	Runner    StageRunner
	Stages    []stage.Stage
	Store     report.Store
	ReportDir string
	Publisher StatusPublisher
	Logger    *log.Logger
	Now       func() time.Time
	RunID     string
	// DryRun plans the run without deploying a node, executing stages,
	// or publishing a status.
	DryRun bool
}

// Result is the terminal outcome of a run. ExitCode mirrors the verdict.
type Result struct {
	RunID     string
	Revision  string
	State     State
	Bundle    *report.Bundle
	ReportURL string
	Published bool
}

// ExitCode is 0 iff the verdict is success.
func (r *Result) ExitCode() int {
	if r.Bundle != nil && r.Bundle.Verdict.Success {
		return 0
	}
	return 1
}

// Run drives the state machine to Done. The returned error reflects the
// fatal abort, if any; the Result is populated on every path.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	logger := o.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[chaincheck] ", log.LstdFlags)
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}
	runID := o.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	result := &Result{RunID: runID}
	bundle := &report.Bundle{
		RunID:     runID,
		Pipeline:  o.Pipeline,
		Trigger:   string(o.Trigger.Kind),
		StartedAt: now().UTC(),
	}
	result.Bundle = bundle

	revision, resolveErr := o.Resolver.Resolve(ctx, o.Trigger)
	if resolveErr != nil {
		// Fatal before deployment. With no revision there is nowhere to
		// publish, but the report artifact is still produced.
		bundle.Verdict = report.Fatal(report.PhaseResolve, resolveErr)
		o.finalize(ctx, logger, result)
		return result, resolveErr
	}
	result.Revision = revision
	bundle.Revision = revision

	fatal := o.deployAndTest(ctx, logger, result)

	o.finalize(ctx, logger, result)
	result.State = StateDone
	return result, fatal
}

// deployAndTest walks Clean → TestsRan, returning the fatal error that
// stopped it, if any. StageFailures are not fatal; they are remembered in
// the verdict instead.
func (o *Orchestrator) deployAndTest(ctx context.Context, logger *log.Logger, result *Result) error {
	bundle := result.Bundle

	if o.DryRun {
		results, summary := o.Runner.Run(ctx, o.Stages)
		bundle.Stages = results
		bundle.Summary = summary
		result.State = StateTestsRan
		bundle.Verdict = report.Aggregate(summary)
		return nil
	}

	if err := o.Deployer.Clean(ctx); err != nil {
		bundle.Verdict = report.Fatal(report.PhaseClean, err)
		return err
	}
	result.State = StateClean

	logger.Printf("building revision %s", result.Revision)
	if err := o.Deployer.Build(ctx); err != nil {
		bundle.Verdict = report.Fatal(report.PhaseBuild, err)
		return err
	}
	result.State = StateBuilt

	stop, err := o.Deployer.Start(ctx)
	if err != nil {
		bundle.Verdict = report.Fatal(report.PhaseStart, err)
		return err
	}
	defer stop()
	result.State = StateStarted

	logger.Printf("waiting for node readiness")
	if err := o.Gate.Wait(ctx); err != nil {
		bundle.Verdict = report.Fatal(report.PhaseReady, err)
		return err
	}
	result.State = StateReady

	results, summary := o.Runner.Run(ctx, o.Stages)
	bundle.Stages = results
	bundle.Summary = summary
	result.State = StateTestsRan

	bundle.Verdict = report.Aggregate(summary)
	return nil
}

// finalize writes and persists the report bundle, then publishes the
// verdict when the trigger warrants it. It runs on every terminal path.
func (o *Orchestrator) finalize(ctx context.Context, logger *log.Logger, result *Result) {
	bundle := result.Bundle

	dir := filepath.Join(o.ReportDir, result.RunID)
	if err := bundle.WriteDir(dir); err != nil {
		logger.Printf("write report bundle: %v", err)
	} else if o.Store != nil {
		url, err := o.Store.Persist(ctx, result.RunID, dir)
		if err != nil {
			logger.Printf("persist report bundle: %v", err)
		} else {
			result.ReportURL = url
		}
	}
	result.State = StateReported

	if o.DryRun || !publish.ShouldPublish(o.Trigger) {
		return
	}
	if result.Revision == "" {
		// Resolution failed before a revision was known; nothing to
		// publish against.
		return
	}
	if o.Publisher == nil {
		logger.Printf("no status publisher configured; skipping publish")
		return
	}
	status := publish.FromVerdict(result.Revision, bundle.Verdict, o.Pipeline, result.ReportURL)
	if err := o.Publisher.Publish(ctx, status); err != nil {
		// PublishError: logged, not retried, and never changes the run's
		// own exit status.
		logger.Printf("publish status: %v", err)
		return
	}
	result.Published = true
}
