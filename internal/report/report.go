package report

import "time"

// Stage statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Phase records how far a run got before it stopped. It is what lets a
// reader distinguish "setup never completed" from "some stage failed".
type Phase string

const (
	PhaseResolve  Phase = "resolve"
	PhaseClean    Phase = "clean"
	PhaseBuild    Phase = "build"
	PhaseStart    Phase = "start"
	PhaseReady    Phase = "ready"
	PhaseComplete Phase = "complete"
)

// StageResult captures the outcome of a single stage. Immutable once
// appended to a run.
type StageResult struct {
	StageName  string        `json:"stage_name"`
	Command    string        `json:"command"`
	Status     string        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
}

// Summary aggregates stage execution results.
type Summary struct {
	TotalStages int           `json:"total_stages"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
	ExitCode    int           `json:"exit_code"`
}

// Verdict is the single pass/fail aggregate over readiness and every stage
// of one run.
type Verdict struct {
	Success bool   `json:"success"`
	Phase   Phase  `json:"phase"`
	Reason  string `json:"reason,omitempty"`
}

// Aggregate computes the verdict from a completed stage run: success iff
// readiness succeeded (we got this far) and no stage failed, even though
// failed stages did not stop the run.
func Aggregate(summary Summary) Verdict {
	if summary.Failed > 0 {
		return Verdict{Success: false, Phase: PhaseComplete, Reason: "one or more stages failed"}
	}
	return Verdict{Success: true, Phase: PhaseComplete}
}

// Fatal builds the failure verdict for a run that never reached the stage
// runner.
func Fatal(phase Phase, err error) Verdict {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return Verdict{Success: false, Phase: phase, Reason: reason}
}
