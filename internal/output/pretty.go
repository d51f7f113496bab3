package output

import (
	"fmt"
	"io"
	"time"

	"github.com/mkrell/chaincheck/internal/report"
)

// PrettyRenderer renders run results in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a renderer writing to out.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderRun prints per-stage lines followed by the aggregate verdict.
func (p *PrettyRenderer) RenderRun(bundle *report.Bundle, reportURL string) error {
	fmt.Fprintf(p.out, "pipeline %s  revision %s\n\n", bundle.Pipeline, shortRev(bundle.Revision))

	for _, st := range bundle.Stages {
		fmt.Fprintf(p.out, "  %s %-32s %s\n", statusGlyph(st.Status), st.StageName, formatDuration(st.Duration))
		if st.Status == report.StatusFailed && st.Stderr != "" {
			fmt.Fprintf(p.out, "      %s\n", st.Stderr)
		}
	}

	s := bundle.Summary
	fmt.Fprintf(p.out, "\n%d stages: %d passed, %d failed, %d skipped (%s)\n",
		s.TotalStages, s.Passed, s.Failed, s.Skipped, formatDuration(s.Duration))

	if bundle.Verdict.Success {
		fmt.Fprintln(p.out, "verdict: success")
	} else if bundle.Verdict.Reason != "" {
		fmt.Fprintf(p.out, "verdict: failure (%s)\n", bundle.Verdict.Reason)
	} else {
		fmt.Fprintln(p.out, "verdict: failure")
	}
	if reportURL != "" {
		fmt.Fprintf(p.out, "report: %s\n", reportURL)
	}
	return nil
}

func statusGlyph(status string) string {
	switch status {
	case report.StatusPassed:
		return "✔"
	case report.StatusFailed:
		return "✖"
	default:
		return "-"
	}
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	if rev == "" {
		return "(unresolved)"
	}
	return rev
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(10 * time.Millisecond).String()
}
