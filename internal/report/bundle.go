package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Bundle is the opaque report artifact for one run, retrievable by run ID
// and consumed by humans only.
type Bundle struct {
	RunID     string        `json:"run_id"`
	Pipeline  string        `json:"pipeline"`
	Revision  string        `json:"revision"`
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	Verdict   Verdict       `json:"verdict"`
	Summary   Summary       `json:"summary"`
	Stages    []StageResult `json:"stages"`
}

// WriteDir materializes the bundle under dir: report.json plus one log file
// per executed stage.
func (b *Bundle) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir %q: %w", dir, err)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), data, 0o644); err != nil {
		return fmt.Errorf("write report.json: %w", err)
	}

	for i, st := range b.Stages {
		if st.Status == StatusSkipped {
			continue
		}
		name := fmt.Sprintf("%02d-%s.log", i+1, slug(st.StageName))
		var buf strings.Builder
		fmt.Fprintf(&buf, "stage: %s\ncommand: %s\nstatus: %s\nexit code: %d\n\n", st.StageName, st.Command, st.Status, st.ExitCode)
		if st.Stdout != "" {
			buf.WriteString("--- stdout ---\n")
			buf.WriteString(st.Stdout)
			buf.WriteString("\n")
		}
		if st.Stderr != "" {
			buf.WriteString("--- stderr ---\n")
			buf.WriteString(st.Stderr)
			buf.WriteString("\n")
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(buf.String()), 0o644); err != nil {
			return fmt.Errorf("write stage log %q: %w", name, err)
		}
	}
	return nil
}

func slug(name string) string {
	mapper := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}
	out := strings.Map(mapper, name)
	out = strings.Trim(out, "-")
	if out == "" {
		out = "stage"
	}
	return out
}
