package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/mkrell/chaincheck/internal/report"
	"github.com/mkrell/chaincheck/internal/stage"
)

// Options configure how the runner executes stages.
type Options struct {
	Root      string
	Stdout    io.Writer
	Stderr    io.Writer
	Verbose   bool
	DryRun    bool
	TailLines int
	Env       []string
	Now       func() time.Time
	// StageTimeout bounds each stage command; zero disables the bound.
	StageTimeout time.Duration
}

// Runner executes conformance stages sequentially against one already-ready
// node instance. Stages never run concurrently: they share the node's state.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 40
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts}
}

// Run executes the stages strictly in order, returning one result per
// stage and a summary. A failing stage with the continue policy records its
// result and execution proceeds; a failing stage without it marks the rest
// skipped. Either way the summary remembers the failure; command failures
// are results, never errors.
func (r *Runner) Run(ctx context.Context, stages []stage.Stage) ([]report.StageResult, report.Summary) {
	summary := report.Summary{TotalStages: len(stages)}
	results := make([]report.StageResult, 0, len(stages))

	aborted := false
	for _, st := range stages {
		result := report.StageResult{
			StageName: st.Name,
			Command:   st.Run,
		}

		if aborted || r.opts.DryRun {
			result.Status = report.StatusSkipped
			summary.Skipped++
			results = append(results, result)
			continue
		}

		start := r.opts.Now()
		err := r.runStage(ctx, st, &result)
		result.Duration = r.opts.Now().Sub(start)
		result.DurationMS = result.Duration.Milliseconds()

		if err != nil {
			result.Status = report.StatusFailed
			result.Stdout = tailLines(result.Stdout, r.opts.TailLines)
			result.Stderr = tailLines(result.Stderr, r.opts.TailLines)
			summary.Failed++
			summary.ExitCode = 1
			if !st.Continues() {
				aborted = true
			}
		} else {
			result.Status = report.StatusPassed
			summary.Passed++
		}

		summary.Duration += result.Duration
		results = append(results, result)
	}

	summary.DurationMS = summary.Duration.Milliseconds()
	return results, summary
}

func (r *Runner) runStage(ctx context.Context, st stage.Stage, result *report.StageResult) error {
	if r.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.StageTimeout)
		defer cancel()
	}

	env := mergeEnv(r.opts.Env, st.Env)
	args := commandArgs(st.Run)

	workingDir, err := resolveWorkingDirectory(r.opts.Root, st)
	if err != nil {
		result.Stderr = err.Error()
		result.ExitCode = 127
		return err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workingDir
	cmd.Env = env

	var stdoutBuf, stderrBuf strings.Builder
	if r.opts.Verbose {
		cmd.Stdout = io.MultiWriter(r.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(r.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	err = cmd.Run()
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.ExitCode = exitCode(err)
	return err
}

func commandArgs(script string) []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", script}
	}
	return []string{"sh", "-c", script}
}

func resolveWorkingDirectory(root string, st stage.Stage) (string, error) {
	candidate := strings.TrimSpace(st.WorkingDirectory)
	if candidate != "" {
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, candidate)
		}
		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("working directory %q not found", candidate)
			}
			return "", fmt.Errorf("stat working directory %q: %w", candidate, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("working directory %q is not a directory", candidate)
		}
		return candidate, nil
	}
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
	}
	return root, nil
}

func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlays)*4)
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, envMap[k]))
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}
