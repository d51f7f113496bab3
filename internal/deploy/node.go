package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// DeployError marks a build or process-start failure. It aborts stage
// execution but the run still reports.
type DeployError struct {
	Op  string
	Err error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy %s: %v", e.Op, e.Err)
}

func (e *DeployError) Unwrap() error { return e.Err }

// Deployer manages the throwaway node instance for one run.
type Deployer interface {
	// Clean removes persisted state from a prior run.
	Clean(ctx context.Context) error
	// Build produces the node binary.
	Build(ctx context.Context) error
	// Start launches the node detached and returns a stop function.
	Start(ctx context.Context) (stop func(), err error)
}

// NodeDeployer builds and runs the node via shell commands from the config.
type NodeDeployer struct {
	Root     string
	DataDir  string
	BuildCmd string
	StartCmd string
	Stdout   io.Writer
	Stderr   io.Writer
}

// Clean wipes the node data directory so a prior run cannot contaminate
// this one.
func (d *NodeDeployer) Clean(_ context.Context) error {
	if d.DataDir == "" {
		return nil
	}
	if err := os.RemoveAll(d.DataDir); err != nil {
		return &DeployError{Op: "clean", Err: err}
	}
	return nil
}

// Build runs the configured build command to completion.
func (d *NodeDeployer) Build(ctx context.Context) error {
	if strings.TrimSpace(d.BuildCmd) == "" {
		return nil
	}
	cmd := d.command(ctx, d.BuildCmd)
	if err := cmd.Run(); err != nil {
		return &DeployError{Op: "build", Err: err}
	}
	return nil
}

// Start launches the node without waiting for it; the readiness gate
// decides when it is usable. The returned stop kills the process and reaps
// it.
func (d *NodeDeployer) Start(ctx context.Context) (func(), error) {
	if strings.TrimSpace(d.StartCmd) == "" {
		return nil, &DeployError{Op: "start", Err: fmt.Errorf("no start command configured")}
	}
	cmd := d.command(ctx, d.StartCmd)
	if err := cmd.Start(); err != nil {
		return nil, &DeployError{Op: "start", Err: err}
	}
	stop := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
	}
	return stop, nil
}

func (d *NodeDeployer) command(ctx context.Context, script string) *exec.Cmd {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", script)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", script)
	}
	if d.Root != "" {
		cmd.Dir = d.Root
	}
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr
	return cmd
}
