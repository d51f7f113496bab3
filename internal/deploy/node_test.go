package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell")
	}
}

func TestNodeDeployerCleanRemovesDataDir(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "chain-data")
	if err := os.MkdirAll(filepath.Join(dataDir, "rocksdb"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	d := &NodeDeployer{Root: root, DataDir: dataDir}
	if err := d.Clean(context.Background()); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(dataDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("data dir still present: %v", err)
	}
	// Cleaning with nothing to remove is not an error.
	if err := d.Clean(context.Background()); err != nil {
		t.Fatalf("second Clean: %v", err)
	}
}

func TestNodeDeployerBuild(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	d := &NodeDeployer{Root: root, BuildCmd: "touch built.marker"}
	if err := d.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "built.marker")); err != nil {
		t.Fatalf("build command did not run in root: %v", err)
	}
}

func TestNodeDeployerBuildFailure(t *testing.T) {
	skipOnWindows(t)
	d := &NodeDeployer{Root: t.TempDir(), BuildCmd: "exit 2"}
	err := d.Build(context.Background())
	var deployErr *DeployError
	if !errors.As(err, &deployErr) {
		t.Fatalf("expected DeployError, got %v", err)
	}
	if deployErr.Op != "build" {
		t.Fatalf("unexpected op %q", deployErr.Op)
	}
}

func TestNodeDeployerEmptyBuildIsNoop(t *testing.T) {
	d := &NodeDeployer{Root: t.TempDir()}
	if err := d.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestNodeDeployerStartDetachesAndStops(t *testing.T) {
	skipOnWindows(t)
	d := &NodeDeployer{Root: t.TempDir(), StartCmd: "sleep 30"}

	started := time.Now()
	stop, err := d.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("Start blocked for %v", elapsed)
	}
	stop()
}

func TestNodeDeployerStartRequiresCommand(t *testing.T) {
	d := &NodeDeployer{Root: t.TempDir()}
	_, err := d.Start(context.Background())
	var deployErr *DeployError
	if !errors.As(err, &deployErr) {
		t.Fatalf("expected DeployError, got %v", err)
	}
}
