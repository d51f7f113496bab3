package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// CommandRunner executes a registry CLI invocation and returns its combined
// output. Swappable in tests.
type CommandRunner func(ctx context.Context, name string, args ...string) (string, error)

// Client wraps the container CLI for the image-publishing flow.
type Client struct {
	// Binary is the container CLI, "docker" by default.
	Binary string
	Run    CommandRunner
}

// New creates a Client with defaults applied.
func New() *Client {
	return &Client{Binary: "docker", Run: runCommand}
}

func (c *Client) binary() string {
	if c.Binary == "" {
		return "docker"
	}
	return c.Binary
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	run := c.Run
	if run == nil {
		run = runCommand
	}
	return run(ctx, c.binary(), args...)
}

var digestPattern = regexp.MustCompile(`digest:\s*(sha256:[0-9a-f]{64})`)

// Push bakes labels into the image, tags it, and pushes every tag,
// returning the content digest reported by the registry.
func (c *Client) Push(ctx context.Context, image string, tags []string, labels map[string]string) (string, error) {
	if len(tags) == 0 {
		return "", fmt.Errorf("push %s: at least one tag required", image)
	}
	if len(labels) > 0 {
		if err := c.applyLabels(ctx, image, labels); err != nil {
			return "", err
		}
	}
	for _, tag := range tags {
		ref := image + ":" + tag
		args := []string{"tag", image, ref}
		if _, err := c.run(ctx, args...); err != nil {
			return "", fmt.Errorf("tag %s: %w", ref, err)
		}
	}

	var digest string
	for _, tag := range tags {
		ref := image + ":" + tag
		out, err := c.run(ctx, "push", ref)
		if err != nil {
			return "", fmt.Errorf("push %s: %w", ref, err)
		}
		if match := digestPattern.FindStringSubmatch(out); len(match) == 2 {
			digest = match[1]
		}
	}
	if digest == "" {
		return "", fmt.Errorf("push %s: registry reported no digest", image)
	}
	return digest, nil
}

// applyLabels rewraps the image with the given labels. docker tag cannot
// attach labels, so the image becomes the sole parent of a one-line rebuild.
func (c *Client) applyLabels(ctx context.Context, image string, labels map[string]string) error {
	dir, err := os.MkdirTemp("", "chaincheck-label-")
	if err != nil {
		return fmt.Errorf("label %s: %w", image, err)
	}
	defer os.RemoveAll(dir)
	dockerfile := "FROM " + image + "\n"
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		return fmt.Errorf("label %s: %w", image, err)
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := []string{"build"}
	for _, k := range keys {
		args = append(args, "--label", k+"="+labels[k])
	}
	args = append(args, "-t", image, dir)
	if _, err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("label %s: %w", image, err)
	}
	return nil
}

// VerifyVersion pulls and runs the published image with --version and
// requires the reported version to contain want. The publish step is not
// complete until this passes.
func (c *Client) VerifyVersion(ctx context.Context, ref, want string) error {
	if _, err := c.run(ctx, "pull", ref); err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	out, err := c.run(ctx, "run", "--rm", ref, "--version")
	if err != nil {
		return fmt.Errorf("run %s --version: %w", ref, err)
	}
	if !strings.Contains(out, want) {
		return fmt.Errorf("image %s reports version %q, want %q", ref, strings.TrimSpace(out), want)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.String(), fmt.Errorf("%s %s: %v: %s", name, strings.Join(args, " "), err, strings.TrimSpace(buf.String()))
	}
	return buf.String(), nil
}
