package resolve

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/mkrell/chaincheck/internal/trigger"
)

// ResolutionError marks a fatal failure to determine the revision under
// test. No fallback revision is ever substituted for one of these.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve revision: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PullHeadFetcher reads the current head revision of a pull request from
// the source-hosting service.
type PullHeadFetcher interface {
	PullRequestHead(ctx context.Context, owner, repo string, number int) (string, error)
}

// Resolver maps a trigger context onto the one concrete revision a run
// validates.
type Resolver struct {
	Pulls PullHeadFetcher
	// Checkout returns the revision of the invoking checkout. Defaults to
	// `git rev-parse HEAD` in Root.
	Checkout func(ctx context.Context) (string, error)
	Root     string
}

var shaPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,64}$`)

// Resolve determines the revision for trig. DispatchPR performs a
// point-in-time read of the pull request head; every other trigger uses the
// revision already present in the checkout or payload.
func (r *Resolver) Resolve(ctx context.Context, trig trigger.Context) (string, error) {
	switch trig.Kind {
	case trigger.DispatchDirect:
		rev := strings.TrimSpace(trig.Revision)
		if !shaPattern.MatchString(rev) {
			return "", &ResolutionError{Err: fmt.Errorf("revision %q is not a commit sha", trig.Revision)}
		}
		return rev, nil
	case trigger.DispatchPR:
		if r.Pulls == nil {
			return "", &ResolutionError{Err: fmt.Errorf("no pull request client configured")}
		}
		head, err := r.Pulls.PullRequestHead(ctx, trig.Pull.Owner, trig.Pull.Repo, trig.Pull.Number)
		if err != nil {
			return "", &ResolutionError{Err: fmt.Errorf("pull %s: %w", trig.Pull, err)}
		}
		return head, nil
	case trigger.Push, trigger.Regression:
		checkout := r.Checkout
		if checkout == nil {
			checkout = r.gitHead
		}
		rev, err := checkout(ctx)
		if err != nil {
			return "", &ResolutionError{Err: fmt.Errorf("checkout revision: %w", err)}
		}
		return rev, nil
	default:
		return "", &ResolutionError{Err: fmt.Errorf("unknown trigger kind %q", trig.Kind)}
	}
}

func (r *Resolver) gitHead(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	if r.Root != "" {
		cmd.Dir = r.Root
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %v: %s", err, strings.TrimSpace(out.String()))
	}
	rev := strings.TrimSpace(out.String())
	if !shaPattern.MatchString(rev) {
		return "", fmt.Errorf("git rev-parse HEAD returned %q", rev)
	}
	return rev, nil
}
