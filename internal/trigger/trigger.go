package trigger

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies why a run started. It is constructed exactly once at the
// CLI boundary and threaded as a parameter; no component re-derives it from
// ambient state.
type Kind string

const (
	// Push runs validate the current checkout after a branch update.
	Push Kind = "push"
	// Regression runs execute the full pipeline on a schedule with no
	// requester to notify.
	Regression Kind = "regression"
	// DispatchDirect runs validate an explicitly supplied revision.
	DispatchDirect Kind = "dispatch-direct"
	// DispatchPR runs validate the current head of a referenced pull request.
	DispatchPR Kind = "dispatch-pr"
)

// PullRef identifies a pull request on the source-hosting service.
type PullRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r PullRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// Context is the closed trigger variant governing revision resolution and
// whether a verdict is published externally.
type Context struct {
	Kind     Kind
	Revision string  // set for DispatchDirect
	Pull     PullRef // set for DispatchPR
}

// Publishes reports whether runs with this trigger notify the source-hosting
// service. Regression and Push runs still execute the whole pipeline but
// have no requester waiting on a commit status.
func (c Context) Publishes() bool {
	return c.Kind == DispatchDirect || c.Kind == DispatchPR
}

// ParsePull parses a "owner/repo#number" dispatch payload. Malformed shapes
// fail eagerly instead of propagating a permissive fallback.
func ParsePull(payload string) (PullRef, error) {
	payload = strings.TrimSpace(payload)
	slash := strings.Index(payload, "/")
	hash := strings.LastIndex(payload, "#")
	if slash <= 0 || hash <= slash+1 || hash == len(payload)-1 {
		return PullRef{}, fmt.Errorf("malformed pull reference %q, want owner/repo#number", payload)
	}
	number, err := strconv.Atoi(payload[hash+1:])
	if err != nil || number <= 0 {
		return PullRef{}, fmt.Errorf("malformed pull number in %q", payload)
	}
	return PullRef{
		Owner:  payload[:slash],
		Repo:   payload[slash+1 : hash],
		Number: number,
	}, nil
}

// Parse builds a Context from the CLI trigger name and its optional payloads.
func Parse(name, revision, pull string) (Context, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case Push, "":
		if revision != "" || pull != "" {
			return Context{}, fmt.Errorf("push trigger takes no revision or pull payload")
		}
		return Context{Kind: Push}, nil
	case Regression:
		if revision != "" || pull != "" {
			return Context{}, fmt.Errorf("regression trigger takes no revision or pull payload")
		}
		return Context{Kind: Regression}, nil
	case "dispatch":
		switch {
		case revision != "" && pull != "":
			return Context{}, fmt.Errorf("dispatch trigger takes either a revision or a pull reference, not both")
		case revision != "":
			return Context{Kind: DispatchDirect, Revision: revision}, nil
		case pull != "":
			ref, err := ParsePull(pull)
			if err != nil {
				return Context{}, err
			}
			return Context{Kind: DispatchPR, Pull: ref}, nil
		default:
			return Context{}, fmt.Errorf("dispatch trigger requires --revision or --pr")
		}
	default:
		return Context{}, fmt.Errorf("unsupported trigger %q", name)
	}
}
