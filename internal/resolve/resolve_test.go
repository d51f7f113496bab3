package resolve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mkrell/chaincheck/internal/trigger"
)

type fakePulls struct {
	head string
	err  error

	gotOwner  string
	gotRepo   string
	gotNumber int
}

func (f *fakePulls) PullRequestHead(_ context.Context, owner, repo string, number int) (string, error) {
	f.gotOwner, f.gotRepo, f.gotNumber = owner, repo, number
	return f.head, f.err
}

func TestResolveDispatchPRUsesHead(t *testing.T) {
	pulls := &fakePulls{head: "feedface0012"}
	r := &Resolver{
		Pulls: pulls,
		// A checkout lookup here would mean the resolver fell back
		// silently, which is exactly what must not happen.
		Checkout: func(context.Context) (string, error) {
			t.Fatal("checkout consulted for a pull request dispatch")
			return "", nil
		},
	}

	rev, err := r.Resolve(context.Background(), trigger.Context{
		Kind: trigger.DispatchPR,
		Pull: trigger.PullRef{Owner: "axonweb3", Repo: "axon", Number: 142},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rev != "feedface0012" {
		t.Fatalf("expected PR head revision, got %q", rev)
	}
	if pulls.gotOwner != "axonweb3" || pulls.gotRepo != "axon" || pulls.gotNumber != 142 {
		t.Fatalf("unexpected pull lookup: %s/%s#%d", pulls.gotOwner, pulls.gotRepo, pulls.gotNumber)
	}
}

func TestResolveDispatchPRUnresolvable(t *testing.T) {
	r := &Resolver{Pulls: &fakePulls{err: fmt.Errorf("pull request not found")}}
	_, err := r.Resolve(context.Background(), trigger.Context{
		Kind: trigger.DispatchPR,
		Pull: trigger.PullRef{Owner: "o", Repo: "r", Number: 9},
	})
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
}

func TestResolveDispatchDirect(t *testing.T) {
	r := &Resolver{}
	rev, err := r.Resolve(context.Background(), trigger.Context{
		Kind:     trigger.DispatchDirect,
		Revision: "abc1234",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rev != "abc1234" {
		t.Fatalf("expected literal revision, got %q", rev)
	}
}

func TestResolveDispatchDirectRejectsNonSHA(t *testing.T) {
	r := &Resolver{}
	_, err := r.Resolve(context.Background(), trigger.Context{
		Kind:     trigger.DispatchDirect,
		Revision: "not a sha",
	})
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
}

func TestResolvePushUsesCheckout(t *testing.T) {
	r := &Resolver{
		Checkout: func(context.Context) (string, error) {
			return "0123456789abcdef0123456789abcdef01234567", nil
		},
	}
	rev, err := r.Resolve(context.Background(), trigger.Context{Kind: trigger.Push})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rev != "0123456789abcdef0123456789abcdef01234567" {
		t.Fatalf("unexpected revision %q", rev)
	}
}

func TestResolveCheckoutFailure(t *testing.T) {
	r := &Resolver{
		Checkout: func(context.Context) (string, error) {
			return "", fmt.Errorf("not a git repository")
		},
	}
	_, err := r.Resolve(context.Background(), trigger.Context{Kind: trigger.Regression})
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
}
