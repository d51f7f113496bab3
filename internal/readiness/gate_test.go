package readiness

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type scriptedClient struct {
	heights   []any // uint64 or error per BlockNumber call
	versions  []any // string or error per ClientVersion call
	heightIdx int
	verIdx    int
}

func (c *scriptedClient) BlockNumber(context.Context) (uint64, error) {
	if c.heightIdx >= len(c.heights) {
		return 0, fmt.Errorf("no more scripted heights")
	}
	v := c.heights[c.heightIdx]
	c.heightIdx++
	if err, ok := v.(error); ok {
		return 0, err
	}
	return v.(uint64), nil
}

func (c *scriptedClient) ClientVersion(context.Context) (string, error) {
	if c.verIdx >= len(c.versions) {
		return "axon/v0.3.0", nil
	}
	v := c.versions[c.verIdx]
	c.verIdx++
	if err, ok := v.(error); ok {
		return "", err
	}
	return v.(string), nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestProgressProbeSucceedsWithinBudget(t *testing.T) {
	client := &scriptedClient{heights: []any{uint64(0), uint64(0), uint64(0), uint64(2)}}
	gate := New(client, Config{
		ProtocolAttempts: 1,
		ProgressAttempts: 4,
		MinAdvance:       2,
		Sleep:            noSleep,
	})
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if client.heightIdx != 4 {
		t.Fatalf("expected success on attempt 4, used %d attempts", client.heightIdx)
	}
}

func TestProgressProbeExhaustsBudget(t *testing.T) {
	client := &scriptedClient{heights: []any{uint64(0), uint64(0), uint64(0)}}
	gate := New(client, Config{
		ProtocolAttempts: 1,
		ProgressAttempts: 3,
		MinAdvance:       2,
		Sleep:            noSleep,
	})
	err := gate.Wait(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestProgressProbeToleratesConnectionRefused(t *testing.T) {
	refused := fmt.Errorf("dial tcp 127.0.0.1:8000: connect: connection refused")
	client := &scriptedClient{heights: []any{refused, refused, uint64(5), uint64(8)}}
	gate := New(client, Config{
		ProtocolAttempts: 1,
		ProgressAttempts: 5,
		MinAdvance:       2,
		Sleep:            noSleep,
	})
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestProtocolProbeRetriesThenSucceeds(t *testing.T) {
	client := &scriptedClient{
		versions: []any{fmt.Errorf("connection refused"), fmt.Errorf("connection refused"), "axon/v0.3.0"},
		heights:  []any{uint64(0), uint64(3)},
	}
	gate := New(client, Config{
		ProtocolAttempts: 5,
		ProgressAttempts: 2,
		MinAdvance:       2,
		Sleep:            noSleep,
	})
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if client.verIdx != 3 {
		t.Fatalf("expected 3 protocol attempts, got %d", client.verIdx)
	}
}

func TestProtocolProbeFatalOnExhaustion(t *testing.T) {
	down := fmt.Errorf("connection refused")
	client := &scriptedClient{versions: []any{down, down, down}}
	gate := New(client, Config{
		ProtocolAttempts: 3,
		ProgressAttempts: 1,
		Sleep:            noSleep,
	})
	err := gate.Wait(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if client.heightIdx != 0 {
		t.Fatal("progress probe ran after protocol probe exhaustion")
	}
}

func TestDefaultsMatchSmallLocalDeployment(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.ProtocolAttempts != 10 || cfg.ProtocolDelay != 10*time.Second {
		t.Fatalf("unexpected protocol defaults: %+v", cfg)
	}
	if cfg.MinAdvance != 2 {
		t.Fatalf("unexpected MinAdvance: %d", cfg.MinAdvance)
	}
}
