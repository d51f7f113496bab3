package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrell/chaincheck/internal/poll"
)

// ErrTimeout indicates a probe exhausted its attempt budget. The run is
// over at that point, but reporting still happens downstream.
var ErrTimeout = errors.New("readiness gate timed out")

// HeightClient samples the deployed node. Both probes depend only on a
// reachable endpoint, not on how the node was started.
type HeightClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	ClientVersion(ctx context.Context) (string, error)
}

// Config bounds the two probes.
type Config struct {
	// Protocol probe: a synchronous request-response exchange that must
	// yield a success envelope.
	ProtocolAttempts int
	ProtocolDelay    time.Duration

	// Progress probe: block height must advance by at least MinAdvance
	// within the attempt budget.
	ProgressAttempts int
	ProgressDelay    time.Duration
	MinAdvance       uint64

	Sleep func(context.Context, time.Duration) error
}

func (c Config) withDefaults() Config {
	if c.ProtocolAttempts <= 0 {
		c.ProtocolAttempts = 10
	}
	if c.ProtocolDelay <= 0 {
		c.ProtocolDelay = 10 * time.Second
	}
	if c.ProgressAttempts <= 0 {
		c.ProgressAttempts = 10
	}
	if c.ProgressDelay <= 0 {
		c.ProgressDelay = 6 * time.Second
	}
	if c.MinAdvance == 0 {
		c.MinAdvance = 2
	}
	return c
}

// Gate certifies a deployed node is reachable and producing blocks before
// any test stage runs against it.
type Gate struct {
	client HeightClient
	cfg    Config
}

// New creates a Gate over client with cfg defaults applied.
func New(client HeightClient, cfg Config) *Gate {
	return &Gate{client: client, cfg: cfg.withDefaults()}
}

// Wait blocks until both probes succeed or a budget is exhausted.
// Connection refusal during early startup counts as a retryable attempt.
func (g *Gate) Wait(ctx context.Context) error {
	if err := g.waitProtocol(ctx); err != nil {
		return err
	}
	return g.waitProgress(ctx)
}

func (g *Gate) waitProtocol(ctx context.Context) error {
	err := poll.Run(ctx, poll.Config{
		Attempts: g.cfg.ProtocolAttempts,
		Delay:    g.cfg.ProtocolDelay,
		Sleep:    g.cfg.Sleep,
	}, func(ctx context.Context) error {
		_, err := g.client.ClientVersion(ctx)
		return err
	})
	if errors.Is(err, poll.ErrExhausted) {
		return fmt.Errorf("%w: protocol probe: %v", ErrTimeout, err)
	}
	return err
}

func (g *Gate) waitProgress(ctx context.Context) error {
	var (
		base    uint64
		haveOne bool
	)
	err := poll.Run(ctx, poll.Config{
		Attempts: g.cfg.ProgressAttempts,
		Delay:    g.cfg.ProgressDelay,
		Sleep:    g.cfg.Sleep,
	}, func(ctx context.Context) error {
		height, err := g.client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if !haveOne {
			base, haveOne = height, true
		}
		if height >= base+g.cfg.MinAdvance {
			return nil
		}
		return fmt.Errorf("height %d, waiting for %d", height, base+g.cfg.MinAdvance)
	})
	if errors.Is(err, poll.ErrExhausted) {
		return fmt.Errorf("%w: progress probe: %v", ErrTimeout, err)
	}
	return err
}
