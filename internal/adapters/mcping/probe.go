// Package mcping implements the status probe over the Minecraft server
// list ping protocol.
package mcping

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamscached/minequery/v2"

	"github.com/craftbay/craftbay/internal/core/domain"
)

// DefaultTimeout bounds the whole ping exchange. The probe must fail fast:
// a server that is still booting refuses or ignores the handshake, and the
// watchdog sweep cannot afford to wait on it.
const DefaultTimeout = 3 * time.Second

// Probe implements ports.StatusProbe using the server list ping exchange.
type Probe struct {
	pinger *minequery.Pinger
}

// NewProbe creates a Probe. A non-positive timeout falls back to
// DefaultTimeout.
func NewProbe(timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Probe{
		pinger: minequery.NewPinger(minequery.WithTimeout(timeout)),
	}
}

// Probe pings the server at host:port. Callers treat every failure the
// same way: refused, timed out and malformed responses all just mean
// "not reachable yet".
//
// The pinger does not take a context, so the exchange runs in a goroutine
// and cancellation returns early; an abandoned exchange keeps running in
// the background until the pinger timeout and its result is discarded.
func (p *Probe) Probe(ctx context.Context, host string, port int) (*domain.ServerStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type pingResult struct {
		status *minequery.Status17
		err    error
	}
	done := make(chan pingResult, 1)
	go func() {
		status, err := p.pinger.Ping17(host, port)
		done <- pingResult{status: status, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("ping %s:%d: %w", host, port, res.err)
		}
		return &domain.ServerStatus{
			Version:     res.status.VersionName,
			Description: res.status.Description.String(),
			Players: domain.Players{
				Online: res.status.OnlinePlayers,
				Max:    res.status.MaxPlayers,
			},
		}, nil
	}
}
