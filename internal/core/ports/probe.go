package ports

import (
	"context"

	"github.com/craftbay/craftbay/internal/core/domain"
)

// StatusProbe asks a running game server for live status over its
// status/query protocol. The exchange is short and bounded by a timeout;
// any failure — connection refused, timeout, malformed response — is
// uniform "not yet reachable" from the caller's point of view.
type StatusProbe interface {
	Probe(ctx context.Context, host string, port int) (*domain.ServerStatus, error)
}

// PortAllocator hands out host TCP ports that were free at the instant of
// the check. Release returns a reservation once the port is bound for real
// or the operation that needed it failed.
type PortAllocator interface {
	Allocate() (int, error)
	Release(port int)
}
