// Package netutil provides host port allocation for instance provisioning.
// Ports are assigned by the kernel (bind to :0, read back, close) and
// tracked in an in-process registry so two concurrent creations cannot be
// handed the same port. The window between closing the probe listener and
// the container's own bind remains open to other processes on the host;
// that race is accepted for a single low-concurrency host.
package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// maxRetries bounds the attempts to find a port not already reserved by
// this process.
const maxRetries = 20

// Allocator hands out free host TCP ports.
type Allocator struct {
	mu       sync.Mutex
	reserved map[int]struct{}
	log      *slog.Logger
}

// NewAllocator creates an Allocator. If logger is nil, slog.Default() is
// used.
func NewAllocator(logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		reserved: make(map[int]struct{}),
		log:      logger,
	}
}

// Allocate returns a TCP port that was free at the instant of the check
// and is not reserved by any other in-flight allocation in this process.
// The caller must Release the port once the container has bound it, or
// when creation fails.
func (a *Allocator) Allocate() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("resolve tcp address: %w", err)
	}

	for i := 0; i < maxRetries; i++ {
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return 0, fmt.Errorf("listen on ephemeral port: %w", err)
		}
		tcpAddr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			_ = l.Close()
			return 0, fmt.Errorf("unexpected address type: %T", l.Addr())
		}
		port := tcpAddr.Port
		if err := l.Close(); err != nil {
			return 0, fmt.Errorf("close probe listener: %w", err)
		}
		if a.reserve(port) {
			a.log.Debug("allocated port", "port", port)
			return port, nil
		}
		a.log.Debug("port already reserved, retrying", "port", port)
	}
	return 0, fmt.Errorf("allocate unique port: exhausted %d attempts", maxRetries)
}

// Release removes a port from the registry, allowing it to be handed out
// again. Releasing a port that was never reserved is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}

func (a *Allocator) reserve(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.reserved[port]; ok {
		return false
	}
	a.reserved[port] = struct{}{}
	return true
}
