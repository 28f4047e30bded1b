package mcping

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestProbe_CancelledContextBeforeCall(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProbe(DefaultTimeout).Probe(ctx, "127.0.0.1", 25565)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Probe() error = %v, want context.Canceled", err)
	}
}

func TestProbe_CancellationReturnsBeforeTimeout(t *testing.T) {
	t.Parallel()

	// A listener that accepts and then says nothing: the exchange hangs
	// until the pinger timeout.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()
	port := l.Addr().(*net.TCPAddr).Port

	const timeout = 10 * time.Second
	probe := NewProbe(timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = probe.Probe(ctx, "127.0.0.1", port)
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Probe() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed >= timeout {
		t.Fatalf("Probe() took %v, should return well before the %v pinger timeout", elapsed, timeout)
	}
}

func TestProbe_UnreachableServerFailsFast(t *testing.T) {
	t.Parallel()

	// Bind and immediately close to get a port nothing listens on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	_, err = NewProbe(1 * time.Second).Probe(context.Background(), "127.0.0.1", port)
	if err == nil {
		t.Fatal("Probe() against a closed port should fail")
	}
}
