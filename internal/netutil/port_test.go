package netutil

import (
	"sync"
	"testing"
)

func TestAllocator_Allocate(t *testing.T) {
	t.Parallel()

	a := NewAllocator(nil)

	p1, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if p1 == 0 {
		t.Fatal("Allocate() returned port 0")
	}

	p2, err := a.Allocate()
	if err != nil {
		t.Fatalf("second Allocate() error: %v", err)
	}
	if p1 == p2 {
		t.Errorf("consecutive allocations returned the same port %d", p1)
	}

	a.Release(p1)
	a.Release(p2)
}

func TestAllocator_ReservationBlocksReuse(t *testing.T) {
	t.Parallel()

	a := NewAllocator(nil)

	if !a.reserve(40000) {
		t.Fatal("first reserve should succeed")
	}
	if a.reserve(40000) {
		t.Fatal("duplicate reserve should fail")
	}
	a.Release(40000)
	if !a.reserve(40000) {
		t.Fatal("reserve after release should succeed")
	}
}

func TestAllocator_ReleaseUnknownPort(t *testing.T) {
	t.Parallel()

	a := NewAllocator(nil)
	a.Release(40001) // no-op, must not panic
	if !a.reserve(40001) {
		t.Fatal("port should be free after releasing an unreserved port")
	}
}

func TestAllocator_ConcurrentAllocate(t *testing.T) {
	t.Parallel()

	a := NewAllocator(nil)
	const goroutines = 20

	var wg sync.WaitGroup
	got := make(chan int, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := a.Allocate()
			if err != nil {
				t.Errorf("Allocate() error: %v", err)
				return
			}
			got <- p
		}()
	}
	wg.Wait()
	close(got)

	seen := make(map[int]bool)
	for p := range got {
		if seen[p] {
			t.Errorf("port %d allocated twice", p)
		}
		seen[p] = true
		a.Release(p)
	}
}
