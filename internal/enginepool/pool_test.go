package enginepool

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

func testPool(capacity, warmFloor int) *Pool {
	return New(Config{
		EnginePath:   "true",
		Capacity:     capacity,
		WarmFloor:    warmFloor,
		ReapInterval: time.Hour,
		IdleTimeout:  time.Hour,
	}, zerolog.Nop())
}

func fakeHandle(id string) *Handle {
	return &Handle{ID: id, lastUsedAt: time.Now()}
}

func TestReleaseFIFOHandsToOldestWaiter(t *testing.T) {
	p := testPool(1, 0)

	h := fakeHandle("h1")
	p.busy[h.ID] = h
	p.total = 1

	type result struct {
		name string
		h    *Handle
	}
	results := make(chan result, 2)

	for _, name := range []string{"first", "second"} {
		name := name
		w := &waiter{ch: make(chan *Handle, 1), errCh: make(chan error, 1)}
		p.mu.Lock()
		p.waiters.PushBack(w)
		p.mu.Unlock()
		go func() {
			got := <-w.ch
			results <- result{name: name, h: got}
		}()
	}

	p.Release(h)
	first := <-results
	if first.name != "first" {
		t.Fatalf("expected FIFO order, first waiter satisfied was %q", first.name)
	}
	if first.h != h {
		t.Fatalf("expected waiter to receive released handle")
	}

	p.Release(h)
	second := <-results
	if second.name != "second" {
		t.Fatalf("expected second waiter next, got %q", second.name)
	}
}

func TestReleaseWithNoWaitersReturnsToAvailable(t *testing.T) {
	p := testPool(2, 0)
	h := fakeHandle("h1")
	p.busy[h.ID] = h
	p.total = 1

	p.Release(h)

	if len(p.available) != 1 {
		t.Fatalf("expected 1 available handle, got %d", len(p.available))
	}
	if _, busy := p.busy[h.ID]; busy {
		t.Fatalf("handle should no longer be busy")
	}
	if h.state != Available {
		t.Fatalf("state = %v, want Available", h.state)
	}
}

func TestRetireDecrementsTotalAndDropsBusy(t *testing.T) {
	p := testPool(2, 0)
	// A Transport that was never initialized has no process, so the
	// Shutdown that Retire calls returns immediately.
	h := &Handle{ID: "h1", Transport: uci.NewTransport("true", nil, zerolog.Nop())}
	p.busy[h.ID] = h
	p.total = 1

	p.Retire(h)

	if p.total != 0 {
		t.Fatalf("total = %d, want 0", p.total)
	}
	if _, busy := p.busy[h.ID]; busy {
		t.Fatalf("handle should be removed from busy set")
	}
}

func TestAcquireNonBlockingExhausted(t *testing.T) {
	p := testPool(1, 0)
	h := fakeHandle("h1")
	p.busy[h.ID] = h
	p.total = 1

	_, err := p.AcquireNonBlocking(context.Background())
	if err != ErrPoolExhausted {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
}

func TestShutdownDrainsWaitersWithError(t *testing.T) {
	p := testPool(1, 0)

	w := &waiter{ch: make(chan *Handle, 1), errCh: make(chan error, 1)}
	p.mu.Lock()
	p.waiters.PushBack(w)
	p.mu.Unlock()

	p.Shutdown()

	select {
	case err := <-w.errCh:
		if err != ErrShuttingDown {
			t.Fatalf("err = %v, want ErrShuttingDown", err)
		}
	default:
		t.Fatalf("expected waiter to be notified of shutdown")
	}
}
