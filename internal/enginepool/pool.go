// Package enginepool manages the lifecycle of a bounded set of UCI engine
// handles shared across games: acquisition/release with FIFO fairness,
// and idle reaping. Grounded in freeeve-chessgraph's TablebasePool
// (bounded worker-pool-over-one-resource shape) and the teacher's
// internal/model/queue.go (mutex-guarded FIFO queue).
package enginepool

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

// State is the lifecycle state of a Handle.
type State int

const (
	Available State = iota
	Busy
	Reaping
)

// ErrPoolExhausted is returned only by the non-blocking acquire variant
// when no handle is free and capacity is exhausted.
var ErrPoolExhausted = fmt.Errorf("enginepool: pool exhausted")

// ErrShuttingDown is returned to any waiter still queued when Shutdown
// drains the waiter list.
var ErrShuttingDown = fmt.Errorf("enginepool: pool is shutting down")

// Handle is one borrowed-or-available engine subprocess.
type Handle struct {
	ID         string
	Transport  *uci.Transport
	state      State
	lastUsedAt time.Time
}

// Config configures a Pool.
type Config struct {
	EnginePath   string
	EngineArgs   []string
	Capacity     int           // M: max concurrent handles
	WarmFloor    int           // K: handles kept warm even when idle
	ReapInterval time.Duration // default 5 minutes
	IdleTimeout  time.Duration // default 10 minutes
}

func (c *Config) setDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 8
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = 5 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Minute
	}
}

type waiter struct {
	ch chan *Handle
	errCh chan error
}

// Pool is a bounded set of engine handles over one engine binary.
type Pool struct {
	cfg Config
	log zerolog.Logger

	mu        sync.Mutex
	total     int
	available []*Handle
	busy      map[string]*Handle
	waiters   *list.List // of *waiter

	reapStop chan struct{}
	reapDone chan struct{}
	shutdown bool
}

// New creates a Pool. Call Start to begin the reaper.
func New(cfg Config, log zerolog.Logger) *Pool {
	cfg.setDefaults()
	return &Pool{
		cfg:     cfg,
		log:     log,
		busy:    make(map[string]*Handle),
		waiters: list.New(),
	}
}

// Start launches the background reaper goroutine.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.reapStop != nil {
		p.mu.Unlock()
		return
	}
	p.reapStop = make(chan struct{})
	p.reapDone = make(chan struct{})
	p.mu.Unlock()

	go p.reapLoop()
}

func (p *Pool) reapLoop() {
	defer close(p.reapDone)
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.reapStop:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) reapIdle() {
	p.mu.Lock()
	keep := make([]*Handle, 0, len(p.available))
	var toRetire []*Handle
	now := time.Now()
	for _, h := range p.available {
		idle := now.Sub(h.lastUsedAt)
		if idle > p.cfg.IdleTimeout && p.total-len(toRetire) > p.cfg.WarmFloor {
			toRetire = append(toRetire, h)
		} else {
			keep = append(keep, h)
		}
	}
	p.available = keep
	p.total -= len(toRetire)
	p.mu.Unlock()

	for _, h := range toRetire {
		p.log.Info().Str("handle", h.ID).Msg("reaping idle engine")
		_ = h.Transport.Shutdown()
	}
}

// newHandle spawns and initializes a fresh engine handle. Must be called
// without p.mu held.
func (p *Pool) newHandle(ctx context.Context) (*Handle, error) {
	t := uci.NewTransport(p.cfg.EnginePath, p.cfg.EngineArgs, p.log)
	if err := t.Initialize(ctx); err != nil {
		return nil, err
	}
	return &Handle{ID: uuid.New().String(), Transport: t, state: Busy, lastUsedAt: time.Now()}, nil
}

// Acquire returns an available handle, creating one if capacity allows,
// otherwise enqueueing the caller FIFO until a release occurs.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if len(p.available) > 0 {
		h := p.available[0]
		p.available = p.available[1:]
		h.state = Busy
		p.busy[h.ID] = h
		p.mu.Unlock()
		return h, nil
	}
	if p.total < p.cfg.Capacity {
		p.total++
		p.mu.Unlock()
		h, err := p.newHandle(ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return nil, err
		}
		p.mu.Lock()
		p.busy[h.ID] = h
		p.mu.Unlock()
		return h, nil
	}

	w := &waiter{ch: make(chan *Handle, 1), errCh: make(chan error, 1)}
	elem := p.waiters.PushBack(w)
	p.mu.Unlock()

	select {
	case h := <-w.ch:
		return h, nil
	case err := <-w.errCh:
		return nil, err
	case <-ctx.Done():
		p.mu.Lock()
		p.waiters.Remove(elem)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// AcquireNonBlocking returns ErrPoolExhausted immediately instead of
// enqueueing, per spec.md §4.2's optional non-blocking variant.
func (p *Pool) AcquireNonBlocking(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if len(p.available) > 0 {
		h := p.available[0]
		p.available = p.available[1:]
		h.state = Busy
		p.busy[h.ID] = h
		p.mu.Unlock()
		return h, nil
	}
	if p.total >= p.cfg.Capacity {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	p.total++
	p.mu.Unlock()

	h, err := p.newHandle(ctx)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Lock()
	p.busy[h.ID] = h
	p.mu.Unlock()
	return h, nil
}

// Release returns a handle to the pool. If a waiter is queued it is
// handed directly to the head of the queue (FIFO); otherwise the handle
// joins the available set and records lastUsedAt.
func (p *Pool) Release(h *Handle) {
	p.mu.Lock()
	delete(p.busy, h.ID)
	h.lastUsedAt = time.Now()

	if elem := p.waiters.Front(); elem != nil {
		w := elem.Value.(*waiter)
		p.waiters.Remove(elem)
		h.state = Busy
		p.busy[h.ID] = h
		p.mu.Unlock()
		w.ch <- h
		return
	}

	h.state = Available
	p.available = append(p.available, h)
	p.mu.Unlock()
}

// Retire permanently removes a handle from the pool without returning it
// to the available set, per spec.md §7: "On any pool operation error,
// the engine is retired, not returned to available."
func (p *Pool) Retire(h *Handle) {
	p.mu.Lock()
	delete(p.busy, h.ID)
	p.total--
	p.mu.Unlock()
	_ = h.Transport.Shutdown()
}

// Shutdown cancels the reaper, shuts down every handle (available and
// busy), and drains the waiter queue with ErrShuttingDown.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	available := p.available
	busy := make([]*Handle, 0, len(p.busy))
	for _, h := range p.busy {
		busy = append(busy, h)
	}
	for elem := p.waiters.Front(); elem != nil; elem = elem.Next() {
		elem.Value.(*waiter).errCh <- ErrShuttingDown
	}
	p.waiters.Init()
	p.available = nil
	p.total = 0
	reapStop := p.reapStop
	p.mu.Unlock()

	if reapStop != nil {
		close(reapStop)
		<-p.reapDone
	}

	for _, h := range available {
		_ = h.Transport.Shutdown()
	}
	for _, h := range busy {
		_ = h.Transport.Shutdown()
	}
}
