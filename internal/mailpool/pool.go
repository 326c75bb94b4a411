// Package mailpool maintains a bounded set of live mailbox connections.
// Callers borrow with Acquire and return with Release; a supervisor goroutine
// evicts idle connections and keeps the pool at its configured minimum.
package mailpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/ordersignal/internal/mail"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed    = errors.New("mailpool_closed")
	ErrInvalidConfig = errors.New("mailpool_invalid_config")
)

type Config struct {
	MinConns       int
	MaxConns       int
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
	EvictInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinConns < 0 {
		c.MinConns = 0
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 5
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.EvictInterval <= 0 {
		c.EvictInterval = c.IdleTimeout / 2
	}
	return c
}

// Conn is a pooled mailbox connection. Not safe for concurrent use; the pool
// guarantees a connection is held by at most one caller at a time.
type Conn struct {
	id       string
	client   mail.Client
	lastUsed time.Time
	broken   bool
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Client() mail.Client { return c.client }

// MarkBroken flags the connection so Release discards it instead of reusing it.
func (c *Conn) MarkBroken() { c.broken = true }

type Stats struct {
	Total   int
	Idle    int
	Waiting int
}

type Pool struct {
	cfg    Config
	dialer mail.Dialer
	log    *zap.Logger

	mu      sync.Mutex
	idle    []*Conn
	waiters []chan *Conn // FIFO
	total   int          // idle + borrowed + dialing
	closed  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, dialer mail.Dialer, log *zap.Logger) (*Pool, error) {
	cfg = cfg.withDefaults()
	if dialer == nil {
		return nil, ErrInvalidConfig
	}
	if cfg.MinConns > cfg.MaxConns {
		return nil, ErrInvalidConfig
	}

	p := &Pool{
		cfg:    cfg,
		dialer: dialer,
		log:    log.Named("mailpool"),
		stopCh: make(chan struct{}),
	}

	p.mu.Lock()
	p.ensureMinLocked()
	p.mu.Unlock()

	p.wg.Add(1)
	go p.supervise()
	return p, nil
}

// Acquire borrows a connection, dialing a new one when below MaxConns and
// queuing the caller FIFO when at capacity.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		conn := p.idle[0]
		p.idle = p.idle[1:]
		p.mu.Unlock()
		return conn, nil
	}

	if p.total < p.cfg.MaxConns {
		p.total++
		p.mu.Unlock()

		conn, err := p.dial(ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return nil, err
		}
		return conn, nil
	}

	ch := make(chan *Conn, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case conn := <-ch:
		if conn == nil {
			return nil, ErrPoolClosed
		}
		return conn, nil
	case <-ctx.Done():
		p.abandonWaiter(ch)
		return nil, ctx.Err()
	}
}

// Release returns a connection to the pool. Broken connections are discarded
// and replaced asynchronously while the pool is below MinConns.
func (p *Pool) Release(conn *Conn) {
	if conn == nil {
		return
	}
	if conn.broken {
		p.discard(conn)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.total--
		p.mu.Unlock()
		_ = conn.client.Disconnect()
		return
	}
	conn.lastUsed = time.Now()
	if p.serveWaiterLocked(conn) {
		p.mu.Unlock()
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Total: p.total, Idle: len(p.idle), Waiting: len(p.waiters)}
}

// Close drains the pool. Outstanding waiters fail with ErrPoolClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopCh)

	for _, ch := range p.waiters {
		ch <- nil
	}
	p.waiters = nil

	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	p.mu.Unlock()

	for _, conn := range idle {
		_ = conn.client.Disconnect()
	}
	p.wg.Wait()
}

func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	client, err := p.dialer.Dial(dialCtx)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(dialCtx); err != nil {
		_ = client.Disconnect()
		return nil, err
	}

	return &Conn{id: uuid.NewString(), client: client, lastUsed: time.Now()}, nil
}

func (p *Pool) discard(conn *Conn) {
	_ = conn.client.Disconnect()

	p.mu.Lock()
	p.total--
	needReplacement := !p.closed && (p.total < p.cfg.MinConns || len(p.waiters) > 0)
	if needReplacement {
		p.total++ // reserve the slot for the replacement dial
	}
	p.mu.Unlock()

	if needReplacement {
		p.wg.Add(1)
		go p.replace()
	}
}

// replace dials a fresh connection for a discarded one. The slot was already
// reserved in total by the caller.
func (p *Pool) replace() {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
	defer cancel()

	client, err := p.dialer.Dial(ctx)
	if err == nil {
		err = client.Connect(ctx)
		if err != nil {
			_ = client.Disconnect()
		}
	}

	p.mu.Lock()
	if err != nil {
		p.total--
		p.mu.Unlock()
		p.log.Warn("replacement connection failed", zap.Error(err))
		return
	}
	if p.closed {
		p.total--
		p.mu.Unlock()
		_ = client.Disconnect()
		return
	}

	conn := &Conn{id: uuid.NewString(), client: client, lastUsed: time.Now()}
	if p.serveWaiterLocked(conn) {
		p.mu.Unlock()
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

func (p *Pool) serveWaiterLocked(conn *Conn) bool {
	for len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		select {
		case ch <- conn:
			return true
		default:
			// waiter abandoned its slot between append and delivery
		}
	}
	return false
}

func (p *Pool) abandonWaiter(ch chan *Conn) {
	p.mu.Lock()
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()

	// Already served; return the connection instead of leaking it.
	select {
	case conn := <-ch:
		if conn != nil {
			p.Release(conn)
		}
	default:
	}
}

func (p *Pool) supervise() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

// evictIdle disconnects idle connections past IdleTimeout, never shrinking
// below MinConns, and tops the pool back up if it has fallen under the floor.
func (p *Pool) evictIdle() {
	now := time.Now()

	p.mu.Lock()
	var expired []*Conn
	kept := p.idle[:0]
	for _, conn := range p.idle {
		if p.total-len(expired) > p.cfg.MinConns && now.Sub(conn.lastUsed) > p.cfg.IdleTimeout {
			expired = append(expired, conn)
			continue
		}
		kept = append(kept, conn)
	}
	p.idle = kept
	p.total -= len(expired)
	p.ensureMinLocked()
	p.mu.Unlock()

	for _, conn := range expired {
		_ = conn.client.Disconnect()
	}
	if len(expired) > 0 {
		p.log.Debug("evicted idle connections", zap.Int("count", len(expired)))
	}
}

func (p *Pool) ensureMinLocked() {
	for p.total < p.cfg.MinConns {
		p.total++
		p.wg.Add(1)
		go p.replace()
	}
}
