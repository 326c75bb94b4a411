package mailpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/ordersignal/internal/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	connected    atomic.Bool
	disconnected atomic.Bool
}

func (c *fakeClient) Connect(ctx context.Context) error {
	c.connected.Store(true)
	return nil
}

func (c *fakeClient) FetchNew(ctx context.Context) ([]mail.IncomingEmail, error) {
	return nil, nil
}

func (c *fakeClient) Disconnect() error {
	c.disconnected.Store(true)
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	clients []*fakeClient
}

func (d *fakeDialer) Dial(ctx context.Context) (mail.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	client := &fakeClient{}
	d.clients = append(d.clients, client)
	return client, nil
}

func (d *fakeDialer) dialed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func newTestPool(t *testing.T, cfg Config) (*Pool, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{}
	pool, err := New(cfg, dialer, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, dialer
}

func TestAcquireUpToMax(t *testing.T) {
	pool, dialer := newTestPool(t, Config{MaxConns: 2, ConnectTimeout: time.Second})
	ctx := context.Background()

	c1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	c2, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dialed())

	// Third acquire must block until a release.
	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(blockedCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(c1)
	c3, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, c1, c3)
	assert.Equal(t, 2, dialer.dialed())

	pool.Release(c2)
	pool.Release(c3)
}

func TestWaitersServedFIFO(t *testing.T) {
	pool, _ := newTestPool(t, Config{MaxConns: 1, ConnectTimeout: time.Second})
	ctx := context.Background()

	held, err := pool.Acquire(ctx)
	require.NoError(t, err)

	order := make(chan int, 2)
	ready := make(chan struct{}, 2)
	for i := 1; i <= 2; i++ {
		i := i
		go func() {
			// stagger so waiter 1 enqueues before waiter 2
			time.Sleep(time.Duration(i) * 20 * time.Millisecond)
			ready <- struct{}{}
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return
			}
			order <- i
			pool.Release(conn)
		}()
	}

	<-ready
	<-ready
	time.Sleep(60 * time.Millisecond)
	pool.Release(held)

	first := <-order
	second := <-order
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestBrokenConnectionReplaced(t *testing.T) {
	pool, dialer := newTestPool(t, Config{MinConns: 1, MaxConns: 2, ConnectTimeout: time.Second})
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)

	client := conn.Client().(*fakeClient)
	conn.MarkBroken()
	pool.Release(conn)

	assert.True(t, client.disconnected.Load())

	// A replacement is dialed asynchronously to hold the MinConns floor.
	assert.Eventually(t, func() bool {
		stats := pool.Stats()
		return stats.Total >= 1 && stats.Idle >= 1
	}, time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, dialer.dialed(), 2)
}

func TestIdleEvictionKeepsMin(t *testing.T) {
	pool, _ := newTestPool(t, Config{
		MinConns:       1,
		MaxConns:       3,
		IdleTimeout:    30 * time.Millisecond,
		EvictInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	ctx := context.Background()

	conns := make([]*Conn, 0, 3)
	for i := 0; i < 3; i++ {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	for _, conn := range conns {
		pool.Release(conn)
	}

	assert.Eventually(t, func() bool {
		return pool.Stats().Total == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCloseWakesWaiters(t *testing.T) {
	dialer := &fakeDialer{}
	pool, err := New(Config{MaxConns: 1, ConnectTimeout: time.Second}, dialer, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx)
		errCh <- err
	}()

	time.Sleep(30 * time.Millisecond)
	pool.Close()
	pool.Release(conn)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by Close")
	}
}
