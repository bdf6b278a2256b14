package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/stevi10623-crypto/deductly-intake/internal/oxidb"
)

const (
	dialTimeout       = 5 * time.Second
	keepaliveInterval = 10 * time.Second
)

// Dialer opens one OxiDB connection.
type Dialer func(ctx context.Context) (*oxidb.Client, error)

// TCPDialer dials host:port.
func TCPDialer(host string, port int) Dialer {
	return func(ctx context.Context) (*oxidb.Client, error) {
		return oxidb.Connect(ctx, host, port)
	}
}

// Pool is a round-robin connection pool for OxiDB with auto-reconnect.
type Pool struct {
	dial    Dialer
	log     *zap.Logger
	mu      sync.RWMutex
	clients []*oxidb.Client
	idx     uint64
	stop    chan struct{}
	once    sync.Once
}

// NewPool creates a pool of size OxiDB connections.
func NewPool(ctx context.Context, dial Dialer, size int, log *zap.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		dial:    dial,
		log:     log.Named("oxidb-pool"),
		clients: make([]*oxidb.Client, size),
		stop:    make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		c, err := dial(dctx)
		cancel()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pool: connect client %d: %w", i, err)
		}
		p.clients[i] = c
	}
	// keepalive pings prevent idle timeout and find dead connections
	go p.keepalive()
	return p, nil
}

// Get returns the next client in round-robin order. A client broken by a
// transport error is replaced before it is handed out.
func (p *Pool) Get() *oxidb.Client {
	n := atomic.AddUint64(&p.idx, 1)
	i := int(n % uint64(len(p.clients)))

	p.mu.RLock()
	c := p.clients[i]
	p.mu.RUnlock()
	if c != nil && !c.Broken() {
		return c
	}
	p.reconnect(i)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clients[i]
}

// Size returns the number of connections.
func (p *Pool) Size() int {
	return len(p.clients)
}

// reconnect replaces the client at index i. On failure the old client stays
// and calls on it keep failing until the next attempt.
func (p *Pool) reconnect(i int) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	c, err := p.dial(ctx)
	if err != nil {
		p.log.Warn("reconnect failed", zap.Int("client", i), zap.Error(err))
		return
	}
	p.mu.Lock()
	old := p.clients[i]
	p.clients[i] = c
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (p *Pool) keepalive() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			for i := range p.clients {
				p.mu.RLock()
				c := p.clients[i]
				p.mu.RUnlock()
				ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
				_, err := c.Ping(ctx)
				cancel()
				if err != nil {
					p.log.Warn("ping failed, reconnecting", zap.Int("client", i), zap.Error(err))
					p.reconnect(i)
				}
			}
		}
	}
}

// Ping checks one connection.
func (p *Pool) Ping(ctx context.Context) error {
	_, err := p.Get().Ping(ctx)
	return err
}

// Close closes all connections.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.stop)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, c := range p.clients {
			if c != nil {
				c.Close()
			}
		}
	})
}
