package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
)

// Backend loads sessions and receives their persistence calls.
type Backend interface {
	Bridge
	Load(ctx context.Context, token string) (State, error)
}

type entry struct {
	mu      sync.Mutex
	session *Session
	closed  atomic.Bool
}

// loadCall is an in-progress backend load shared by every Do for the token.
type loadCall struct {
	done chan struct{}
	e    *entry
	err  error
}

// Manager keeps the live sessions of the process in an LRU keyed by token.
// Events for one token run one at a time; different tokens run in parallel.
// m.mu only guards the cache bookkeeping: backend loads and the draining of
// evicted sessions happen outside it.
type Manager struct {
	schema  *intake.Schema
	backend Backend
	log     *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	cache    *lru.Cache[string, *entry]
	loading  map[string]*loadCall
	draining map[string]chan struct{}
	drains   sync.WaitGroup
}

// ManagerOption tweaks a Manager.
type ManagerOption func(*Manager)

// WithPersistTimeout bounds each background persist call.
func WithPersistTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates a manager holding at most size live sessions. Evicted
// sessions are drained before their token is loaded again.
func NewManager(schema *intake.Schema, backend Backend, size int, log *zap.Logger, opts ...ManagerOption) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		schema:   schema,
		backend:  backend,
		log:      log,
		timeout:  defaultPersistTimeout,
		loading:  make(map[string]*loadCall),
		draining: make(map[string]chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	cache, err := lru.NewWithEvict[string, *entry](size, m.evicted)
	if err != nil {
		return nil, fmt.Errorf("wizard: session cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// Do runs fn against the session for token, loading it on first use.
func (m *Manager) Do(ctx context.Context, token string, fn func(*Session) error) error {
	for {
		e, err := m.get(ctx, token)
		if err != nil {
			return err
		}
		e.mu.Lock()
		if e.closed.Load() {
			// evicted between lookup and lock
			e.mu.Unlock()
			continue
		}
		err = fn(e.session)
		e.mu.Unlock()
		return err
	}
}

// Forget drops the live session for token, if any, and waits until its
// pending saves are written. The next Do reloads it from the backend.
func (m *Manager) Forget(token string) {
	m.mu.Lock()
	m.cache.Remove(token)
	done := m.draining[token]
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close drains every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cache.Purge()
	m.mu.Unlock()
	m.drains.Wait()
}

func (m *Manager) get(ctx context.Context, token string) (*entry, error) {
	for {
		m.mu.Lock()
		if e, ok := m.cache.Get(token); ok {
			m.mu.Unlock()
			return e, nil
		}
		if c, ok := m.loading[token]; ok {
			m.mu.Unlock()
			select {
			case <-c.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if c.err != nil && isContextErr(c.err) && ctx.Err() == nil {
				// the loading request gave up; try again with ours
				continue
			}
			return c.e, c.err
		}
		c := &loadCall{done: make(chan struct{})}
		m.loading[token] = c
		drained := m.draining[token]
		m.mu.Unlock()

		c.e, c.err = m.load(ctx, token, drained)

		m.mu.Lock()
		delete(m.loading, token)
		if c.err == nil {
			m.cache.Add(token, c.e)
		}
		m.mu.Unlock()
		close(c.done)
		return c.e, c.err
	}
}

// load restores a session from the backend once any evicted session for the
// same token has finished draining.
func (m *Manager) load(ctx context.Context, token string, drained <-chan struct{}) (*entry, error) {
	if drained != nil {
		select {
		case <-drained:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	st, err := m.backend.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	if st.Token == "" {
		return nil, errors.New("wizard: backend returned state without token")
	}
	m.log.Debug("session loaded",
		zap.String("token", tokenPrefix(token)),
		zap.Int64("version", st.Version),
	)
	return &entry{session: newSession(m.schema, st, m.backend, m.log, m.timeout)}, nil
}

// evicted runs under m.mu. It only marks the entry; the drain waits for the
// running event and the pending saves in its own goroutine.
func (m *Manager) evicted(token string, e *entry) {
	e.closed.Store(true)
	done := make(chan struct{})
	m.draining[token] = done
	m.drains.Add(1)
	go func() {
		defer m.drains.Done()
		e.mu.Lock()
		e.session.Close()
		e.mu.Unlock()

		m.mu.Lock()
		if m.draining[token] == done {
			delete(m.draining, token)
		}
		m.mu.Unlock()
		close(done)
		m.log.Debug("session closed", zap.String("token", tokenPrefix(token)))
	}()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
