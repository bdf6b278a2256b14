package wizard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
)

const defaultPersistTimeout = 10 * time.Second

type snapshot struct {
	answers intake.AnswerSet
	version int64
	seq     uint64
}

type flushWaiter struct {
	seq uint64
	ch  chan struct{}
}

// Autosaver persists answer snapshots for one token on a single worker
// goroutine. Snapshots queued while a persist is in flight collapse into the
// newest one. Failures are logged and dropped.
type Autosaver struct {
	token   string
	bridge  Bridge
	log     *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending *snapshot
	queued  uint64
	done    uint64
	closed  bool
	waiters []flushWaiter

	wake     chan struct{}
	quit     chan struct{}
	finished chan struct{}
}

// NewAutosaver starts the worker. Close must be called to stop it.
func NewAutosaver(token string, bridge Bridge, log *zap.Logger, timeout time.Duration) *Autosaver {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	a := &Autosaver{
		token:    token,
		bridge:   bridge,
		log:      log.With(zap.String("token", tokenPrefix(token))),
		timeout:  timeout,
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go a.run()
	return a
}

// Save queues a snapshot, replacing any snapshot not yet picked up.
// Snapshots queued after Close are ignored.
func (a *Autosaver) Save(answers intake.AnswerSet, version int64) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.log.Warn("autosave after close dropped", zap.Int64("version", version))
		return
	}
	a.queued++
	a.pending = &snapshot{answers: answers, version: version, seq: a.queued}
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every snapshot queued before the call has been handed
// to the bridge, or ctx is done.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.done >= a.queued {
		a.mu.Unlock()
		return nil
	}
	w := flushWaiter{seq: a.queued, ch: make(chan struct{})}
	a.waiters = append(a.waiters, w)
	a.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close persists whatever is pending and stops the worker. It is safe to
// call more than once.
func (a *Autosaver) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.quit)
	}
	a.mu.Unlock()
	<-a.finished
}

func (a *Autosaver) run() {
	defer close(a.finished)
	for {
		select {
		case <-a.wake:
			a.drain()
		case <-a.quit:
			a.drain()
			return
		}
	}
}

func (a *Autosaver) drain() {
	for {
		a.mu.Lock()
		snap := a.pending
		a.pending = nil
		a.mu.Unlock()
		if snap == nil {
			return
		}

		a.persist(snap)

		a.mu.Lock()
		a.done = snap.seq
		kept := a.waiters[:0]
		for _, w := range a.waiters {
			if w.seq <= a.done {
				close(w.ch)
			} else {
				kept = append(kept, w)
			}
		}
		a.waiters = kept
		a.mu.Unlock()
	}
}

func (a *Autosaver) persist(snap *snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	start := time.Now()
	if err := a.bridge.Persist(ctx, a.token, snap.answers, snap.version); err != nil {
		a.log.Warn("autosave failed",
			zap.Int64("version", snap.version),
			zap.Error(err),
		)
		return
	}
	a.log.Debug("autosaved",
		zap.Int64("version", snap.version),
		zap.Duration("took", time.Since(start)),
	)
}

func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
