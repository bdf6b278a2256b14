package db

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevi10623-crypto/deductly-intake/internal/oxidb"
)

// deadDialer hands out clients whose server end is already closed.
func deadDialer(dials *int32) Dialer {
	return func(ctx context.Context) (*oxidb.Client, error) {
		atomic.AddInt32(dials, 1)
		srv, cli := net.Pipe()
		srv.Close()
		return oxidb.NewClient(cli), nil
	}
}

func TestPoolRoundRobin(t *testing.T) {
	var dials int32
	p, err := NewPool(context.Background(), deadDialer(&dials), 3, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 3, p.Size())
	seen := map[*oxidb.Client]bool{}
	for i := 0; i < 3; i++ {
		seen[p.Get()] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&dials))
}

func TestPoolReplacesBrokenClient(t *testing.T) {
	var dials int32
	p, err := NewPool(context.Background(), deadDialer(&dials), 1, nil)
	require.NoError(t, err)
	defer p.Close()

	c := p.Get()
	_, err = c.Ping(context.Background())
	require.Error(t, err)
	require.True(t, c.Broken())

	fresh := p.Get()
	assert.NotSame(t, c, fresh)
	assert.Equal(t, int32(2), atomic.LoadInt32(&dials))
}

func TestPoolDialFailure(t *testing.T) {
	boom := errors.New("refused")
	_, err := NewPool(context.Background(), func(context.Context) (*oxidb.Client, error) {
		return nil, boom
	}, 2, nil)
	assert.ErrorIs(t, err, boom)
}
