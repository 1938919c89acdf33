package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T, workers int) *Pool {
	t.Helper()

	p, err := New(&Config{Workers: workers, ExpiryTime: time.Minute, MaxBlocking: 64}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Release(5 * time.Second) })
	return p
}

func TestPoolSubmit(t *testing.T) {
	p := newTestPool(t, 4)

	var done atomic.Int64
	for i := 0; i < 16; i++ {
		err := p.Submit(func() error {
			done.Add(1)
			return nil
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return done.Load() == 16
	}, 5*time.Second, 10*time.Millisecond)

	stats := p.Stats()
	assert.Equal(t, int64(16), stats.Submitted)
	assert.Equal(t, int64(16), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestPoolSubmitWait(t *testing.T) {
	p := newTestPool(t, 4)

	boom := errors.New("boom")
	tasks := []func() error{
		func() error { return nil },
		func() error { return boom },
		func() error { return nil },
	}

	results := p.SubmitWait(t.Context(), tasks)
	require.Len(t, results, 3)
	assert.NoError(t, results[0])
	assert.ErrorIs(t, results[1], boom)
	assert.NoError(t, results[2])
}

func TestPoolSubmitAfterRelease(t *testing.T) {
	p, err := New(&Config{Workers: 2}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Release(time.Second))

	err = p.Submit(func() error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}
