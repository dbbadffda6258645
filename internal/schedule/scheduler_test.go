// ABOUTME: Tests for the keyed task scheduler
// ABOUTME: Verifies cancellation by key, Close semantics, and no leaked goroutines

package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduler_RunsTask(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var ran atomic.Bool
	_, err := s.Go("conv-1", func(ctx context.Context) {
		ran.Store(true)
	})
	require.NoError(t, err)

	s.Wait()
	assert.True(t, ran.Load())
	assert.Equal(t, 0, s.Pending("conv-1"))
}

func TestScheduler_CancelByKey(t *testing.T) {
	s := New(nil)
	defer s.Close()

	var cancelled, survived atomic.Int32
	started := make(chan struct{}, 3)
	release := make(chan struct{})

	for range 2 {
		_, err := s.Go("conv-1", func(ctx context.Context) {
			started <- struct{}{}
			<-ctx.Done()
			cancelled.Add(1)
		})
		require.NoError(t, err)
	}
	_, err := s.Go("conv-2", func(ctx context.Context) {
		started <- struct{}{}
		select {
		case <-ctx.Done():
		case <-release:
			survived.Add(1)
		}
	})
	require.NoError(t, err)

	for range 3 {
		<-started
	}
	assert.Equal(t, 2, s.Pending("conv-1"))

	assert.Equal(t, 2, s.Cancel("conv-1"))
	assert.Equal(t, 0, s.Pending("conv-1"))
	assert.Equal(t, 1, s.Pending("conv-2"))

	close(release)
	s.Wait()

	assert.Equal(t, int32(2), cancelled.Load())
	assert.Equal(t, int32(1), survived.Load())
	assert.Equal(t, 0, s.Cancel("conv-1"))
}

func TestScheduler_CloseCancelsAndRefuses(t *testing.T) {
	s := New(nil)

	var sawCancel atomic.Bool
	started := make(chan struct{})
	_, err := s.Go("conv-1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	})
	require.NoError(t, err)
	<-started

	s.Close()
	assert.True(t, sawCancel.Load())

	_, err = s.Go("conv-1", func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)

	// second Close is a no-op
	s.Close()
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
