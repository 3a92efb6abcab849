package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopWaitsForGoroutines(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	exited := make(chan struct{})
	s.Go0("loop", func(ctx context.Context) {
		<-ctx.Done()
		close(exited)
	})

	require.NoError(t, s.Stop(context.Background()))
	<-exited
	assert.Zero(t, s.Active())
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("worker", func(context.Context) error { return boom })

	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled")
	}
	err := s.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "worker")
}

func TestPanicIsReported(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go0("bad", func(context.Context) { panic("kaboom") })

	err := s.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	// Without cancel-on-error the context stays alive.
	assert.NoError(t, s.Context().Err())
	s.Cancel()
}

func TestCanceledIsCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("w", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.NoError(t, s.Stop(context.Background()))
}

func TestWaitHonorsDeadline(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	release := make(chan struct{})
	s.Go0("stuck", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
	close(release)
}
