package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls int32
}

func (s *countingSweeper) Sweep() int {
	atomic.AddInt32(&s.calls, 1)
	return 2
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddSweep_RunsJob(t *testing.T) {
	e := New(quietLogger())
	sweeper := &countingSweeper{}

	id, err := e.AddSweep(sweeper, 5*time.Minute)
	require.NoError(t, err)

	e.cron.Entry(id).WrappedJob.Run()
	assert.Equal(t, int32(1), atomic.LoadInt32(&sweeper.calls))
}

func TestAddSweep_InvalidInterval(t *testing.T) {
	e := New(quietLogger())

	_, err := e.AddSweep(&countingSweeper{}, 0)
	assert.Error(t, err)
}

func TestStart_SchedulesNextRun(t *testing.T) {
	e := New(quietLogger())
	id, err := e.AddSweep(&countingSweeper{}, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	defer cancel()

	assert.Eventually(t, func() bool {
		next := e.Next(id)
		return !next.IsZero() && next.After(time.Now())
	}, time.Second, 10*time.Millisecond)
}

func TestStop_WaitsForEngine(t *testing.T) {
	e := New(quietLogger())
	_, err := e.AddSweep(&countingSweeper{}, time.Minute)
	require.NoError(t, err)

	e.Start(context.Background())

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
