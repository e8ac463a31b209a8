package calendar

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rental-manager/backend/internal/storage/models"
)

type countingSyncer struct {
	calls    atomic.Int32
	finished atomic.Int32
	release  chan struct{}
	err      error
}

func (c *countingSyncer) SyncAll(ctx context.Context) ([]models.SyncResult, error) {
	c.calls.Add(1)
	defer c.finished.Add(1)
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return nil, c.err
	}
	return []models.SyncResult{{PropertyID: "p1", Success: true, BookingsCreated: 1}}, nil
}

func TestSchedulerLifecycle(t *testing.T) {
	syncer := &countingSyncer{}
	s := NewScheduler(syncer, nil, time.Hour)
	assert.Equal(t, StateStopped, s.Status().State)

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	status := s.Status()
	assert.Equal(t, StateRunning, status.State)
	assert.Equal(t, "1h0m0s", status.Interval)
	assert.NotNil(t, status.LastRunAt)
	assert.EqualValues(t, 1, syncer.calls.Load(), "start runs one immediate pass")

	require.NoError(t, s.Start(context.Background()))
	assert.EqualValues(t, 1, syncer.calls.Load(), "second start is a no-op")

	s.Stop()
	assert.Equal(t, StateStopped, s.Status().State)
	assert.Nil(t, s.Status().NextRunAt)

	require.NoError(t, s.Start(context.Background()))
	assert.EqualValues(t, 2, syncer.calls.Load())
	assert.Equal(t, StateRunning, s.Status().State)
}

func TestSchedulerStartIgnoredWhileStarting(t *testing.T) {
	syncer := &countingSyncer{release: make(chan struct{})}
	s := NewScheduler(syncer, nil, time.Hour)
	t.Cleanup(s.Stop)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return s.Status().State == StateStarting }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Start(context.Background()))

	close(syncer.release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, syncer.calls.Load())
	assert.Equal(t, StateRunning, s.Status().State)
}

func TestSchedulerStopDuringInitialPass(t *testing.T) {
	syncer := &countingSyncer{release: make(chan struct{})}
	s := NewScheduler(syncer, nil, time.Hour)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the initial pass was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(syncer.release)
	require.NoError(t, <-done)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the initial pass finished")
	}
	assert.EqualValues(t, 1, syncer.finished.Load(), "the initial pass runs to completion")
	assert.Equal(t, StateStopped, s.Status().State)
	assert.Nil(t, s.Status().NextRunAt)
}

func TestSchedulerRunsRecurringPasses(t *testing.T) {
	syncer := &countingSyncer{}
	s := NewScheduler(syncer, nil, time.Second)
	t.Cleanup(s.Stop)

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, s.Status().NextRunAt)

	require.Eventually(t, func() bool { return syncer.calls.Load() >= 2 }, 5*time.Second, 20*time.Millisecond,
		"cron entry should fire a second pass")

	s.Stop()
	calls := syncer.calls.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, syncer.calls.Load(), "no passes after Stop")
}

func TestSchedulerStartsDespiteFailedPass(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("database locked")}
	s := NewScheduler(syncer, nil, time.Hour)
	t.Cleanup(s.Stop)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.Status().State)
}

func TestNewSchedulerDefaultsInterval(t *testing.T) {
	s := NewScheduler(&countingSyncer{}, nil, 0)
	assert.Equal(t, DefaultSyncInterval.String(), s.Status().Interval)
}
