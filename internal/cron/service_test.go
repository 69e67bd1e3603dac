package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalrevolution/dr-backend/pkg/logger"
	pkgredis "github.com/digitalrevolution/dr-backend/pkg/redis"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type recordingJobMetrics struct {
	success  []string
	failure  []string
	observed int
}

func (m *recordingJobMetrics) ObserveDuration(string, time.Duration) { m.observed++ }
func (m *recordingJobMetrics) IncSuccess(job string)                 { m.success = append(m.success, job) }
func (m *recordingJobMetrics) IncFailure(job string)                 { m.failure = append(m.failure, job) }

func TestRunOnceRunsEveryJobEvenAfterFailure(t *testing.T) {
	ok := &testJob{name: "fulfillment-retry"}
	failing := &testJob{name: "subscription-reconcile", err: errors.New("boom")}
	lock := &fakeLock{}
	metrics := &recordingJobMetrics{}

	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(ok, failing),
		Lock:     lock,
		Metrics:  metrics,
	})
	require.NoError(t, err)
	require.NoError(t, svc.RunOnce(context.Background()))

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, []string{"fulfillment-retry"}, metrics.success)
	assert.Equal(t, []string{"subscription-reconcile"}, metrics.failure)
	assert.Equal(t, 2, metrics.observed)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "fulfillment-retry"}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	require.NoError(t, err)
	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
}

type signalJob struct {
	ran chan struct{}
}

func (s *signalJob) Name() string { return "signal" }

func (s *signalJob) Run(context.Context) error {
	s.ran <- struct{}{}
	return nil
}

func TestRunStopsOnContextCancel(t *testing.T) {
	job := &signalJob{ran: make(chan struct{}, 1)}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-job.ran:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not run")
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cron service did not stop")
	}
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := pkgredis.NewFromClient(raw)
	ctx := context.Background()

	first, err := NewRedisLock(client, "dr:lock:cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, "dr:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// a worker that never held the lock cannot release it
	require.NoError(t, second.Release(ctx))
	assert.True(t, srv.Exists("dr:lock:cron"))

	require.NoError(t, first.Release(ctx))
	assert.False(t, srv.Exists("dr:lock:cron"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpiredAndRetakenIsNotDeleted(t *testing.T) {
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := pkgredis.NewFromClient(raw)
	ctx := context.Background()

	stale, err := NewRedisLock(client, "dr:lock:cron", time.Second)
	require.NoError(t, err)
	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)
	fresh, err := NewRedisLock(client, "dr:lock:cron", time.Minute)
	require.NoError(t, err)
	ok, err = fresh.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, srv.Exists("dr:lock:cron"))
}

func TestRedisLockReleaseAfterExpiryIsNoop(t *testing.T) {
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	ctx := context.Background()

	lock, err := NewRedisLock(pkgredis.NewFromClient(raw), "dr:lock:cron", time.Second)
	require.NoError(t, err)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)
	require.NoError(t, lock.Release(ctx))
	assert.False(t, srv.Exists("dr:lock:cron"))
}
