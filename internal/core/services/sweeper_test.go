package services

import (
	"context"
	"testing"
	"time"

	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepStopsExpired(t *testing.T) {
	rt := newFakeRuntime()
	store := newMemStore()
	lc := newTestLifecycle(rt, store)

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	lc.now = func() time.Time { return start }

	short, err := lc.Launch(context.Background(), "u1", domain.ContainerRequest{CPU: 1, RAM: 1, TimeoutMinutes: 10})
	require.NoError(t, err)
	long, err := lc.Launch(context.Background(), "u1", domain.ContainerRequest{CPU: 1, RAM: 1, TimeoutMinutes: 120})
	require.NoError(t, err)

	sw := NewSweeper(lc, store, time.Minute)
	sw.now = func() time.Time { return start.Add(30 * time.Minute) }

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := store.FindByContainerID(context.Background(), short.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, rec.Status)
	status, err := lc.Status(context.Background(), short.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, "exited", status)

	rec, err = store.FindByContainerID(context.Background(), long.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, rec.Status)

	// a second pass finds nothing new
	n, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepMarksVanishedContainers(t *testing.T) {
	rt := newFakeRuntime()
	store := newMemStore()
	require.NoError(t, store.Insert(context.Background(), &domain.ContainerRecord{
		ContainerID:    "gone",
		Name:           "jupyter-u1-deadbeef",
		Status:         domain.StatusRunning,
		CreatedAt:      time.Now().Add(-2 * time.Hour),
		TimeoutMinutes: 60,
	}))

	sw := NewSweeper(newTestLifecycle(rt, store), store, time.Minute)
	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := store.FindByContainerID(context.Background(), "gone")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, rec.Status)
}

func TestSweepKeepsRecordOnRuntimeError(t *testing.T) {
	rt := newFakeRuntime()
	store := newMemStore()
	require.NoError(t, store.Insert(context.Background(), &domain.ContainerRecord{
		ContainerID:    "c1",
		Status:         domain.StatusRunning,
		CreatedAt:      time.Now().Add(-2 * time.Hour),
		TimeoutMinutes: 60,
	}))
	rt.stopErr = &domain.RuntimeError{Op: "stop", Detail: "daemon busy"}

	sw := NewSweeper(newTestLifecycle(rt, store), store, time.Minute)
	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	rec, err := store.FindByContainerID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, rec.Status)
}

func TestSweeperStartStop(t *testing.T) {
	store := newMemStore()
	sw := NewSweeper(newTestLifecycle(newFakeRuntime(), store), store, 10*time.Millisecond)
	sw.Start()
	time.Sleep(30 * time.Millisecond)
	sw.Stop()
}

func TestSweepUsesOwnerAndPerStopTimeout(t *testing.T) {
	rt := newFakeRuntime()
	store := newMemStore()
	lc := NewLifecycle(rt, store, LifecycleConfig{
		DefaultImage:          "jupyter/datascience-notebook",
		DefaultTimeoutMinutes: 60,
		Host:                  "localhost",
		ServicePort:           8888,
		EnforceOwnership:      true,
	})

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	lc.now = func() time.Time { return start }
	var ids []string
	for _, user := range []string{"u1", "u2", "u3"} {
		res, err := lc.Launch(context.Background(), user, domain.ContainerRequest{CPU: 1, RAM: 1, TimeoutMinutes: 5})
		require.NoError(t, err)
		ids = append(ids, res.ContainerID)
	}

	// A tick interval far shorter than a stop must not cut stops short.
	sw := NewSweeper(lc, store, time.Millisecond)
	sw.now = func() time.Time { return start.Add(time.Hour) }

	before := time.Now()
	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, rt.stopDeadlines, 3)
	for _, d := range rt.stopDeadlines {
		assert.True(t, d.After(before.Add(DefaultSweepStopTimeout-time.Second)), "each stop gets its own deadline")
	}
	for _, id := range ids {
		rec, err := store.FindByContainerID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusStopped, rec.Status)
	}
}

func TestSweepHonoursCancellation(t *testing.T) {
	rt := newFakeRuntime()
	store := newMemStore()
	lc := newTestLifecycle(rt, store)
	_, err := lc.Launch(context.Background(), "u1", domain.ContainerRequest{CPU: 1, RAM: 1, TimeoutMinutes: 1})
	require.NoError(t, err)

	sw := NewSweeper(lc, store, time.Minute)
	sw.now = func() time.Time { return time.Now().Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sw.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rt.stopDeadlines)
}
