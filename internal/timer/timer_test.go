package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pathakanu/pocketlog/internal/database/dbtest"
	"github.com/pathakanu/pocketlog/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recorder collects fires delivered to the handler.
type recorder struct {
	mu    sync.Mutex
	fires []Fire
	ch    chan Fire
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Fire, 16)}
}

func (r *recorder) handle(_ context.Context, f Fire) {
	r.mu.Lock()
	r.fires = append(r.fires, f)
	r.mu.Unlock()
	r.ch <- f
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fires)
}

func (r *recorder) wait(t *testing.T) Fire {
	t.Helper()
	select {
	case f := <-r.ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fire")
		return Fire{}
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := New(dbtest.Open(t), Options{SweepSpec: "@every 1h", Location: time.UTC}, zap.NewNop())
	t.Cleanup(s.Stop)
	return s
}

func TestScheduleIsUpsertByKey(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()
	first := time.Now().Add(time.Hour)
	second := first.Add(time.Hour)

	require.NoError(t, s.Schedule(ctx, 1, first, "draft"))
	require.NoError(t, s.Schedule(ctx, 1, second, "final"))
	require.NoError(t, s.Schedule(ctx, 1, second, "final"))

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].Key)
	assert.Equal(t, second.UnixMilli(), pending[0].FireAt)
	assert.Equal(t, "final", pending[0].Title)
}

func TestCancelDeletesIfPresent(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Cancel(ctx, 7))
	require.NoError(t, s.Schedule(ctx, 7, time.Now().Add(time.Hour), "a"))
	require.NoError(t, s.Cancel(ctx, 7))

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFiresAtScheduledTime(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	rec := newRecorder()
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, rec.handle))

	fireAt := time.Now().Add(50 * time.Millisecond)
	require.NoError(t, s.Schedule(ctx, 3, fireAt, "Stretch"))

	got := rec.wait(t)
	assert.Equal(t, int64(3), got.Key)
	assert.Equal(t, "Stretch", got.Title)
	assert.Equal(t, fireAt.UnixMilli(), got.FireAt.UnixMilli())

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStartDeliversEntriesPersistedBeforeRestart(t *testing.T) {
	t.Parallel()
	db := dbtest.Open(t)
	ctx := context.Background()

	previous := New(db, Options{SweepSpec: "@every 1h"}, zap.NewNop())
	require.NoError(t, previous.Schedule(ctx, 9, time.Now().Add(-time.Minute), "Missed while down"))

	restarted := New(db, Options{SweepSpec: "@every 1h"}, zap.NewNop())
	t.Cleanup(restarted.Stop)
	rec := newRecorder()
	require.NoError(t, restarted.Start(ctx, rec.handle))

	got := rec.wait(t)
	assert.Equal(t, int64(9), got.Key)
	assert.Equal(t, "Missed while down", got.Title)
}

func TestRescheduleSupersedesPendingFire(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	rec := newRecorder()
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, rec.handle))

	require.NoError(t, s.Schedule(ctx, 4, time.Now().Add(30*time.Millisecond), "soon"))
	later := time.Now().Add(time.Hour)
	require.NoError(t, s.Schedule(ctx, 4, later, "later"))

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, rec.count())

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.UnixMilli(), pending[0].FireAt)
}

func TestCancelPreventsFire(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	rec := newRecorder()
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, rec.handle))

	require.NoError(t, s.Schedule(ctx, 5, time.Now().Add(30*time.Millisecond), "x"))
	require.NoError(t, s.Cancel(ctx, 5))

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestSweepFiresDueEntriesOnce(t *testing.T) {
	t.Parallel()
	db := dbtest.Open(t)
	s := New(db, Options{SweepSpec: "@every 1h"}, zap.NewNop())
	t.Cleanup(s.Stop)
	rec := newRecorder()
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, rec.handle))

	// Written behind the service's back, so no in-process timer is armed.
	require.NoError(t, db.Create(&model.ScheduledTimer{Key: 11, FireAt: time.Now().Add(-time.Second).UnixMilli(), Title: "lost"}).Error)
	require.NoError(t, db.Create(&model.ScheduledTimer{Key: 12, FireAt: time.Now().Add(time.Hour).UnixMilli(), Title: "future"}).Error)

	s.Sweep()
	s.Sweep()

	got := rec.wait(t)
	assert.Equal(t, int64(11), got.Key)
	assert.Equal(t, 1, rec.count())

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(12), pending[0].Key)
}

func TestSweepKeepsEntriesWhileStopped(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	rec := newRecorder()
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, 21, time.Now().Add(-time.Second), "before start"))
	s.Sweep()

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.Start(ctx, rec.handle))
	got := rec.wait(t)
	assert.Equal(t, int64(21), got.Key)
	assert.Equal(t, "before start", got.Title)

	s.Stop()
	require.NoError(t, s.Schedule(ctx, 22, time.Now().Add(-time.Second), "after stop"))
	s.Sweep()

	pending, err = s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(22), pending[0].Key)
	assert.Equal(t, 1, rec.count())
}

func TestStartTwice(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	rec := newRecorder()

	require.NoError(t, s.Start(context.Background(), rec.handle))
	assert.ErrorIs(t, s.Start(context.Background(), rec.handle), ErrAlreadyStarted)
}

func TestStartRejectsBadSweepSpec(t *testing.T) {
	t.Parallel()
	s := New(dbtest.Open(t), Options{SweepSpec: "not a spec"}, zap.NewNop())
	t.Cleanup(s.Stop)

	assert.Error(t, s.Start(context.Background(), newRecorder().handle))
}
