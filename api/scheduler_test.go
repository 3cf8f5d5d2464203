package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct {
	calls []time.Time
	err   error
}

func (f *fakeSnapshotter) SnapshotMonthEnd(_ context.Context, periodEnd time.Time) (int, error) {
	f.calls = append(f.calls, periodEnd)
	return 3, f.err
}

func schedulerAt(store MonthEndSnapshotter, now time.Time) *SnapshotScheduler {
	s := NewSnapshotScheduler(store, "55 23 * * *", nil)
	s.Now = func() time.Time { return now }
	return s
}

func TestSnapshotScheduler_RunsOnLastDayOnly(t *testing.T) {
	fake := &fakeSnapshotter{}

	// GIVEN: The 30th of January
	took, err := schedulerAt(fake, time.Date(2024, time.January, 30, 23, 55, 0, 0, time.UTC)).RunNow(context.Background())

	// THEN: Nothing happens
	require.NoError(t, err)
	assert.False(t, took)
	assert.Empty(t, fake.calls)

	// GIVEN: Leap day
	took, err = schedulerAt(fake, time.Date(2024, time.February, 29, 23, 55, 0, 0, time.UTC)).RunNow(context.Background())

	// THEN: Every account is snapshotted at that date
	require.NoError(t, err)
	assert.True(t, took)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), fake.calls[0])
}

func TestSnapshotScheduler_PropagatesStoreError(t *testing.T) {
	fake := &fakeSnapshotter{err: errors.New("disk full")}

	took, err := schedulerAt(fake, time.Date(2024, time.April, 30, 12, 0, 0, 0, time.UTC)).RunNow(context.Background())

	assert.False(t, took)
	assert.EqualError(t, err, "disk full")
}

func TestSnapshotScheduler_StartStop(t *testing.T) {
	s := NewSnapshotScheduler(&fakeSnapshotter{}, "0 0 * * *", nil)

	require.NoError(t, s.Start())
	assert.False(t, s.NextRun().IsZero())
	require.NoError(t, s.Start(), "second start is a no-op")

	s.Stop()
	assert.True(t, s.NextRun().IsZero())
	s.Stop()
}

func TestSnapshotScheduler_InvalidSpecAndDisabled(t *testing.T) {
	bad := NewSnapshotScheduler(&fakeSnapshotter{}, "whenever", nil)
	assert.Error(t, bad.Start())

	off := NewSnapshotScheduler(&fakeSnapshotter{}, "whenever", nil)
	off.Enabled = false
	assert.NoError(t, off.Start())
	assert.True(t, off.NextRun().IsZero())
}
