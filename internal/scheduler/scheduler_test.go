package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUpdater struct {
	calls int
	err   error
}

func (u *countingUpdater) Run(ctx context.Context) error {
	u.calls++
	return u.err
}

func newTestScheduler(t *testing.T, now time.Time, u Updater) *Scheduler {
	t.Helper()
	s := New(t.TempDir(), time.Hour, u)
	s.now = func() time.Time { return now }
	return s
}

func readStored(t *testing.T, s *Scheduler) int64 {
	t.Helper()
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	v, err := strconv.ParseInt(string(raw), 10, 64)
	require.NoError(t, err, "timestamp must be integer seconds")
	return v
}

func TestPoll_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	u := &countingUpdater{}
	s := newTestScheduler(t, now, u)

	res, err := s.Poll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, PollInitialized, res)
	assert.Equal(t, 0, u.calls)
	assert.Equal(t, now.Add(time.Hour).Unix(), readStored(t, s))

	s.now = func() time.Time { return now.Add(10 * time.Minute) }
	res, err = s.Poll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, PollNotDue, res)
	assert.Equal(t, 0, u.calls)

	res, err = s.Poll(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, PollUpdated, res)
	assert.Equal(t, 1, u.calls)
	assert.Equal(t, now.Add(70*time.Minute).Unix(), readStored(t, s))
}

func TestPoll_DueDoesNotCatchUp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	u := &countingUpdater{}
	s := newTestScheduler(t, now, u)
	require.NoError(t, os.WriteFile(s.Path(), []byte(strconv.FormatInt(now.Add(-5*time.Hour).Unix(), 10)), 0644))

	res, err := s.Poll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, PollUpdated, res)
	assert.Equal(t, 1, u.calls)
	assert.Equal(t, now.Add(time.Hour).Unix(), readStored(t, s))
}

func TestPoll_DueExactlyNow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	u := &countingUpdater{}
	s := newTestScheduler(t, now, u)
	require.NoError(t, os.WriteFile(s.Path(), []byte(strconv.FormatInt(now.Unix(), 10)), 0644))

	res, err := s.Poll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, PollUpdated, res)
}

func TestPoll_CorruptTimestampReinitializes(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not a number", "not a number"},
		{"nan", "NaN"},
		{"infinity", "Inf"},
		{"negative infinity", "-Inf"},
		{"float out of range", "1e30"},
		{"integer out of range", "9223372036854775807"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Unix(1700000000, 0)
			u := &countingUpdater{}
			s := newTestScheduler(t, now, u)
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), 0644))

			_, err := s.NextDue()
			assert.ErrorIs(t, err, ErrUninitialized)

			res, err := s.Poll(context.Background(), false)
			require.NoError(t, err)
			assert.Equal(t, PollInitialized, res)
			assert.Equal(t, 0, u.calls)
			assert.Equal(t, now.Add(time.Hour).Unix(), readStored(t, s))
		})
	}
}

func TestPoll_ForceOnUninitializedOnlyInitializes(t *testing.T) {
	for _, content := range []string{"", "garbage"} {
		now := time.Unix(1700000000, 0)
		u := &countingUpdater{}
		s := newTestScheduler(t, now, u)
		if content != "" {
			require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0644))
		}

		res, err := s.Poll(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, PollInitialized, res)
		assert.Equal(t, 0, u.calls)
		assert.Equal(t, now.Add(time.Hour).Unix(), readStored(t, s))

		res, err = s.Poll(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, PollUpdated, res)
		assert.Equal(t, 1, u.calls)
	}
}

func TestPoll_UpdaterErrorKeepsTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	u := &countingUpdater{err: errors.New("apply failed")}
	s := newTestScheduler(t, now, u)
	stored := now.Add(-time.Minute).Unix()
	require.NoError(t, os.WriteFile(s.Path(), []byte(strconv.FormatInt(stored, 10)), 0644))

	res, err := s.Poll(context.Background(), false)
	assert.EqualError(t, err, "apply failed")
	assert.Equal(t, PollUpdated, res)
	assert.Equal(t, stored, readStored(t, s))
}

func TestNextDue(t *testing.T) {
	s := New(t.TempDir(), time.Hour, nil)

	_, err := s.NextDue()
	assert.ErrorIs(t, err, ErrUninitialized)

	require.NoError(t, os.WriteFile(s.Path(), []byte(" 1700000000\n"), 0644))
	due, err := s.NextDue()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), due.Unix())

	require.NoError(t, os.WriteFile(s.Path(), []byte("1700000000.5"), 0644))
	due, err = s.NextDue()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), due.Unix())
}

func TestNew_CreatesHomeOnWrite(t *testing.T) {
	home := filepath.Join(t.TempDir(), "missing", "home")
	s := New(home, time.Minute, UpdaterFunc(func(context.Context) error { return nil }))

	res, err := s.Poll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, PollInitialized, res)
	assert.FileExists(t, filepath.Join(home, TimestampFile))
}

func TestPollResultString(t *testing.T) {
	assert.Equal(t, "initialized", PollInitialized.String())
	assert.Equal(t, "not due", PollNotDue.String())
	assert.Equal(t, "updated", PollUpdated.String())
}
