package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	calls int
	err   error
}

func (f *fakeDispatcher) DispatchDue(ctx context.Context) (int, int, error) {
	f.calls++
	return 1, 0, f.err
}

type fakeRetrier struct {
	since time.Time
}

func (f *fakeRetrier) RetrySettlements(_ context.Context, since time.Time) (int, error) {
	f.since = since
	return 0, nil
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestStart_RegistersJobs(t *testing.T) {
	s := NewCollectionsScheduler(&fakeDispatcher{}, &fakeRetrier{}, quietLogger(), time.UTC, "*/5 * * * *", "0 * * * *", time.Hour)
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cronEngine.Entries(), 2)
}

func TestStart_WithoutDispatcher(t *testing.T) {
	s := NewCollectionsScheduler(nil, &fakeRetrier{}, quietLogger(), nil, "*/5 * * * *", "0 * * * *", time.Hour)
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cronEngine.Entries(), 1)
}

func TestStart_InvalidSpec(t *testing.T) {
	s := NewCollectionsScheduler(&fakeDispatcher{}, &fakeRetrier{}, quietLogger(), time.UTC, "not a spec", "0 * * * *", time.Hour)
	assert.Error(t, s.Start())
}

func TestRunJobs(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("template missing")}
	r := &fakeRetrier{}
	s := NewCollectionsScheduler(d, r, quietLogger(), time.UTC, "*/5 * * * *", "0 * * * *", 48*time.Hour)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.runDispatch()
	s.runSettlementRetry()

	assert.Equal(t, 1, d.calls)
	assert.Equal(t, now.Add(-48*time.Hour), r.since)
}
