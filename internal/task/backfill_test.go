package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/avatar-api/internal/domain"
)

type staticLister struct {
	avatars     []*domain.Avatar
	limit       int
	failedSince time.Time
	err         error
}

func (l *staticLister) ListMissingFormats(ctx context.Context, limit int, failedSince time.Time) ([]*domain.Avatar, error) {
	l.limit = limit
	l.failedSince = failedSince
	return l.avatars, l.err
}

type limitedSubmitter struct {
	capacity int
	tasks    []Task
}

func (s *limitedSubmitter) Submit(ctx context.Context, t Task) error {
	if len(s.tasks) >= s.capacity {
		return ErrQueueFull
	}
	s.tasks = append(s.tasks, t)
	return nil
}

func TestBackfillRunOnce(t *testing.T) {
	t.Parallel()

	lister := &staticLister{avatars: []*domain.Avatar{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}}
	factory := NewAvatarConversionTaskFactory(newRecordingConverter(), discardLogger())
	submitter := &limitedSubmitter{capacity: 2}

	b := NewBackfill(lister, factory, submitter, 10, time.Hour, discardLogger())
	n, err := b.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n, "stops when the queue is full")
	assert.Equal(t, 10, lister.limit)
	assert.Equal(t, lister.avatars[0].ID, submitter.tasks[0].(*AvatarConversionTask).AvatarID())
}

func TestBackfillListError(t *testing.T) {
	t.Parallel()

	lister := &staticLister{err: errors.New("db down")}
	b := NewBackfill(lister, NewAvatarConversionTaskFactory(newRecordingConverter(), nil), &limitedSubmitter{}, 0, 0, nil)

	_, err := b.RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, 50, lister.limit)
}

func TestBackfillSchedule(t *testing.T) {
	t.Parallel()

	b := NewBackfill(&staticLister{}, NewAvatarConversionTaskFactory(newRecordingConverter(), nil), &limitedSubmitter{}, 1, time.Hour, discardLogger())
	assert.Error(t, b.Start("not a schedule"))

	require.NoError(t, b.Start("@every 1h"))
	b.Stop()
}

func TestBackfillSkipsRecentFailures(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	lister := &staticLister{}
	b := NewBackfill(lister, NewAvatarConversionTaskFactory(newRecordingConverter(), nil), &limitedSubmitter{}, 5, 6*time.Hour, discardLogger())
	b.now = func() time.Time { return now }

	_, err := b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(-6*time.Hour), lister.failedSince)

	b = NewBackfill(lister, NewAvatarConversionTaskFactory(newRecordingConverter(), nil), &limitedSubmitter{}, 5, 0, discardLogger())
	b.now = func() time.Time { return now }
	_, err = b.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(-DefaultRetryAfter), lister.failedSince)
}
