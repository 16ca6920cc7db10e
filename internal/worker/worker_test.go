package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func endedDaysAgo(id string, status model.SessionStatus, days int) model.ClassSession {
	end := now.Add(-time.Duration(days) * day)
	return model.ClassSession{ID: id, Status: status, StartTime: end.Add(-time.Hour), EndTime: &end}
}

func TestPlanRetention(t *testing.T) {
	settings := model.ArchiveSettings{AutoArchiveAfterDays: 7, DeleteArchivedAfterDays: 30, DeleteClosedAfterDays: 0}

	sessions := []model.ClassSession{
		endedDaysAgo("fresh", model.SessionStatusClosed, 2),
		endedDaysAgo("stale", model.SessionStatusClosed, 7),
		endedDaysAgo("kept", model.SessionStatusArchived, 29),
		endedDaysAgo("expired", model.SessionStatusArchived, 31),
		{ID: "live", Status: model.SessionStatusActive, StartTime: now.Add(-400 * day)},
	}

	plan := PlanRetention(sessions, settings, now)
	assert.Equal(t, []string{"stale"}, plan.Archive)
	assert.Equal(t, []string{"expired"}, plan.Delete)
}

func TestPlanRetention_DeleteClosedWinsOverArchive(t *testing.T) {
	settings := model.ArchiveSettings{AutoArchiveAfterDays: 1, DeleteClosedAfterDays: 3}
	sessions := []model.ClassSession{
		endedDaysAgo("old", model.SessionStatusClosed, 5),
		endedDaysAgo("mid", model.SessionStatusClosed, 2),
	}

	plan := PlanRetention(sessions, settings, now)
	assert.Equal(t, []string{"mid"}, plan.Archive)
	assert.Equal(t, []string{"old"}, plan.Delete)
}

func TestPlanRetention_ZeroDisablesRules(t *testing.T) {
	sessions := []model.ClassSession{
		endedDaysAgo("a", model.SessionStatusClosed, 1000),
		endedDaysAgo("b", model.SessionStatusArchived, 1000),
	}
	plan := PlanRetention(sessions, model.ArchiveSettings{}, now)
	assert.Empty(t, plan.Archive)
	assert.Empty(t, plan.Delete)
}

func TestPlanRetention_FallsBackToStartTime(t *testing.T) {
	sessions := []model.ClassSession{
		{ID: "no-end", Status: model.SessionStatusClosed, StartTime: now.Add(-10 * day)},
	}
	plan := PlanRetention(sessions, model.ArchiveSettings{AutoArchiveAfterDays: 7}, now)
	assert.Equal(t, []string{"no-end"}, plan.Archive)
}

// ─── RetentionWorker ───

type fakeRetention struct {
	settings  model.ArchiveSettings
	sessions  []model.ClassSession
	listErr   error
	archived  []string
	deleted   []string
	forgotten []string
}

func (f *fakeRetention) GetArchiveSettings(context.Context) (model.ArchiveSettings, error) {
	return f.settings, nil
}

func (f *fakeRetention) ListEnded(context.Context) ([]model.ClassSession, error) {
	return f.sessions, f.listErr
}

func (f *fakeRetention) Archive(_ context.Context, ids []string) (int64, error) {
	f.archived = append(f.archived, ids...)
	return int64(len(ids)), nil
}

func (f *fakeRetention) Delete(_ context.Context, ids []string) (int64, error) {
	f.deleted = append(f.deleted, ids...)
	return int64(len(ids)), nil
}

func (f *fakeRetention) Forget(_ context.Context, ids []string) {
	f.forgotten = append(f.forgotten, ids...)
}

func TestRetentionWorker_RunOnce(t *testing.T) {
	fake := &fakeRetention{
		settings: model.ArchiveSettings{AutoArchiveAfterDays: 7, DeleteArchivedAfterDays: 30},
		sessions: []model.ClassSession{
			endedDaysAgo("s1", model.SessionStatusClosed, 8),
			endedDaysAgo("s2", model.SessionStatusArchived, 40),
		},
	}
	w := NewRetentionWorker(fake, fake, fake, time.Minute, zerolog.Nop())
	w.now = func() time.Time { return now }

	plan, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, plan.Archive)
	assert.Equal(t, []string{"s1"}, fake.archived)
	assert.Equal(t, []string{"s2"}, fake.deleted)
	assert.Equal(t, []string{"s2"}, fake.forgotten)
}

func TestRetentionWorker_RunOnceListError(t *testing.T) {
	fake := &fakeRetention{listErr: errors.New("db down")}
	w := NewRetentionWorker(fake, fake, fake, time.Minute, zerolog.Nop())

	_, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, fake.archived)
	assert.Empty(t, fake.deleted)
}

// ─── LikeWorker ───

func TestDedupeLikes(t *testing.T) {
	batch := []service.LikeJob{
		{AnswerID: "a1", UserID: "u1"},
		{AnswerID: "a1", UserID: "u2"},
		{AnswerID: "a1", UserID: "u1"},
		{AnswerID: "a2", UserID: "u1"},
	}
	answers, users := dedupeLikes(batch)
	assert.Equal(t, []string{"a1", "a1", "a2"}, answers)
	assert.Equal(t, []string{"u1", "u2", "u1"}, users)
}

type fakeLikeStore struct {
	bulkErr error
	rows    [][2]string
}

func (f *fakeLikeStore) AddLikes(_ context.Context, answerIDs, userIDs []string) error {
	if f.bulkErr != nil {
		return f.bulkErr
	}
	for i := range answerIDs {
		f.rows = append(f.rows, [2]string{answerIDs[i], userIDs[i]})
	}
	return nil
}

func (f *fakeLikeStore) AddLike(_ context.Context, answerID, userID string) error {
	f.rows = append(f.rows, [2]string{answerID, userID})
	return nil
}

func TestLikeWorker_FlushBulk(t *testing.T) {
	store := &fakeLikeStore{}
	w := NewLikeWorker(store, nil, zerolog.Nop())

	w.flush(context.Background(), []service.LikeJob{{AnswerID: "a1", UserID: "u1"}, {AnswerID: "a1", UserID: "u1"}})
	assert.Equal(t, [][2]string{{"a1", "u1"}}, store.rows)
}

func TestLikeWorker_FlushFallsBackToRows(t *testing.T) {
	store := &fakeLikeStore{bulkErr: errors.New("batch rejected")}
	w := NewLikeWorker(store, nil, zerolog.Nop())

	w.flush(context.Background(), []service.LikeJob{{AnswerID: "a1", UserID: "u1"}, {AnswerID: "a2", UserID: "u1"}})
	assert.Equal(t, [][2]string{{"a1", "u1"}, {"a2", "u1"}}, store.rows)
}

type deletedRowStore struct{ fakeLikeStore }

func (d *deletedRowStore) AddLike(_ context.Context, answerID, userID string) error {
	if answerID == "gone" {
		return &pgconn.PgError{Code: "23503"}
	}
	return d.fakeLikeStore.AddLike(context.Background(), answerID, userID)
}

func TestLikeWorker_FlushDropsDeletedRows(t *testing.T) {
	store := &deletedRowStore{fakeLikeStore{bulkErr: errors.New("fk violation")}}
	w := NewLikeWorker(store, nil, zerolog.Nop())

	// No requeue happens, so the nil Redis client is never touched.
	w.flush(context.Background(), []service.LikeJob{{AnswerID: "gone", UserID: "u1"}, {AnswerID: "a2", UserID: "u1"}})
	assert.Equal(t, [][2]string{{"a2", "u1"}}, store.rows)
}
