package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/model"
)

const day = 24 * time.Hour

// RetentionSettings supplies the current archive settings.
type RetentionSettings interface {
	GetArchiveSettings(ctx context.Context) (model.ArchiveSettings, error)
}

// RetentionStore lists and transitions ended sessions.
type RetentionStore interface {
	ListEnded(ctx context.Context) ([]model.ClassSession, error)
	Archive(ctx context.Context, ids []string) (int64, error)
	Delete(ctx context.Context, ids []string) (int64, error)
}

// SessionForgetter drops hot state for deleted sessions.
type SessionForgetter interface {
	Forget(ctx context.Context, sessionIDs []string)
}

// RetentionPlan is what one retention pass will do.
type RetentionPlan struct {
	Archive []string
	Delete  []string
}

// PlanRetention decides the fate of ended sessions. Ages are measured from
// the session's end time, falling back to its start time. A zero setting
// disables its rule. Deleting a closed session wins over archiving it.
func PlanRetention(sessions []model.ClassSession, s model.ArchiveSettings, now time.Time) RetentionPlan {
	var plan RetentionPlan
	olderThan := func(at time.Time, days int) bool {
		return days > 0 && now.Sub(at) >= time.Duration(days)*day
	}

	for _, session := range sessions {
		ended := session.StartTime
		if session.EndTime != nil {
			ended = *session.EndTime
		}

		switch session.Status {
		case model.SessionStatusClosed:
			if olderThan(ended, s.DeleteClosedAfterDays) {
				plan.Delete = append(plan.Delete, session.ID)
			} else if olderThan(ended, s.AutoArchiveAfterDays) {
				plan.Archive = append(plan.Archive, session.ID)
			}
		case model.SessionStatusArchived:
			if olderThan(ended, s.DeleteArchivedAfterDays) {
				plan.Delete = append(plan.Delete, session.ID)
			}
		}
	}
	return plan
}

// RetentionWorker periodically enforces the archive settings.
type RetentionWorker struct {
	settings RetentionSettings
	store    RetentionStore
	forget   SessionForgetter
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewRetentionWorker creates a new RetentionWorker.
func NewRetentionWorker(settings RetentionSettings, store RetentionStore, forget SessionForgetter, interval time.Duration, log zerolog.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionWorker{
		settings: settings,
		store:    store,
		forget:   forget,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "retention_worker").Logger(),
	}
}

// Start runs a pass immediately and then every interval until ctx is
// cancelled. Call in a goroutine.
func (w *RetentionWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("RetentionWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Retention pass failed")
		}
		select {
		case <-ctx.Done():
			w.log.Info().Msg("RetentionWorker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one retention pass and returns what it planned.
func (w *RetentionWorker) RunOnce(ctx context.Context) (RetentionPlan, error) {
	settings, err := w.settings.GetArchiveSettings(ctx)
	if err != nil {
		return RetentionPlan{}, err
	}
	sessions, err := w.store.ListEnded(ctx)
	if err != nil {
		return RetentionPlan{}, err
	}

	plan := PlanRetention(sessions, settings, w.now())

	if len(plan.Archive) > 0 {
		n, err := w.store.Archive(ctx, plan.Archive)
		if err != nil {
			return plan, err
		}
		w.log.Info().Int64("count", n).Msg("Sessions archived")
	}
	if len(plan.Delete) > 0 {
		n, err := w.store.Delete(ctx, plan.Delete)
		if err != nil {
			return plan, err
		}
		w.forget.Forget(ctx, plan.Delete)
		w.log.Info().Int64("count", n).Msg("Sessions deleted")
	}
	return plan, nil
}
