package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/service"
)

const (
	LikeBatchSize    = 100
	LikeBatchTimeout = 2 * time.Second
	PollTimeout      = 1 * time.Second
)

// LikeStore persists likes.
type LikeStore interface {
	AddLikes(ctx context.Context, answerIDs, userIDs []string) error
	AddLike(ctx context.Context, answerID, userID string) error
}

// LikeWorker drains persist_likes_queue into Postgres in batches.
type LikeWorker struct {
	store LikeStore
	rdb   *redis.Client
	queue string
	log   zerolog.Logger
}

// NewLikeWorker creates a new LikeWorker.
func NewLikeWorker(store LikeStore, rdb *redis.Client, log zerolog.Logger) *LikeWorker {
	return &LikeWorker{
		store: store,
		rdb:   rdb,
		queue: config.WorkerKey.PersistLikesQueue,
		log:   log.With().Str("component", "like_worker").Logger(),
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *LikeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("LikeWorker started")

	batch := make([]service.LikeJob, 0, LikeBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= LikeBatchSize || time.Since(lastFlush) >= LikeBatchTimeout) {
			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(batch)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, w.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job service.LikeJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil || job.AnswerID == "" || job.UserID == "" {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed like job")
			continue
		}
		batch = append(batch, job)
	}
}

// dedupeLikes drops repeated (answer, user) pairs, keeping first-seen order.
func dedupeLikes(batch []service.LikeJob) (answerIDs, userIDs []string) {
	seen := make(map[service.LikeJob]struct{}, len(batch))
	for _, job := range batch {
		if _, ok := seen[job]; ok {
			continue
		}
		seen[job] = struct{}{}
		answerIDs = append(answerIDs, job.AnswerID)
		userIDs = append(userIDs, job.UserID)
	}
	return answerIDs, userIDs
}

// flush writes the batch in one statement, falling back to row-by-row so
// one bad row cannot hold the rest back. Rows that still fail are requeued.
func (w *LikeWorker) flush(ctx context.Context, batch []service.LikeJob) {
	answerIDs, userIDs := dedupeLikes(batch)
	err := w.store.AddLikes(ctx, answerIDs, userIDs)
	if err == nil {
		w.log.Debug().Int("count", len(answerIDs)).Msg("Likes persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(answerIDs)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var failed []service.LikeJob
	for i := range answerIDs {
		if err := w.store.AddLike(ctx, answerIDs[i], userIDs[i]); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				// Answer or user is gone; retrying cannot succeed.
				w.log.Warn().Str("answer_id", answerIDs[i]).Msg("Dropping like for deleted row")
				continue
			}
			w.log.Error().Err(err).Str("answer_id", answerIDs[i]).Msg("Insert failed, requeueing")
			failed = append(failed, service.LikeJob{AnswerID: answerIDs[i], UserID: userIDs[i]})
		}
	}
	if len(failed) > 0 {
		w.requeue(ctx, failed)
	}
}

func (w *LikeWorker) requeue(ctx context.Context, jobs []service.LikeJob) {
	pipe := w.rdb.Pipeline()
	for _, job := range jobs {
		data, _ := json.Marshal(job)
		pipe.RPush(ctx, w.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(jobs)).Msg("Failed to requeue likes; they will be lost")
		return
	}
	w.log.Info().Int("count", len(jobs)).Msg("Requeued failed likes")
	// Back off so a database outage does not spin the loop.
	time.Sleep(2 * time.Second)
}

// shutdown flushes the in-memory batch and whatever is left in the queue.
func (w *LikeWorker) shutdown(batch []service.LikeJob) {
	w.log.Info().Msg("LikeWorker stopping, draining...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		var job service.LikeJob
		if json.Unmarshal([]byte(raw), &job) == nil && job.AnswerID != "" && job.UserID != "" {
			batch = append(batch, job)
		}
		if len(batch) >= LikeBatchSize {
			w.flush(ctx, batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		w.flush(ctx, batch)
	}
	w.log.Info().Msg("LikeWorker stopped")
}
