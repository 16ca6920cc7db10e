package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/classqa/internal/config"
)

// RedisLikeLedger keeps likers in a Redis set per answer and pushes
// persistence jobs onto the like worker's queue.
type RedisLikeLedger struct {
	rdb *redis.Client
}

// NewRedisLikeLedger creates a new RedisLikeLedger.
func NewRedisLikeLedger(rdb *redis.Client) *RedisLikeLedger {
	return &RedisLikeLedger{rdb: rdb}
}

func (l *RedisLikeLedger) Record(ctx context.Context, answerID, userID string, seed []string) (bool, error) {
	key := config.CacheKey.AnswerLikesKey(answerID)
	pipe := l.rdb.TxPipeline()
	if len(seed) > 0 {
		// Seed from persisted likes so a cold cache does not undercount.
		members := make([]any, len(seed))
		for i, id := range seed {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
	}
	added := pipe.SAdd(ctx, key, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return added.Val() > 0, nil
}

func (l *RedisLikeLedger) Revoke(ctx context.Context, answerID, userID string) error {
	return l.rdb.SRem(ctx, config.CacheKey.AnswerLikesKey(answerID), userID).Err()
}

func (l *RedisLikeLedger) Likers(ctx context.Context, answerID string) ([]string, error) {
	return l.rdb.SMembers(ctx, config.CacheKey.AnswerLikesKey(answerID)).Result()
}

func (l *RedisLikeLedger) Enqueue(ctx context.Context, job LikeJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return l.rdb.RPush(ctx, config.WorkerKey.PersistLikesQueue, data).Err()
}
