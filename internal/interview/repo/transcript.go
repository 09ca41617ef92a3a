package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	errx "github.com/mockflow-core-poc-v1/server/internal/core/error"
	"github.com/mockflow-core-poc-v1/server/internal/interview/model"
	logx "github.com/mockflow-core-poc-v1/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type RedisTranscriptRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTranscriptRepository(rdb redis.Cmdable, ttl time.Duration) *RedisTranscriptRepository {
	return &RedisTranscriptRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisTranscriptRepository) transcriptKey(sessionID string) string {
	return fmt.Sprintf("interview:%s:transcript", sessionID)
}

func (r *RedisTranscriptRepository) summaryKey(sessionID string) string {
	return fmt.Sprintf("interview:%s:summary", sessionID)
}

func (r *RedisTranscriptRepository) AddTurn(ctx context.Context, sessionID string, turn model.Turn) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := r.transcriptKey(sessionID)

	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	return r.touch(ctx, key)
}

// touch extends the TTL on every write
func (r *RedisTranscriptRepository) touch(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	ok, err := r.rdb.Expire(ctx, key, r.ttl).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
		return errx.WrapRedis(err)
	}
	if !ok {
		logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on transcript key")
	}
	return nil
}

func (r *RedisTranscriptRepository) LoadTranscript(ctx context.Context, sessionID string) ([]model.Turn, error) {
	return r.load(ctx, sessionID, 0, -1)
}

func (r *RedisTranscriptRepository) LoadRecent(ctx context.Context, sessionID string, n int) ([]model.Turn, error) {
	if n <= 0 {
		return []model.Turn{}, nil
	}
	return r.load(ctx, sessionID, int64(-n), -1)
}

func (r *RedisTranscriptRepository) load(ctx context.Context, sessionID string, start, stop int64) ([]model.Turn, error) {
	key := r.transcriptKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.Turn{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}

	turns := make([]model.Turn, 0, len(rows))
	for i, s := range rows {
		var t model.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("sessionID", sessionID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// TurnCount returns the transcript length.
func (r *RedisTranscriptRepository) TurnCount(ctx context.Context, sessionID string) (int, error) {
	key := r.transcriptKey(sessionID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get turn count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

func (r *RedisTranscriptRepository) SaveSummary(ctx context.Context, summary model.Summary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	key := r.summaryKey(summary.SessionID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save summary")
		return errx.WrapRedis(err)
	}
	// keep the transcript alive as long as its summary
	return r.touch(ctx, r.transcriptKey(summary.SessionID))
}

func (r *RedisTranscriptRepository) LoadSummary(ctx context.Context, sessionID string) (*model.Summary, error) {
	key := r.summaryKey(sessionID)
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load summary")
		return nil, errx.WrapRedis(err)
	}
	var s model.Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &s, nil
}

var _ model.TranscriptRepository = (*RedisTranscriptRepository)(nil)
