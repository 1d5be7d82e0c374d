package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Store.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) NextID(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *Redis) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, member := range members {
		args[i] = member
	}
	return r.client.SAdd(ctx, key, args...).Err()
}

func (r *Redis) SetRemove(ctx context.Context, key, member string) (bool, error) {
	removed, err := r.client.SRem(ctx, key, member).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (r *Redis) SetMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *Redis) PutRecord(ctx context.Context, key string, fields map[string]string) error {
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	return r.client.HSet(ctx, key, args).Err()
}

func (r *Redis) GetRecord(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) AppendLog(ctx context.Context, key string, score float64, value string) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: value}).Err()
}

func (r *Redis) LogRange(ctx context.Context, key string, start, stop int64) ([]Sample, error) {
	entries, err := r.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, 0, len(entries))
	for _, entry := range entries {
		value, ok := entry.Member.(string)
		if !ok {
			continue
		}
		samples = append(samples, Sample{Score: entry.Score, Value: value})
	}
	return samples, nil
}

func (r *Redis) LogSize(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

func (r *Redis) TrimLog(ctx context.Context, key string, start, stop int64) error {
	return r.client.ZRemRangeByRank(ctx, key, start, stop).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
