// Package store is the durable bookkeeping surface of the bot: a monotonic
// counter for trader names, sets for the trader index and per-trader deal
// books, records for trader metadata and a score-ordered log for the
// portfolio value history.
package store

import "context"

// Sample is one entry of the scored value log.
type Sample struct {
	Score float64
	Value string
}

type Store interface {
	// NextID atomically increments and returns the counter at key.
	NextID(ctx context.Context, key string) (int64, error)

	SetAdd(ctx context.Context, key string, members ...string) error
	// SetRemove reports whether the member was present.
	SetRemove(ctx context.Context, key, member string) (bool, error)
	SetMembers(ctx context.Context, key string) ([]string, error)

	PutRecord(ctx context.Context, key string, fields map[string]string) error
	GetRecord(ctx context.Context, key string) (map[string]string, error)

	Delete(ctx context.Context, keys ...string) error

	AppendLog(ctx context.Context, key string, score float64, value string) error
	// LogRange reads entries by rank, inclusive; negative indexes count from
	// the end, -1 being the last entry.
	LogRange(ctx context.Context, key string, start, stop int64) ([]Sample, error)
	LogSize(ctx context.Context, key string) (int64, error)
	// TrimLog removes entries by rank, inclusive.
	TrimLog(ctx context.Context, key string, start, stop int64) error

	Close() error
}
