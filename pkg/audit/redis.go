package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisScanPage = 500

// RedisBackend stores the chain as a Redis list; list index i holds sequence i+1.
// Appends run under WATCH so two writers can never claim the same sequence.
type RedisBackend struct {
	rdb *redis.Client
	key string
}

func NewRedisBackend(rdb *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = "discovery:audit:events"
	}
	return &RedisBackend{rdb: rdb, key: key}
}

func (b *RedisBackend) Append(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = b.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.LLen(ctx, b.key).Result()
		if err != nil {
			return err
		}
		if uint64(n)+1 != e.Sequence {
			return ErrSequenceConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, b.key, data)
			return nil
		})
		return err
	}, b.key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrSequenceConflict
	}
	return err
}

func (b *RedisBackend) Last(ctx context.Context) (*Event, error) {
	raw, err := b.rdb.LIndex(ctx, b.key, -1).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, &CorruptRecordError{Position: 0, Err: err}
	}
	return &e, nil
}

func (b *RedisBackend) Scan(ctx context.Context, from uint64, fn func(Event) error) error {
	if from == 0 {
		from = 1
	}
	start := int64(from - 1)
	for {
		page, err := b.rdb.LRange(ctx, b.key, start, start+redisScanPage-1).Result()
		if err != nil {
			return err
		}
		for i, raw := range page {
			var e Event
			if err := json.Unmarshal([]byte(raw), &e); err != nil {
				return &CorruptRecordError{Position: uint64(start) + uint64(i) + 1, Err: err}
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		if len(page) < redisScanPage {
			return nil
		}
		start += redisScanPage
	}
}

// Close leaves the shared client open; its owner closes it.
func (b *RedisBackend) Close() error { return nil }

var _ Backend = (*RedisBackend)(nil)
