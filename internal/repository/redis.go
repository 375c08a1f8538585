package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/argus/internal/event"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultKeyPrefix = "argus:"
	mgetChunk        = 512
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Redis stores events in Redis: one JSON value per event plus sorted-set
// indexes scored by Unix seconds, one across all events and one per type.
type Redis struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewRedis connects to the server at opts.Addr and verifies it is reachable.
func NewRedis(opts RedisOptions) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, storageErr("redis ping "+opts.Addr, err)
	}
	return NewRedisFromClient(client, opts.KeyPrefix), nil
}

// NewRedisFromClient wraps an existing client. An empty prefix selects the default.
func NewRedisFromClient(client goredis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{rdb: client, prefix: prefix}
}

func (r *Redis) eventKey(id string) string { return r.prefix + "evt:" + id }

func (r *Redis) allKey() string { return r.prefix + "z:all" }

func (r *Redis) typeKey(typ string) string { return r.prefix + "z:type:" + typ }

// score floors t to whole Unix seconds, which a sorted-set score holds exactly.
func score(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

func scoreBound(t *time.Time, inf string) string {
	if t == nil {
		return inf
	}
	return score(*t)
}

// insertScript writes the body only if the ID is new, then both indexes.
// Running it server-side makes the check and the writes one atomic step.
//
// KEYS: body, all-index, type-index. ARGV: body JSON, score, ID.
var insertScript = goredis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX') then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[3])
return 1
`)

// Insert stores the event body and both indexes atomically, so a query never
// sees an index entry without its body. An ID already present is rejected
// with ErrDuplicateID and nothing is written.
func (r *Redis) Insert(ctx context.Context, ev event.Event) (string, error) {
	stored := ev.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	body, err := json.Marshal(&stored)
	if err != nil {
		return "", storageErr("redis insert: encode", err)
	}

	keys := []string{r.eventKey(stored.ID), r.allKey(), r.typeKey(stored.Type)}
	created, err := insertScript.Run(ctx, r.rdb, keys,
		string(body), score(stored.Timestamp), stored.ID).Int()
	if err != nil {
		return "", storageErr("redis insert", err)
	}
	if created == 0 {
		return "", fmt.Errorf("redis insert %s: %w", stored.ID, ErrDuplicateID)
	}
	return stored.ID, nil
}

// Query narrows candidates by whole-second score range, then applies
// event.Match for exact bounds.
func (r *Redis) Query(ctx context.Context, q event.Query) ([]event.Event, error) {
	index := r.allKey()
	if q.Type != nil {
		index = r.typeKey(*q.Type)
	}

	ids, err := r.rdb.ZRangeByScore(ctx, index, &goredis.ZRangeBy{
		Min: scoreBound(q.Start, "-inf"),
		Max: scoreBound(q.End, "+inf"),
	}).Result()
	if err != nil {
		return nil, storageErr("redis query: range", err)
	}

	out := make([]event.Event, 0, len(ids))
	for lo := 0; lo < len(ids); lo += mgetChunk {
		hi := min(lo+mgetChunk, len(ids))
		keys := make([]string, 0, hi-lo)
		for _, id := range ids[lo:hi] {
			keys = append(keys, r.eventKey(id))
		}

		vals, err := r.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, storageErr("redis query: fetch", err)
		}
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue // indexed but body missing
			}
			var ev event.Event
			if err := json.UnmarshalFromString(raw, &ev); err != nil {
				return nil, storageErr(fmt.Sprintf("redis query: decode %s", keys[i]), err)
			}
			if event.Match(&ev, q) {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

// Count returns the cardinality of the all-events index.
func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.rdb.ZCard(ctx, r.allKey()).Result()
	if err != nil {
		return 0, storageErr("redis count", err)
	}
	return int(n), nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
