package store

import (
	"context"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"github.com/abrezinsky/lunchbot/internal/errors"
)

// maxTxRetries bounds optimistic-lock retries when another writer touches
// the document hash between WATCH and EXEC.
const maxTxRetries = 10

// Redis keeps the whole document tree in one hash: field = leaf path,
// value = JSON scalar. Writes go through WATCH/MULTI so concurrent
// read-modify-write cycles cannot lose updates.
type Redis struct {
	client *redis.Client
	key    string
}

// RedisOptions configures the Redis store
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Key is the hash holding the documents. Defaults to "lunchbot:documents".
	Key string
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Unavailable("redis.ping", err)
	}
	return NewRedisWithClient(client, opts.Key), nil
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = "lunchbot:documents"
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, path string) (any, error) {
	rows, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, errors.Unavailable("redis.get", err)
	}
	return build(Clean(path), rows)
}

func (r *Redis) Set(ctx context.Context, path string, value any) error {
	return r.Update(ctx, path, func(any) (any, error) { return value, nil })
}

func (r *Redis) Update(ctx context.Context, path string, fn UpdateFunc) error {
	path = Clean(path)

	txf := func(tx *redis.Tx) error {
		rows, err := tx.HGetAll(ctx, r.key).Result()
		if err != nil {
			return err
		}
		current, err := build(path, rows)
		if err != nil {
			return passthrough{err}
		}
		next, err := fn(current)
		if err != nil {
			return passthrough{err}
		}
		leaves, err := flatten(path, next)
		if err != nil {
			return passthrough{errors.Wrap(err, errors.ErrValidation, "invalid document")}
		}

		existing := make([]string, 0, len(rows))
		for row := range rows {
			existing = append(existing, row)
		}
		stale := replaced(path, existing)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(stale) > 0 {
				pipe.HDel(ctx, r.key, stale...)
			}
			if len(leaves) > 0 {
				values := make(map[string]interface{}, len(leaves))
				for k, v := range leaves {
					values[k] = v
				}
				pipe.HSet(ctx, r.key, values)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		var pt passthrough
		if stderrors.As(err, &pt) {
			return pt.err
		}
		if err != nil {
			return errors.Unavailable("redis.update", err)
		}
		return nil
	}
	return errors.Conflict("redis.update: too much contention on " + r.key)
}

// passthrough carries errors that did not come from Redis out of a
// transaction unchanged
type passthrough struct{ err error }

func (p passthrough) Error() string { return p.err.Error() }
func (p passthrough) Unwrap() error { return p.err }
