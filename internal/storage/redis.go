package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	config "github.com/evmstream/processor/configs"
)

const redisProgressKey = "processor:progress"

var DEFAULT_REDIS_POOL_SIZE = 20

type RedisConnector struct {
	client *redis.Client
	cfg    *config.RedisConfig
}

func NewRedisConnector(cfg *config.RedisConfig) (*RedisConnector, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DEFAULT_REDIS_POOL_SIZE
	}

	options := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	}

	client := redis.NewClient(options)

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Debug().Msg("Connected to Redis")
	return &RedisConnector{
		client: client,
		cfg:    cfg,
	}, nil
}

func (r *RedisConnector) Connect() (int64, error) {
	ctx := context.Background()
	value, err := r.client.Get(ctx, redisProgressKey).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read persisted height: %w", err)
	}

	height, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt progress value %q: %w", value, err)
	}
	return height, nil
}

// Transact hands the handler a redis transaction pipeline. The queued
// commands execute atomically after the handler returns; a handler error
// discards them.
func (r *RedisConnector) Transact(from int64, to int64, fn func(store Store) error) error {
	ctx := context.Background()
	pipe := r.client.TxPipeline()

	if err := fn(pipe); err != nil {
		pipe.Discard()
		return err
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit blocks %d-%d: %w", from, to, err)
	}
	return nil
}

func (r *RedisConnector) Advance(height int64) error {
	ctx := context.Background()
	return r.client.Set(ctx, redisProgressKey, strconv.FormatInt(height, 10), 0).Err()
}

func (r *RedisConnector) Close() error {
	return r.client.Close()
}
