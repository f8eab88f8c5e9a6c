package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ggza/trivia-core/internal/config"
)

const (
	redisModeSingle   = "single"
	redisModeSentinel = "sentinel"
	redisModeCluster  = "cluster"

	defaultRedisDialTimeout = 5 * time.Second
)

// redisOptions переводит RedisConfig в опции go-redis и проверяет сочетание режима и полей
func redisOptions(cfg config.RedisConfig) (string, *redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Addr != "" {
		addrs = []string{cfg.Addr}
	}
	if len(addrs) == 0 {
		return "", nil, fmt.Errorf("redis: addrs or addr must be set")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = redisModeSingle
	}

	opts := &redis.UniversalOptions{
		Addrs:           addrs,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoff) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoff) * time.Millisecond,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     defaultRedisDialTimeout,
	}
	if cfg.DialTimeoutMs > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeoutMs) * time.Millisecond
	}

	switch mode {
	case redisModeSingle:
		if len(addrs) > 1 {
			log.Printf("[Redis] WARNING: режим single использует только первый адрес из %d", len(addrs))
			opts.Addrs = addrs[:1]
		}
	case redisModeSentinel:
		if cfg.MasterName == "" {
			return "", nil, fmt.Errorf("redis: sentinel mode requires master_name")
		}
		opts.MasterName = cfg.MasterName
	case redisModeCluster:
		if cfg.DB != 0 {
			return "", nil, fmt.Errorf("redis: cluster mode supports only db 0, got %d", cfg.DB)
		}
	default:
		return "", nil, fmt.Errorf("redis: unsupported mode %q", mode)
	}
	return mode, opts, nil
}

// NewRedisClient создает клиент под режим из конфигурации и проверяет соединение.
// Кеш лидербордов и счетчики лимитов работают с любым из режимов через redis.UniversalClient.
func NewRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	mode, opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch mode {
	case redisModeSentinel:
		client = redis.NewFailoverClient(opts.Failover())
	case redisModeCluster:
		client = redis.NewClusterClient(opts.Cluster())
	default:
		client = redis.NewClient(opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis (mode %s, addrs %v): %w", mode, opts.Addrs, err)
	}

	log.Printf("[Redis] Подключено: режим %s, адреса %v, db %d", mode, opts.Addrs, opts.DB)
	return client, nil
}
