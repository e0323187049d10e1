package db

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mezonai/starledger/logx"
)

// RedisProvider implements DatabaseProvider on a Redis server. It has no
// transactions, so callers that need check-then-write must serialize themselves.
type RedisProvider struct {
	client *redis.Client
	ctx    context.Context
	once   sync.Once
}

// readableKey renders "<prefix>:" followed by a big-endian uint64 as
// "<prefix>:<decimal>" so block keys stay legible in redis-cli.
func readableKey(key []byte) string {
	i := strings.IndexByte(string(key), ':')
	if i < 0 || len(key)-(i+1) != 8 {
		return string(key)
	}
	return string(key[:i+1]) + strconv.FormatUint(binary.BigEndian.Uint64(key[i+1:]), 10)
}

// NewRedisProvider connects to address, either host:port or a redis:// URL.
func NewRedisProvider(address string) (DatabaseProvider, error) {
	opts := &redis.Options{Addr: address}
	if strings.HasPrefix(address, "redis://") || strings.HasPrefix(address, "rediss://") {
		parsed, err := redis.ParseURL(address)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logx.Info("REDIS", "Connected to ", opts.Addr, " db ", opts.DB)

	return &RedisProvider{client: client, ctx: ctx}, nil
}

func (p *RedisProvider) Get(key []byte) ([]byte, error) {
	value, err := p.client.Get(p.ctx, readableKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}

func (p *RedisProvider) Put(key, value []byte) error {
	redisKey := readableKey(key)
	logx.Debug("REDIS", "Put key:", redisKey, " value length:", len(value))
	return p.client.Set(p.ctx, redisKey, value, 0).Err()
}

func (p *RedisProvider) Delete(key []byte) error {
	return p.client.Del(p.ctx, readableKey(key)).Err()
}

func (p *RedisProvider) Has(key []byte) (bool, error) {
	count, err := p.client.Exists(p.ctx, readableKey(key)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IteratePrefix walks keys with SCAN. Redis gives no ordering, so keys arrive
// in server order rather than key order.
func (p *RedisProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	pattern := string(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := p.client.Scan(p.ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return err
		}
		for _, k := range keys {
			val, err := p.client.Get(p.ctx, k).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return err
			}
			if !fn([]byte(k), val) {
				return nil
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (p *RedisProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.client.Close()
	})
	return err
}
