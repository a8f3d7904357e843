package sessionstore

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisNamespace = "webchat-embed"

// RedisStore keeps values as plain string keys under a namespace prefix.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

var _ Store = &RedisStore{}

func NewRedisStore(addr string, namespace string) (*RedisStore, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis session store: empty address")
	}
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: addr}), namespace), nil
}

func NewRedisStoreFromClient(client *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = defaultRedisNamespace
	}
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) redisKey(key string) string {
	return s.namespace + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	v, err := s.client.Get(ctx, s.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis session store: get")
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return errors.Wrap(err, "redis session store: set")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return errors.Wrap(err, "redis session store: delete")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
