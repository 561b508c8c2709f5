package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/storefront-session/internal/domain"
)

// compareAndSwapScript replaces (or, with an empty ARGV[2], deletes) KEYS[1]
// only while its access_token equals ARGV[1].
var compareAndSwapScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return 0
end
if cjson.decode(current).access_token ~= ARGV[1] then
  return 0
end
if ARGV[2] == '' then
  redis.call('DEL', KEYS[1])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

type redisBackend struct {
	client redis.Cmdable
}

// NewRedis stores each pair as one JSON string, so SET and GET are atomic per domain.
func NewRedis(client redis.Cmdable) (Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisBackend{client: client}, nil
}

func (b *redisBackend) Load(ctx context.Context, key string) (domain.CredentialPair, error) {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CredentialPair{}, ErrNotFound
		}
		return domain.CredentialPair{}, err
	}
	var pair domain.CredentialPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return domain.CredentialPair{}, fmt.Errorf("decode credential pair: %w", err)
	}
	return pair, nil
}

func (b *redisBackend) Save(ctx context.Context, key string, pair domain.CredentialPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, key, data, 0).Err()
}

func (b *redisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

func (b *redisBackend) CompareAndSwap(ctx context.Context, key, expectedAccess string, next domain.CredentialPair) (bool, error) {
	payload := ""
	if !next.Empty() {
		data, err := json.Marshal(next)
		if err != nil {
			return false, err
		}
		payload = string(data)
	}
	n, err := compareAndSwapScript.Run(ctx, b.client, []string{key}, expectedAccess, payload).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
