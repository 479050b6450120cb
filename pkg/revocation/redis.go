package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "revoked:"

// Redis keeps revoked tokens in a shared Redis instance. Each entry lives
// until the token itself would have expired, so the keyspace stays bounded.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

var _ Registry = (*Redis)(nil)

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Dial connects to addr and pings it before returning.
func Dial(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrUnavailable, addr, err)
	}
	return NewRedis(client), nil
}

func (r *Redis) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		// already rejected by expiry
		return nil
	}
	if err := r.client.Set(ctx, keyPrefix+fingerprint(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+fingerprint(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
