// Package cache holds short-lived handshake state in Redis so no OAuth
// secret ever lives in process memory across requests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const requestTokenTTL = 10 * time.Minute

var ErrTokenNotFound = errors.New("request token is unknown or expired")

// RequestTokenStore keeps OAuth 1.0a request-token secrets between the
// authorize redirect and the callback. Entries expire after ten minutes and
// are consumed exactly once.
type RequestTokenStore struct {
	rdb *redis.Client
}

func NewRequestTokenStore(rdb *redis.Client) *RequestTokenStore {
	return &RequestTokenStore{rdb: rdb}
}

func (s *RequestTokenStore) Put(ctx context.Context, token, secret string) error {
	if err := s.rdb.Set(ctx, key(token), secret, requestTokenTTL).Err(); err != nil {
		return fmt.Errorf("storing request token secret: %w", err)
	}
	return nil
}

// Take returns the secret for a request token and deletes it, so a replayed
// callback cannot reuse the handshake.
func (s *RequestTokenStore) Take(ctx context.Context, token string) (string, error) {
	secret, err := s.rdb.GetDel(ctx, key(token)).Result()
	if err == redis.Nil {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading request token secret: %w", err)
	}
	return secret, nil
}

func key(token string) string {
	return "oauth1:request_token:" + token
}
