package authguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authguard/internal/clock"
	"github.com/MrEthical07/authguard/internal/stores"
	"github.com/MrEthical07/authguard/internal/tokens"
	"github.com/redis/go-redis/v9"
)

// RedisTokenStore is the built-in TokenStore. It keeps one key per
// (purpose, email), so Replace overwrites the previous token, and relies on
// key TTLs (token lifetime plus Tokens.ExpiredRetention) instead of an
// explicit purge of expired records.
type RedisTokenStore struct {
	store     *stores.TokenStore
	clock     Clock
	retention time.Duration
}

// NewRedisTokenStore wraps client using cfg.RedisPrefix and
// cfg.ExpiredRetention. A nil clock selects the system clock.
func NewRedisTokenStore(client redis.UniversalClient, cfg TokenConfig, c Clock) *RedisTokenStore {
	if c == nil {
		c = clock.System{}
	}
	return &RedisTokenStore{
		store:     stores.NewTokenStore(client, cfg.RedisPrefix),
		clock:     c,
		retention: cfg.ExpiredRetention,
	}
}

// Replace implements TokenStore.
func (s *RedisTokenStore) Replace(ctx context.Context, record TokenRecord) error {
	hash, err := tokens.DecodeHash(record.TokenHash)
	if err != nil {
		return err
	}

	ttl := record.ExpiresAt.Sub(s.clock.Now()) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}

	err = s.store.Replace(ctx, &stores.TokenRecord{
		ID:        record.ID,
		Purpose:   string(record.Purpose),
		Email:     record.Email,
		TokenHash: hash,
		ExpiresAt: record.ExpiresAt.UnixMilli(),
		CreatedAt: record.CreatedAt.UnixMilli(),
	}, ttl)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenStoreUnavailable, err)
	}
	return nil
}

// FindByHash implements TokenStore.
func (s *RedisTokenStore) FindByHash(ctx context.Context, purpose TokenPurpose, email, tokenHash string) (*TokenRecord, error) {
	hash, err := tokens.DecodeHash(tokenHash)
	if err != nil {
		return nil, ErrTokenNotFound
	}

	rec, err := s.store.Find(ctx, string(purpose), email, hash)
	if err != nil {
		if errors.Is(err, stores.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenStoreUnavailable, err)
	}

	return &TokenRecord{
		ID:        rec.ID,
		Purpose:   TokenPurpose(rec.Purpose),
		Email:     rec.Email,
		TokenHash: tokenHash,
		ExpiresAt: time.UnixMilli(rec.ExpiresAt),
		CreatedAt: time.UnixMilli(rec.CreatedAt),
	}, nil
}

// Delete implements TokenStore.
func (s *RedisTokenStore) Delete(ctx context.Context, record TokenRecord) (bool, error) {
	ok, err := s.store.Delete(ctx, string(record.Purpose), record.Email, record.ID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTokenStoreUnavailable, err)
	}
	return ok, nil
}
