package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenRecordVersionV1 = 1
	maxTokenFieldLen     = 65535
)

var (
	ErrTokenNotFound         = errors.New("token record not found")
	ErrTokenRedisUnavailable = errors.New("token redis unavailable")
	ErrTokenRecordCorrupt    = errors.New("token record corrupt")
)

// TokenRecord is the persisted form of one issued token. Only the SHA-256 of
// the raw token is kept. Times are unix milliseconds.
type TokenRecord struct {
	ID        string
	Purpose   string
	Email     string
	TokenHash [32]byte
	ExpiresAt int64
	CreatedAt int64
}

// TokenStore keeps at most one record per (purpose, email) under a single
// Redis key, so writing a new record replaces the previous one.
type TokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewTokenStore(redisClient redis.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = "agtk"
	}
	return &TokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *TokenStore) key(purpose, email string) string {
	return s.prefix + ":" + purpose + ":" + email
}

// Replace stores record as the only live token for its (purpose, email).
// ttl bounds how long Redis keeps the record, and must cover the token
// lifetime plus any retention used to report expiry.
func (s *TokenStore) Replace(ctx context.Context, record *TokenRecord, ttl time.Duration) error {
	if record == nil {
		return errors.New("token record is nil")
	}
	if ttl <= 0 {
		return errors.New("token record ttl must be > 0")
	}

	encoded, err := encodeTokenRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(record.Purpose, record.Email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	return nil
}

// Find returns the record for (purpose, email) when its hash matches. A
// missing key and a hash mismatch both report ErrTokenNotFound.
func (s *TokenStore) Find(ctx context.Context, purpose, email string, hash [32]byte) (*TokenRecord, error) {
	data, err := s.redis.Get(ctx, s.key(purpose, email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	record, err := decodeTokenRecord(data)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(record.TokenHash[:], hash[:]) != 1 {
		return nil, ErrTokenNotFound
	}

	return record, nil
}

// Delete removes the record for (purpose, email) only if it still carries id.
// It reports true for the caller whose transaction removed it; concurrent
// callers and callers racing a replacement get false.
func (s *TokenStore) Delete(ctx context.Context, purpose, email, id string) (bool, error) {
	const maxRetries = 4
	key := s.key(purpose, email)

	for i := 0; i < maxRetries; i++ {
		deleted := false

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeTokenRecord(data)
			if err != nil {
				return err
			}
			if subtle.ConstantTimeCompare([]byte(record.ID), []byte(id)) != 1 {
				return ErrTokenNotFound
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			deleted = true
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, ErrTokenNotFound):
				return false, nil
			case errors.Is(err, ErrTokenRecordCorrupt):
				return false, err
			default:
				return false, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
			}
		}

		return deleted, nil
	}

	return false, nil
}

func encodeTokenRecord(record *TokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.ID, record.Purpose, record.Email} {
		if len(field) > maxTokenFieldLen {
			return nil, errors.New("token record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}
	buf.Write(record.TokenHash[:])

	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*TokenRecord, error) {
	record, err := readTokenRecord(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRecordCorrupt, err)
	}
	return record, nil
}

func readTokenRecord(reader *bytes.Reader) (*TokenRecord, error) {
	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersionV1 {
		return nil, errors.New("invalid token record version")
	}

	record := &TokenRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}

	fields := []*string{&record.ID, &record.Purpose, &record.Email}
	for _, field := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	if _, err := io.ReadFull(reader, record.TokenHash[:]); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes")
	}

	return record, nil
}
