package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authguard"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	replaceAttempts  = 3
	uniqueViolation  = "23505"
	tokenColumns     = "id, purpose, email, token_hash, expires_at, created_at"
	deletePairQuery  = `DELETE FROM auth_tokens WHERE purpose = ? AND email = ?`
	purgeQuery       = `DELETE FROM auth_tokens WHERE purpose = ? AND expires_at < ?`
	purgeAllQuery    = `DELETE FROM auth_tokens WHERE expires_at < ?`
	deleteByIDQuery  = `DELETE FROM auth_tokens WHERE id = ?`
	insertTokenQuery = `INSERT INTO auth_tokens (` + tokenColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	findTokenQuery   = `SELECT ` + tokenColumns + ` FROM auth_tokens WHERE purpose = ? AND email = ? AND token_hash = ?`
)

type tokenRow struct {
	ID        string `db:"id"`
	Purpose   string `db:"purpose"`
	Email     string `db:"email"`
	TokenHash string `db:"token_hash"`
	ExpiresAt int64  `db:"expires_at"`
	CreatedAt int64  `db:"created_at"`
}

func (r tokenRow) record() *authguard.TokenRecord {
	return &authguard.TokenRecord{
		ID:        r.ID,
		Purpose:   authguard.TokenPurpose(r.Purpose),
		Email:     r.Email,
		TokenHash: r.TokenHash,
		ExpiresAt: time.UnixMilli(r.ExpiresAt).UTC(),
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// Store implements authguard.TokenStore on an auth_tokens table.
type Store struct {
	db *sqlx.DB
}

// New wraps db. The schema must already be migrated.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Replace implements authguard.TokenStore. In one transaction it removes
// the previous record for the pair, purges expired records of the purpose
// (relative to record.CreatedAt) and inserts record.
func (s *Store) Replace(ctx context.Context, record authguard.TokenRecord) error {
	var err error
	for attempt := 0; attempt < replaceAttempts; attempt++ {
		err = s.replaceOnce(ctx, record)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", authguard.ErrTokenStoreUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", authguard.ErrTokenConflict, err)
}

func (s *Store) replaceOnce(ctx context.Context, record authguard.TokenRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	purpose := string(record.Purpose)
	if _, err := tx.ExecContext(ctx, tx.Rebind(deletePairQuery), purpose, record.Email); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(purgeQuery), purpose, record.CreatedAt.UnixMilli()); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(insertTokenQuery),
		record.ID,
		purpose,
		record.Email,
		record.TokenHash,
		record.ExpiresAt.UnixMilli(),
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FindByHash implements authguard.TokenStore. Expired records are returned
// so the caller can report them as expired.
func (s *Store) FindByHash(ctx context.Context, purpose authguard.TokenPurpose, email, tokenHash string) (*authguard.TokenRecord, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(findTokenQuery), string(purpose), email, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authguard.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authguard.ErrTokenStoreUnavailable, err)
	}
	return row.record(), nil
}

// Delete implements authguard.TokenStore. Only the caller whose statement
// removed the row observes true.
func (s *Store) Delete(ctx context.Context, record authguard.TokenRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(deleteByIDQuery), record.ID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", authguard.ErrTokenStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", authguard.ErrTokenStoreUnavailable, err)
	}
	return n == 1, nil
}

// PurgeExpired removes every record that expired before now, across all
// purposes, and returns how many were removed. Replace already purges per
// purpose; this is for periodic maintenance jobs.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(purgeAllQuery), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", authguard.ErrTokenStoreUnavailable, err)
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}

	return false
}
