package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bankmore/ledger/internal/domain"
)

// IdempotencyRecord maps a client-supplied key to the identifier the first
// execution produced. Immutable once created.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Result      string
	CreatedAt   time.Time
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, request_hash, result, created_at
		FROM idempotency_records WHERE idempotency_key = $1`, key,
	).Scan(&rec.Key, &rec.RequestHash, &rec.Result, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &rec, nil
}

// CreateIfAbsent inserts the record inside the caller's transaction and
// reports whether this call created it. The insert is a single atomic
// insert-if-absent: a concurrent duplicate blocks on the primary key until
// the winner commits, then observes created=false. Callers that lose must
// roll back their own writes and return the stored result instead.
func (r *IdempotencyRepository) CreateIfAbsent(ctx context.Context, tx *sql.Tx, rec *IdempotencyRecord) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO idempotency_records (idempotency_key, request_hash, result, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		rec.Key, rec.RequestHash, rec.Result, rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("CreateIfAbsent: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CreateIfAbsent: rows affected: %w", err)
	}
	return rows == 1, nil
}

// Replay resolves a previously recorded key. It returns the stored result if
// the fingerprint matches and ErrIdempotencyKeyReuse if the same key was used
// for a different request.
func (r *IdempotencyRepository) Replay(ctx context.Context, key, requestHash string) (string, error) {
	rec, err := r.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("Replay: %w", err)
	}
	if rec == nil {
		return "", fmt.Errorf("Replay: %w", domain.ErrNotFound)
	}
	if rec.RequestHash != requestHash {
		return "", fmt.Errorf("Replay: %w", domain.ErrIdempotencyKeyReuse)
	}
	return rec.Result, nil
}
