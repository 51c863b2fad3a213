package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bankmore/ledger/internal/domain"
)

type SettlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// CreateIfAbsent records the settlement for a transfer, keyed by transfer id.
// A redelivered transfer event observes created=false and must not charge the
// fee again.
func (r *SettlementRepository) CreateIfAbsent(ctx context.Context, tx *sql.Tx, s *domain.Settlement) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO settlements (transfer_id, account_id, movement_id, fee_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transfer_id) DO NOTHING`,
		s.TransferID, s.AccountID, s.MovementID, s.FeeID, s.Amount, s.CreatedAt,
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

func (r *SettlementRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) (*domain.Settlement, error) {
	var s domain.Settlement
	err := r.db.QueryRowContext(ctx,
		`SELECT transfer_id, account_id, movement_id, fee_id, amount, created_at
		FROM settlements WHERE transfer_id = $1`, transferID,
	).Scan(&s.TransferID, &s.AccountID, &s.MovementID, &s.FeeID, &s.Amount, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByTransferID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByTransferID: %w", err)
	}
	return &s, nil
}
