package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/bankmore/ledger/internal/domain"
)

type FeeRepository struct {
	db *sql.DB
}

func NewFeeRepository(db *sql.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

func (r *FeeRepository) Create(ctx context.Context, tx *sql.Tx, fee *domain.Fee) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO fees (id, account_id, amount, created_at)
		VALUES ($1, $2, $3, $4)`,
		fee.ID, fee.AccountID, fee.Amount, fee.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *FeeRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Fee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, amount, created_at FROM fees
		WHERE account_id = $1 ORDER BY created_at`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByAccountID: %w", err)
	}
	defer rows.Close()

	var fees []domain.Fee
	for rows.Next() {
		var f domain.Fee
		if err := rows.Scan(&f.ID, &f.AccountID, &f.Amount, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetByAccountID: scan: %w", err)
		}
		fees = append(fees, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByAccountID: rows: %w", err)
	}
	return fees, nil
}
