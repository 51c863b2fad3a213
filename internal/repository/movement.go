package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankmore/ledger/internal/domain"
)

const movementColumns = `id, account_id, kind, amount, created_at`

type MovementRepository struct {
	db *sql.DB
}

func NewMovementRepository(db *sql.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

func (r *MovementRepository) Create(ctx context.Context, tx *sql.Tx, m *domain.Movement) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO movements (id, account_id, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.AccountID, m.Kind, m.Amount, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *MovementRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Movement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE id = $1`, id,
	)
	m, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return m, nil
}

// BalanceOf derives the balance from the movement log. The sum is always
// recomputed; there is no stored balance to drift from it.
func (r *MovementRepository) BalanceOf(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return balanceOf(ctx, r.db, accountID)
}

// BalanceOfTx is BalanceOf inside a transaction, used after the account row
// lock has been taken so the check-then-append is serialized per account.
func (r *MovementRepository) BalanceOfTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (decimal.Decimal, error) {
	return balanceOf(ctx, tx, accountID)
}

func balanceOf(ctx context.Context, q querier, accountID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE kind WHEN 'credit' THEN amount ELSE -amount END), 0)
		FROM movements WHERE account_id = $1`,
		accountID,
	).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf: %w", err)
	}
	return balance, nil
}

// ListByAccount returns movements newest first, optionally bounded by
// [from, to].
func (r *MovementRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]domain.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE account_id = $1`
	args := []any{accountID}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var movements []domain.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		movements = append(movements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return movements, nil
}

func scanMovement(s scanner) (*domain.Movement, error) {
	var m domain.Movement
	err := s.Scan(&m.ID, &m.AccountID, &m.Kind, &m.Amount, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
