package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/logging"
)

// Statement is an account's movement history over a window plus the balance
// derived from the full ledger.
type Statement struct {
	Account   *domain.Account
	Movements []domain.Movement
	Balance   decimal.Decimal
}

func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	balance, err := s.movements.BalanceOf(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	return balance, nil
}

func (s *Service) GetStatement(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (*Statement, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}

	movements, err := s.movements.ListByAccount(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}

	balance, err := s.movements.BalanceOf(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}

	return &Statement{Account: acct, Movements: movements, Balance: balance}, nil
}

// Deactivate flips the account to inactive. It takes the same row lock as the
// balance operations, so a deactivation cannot slip in between another
// command's activity check and its movement append.
func (s *Service) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Deactivate: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return fmt.Errorf("Deactivate: %w", err)
	}
	if !acct.Active {
		return nil
	}

	if err := s.accounts.Deactivate(ctx, tx, accountID); err != nil {
		return fmt.Errorf("Deactivate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Deactivate: commit: %w", err)
	}

	logging.FromContext(ctx).Info("account deactivated", "account_id", accountID)
	return nil
}
