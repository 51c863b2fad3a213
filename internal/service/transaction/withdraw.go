package transaction

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/fees"
	"github.com/bankmore/ledger/internal/logging"
)

type WithdrawRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Withdraw appends a debit movement plus a paired fee debit and fee record,
// all in one transaction. The balance check and the appends happen behind the
// account row lock, so two concurrent withdrawals cannot both pass the
// sufficiency check.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Movement, error) {
	fp := fingerprint("withdraw", req)

	if req.IdempotencyKey != "" {
		m, hit, err := s.replayMovement(ctx, req.IdempotencyKey, fp)
		if err != nil {
			return nil, fmt.Errorf("Withdraw: %w", err)
		}
		if hit {
			return m, nil
		}
	}

	if err := validateAmount(req.Amount, s.withdrawalLimit); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Withdraw: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}
	if err := verifyActive(acct, "account"); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	fee := s.policy.For(fees.OpWithdrawal)

	balance, err := s.movements.BalanceOfTx(ctx, tx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}
	if balance.LessThan(req.Amount.Add(fee)) {
		return nil, fmt.Errorf("Withdraw: %w", domain.ErrInsufficientBalance)
	}

	now := time.Now().UTC()
	m := &domain.Movement{
		ID:        uuid.New(),
		AccountID: acct.ID,
		Kind:      domain.MovementKindDebit,
		Amount:    req.Amount,
		CreatedAt: now,
	}
	if err := s.movements.Create(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	if err := s.chargeFee(ctx, tx, acct.ID, fee, now); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	if req.IdempotencyKey != "" {
		won, err := s.recordIdempotency(ctx, tx, req.IdempotencyKey, fp, m.ID.String(), now)
		if err != nil {
			return nil, fmt.Errorf("Withdraw: %w", err)
		}
		if !won {
			tx.Rollback()
			m, _, err := s.replayMovement(ctx, req.IdempotencyKey, fp)
			if err != nil {
				return nil, fmt.Errorf("Withdraw: %w", err)
			}
			return m, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Withdraw: commit: %w", err)
	}

	logging.FromContext(ctx).Info("withdrawal completed",
		"account_id", acct.ID,
		"movement_id", m.ID,
		"amount", req.Amount,
		"fee", fee,
	)

	s.publish(ctx, domain.TopicWithdrawals, m.ID.String(), domain.WithdrawalCompleted{
		AccountID:  acct.ID,
		MovementID: m.ID,
		Amount:     req.Amount,
		Fee:        fee,
		OccurredAt: now,
	})

	return m, nil
}

// chargeFee writes the fee record and its paired debit movement. The two are
// only ever created together inside the caller's transaction.
func (s *Service) chargeFee(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return nil
	}

	feeMovement := &domain.Movement{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      domain.MovementKindDebit,
		Amount:    amount,
		CreatedAt: now,
	}
	if err := s.movements.Create(ctx, tx, feeMovement); err != nil {
		return fmt.Errorf("chargeFee: movement: %w", err)
	}

	fee := &domain.Fee{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		CreatedAt: now,
	}
	if err := s.fees.Create(ctx, tx, fee); err != nil {
		return fmt.Errorf("chargeFee: fee: %w", err)
	}
	return nil
}
