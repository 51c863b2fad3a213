package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/logging"
	"github.com/bankmore/ledger/internal/repository"
)

type DepositRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Deposit appends a credit movement. Exactly one movement is created per
// logical deposit regardless of retries under the same idempotency key.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*domain.Movement, error) {
	fp := fingerprint("deposit", req)

	if req.IdempotencyKey != "" {
		m, hit, err := s.replayMovement(ctx, req.IdempotencyKey, fp)
		if err != nil {
			return nil, fmt.Errorf("Deposit: %w", err)
		}
		if hit {
			return m, nil
		}
	}

	if err := validateAmount(req.Amount, s.depositLimit); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Deposit: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}
	if err := verifyActive(acct, "account"); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	now := time.Now().UTC()
	m := &domain.Movement{
		ID:        uuid.New(),
		AccountID: acct.ID,
		Kind:      domain.MovementKindCredit,
		Amount:    req.Amount,
		CreatedAt: now,
	}
	if err := s.movements.Create(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	if req.IdempotencyKey != "" {
		won, err := s.recordIdempotency(ctx, tx, req.IdempotencyKey, fp, m.ID.String(), now)
		if err != nil {
			return nil, fmt.Errorf("Deposit: %w", err)
		}
		if !won {
			// A concurrent retry committed first; discard our movement and
			// return what it produced.
			tx.Rollback()
			m, _, err := s.replayMovement(ctx, req.IdempotencyKey, fp)
			if err != nil {
				return nil, fmt.Errorf("Deposit: %w", err)
			}
			return m, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Deposit: commit: %w", err)
	}

	logging.FromContext(ctx).Info("deposit completed",
		"account_id", acct.ID,
		"movement_id", m.ID,
		"amount", req.Amount,
	)

	s.publish(ctx, domain.TopicDeposits, m.ID.String(), domain.DepositCompleted{
		AccountID:  acct.ID,
		MovementID: m.ID,
		Amount:     req.Amount,
		OccurredAt: now,
	})

	return m, nil
}

// replayMovement resolves a recorded idempotency key to the movement the
// first execution created. hit=false means the key has never been seen.
func (s *Service) replayMovement(ctx context.Context, key, fp string) (*domain.Movement, bool, error) {
	result, err := s.idem.Replay(ctx, key, fp)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}

	id, err := uuid.Parse(result)
	if err != nil {
		return nil, true, fmt.Errorf("replayMovement: parse stored result: %w", err)
	}
	m, err := s.movements.GetByID(ctx, id)
	if err != nil {
		return nil, true, fmt.Errorf("replayMovement: %w", err)
	}
	return m, true, nil
}

func (s *Service) recordIdempotency(ctx context.Context, tx *sql.Tx, key, fp, result string, now time.Time) (bool, error) {
	created, err := s.idem.CreateIfAbsent(ctx, tx, &repository.IdempotencyRecord{
		Key:         key,
		RequestHash: fp,
		Result:      result,
		CreatedAt:   now,
	})
	if err != nil {
		return false, fmt.Errorf("recordIdempotency: %w", err)
	}
	return created, nil
}
