package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/fees"
	"github.com/bankmore/ledger/internal/logging"
)

type TransferRequest struct {
	OriginAccountID      uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               decimal.Decimal
	IdempotencyKey       string
}

// Transfer moves funds between two accounts. The origin debit, destination
// credit, origin fee, and the transfer record all commit as a single unit or
// not at all.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*domain.Transfer, error) {
	fp := fingerprint("transfer", req)

	if req.IdempotencyKey != "" {
		t, hit, err := s.replayTransfer(ctx, req.IdempotencyKey, fp)
		if err != nil {
			return nil, fmt.Errorf("Transfer: %w", err)
		}
		if hit {
			return t, nil
		}
	}

	if req.OriginAccountID == req.DestinationAccountID {
		return nil, fmt.Errorf("Transfer: %w", domain.ErrSameAccount)
	}
	if err := validateAmount(req.Amount, decimal.Zero); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Transfer: begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := lockAccountsInOrder(ctx, tx, s.accounts, req.OriginAccountID, req.DestinationAccountID)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}
	origin, destination := locked[req.OriginAccountID], locked[req.DestinationAccountID]

	if err := verifyActive(origin, "origin"); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}
	if err := verifyActive(destination, "destination"); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	fee := s.policy.For(fees.OpTransfer)

	balance, err := s.movements.BalanceOfTx(ctx, tx, origin.ID)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}
	if balance.LessThan(req.Amount.Add(fee)) {
		return nil, fmt.Errorf("Transfer: %w", domain.ErrInsufficientBalance)
	}

	now := time.Now().UTC()
	transfer := &domain.Transfer{
		ID:                   uuid.New(),
		OriginAccountID:      origin.ID,
		DestinationAccountID: destination.ID,
		Amount:               req.Amount,
		CreatedAt:            now,
	}
	if err := s.transfers.Create(ctx, tx, transfer); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	debit := &domain.Movement{
		ID:        uuid.New(),
		AccountID: origin.ID,
		Kind:      domain.MovementKindDebit,
		Amount:    req.Amount,
		CreatedAt: now,
	}
	if err := s.movements.Create(ctx, tx, debit); err != nil {
		return nil, fmt.Errorf("Transfer: debit: %w", err)
	}

	credit := &domain.Movement{
		ID:        uuid.New(),
		AccountID: destination.ID,
		Kind:      domain.MovementKindCredit,
		Amount:    req.Amount,
		CreatedAt: now,
	}
	if err := s.movements.Create(ctx, tx, credit); err != nil {
		return nil, fmt.Errorf("Transfer: credit: %w", err)
	}

	if err := s.chargeFee(ctx, tx, origin.ID, fee, now); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	if req.IdempotencyKey != "" {
		won, err := s.recordIdempotency(ctx, tx, req.IdempotencyKey, fp, transfer.ID.String(), now)
		if err != nil {
			return nil, fmt.Errorf("Transfer: %w", err)
		}
		if !won {
			tx.Rollback()
			t, _, err := s.replayTransfer(ctx, req.IdempotencyKey, fp)
			if err != nil {
				return nil, fmt.Errorf("Transfer: %w", err)
			}
			return t, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Transfer: commit: %w", err)
	}

	logging.FromContext(ctx).Info("transfer completed",
		"transfer_id", transfer.ID,
		"origin_account", origin.ID,
		"destination_account", destination.ID,
		"amount", req.Amount,
		"fee", fee,
	)

	s.publish(ctx, domain.TopicTransfers, transfer.ID.String(), domain.TransferCompleted{
		TransferID:           transfer.ID,
		OriginAccountID:      origin.ID,
		DestinationAccountID: destination.ID,
		Amount:               req.Amount,
		Fee:                  fee,
		OccurredAt:           now,
	})

	return transfer, nil
}

func (s *Service) replayTransfer(ctx context.Context, key, fp string) (*domain.Transfer, bool, error) {
	result, err := s.idem.Replay(ctx, key, fp)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}

	id, err := uuid.Parse(result)
	if err != nil {
		return nil, true, fmt.Errorf("replayTransfer: parse stored result: %w", err)
	}
	t, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		return nil, true, fmt.Errorf("replayTransfer: %w", err)
	}
	return t, true, nil
}
