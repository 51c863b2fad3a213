// Package settlement applies the secondary platform fee to the origin
// account of each completed transfer. It runs as an independent consumer
// process; redelivered events are deduplicated by transfer id.
package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/eventbus"
)

type accountRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
}

type movementRepo interface {
	Create(ctx context.Context, tx *sql.Tx, m *domain.Movement) error
}

type feeRepo interface {
	Create(ctx context.Context, tx *sql.Tx, fee *domain.Fee) error
}

type settlementRepo interface {
	CreateIfAbsent(ctx context.Context, tx *sql.Tx, s *domain.Settlement) (bool, error)
}

type Service struct {
	accounts    accountRepo
	movements   movementRepo
	fees        feeRepo
	settlements settlementRepo
	publisher   eventbus.Publisher
	db          *sql.DB
	feeAmount   decimal.Decimal
	logger      *slog.Logger
}

func NewService(
	accounts accountRepo,
	movements movementRepo,
	fees feeRepo,
	settlements settlementRepo,
	publisher eventbus.Publisher,
	db *sql.DB,
	feeAmount decimal.Decimal,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:    accounts,
		movements:   movements,
		fees:        fees,
		settlements: settlements,
		publisher:   publisher,
		db:          db,
		feeAmount:   feeAmount,
		logger:      logger,
	}
}

// HandleMessage is the eventbus.Handler entry point for the transfers topic.
func (s *Service) HandleMessage(ctx context.Context, eventType string, payload []byte) error {
	if eventType != (domain.TransferCompleted{}).Type() {
		s.logger.Debug("ignoring event", "event_type", eventType)
		return nil
	}

	var evt domain.TransferCompleted
	if err := json.Unmarshal(payload, &evt); err != nil {
		// Undecodable payloads would fail forever; drop them.
		s.logger.Error("undecodable transfer event, dropping", "error", err)
		return nil
	}
	return s.Apply(ctx, evt)
}

// Apply charges the settlement fee for one completed transfer: one debit
// movement and one fee record on the origin account, recorded together with
// the dedupe row in a single transaction. Applying the same event twice is a
// no-op.
func (s *Service) Apply(ctx context.Context, evt domain.TransferCompleted) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Apply: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	movementID := uuid.New()
	feeID := uuid.New()

	// Lock the account row like any other balance mutation on it.
	if _, err := s.accounts.GetForUpdate(ctx, tx, evt.OriginAccountID); err != nil {
		return fmt.Errorf("Apply: %w", err)
	}

	created, err := s.settlements.CreateIfAbsent(ctx, tx, &domain.Settlement{
		TransferID: evt.TransferID,
		AccountID:  evt.OriginAccountID,
		MovementID: movementID,
		FeeID:      feeID,
		Amount:     s.feeAmount,
		CreatedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("Apply: %w", err)
	}
	if !created {
		s.logger.Info("transfer already settled, skipping redelivery",
			"transfer_id", evt.TransferID,
		)
		return nil
	}

	if err := s.movements.Create(ctx, tx, &domain.Movement{
		ID:        movementID,
		AccountID: evt.OriginAccountID,
		Kind:      domain.MovementKindDebit,
		Amount:    s.feeAmount,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("Apply: movement: %w", err)
	}

	if err := s.fees.Create(ctx, tx, &domain.Fee{
		ID:        feeID,
		AccountID: evt.OriginAccountID,
		Amount:    s.feeAmount,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("Apply: fee: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Apply: commit: %w", err)
	}

	s.logger.Info("settlement fee applied",
		"transfer_id", evt.TransferID,
		"account_id", evt.OriginAccountID,
		"movement_id", movementID,
		"amount", s.feeAmount,
	)

	if err := s.publisher.Publish(ctx, domain.TopicSettlements, evt.TransferID.String(), domain.SettlementCompleted{
		TransferID: evt.TransferID,
		AccountID:  evt.OriginAccountID,
		MovementID: movementID,
		Amount:     s.feeAmount,
		OccurredAt: now,
	}); err != nil {
		// The charge is already durable; the completion event can lag.
		s.logger.Error("settlement event publish failed", "transfer_id", evt.TransferID, "error", err)
	}

	return nil
}
