// Package transaction orchestrates deposit, withdrawal, and transfer
// commands against the movement ledger. Every command is one database
// transaction; events are published only after that transaction commits.
package transaction

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankmore/ledger/internal/config"
	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/eventbus"
	"github.com/bankmore/ledger/internal/fees"
	"github.com/bankmore/ledger/internal/logging"
	"github.com/bankmore/ledger/internal/repository"
)

type accountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	Deactivate(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type movementRepo interface {
	Create(ctx context.Context, tx *sql.Tx, m *domain.Movement) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Movement, error)
	BalanceOf(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	BalanceOfTx(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (decimal.Decimal, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]domain.Movement, error)
}

type feeRepo interface {
	Create(ctx context.Context, tx *sql.Tx, fee *domain.Fee) error
}

type transferRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
}

type idempotencyRepo interface {
	Replay(ctx context.Context, key, requestHash string) (string, error)
	CreateIfAbsent(ctx context.Context, tx *sql.Tx, rec *repository.IdempotencyRecord) (bool, error)
}

type Service struct {
	accounts  accountRepo
	movements movementRepo
	fees      feeRepo
	transfers transferRepo
	idem      idempotencyRepo
	policy    *fees.Policy
	publisher eventbus.Publisher
	db        *sql.DB

	depositLimit    decimal.Decimal
	withdrawalLimit decimal.Decimal
}

func NewService(
	accounts accountRepo,
	movements movementRepo,
	feeRepo feeRepo,
	transfers transferRepo,
	idem idempotencyRepo,
	policy *fees.Policy,
	publisher eventbus.Publisher,
	db *sql.DB,
	cfg *config.Config,
) *Service {
	return &Service{
		accounts:        accounts,
		movements:       movements,
		fees:            feeRepo,
		transfers:       transfers,
		idem:            idem,
		policy:          policy,
		publisher:       publisher,
		db:              db,
		depositLimit:    decimal.NewFromFloat(cfg.DepositLimit),
		withdrawalLimit: decimal.NewFromFloat(cfg.WithdrawalLimit),
	}
}

// validateAmount rejects non-positive amounts and amounts above the
// per-operation cap. A zero cap means no cap.
func validateAmount(amount, limit decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidValue
	}
	if limit.IsPositive() && amount.GreaterThan(limit) {
		return domain.ErrInvalidValue
	}
	return nil
}

func verifyActive(acct *domain.Account, role string) error {
	if !acct.Active {
		return fmt.Errorf("%s: %w", role, domain.ErrAccountInactive)
	}
	return nil
}

// fingerprint hashes the operation name and the serialized request so that
// reuse of an idempotency key across distinct requests is detectable.
func fingerprint(op string, req any) string {
	body, _ := json.Marshal(req)
	sum := sha256.Sum256(append([]byte(op+":"), body...))
	return hex.EncodeToString(sum[:])
}

// lockAccountsInOrder takes FOR UPDATE locks in sorted UUID order so that two
// transfers touching the same pair of accounts in opposite directions cannot
// deadlock.
func lockAccountsInOrder(ctx context.Context, tx *sql.Tx, accounts accountRepo, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	result := make(map[uuid.UUID]*domain.Account, len(ids))
	for _, id := range sorted {
		acct, err := accounts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lockAccountsInOrder: %w", err)
		}
		result[id] = acct
	}
	return result, nil
}

// publish sends an event after the local commit. A publish failure does not
// fail the command; the ledger state is already durable and the event can be
// backfilled.
func (s *Service) publish(ctx context.Context, topic, key string, event domain.Event) {
	if err := s.publisher.Publish(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("event publish failed after commit",
			"topic", topic,
			"key", key,
			"event_type", event.Type(),
			"error", err,
		)
	}
}
