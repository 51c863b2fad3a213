package settlement_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/repository"
	"github.com/bankmore/ledger/internal/service/settlement"
	"github.com/bankmore/ledger/internal/testutil"
)

func setupService(t *testing.T, db *sql.DB, publisher *testutil.CapturingPublisher) *settlement.Service {
	t.Helper()
	return settlement.NewService(
		repository.NewAccountRepository(db),
		repository.NewMovementRepository(db),
		repository.NewFeeRepository(db),
		repository.NewSettlementRepository(db),
		publisher,
		db,
		decimal.RequireFromString("2.00"),
		slog.New(slog.DiscardHandler),
	)
}

func transferEvent(accountID uuid.UUID) domain.TransferCompleted {
	return domain.TransferCompleted{
		TransferID:      uuid.New(),
		OriginAccountID: accountID,
		Amount:          decimal.RequireFromString("100.00"),
		Fee:             decimal.RequireFromString("1.00"),
		OccurredAt:      time.Now().UTC(),
	}
}

func TestApply_ChargesSettlementFee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	publisher := &testutil.CapturingPublisher{}
	svc := setupService(t, db, publisher)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, "Alice", true)
	testutil.SeedBalance(t, db, acct.ID, "100.00")

	evt := transferEvent(acct.ID)
	require.NoError(t, svc.Apply(ctx, evt))

	balance := testutil.GetBalance(t, db, acct.ID)
	assert.True(t, balance.Equal(decimal.RequireFromString("98.00")), "balance = %s", balance)
	assert.Equal(t, 2, testutil.CountMovements(t, db, acct.ID))

	charged, err := repository.NewFeeRepository(db).GetByAccountID(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, charged, 1)
	assert.True(t, charged[0].Amount.Equal(decimal.RequireFromString("2.00")))

	settled, err := repository.NewSettlementRepository(db).GetByTransferID(ctx, evt.TransferID)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, settled.AccountID)
	assert.Equal(t, charged[0].ID, settled.FeeID)

	events := publisher.EventsOn(domain.TopicSettlements)
	require.Len(t, events, 1)
	assert.Equal(t, evt.TransferID.String(), events[0].Key)
	completed, ok := events[0].Event.(domain.SettlementCompleted)
	require.True(t, ok)
	assert.Equal(t, evt.TransferID, completed.TransferID)
	assert.True(t, completed.Amount.Equal(decimal.RequireFromString("2.00")))
}

func TestApply_RedeliveryChargesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	publisher := &testutil.CapturingPublisher{}
	svc := setupService(t, db, publisher)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, "Alice", true)
	testutil.SeedBalance(t, db, acct.ID, "100.00")

	evt := transferEvent(acct.ID)
	require.NoError(t, svc.Apply(ctx, evt))
	require.NoError(t, svc.Apply(ctx, evt))
	require.NoError(t, svc.Apply(ctx, evt))

	balance := testutil.GetBalance(t, db, acct.ID)
	assert.True(t, balance.Equal(decimal.RequireFromString("98.00")), "balance = %s", balance)
	assert.Equal(t, 2, testutil.CountMovements(t, db, acct.ID))
	assert.Equal(t, 1, testutil.CountFees(t, db, acct.ID))

	// Only the first delivery publishes a completion event.
	assert.Len(t, publisher.EventsOn(domain.TopicSettlements), 1)
}

func TestApply_UnknownAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	publisher := &testutil.CapturingPublisher{}
	svc := setupService(t, db, publisher)
	ctx := context.Background()

	evt := transferEvent(uuid.New())
	err := svc.Apply(ctx, evt)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	// The failed attempt must not leave a dedupe row behind, or the retry
	// would be skipped.
	_, err = repository.NewSettlementRepository(db).GetByTransferID(ctx, evt.TransferID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, publisher.Events())
}

func TestHandleMessage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	publisher := &testutil.CapturingPublisher{}
	svc := setupService(t, db, publisher)
	ctx := context.Background()

	acct := testutil.SeedAccount(t, db, "Alice", true)
	testutil.SeedBalance(t, db, acct.ID, "100.00")

	t.Run("applies transfer events", func(t *testing.T) {
		payload, err := json.Marshal(transferEvent(acct.ID))
		require.NoError(t, err)

		require.NoError(t, svc.HandleMessage(ctx, "transfer.completed", payload))
		assert.Equal(t, 2, testutil.CountMovements(t, db, acct.ID))
	})

	t.Run("ignores other event types", func(t *testing.T) {
		payload, err := json.Marshal(domain.DepositCompleted{AccountID: acct.ID})
		require.NoError(t, err)

		require.NoError(t, svc.HandleMessage(ctx, "deposit.completed", payload))
		assert.Equal(t, 2, testutil.CountMovements(t, db, acct.ID))
	})

	t.Run("drops undecodable payloads", func(t *testing.T) {
		require.NoError(t, svc.HandleMessage(ctx, "transfer.completed", []byte("{not json")))
		assert.Equal(t, 2, testutil.CountMovements(t, db, acct.ID))
	})
}
