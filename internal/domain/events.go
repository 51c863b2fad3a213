package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kafka topics. Events for the same entity share a partition key, so ordering
// holds per movement/transfer even though topics are multi-partition.
const (
	TopicDeposits    = "deposits"
	TopicWithdrawals = "withdrawals"
	TopicTransfers   = "transfers"
	TopicSettlements = "settlements"
)

// Event is implemented by every domain event; Type is the stable tag carried
// on the wire envelope.
type Event interface {
	Type() string
}

type DepositCompleted struct {
	AccountID  uuid.UUID       `json:"account_id"`
	MovementID uuid.UUID       `json:"movement_id"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (DepositCompleted) Type() string { return "deposit.completed" }

type WithdrawalCompleted struct {
	AccountID  uuid.UUID       `json:"account_id"`
	MovementID uuid.UUID       `json:"movement_id"`
	Amount     decimal.Decimal `json:"amount"`
	Fee        decimal.Decimal `json:"fee"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (WithdrawalCompleted) Type() string { return "withdrawal.completed" }

type TransferCompleted struct {
	TransferID           uuid.UUID       `json:"transfer_id"`
	OriginAccountID      uuid.UUID       `json:"origin_account_id"`
	DestinationAccountID uuid.UUID       `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Fee                  decimal.Decimal `json:"fee"`
	OccurredAt           time.Time       `json:"occurred_at"`
}

func (TransferCompleted) Type() string { return "transfer.completed" }

type SettlementCompleted struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	AccountID  uuid.UUID       `json:"account_id"`
	MovementID uuid.UUID       `json:"movement_id"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (SettlementCompleted) Type() string { return "settlement.completed" }
