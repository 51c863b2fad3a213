package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MovementKind string

const (
	MovementKindCredit MovementKind = "credit"
	MovementKindDebit  MovementKind = "debit"
)

// Movement is a single immutable ledger entry. Amount is always positive;
// direction is carried by Kind. An account's balance is the fold
// sum(credits) - sum(debits) over its movements and is never stored.
type Movement struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Kind      MovementKind
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Fee records a charge assessed against an account. Every fee is paired with
// a debit movement of the same amount created in the same transaction.
type Fee struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Amount    decimal.Decimal
	CreatedAt time.Time
}
