package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is one logical transfer between two accounts, backed by exactly
// two movements (debit on origin, credit on destination) plus a fee on the
// origin account.
type Transfer struct {
	ID                   uuid.UUID
	OriginAccountID      uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               decimal.Decimal
	CreatedAt            time.Time
}

// Settlement is the secondary platform fee applied to a transfer's origin
// account by the settlement consumer. transfer_id is unique, which is what
// makes event redelivery a no-op.
type Settlement struct {
	TransferID uuid.UUID
	AccountID  uuid.UUID
	MovementID uuid.UUID
	FeeID      uuid.UUID
	Amount     decimal.Decimal
	CreatedAt  time.Time
}
