// Package fees holds the fee schedule. It is a pure table lookup so the
// schedule can change without touching transaction orchestration.
package fees

import "github.com/shopspring/decimal"

type Operation string

const (
	OpDeposit    Operation = "deposit"
	OpWithdrawal Operation = "withdrawal"
	OpTransfer   Operation = "transfer"
)

type Policy struct {
	table map[Operation]decimal.Decimal
}

// DefaultPolicy charges 0.50 per withdrawal and 1.00 per transfer, debited
// from the origin account. Deposits are free.
func DefaultPolicy() *Policy {
	return &Policy{
		table: map[Operation]decimal.Decimal{
			OpWithdrawal: decimal.RequireFromString("0.50"),
			OpTransfer:   decimal.RequireFromString("1.00"),
		},
	}
}

func (p *Policy) For(op Operation) decimal.Decimal {
	if fee, ok := p.table[op]; ok {
		return fee
	}
	return decimal.Zero
}
