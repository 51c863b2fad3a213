package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		op   Operation
		want string
	}{
		{OpWithdrawal, "0.50"},
		{OpTransfer, "1.00"},
		{OpDeposit, "0"},
		{Operation("unknown"), "0"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			want := decimal.RequireFromString(tt.want)
			assert.True(t, p.For(tt.op).Equal(want), "For(%s) = %s, want %s", tt.op, p.For(tt.op), want)
		})
	}
}
