package guard

import (
	"github.com/shopspring/decimal"
)

// debtBuffer pads the repay amount by 0.1% so oracle drift between quoting
// and submission cannot leave residual dust debt.
var debtBuffer = decimal.NewFromFloat(1.001)

// ClearDebtPlan sizes the auxiliary swap for a clear-debt burn.
type ClearDebtPlan struct {
	NeedToBuy      bool
	DebtWithBuffer decimal.Decimal
	MissingSUSD    decimal.Decimal
}

// PlanClearDebt compares the buffered debt against the available sUSD
// balance and computes how much must be bought before the burn.
func PlanClearDebt(debtBalance, susdBalance decimal.Decimal) ClearDebtPlan {
	buffered := debtBalance.Mul(debtBuffer)
	missing := buffered.Sub(susdBalance)
	if missing.Sign() <= 0 {
		return ClearDebtPlan{DebtWithBuffer: buffered, MissingSUSD: decimal.Zero}
	}
	return ClearDebtPlan{NeedToBuy: true, DebtWithBuffer: buffered, MissingSUSD: missing}
}
