package guard

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPlanClearDebtNeedsToBuy(t *testing.T) {
	plan := PlanClearDebt(d(1000), d(400))
	if !plan.NeedToBuy {
		t.Fatal("balance below buffered debt should require a buy")
	}
	if plan.DebtWithBuffer.Cmp(d(1001)) != 0 {
		t.Fatalf("expected buffered debt 1001, got %s", plan.DebtWithBuffer)
	}
	if plan.MissingSUSD.Cmp(d(601)) != 0 {
		t.Fatalf("expected missing 601, got %s", plan.MissingSUSD)
	}
}

func TestPlanClearDebtFullyFunded(t *testing.T) {
	plan := PlanClearDebt(d(1000), d(1500))
	if plan.NeedToBuy {
		t.Fatal("sufficient balance should not require a buy")
	}
	if !plan.MissingSUSD.IsZero() {
		t.Fatalf("missing amount should be zero, got %s", plan.MissingSUSD)
	}
}

func TestPlanClearDebtZeroDebt(t *testing.T) {
	plan := PlanClearDebt(decimal.Zero, decimal.Zero)
	if plan.NeedToBuy || !plan.MissingSUSD.IsZero() {
		t.Fatalf("zero debt should produce an empty plan: %+v", plan)
	}
}
