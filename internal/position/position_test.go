package position

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal    { return decimal.NewFromInt(v) }
func df(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func baseInputs() Inputs {
	return Inputs{
		SUSDRate:            d(1),
		SNXRate:             d(2),
		Collateral:          d(1000),
		DebtBalance:         d(100),
		CurrentCRatio:       df(0.2),
		TargetCRatio:        df(0.2),
		TotalNetworkDebt:    d(100_000),
		FeesToDistribute:    d(500),
		RewardsToDistribute: d(250),
	}
}

func TestStakedValueAtTarget(t *testing.T) {
	pos := Compute(baseInputs())
	// Fully at target: utilisation 1, staked = 1000 * 2.
	if pos.StakedValue.Cmp(d(2000)) != 0 {
		t.Fatalf("expected staked value 2000, got %s", pos.StakedValue)
	}
}

func TestStakedValueBelowTargetCapsAtOne(t *testing.T) {
	in := baseInputs()
	in.CurrentCRatio = df(0.1) // over-collateralized: current below target
	pos := Compute(in)
	// target/current = 2, capped at 1: stake is never overstated.
	if pos.StakedValue.Cmp(d(2000)) != 0 {
		t.Fatalf("utilisation must cap at 1, got staked %s", pos.StakedValue)
	}
}

func TestStakedValueUnderTargetScalesDown(t *testing.T) {
	in := baseInputs()
	in.CurrentCRatio = df(0.4) // under target: only half the collateral backs debt
	pos := Compute(in)
	if pos.StakedValue.Cmp(d(1000)) != 0 {
		t.Fatalf("expected staked value 1000, got %s", pos.StakedValue)
	}
}

func TestStakedValueZeroGuards(t *testing.T) {
	for _, mutate := range []func(*Inputs){
		func(in *Inputs) { in.Collateral = decimal.Zero },
		func(in *Inputs) { in.CurrentCRatio = decimal.Zero },
		func(in *Inputs) { in.Collateral = d(-5) },
		func(in *Inputs) { in.CurrentCRatio = df(-0.1) },
	} {
		in := baseInputs()
		mutate(&in)
		pos := Compute(in)
		if !pos.StakedValue.IsZero() {
			t.Fatalf("non-positive collateral or ratio must zero staked value, got %s", pos.StakedValue)
		}
	}
}

func TestStakingAPRZeroOnNonPositiveDenominators(t *testing.T) {
	cases := []func(*Inputs){
		func(in *Inputs) { in.Collateral = decimal.Zero },   // staked value 0
		func(in *Inputs) { in.DebtBalance = decimal.Zero },
		func(in *Inputs) { in.DebtBalance = d(-1) },
		func(in *Inputs) { in.TotalNetworkDebt = decimal.Zero },
	}
	for i, mutate := range cases {
		in := baseInputs()
		mutate(&in)
		pos := Compute(in)
		if pos.StakingAPR != 0 {
			t.Fatalf("case %d: APR must be 0 when a denominator is non-positive, got %f", i, pos.StakingAPR)
		}
	}
}

func TestStakingAPRValue(t *testing.T) {
	pos := Compute(baseInputs())
	// weekly = 1*500 + 2*250 = 1000; share = 100/100000 = 0.001
	// APR = 1000 * 0.001 * 52 / 2000 = 0.026
	want := 0.026
	if diff := pos.StakingAPR - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected APR %.4f, got %.12f", want, pos.StakingAPR)
	}
}

func TestIssuableDebt(t *testing.T) {
	pos := Compute(baseInputs())
	// 1000 * 2 * 0.2 - 100 = 300
	if pos.IssuableDebt.Cmp(d(300)) != 0 {
		t.Fatalf("expected issuable 300, got %s", pos.IssuableDebt)
	}

	in := baseInputs()
	in.DebtBalance = d(500)
	pos = Compute(in)
	if !pos.IssuableDebt.IsZero() {
		t.Fatalf("issuable debt clamps at zero, got %s", pos.IssuableDebt)
	}
}

func TestHasClaimedHalfOpenWindow(t *testing.T) {
	const start, duration = 1000, 100

	cases := []struct {
		ts   int64
		want bool
	}{
		{999, false},
		{1000, true},  // inclusive lower bound
		{1050, true},
		{1099, true},
		{1100, false}, // exclusive upper bound
		{1101, false},
	}
	for _, tc := range cases {
		got := HasClaimed([]ClaimRecord{{Timestamp: tc.ts}}, start, duration)
		if got != tc.want {
			t.Fatalf("claim at %d: expected %v, got %v", tc.ts, tc.want, got)
		}
	}

	if HasClaimed(nil, start, duration) {
		t.Fatal("no claims should never report claimed")
	}
}

func TestMintAmount(t *testing.T) {
	got := MintAmount(df(0.2), d(500), d(2))
	if got.Cmp(d(200)) != 0 {
		t.Fatalf("expected mintable 200, got %s", got)
	}
}
