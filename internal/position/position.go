package position

import (
	"github.com/shopspring/decimal"
)

// WeeksInYear converts the weekly fee-period reward run-rate into an APR.
const WeeksInYear = 52

// Inputs gathers the independently-fetched feed values the calculator
// projects from. All monetary values are sUSD-denominated unless noted.
type Inputs struct {
	SUSDRate decimal.Decimal
	SNXRate  decimal.Decimal

	Collateral    decimal.Decimal // SNX units
	DebtBalance   decimal.Decimal
	CurrentCRatio decimal.Decimal
	TargetCRatio  decimal.Decimal

	TotalNetworkDebt decimal.Decimal

	// Previous completed fee period; the current period's totals are not
	// final and must not feed the reward estimate.
	FeesToDistribute    decimal.Decimal
	RewardsToDistribute decimal.Decimal // SNX units
}

// Position is a pure projection of the staking inputs. It has no identity
// or storage of its own and is recomputed in full on every feed change.
type Position struct {
	Collateral    decimal.Decimal
	DebtBalance   decimal.Decimal
	CurrentCRatio decimal.Decimal
	TargetCRatio  decimal.Decimal
	IssuableDebt  decimal.Decimal
	StakedValue   decimal.Decimal
	StakingAPR    float64
}

// ClaimRecord is one historical fee claim, timestamped in unix seconds.
type ClaimRecord struct {
	Timestamp int64
}

var one = decimal.NewFromInt(1)

// Compute derives the full staking position from the current feed values.
func Compute(in Inputs) Position {
	pos := Position{
		Collateral:    in.Collateral,
		DebtBalance:   in.DebtBalance,
		CurrentCRatio: in.CurrentCRatio,
		TargetCRatio:  in.TargetCRatio,
	}

	pos.StakedValue = stakedValue(in)
	pos.IssuableDebt = issuableDebt(in)
	pos.StakingAPR = stakingAPR(in, pos.StakedValue)

	return pos
}

// stakedValue is collateral scaled by how much of it actually backs debt:
// min(1, target/current) keeps an under-target staker from overstating
// their stake, and non-positive collateral or ratio short-circuits to zero
// so the ratio division can never blow up.
func stakedValue(in Inputs) decimal.Decimal {
	if in.Collateral.Sign() <= 0 || in.CurrentCRatio.Sign() <= 0 {
		return decimal.Zero
	}
	utilisation := in.TargetCRatio.Div(in.CurrentCRatio)
	if utilisation.GreaterThan(one) {
		utilisation = one
	}
	return in.Collateral.Mul(utilisation).Mul(in.SNXRate)
}

func issuableDebt(in Inputs) decimal.Decimal {
	issuable := in.Collateral.Mul(in.SNXRate).Mul(in.TargetCRatio).Sub(in.DebtBalance)
	if issuable.Sign() < 0 {
		return decimal.Zero
	}
	return issuable
}

// stakingAPR annualizes the previous fee period's distribution, weighted by
// the account's share of network debt. Defined only when both the staked
// value and the debt balance are strictly positive.
func stakingAPR(in Inputs, staked decimal.Decimal) float64 {
	if staked.Sign() <= 0 || in.DebtBalance.Sign() <= 0 || in.TotalNetworkDebt.Sign() <= 0 {
		return 0
	}

	weekly := weeklyRewards(in)
	apr := weekly.
		Mul(in.DebtBalance.Div(in.TotalNetworkDebt)).
		Mul(decimal.NewFromInt(WeeksInYear)).
		Div(staked)
	return apr.InexactFloat64()
}

func weeklyRewards(in Inputs) decimal.Decimal {
	return in.SUSDRate.Mul(in.FeesToDistribute).Add(in.SNXRate.Mul(in.RewardsToDistribute))
}

// HasClaimed reports whether any historical claim falls inside the current
// fee period window [periodStart, periodStart+duration). The upper bound is
// exclusive: a claim landing exactly on the next period's start belongs to
// that period.
func HasClaimed(claims []ClaimRecord, periodStart, periodDuration int64) bool {
	next := periodStart + periodDuration
	for _, claim := range claims {
		if claim.Timestamp >= periodStart && claim.Timestamp < next {
			return true
		}
	}
	return false
}

// MintAmount returns the sUSD issuable against unstaked collateral at the
// target collateralization ratio.
func MintAmount(targetCRatio, unstakedCollateral, snxRate decimal.Decimal) decimal.Decimal {
	return unstakedCollateral.Mul(snxRate).Mul(targetCRatio)
}
