package feeds

import (
	"context"

	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/position"
	"stake-mirror-watch/internal/timeline"
	"stake-mirror-watch/internal/txsubmit"
)

// IssuanceFeed retrieves daily issuance records from the staking subgraph.
type IssuanceFeed interface {
	FetchIssued(ctx context.Context) ([]timeline.StakingRecord, error)
}

// BurnFeed retrieves daily burn records from the staking subgraph.
type BurnFeed interface {
	FetchBurned(ctx context.Context) ([]timeline.StakingRecord, error)
}

// PerformanceFeed retrieves the mirror fund's performance history.
type PerformanceFeed interface {
	FetchPerformance(ctx context.Context) ([]timeline.PerfSample, error)
}

// RatesFeed retrieves sUSD and SNX exchange rates from the oracle.
type RatesFeed interface {
	FetchRates(ctx context.Context) (Rates, error)
}

// FeePoolFeed retrieves a fee period snapshot by index: "0" is the current
// period, "1" the previous (completed) one.
type FeePoolFeed interface {
	FetchFeePeriod(ctx context.Context, index string) (FeePeriod, error)
}

// AccountFeed retrieves the account's staking state from the chain.
type AccountFeed interface {
	FetchAccount(ctx context.Context, address string) (Account, error)
}

// NetworkDebtFeed retrieves the network-wide issued synth total.
type NetworkDebtFeed interface {
	FetchTotalNetworkDebt(ctx context.Context) (decimal.Decimal, error)
}

// ClaimHistoryFeed retrieves the account's historical fee claims.
type ClaimHistoryFeed interface {
	FetchClaims(ctx context.Context, address string) ([]position.ClaimRecord, error)
}

// SwapQuoteFeed quotes the ETH required to buy missing sUSD for a
// clear-debt burn, along with the swap call to submit.
type SwapQuoteFeed interface {
	FetchSwapQuote(ctx context.Context, missingSUSD decimal.Decimal) (SwapQuote, error)
}

// LockProbe reads the two burn time locks. Probe failures are expected to
// be logged by the caller with previous values retained.
type LockProbe interface {
	WaitingPeriod(ctx context.Context, address string) (int64, error)
	IssuanceLock(ctx context.Context, address string) (IssuanceLock, error)
}

// Rates is one oracle observation of the quote currencies.
type Rates struct {
	SUSD decimal.Decimal
	SNX  decimal.Decimal
}

// FeePeriod is a fee-pool distribution window snapshot.
type FeePeriod struct {
	StartTime           int64
	FeePeriodDuration   int64
	FeesToDistribute    decimal.Decimal
	RewardsToDistribute decimal.Decimal
}

// Account is the chain's view of one staker.
type Account struct {
	Collateral    decimal.Decimal
	DebtBalance   decimal.Decimal
	CurrentCRatio decimal.Decimal
	TargetCRatio  decimal.Decimal
	SUSDBalance   decimal.Decimal
	ETHBalance    decimal.Decimal
}

// IssuanceLock carries the issuer views the issuance delay derives from.
type IssuanceLock struct {
	LastIssueEvent   int64
	MinimumStakeTime int64
	CanBurn          bool
}

// SwapQuote is a priced clear-debt swap.
type SwapQuote struct {
	RequiredETH decimal.Decimal
	Call        txsubmit.CallDescriptor
}
