package guard

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BurnMode selects how the repay amount is determined.
type BurnMode string

const (
	// ModeCustom burns a user-chosen amount.
	ModeCustom BurnMode = "custom"
	// ModeToTarget burns exactly enough to restore the target c-ratio.
	ModeToTarget BurnMode = "target"
	// ModeClearDebt wipes the debt entirely, buying missing sUSD first.
	ModeClearDebt BurnMode = "clear"
)

// State is the guard's validation state.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateReady      State = "ready"
	StateBlocked    State = "blocked"
	StateSubmitting State = "submitting"
)

// Request is a proposed burn, mutated by user input and feed updates,
// never persisted.
type Request struct {
	Amount decimal.Decimal
	Mode   BurnMode
}

// Feeds are the currently-known values validation runs against.
type Feeds struct {
	DebtBalance decimal.Decimal
	SUSDBalance decimal.Decimal
	ETHBalance  decimal.Decimal

	// ClearDebt swap inputs.
	NeedToBuy bool
	SwapQuote decimal.Decimal // ETH required to buy the missing sUSD

	// Time locks, in seconds remaining. Stale-but-safe: probe failures
	// leave the previous value in place.
	WaitingPeriod int64
	IssuanceDelay int64
}

// Block is a user-facing validation failure. UnlockAt is set only for
// time-lock blocks.
type Block struct {
	Reason   string
	UnlockAt time.Time
}

// Result is the outcome of one validation pass.
type Result struct {
	State State
	Block Block
}

// Evaluate runs the guard predicates in fixed priority order against the
// given feed values; the first failing predicate wins. A nil clock is not
// accepted: time-lock reasons carry the future unlock date.
func Evaluate(req Request, feeds Feeds, now time.Time) Result {
	maxBurn := maxBurnAmount(feeds.DebtBalance, feeds.SUSDBalance)

	switch {
	case feeds.DebtBalance.IsZero():
		return blocked("no debt to repay", time.Time{})

	case req.Mode != ModeClearDebt &&
		((req.Amount.Sign() > 0 && req.Amount.GreaterThan(feeds.SUSDBalance)) || maxBurn.IsZero()):
		return blocked("insufficient balance", time.Time{})

	case req.Mode == ModeClearDebt && feeds.SwapQuote.GreaterThan(feeds.ETHBalance):
		return blocked("insufficient balance for swap", time.Time{})

	case feeds.WaitingPeriod > 0:
		unlock := now.Add(time.Duration(feeds.WaitingPeriod) * time.Second)
		return blocked(fmt.Sprintf("waiting period active until %s", unlock.UTC().Format(time.RFC3339)), unlock)

	case feeds.IssuanceDelay > 0 && req.Mode != ModeToTarget:
		unlock := now.Add(time.Duration(feeds.IssuanceDelay) * time.Second)
		return blocked(fmt.Sprintf("issuance delay active until %s", unlock.UTC().Format(time.RFC3339)), unlock)
	}

	return Result{State: StateReady}
}

func blocked(reason string, unlock time.Time) Result {
	return Result{State: StateBlocked, Block: Block{Reason: reason, UnlockAt: unlock}}
}

// maxBurnAmount caps the repayable amount at the lower of the outstanding
// debt and the available sUSD balance.
func maxBurnAmount(debt, susd decimal.Decimal) decimal.Decimal {
	if debt.GreaterThan(susd) {
		return susd
	}
	return debt
}

// IssuanceDelay derives the remaining minimum-stake-time lock from the
// issuer's view functions. When the computed window has elapsed but the
// contract still refuses burning, a one-second sentinel delay keeps the
// guard blocked until the next probe.
func IssuanceDelay(lastIssueEvent, minimumStakeTime int64, canBurn bool, now time.Time) int64 {
	if lastIssueEvent == 0 || minimumStakeTime == 0 {
		return 0
	}
	unlock := time.Unix(lastIssueEvent, 0).Add(time.Duration(minimumStakeTime) * time.Second)
	delay := int64(unlock.Sub(now) / time.Second)
	if delay > 0 {
		return delay
	}
	if canBurn {
		return 0
	}
	return 1
}
