package guard

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/txsubmit"
)

var (
	// ErrNotReady indicates submission was attempted without a passing
	// validation run.
	ErrNotReady = errors.New("guard: request not ready")
	// ErrSwapPending indicates the ClearDebt auxiliary swap has not
	// confirmed yet, so the burn call is not eligible.
	ErrSwapPending = errors.New("guard: swap not confirmed")
)

// SubmitOptions carry the per-request submission parameters.
type SubmitOptions struct {
	Delegate string // delegate wallet acting on behalf of the owner, if any
	GasPrice decimal.Decimal
	SwapCall txsubmit.CallDescriptor // ClearDebt auxiliary swap, when needed
}

// Machine drives a burn request through Idle → Validating → {Ready,
// Blocked} → Submitting → Idle. ClearDebt requests are two-phase: the swap
// transaction must confirm before the burn call becomes eligible. The edge
// is explicit here, never inferred from observation ordering.
type Machine struct {
	submitter txsubmit.Submitter
	logger    zerolog.Logger
	clock     func() time.Time

	state   State
	block   Block
	swapTxn txsubmit.Txn
	burnTxn txsubmit.Txn
}

// NewMachine constructs a guard state machine around a submitter.
func NewMachine(submitter txsubmit.Submitter, logger zerolog.Logger) *Machine {
	return &Machine{
		submitter: submitter,
		logger:    logger.With().Str("component", "burn_guard").Logger(),
		clock:     time.Now,
		state:     StateIdle,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// Block returns the blocking reason from the last validation, if any.
func (m *Machine) Block() Block { return m.block }

// SwapTxn exposes the auxiliary swap transaction, nil before phase one.
func (m *Machine) SwapTxn() txsubmit.Txn { return m.swapTxn }

// BurnTxn exposes the main burn transaction, nil until submitted.
func (m *Machine) BurnTxn() txsubmit.Txn { return m.burnTxn }

// Validate re-runs the guard predicates against fresh feed values. Any
// previous Ready/Blocked outcome is replaced wholesale.
func (m *Machine) Validate(req Request, feeds Feeds) Result {
	m.state = StateValidating
	result := Evaluate(req, feeds, m.clock())
	m.state = result.State
	m.block = result.Block

	if result.State == StateBlocked {
		m.logger.Debug().Str("reason", result.Block.Reason).Msg("burn request blocked")
	}
	return result
}

// BurnEligible reports whether the main burn call may be submitted now.
// Non-ClearDebt requests and ClearDebt requests that need no swap are
// always eligible once Ready; otherwise the swap must have confirmed.
func (m *Machine) BurnEligible(req Request, feeds Feeds) bool {
	if req.Mode != ModeClearDebt || !feeds.NeedToBuy {
		return true
	}
	return m.swapTxn != nil && m.swapTxn.Status() == txsubmit.StatusConfirmed
}

// Submit advances the submission phases. For a two-phase ClearDebt request
// the first call submits the swap and returns ErrSwapPending until it
// confirms; afterwards (and for every single-phase request) it submits the
// burn call and moves to Submitting.
func (m *Machine) Submit(ctx context.Context, req Request, feeds Feeds, opts SubmitOptions) error {
	if m.state != StateReady {
		return ErrNotReady
	}

	if req.Mode == ModeClearDebt && feeds.NeedToBuy && m.swapTxn == nil {
		txn, err := m.submitter.Submit(ctx, opts.SwapCall)
		if err != nil {
			return err
		}
		m.swapTxn = txn
		m.logger.Info().Str("status", string(txn.Status())).Msg("swap submitted")
	}

	if !m.BurnEligible(req, feeds) {
		return ErrSwapPending
	}

	call := BurnCall(req.Mode, req.Amount, opts.Delegate, opts.GasPrice)
	txn, err := m.submitter.Submit(ctx, call)
	if err != nil {
		return err
	}
	m.burnTxn = txn
	m.state = StateSubmitting
	m.logger.Info().Str("method", call.Method).Msg("burn submitted")
	return nil
}

// Complete resets the machine to Idle once the submitted call finished,
// clearing both transactions. Safe to call on failure; the caller decides
// whether to retry with a fresh Validate/Submit cycle.
func (m *Machine) Complete() {
	m.state = StateIdle
	m.block = Block{}
	m.swapTxn = nil
	m.burnTxn = nil
}
