package txsubmit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Status tracks a submitted call through its lifecycle.
type Status string

const (
	StatusUnsent    Status = "unsent"
	StatusPrompting Status = "prompting"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// CallDescriptor is the prepared, validated call handed to the submission
// layer. Argument encoding, signing, and gas estimation happen beyond this
// boundary.
type CallDescriptor struct {
	Contract string
	Method   string
	Args     []any
	GasPrice decimal.Decimal
}

// Txn reports the lifecycle of one submitted call. A transaction owns its
// own lifecycle exclusively; nothing else mutates it.
type Txn interface {
	Status() Status
	Hash() string
}

// Submitter accepts prepared call descriptors for submission.
type Submitter interface {
	Submit(ctx context.Context, call CallDescriptor) (Txn, error)
}

// TrackedTxn is a Txn with externally-driven status updates. The submission
// layer advances it; consumers only observe.
type TrackedTxn struct {
	mu     sync.Mutex
	status Status
	hash   string
}

// NewTrackedTxn starts a transaction in the unsent state.
func NewTrackedTxn() *TrackedTxn {
	return &TrackedTxn{status: StatusUnsent}
}

func (t *TrackedTxn) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *TrackedTxn) Hash() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hash
}

// Advance moves the transaction to a new lifecycle state.
func (t *TrackedTxn) Advance(status Status, hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	if hash != "" {
		t.hash = hash
	}
}

// LogSubmitter records calls to the log without touching a chain. Used for
// dry runs; every submitted call confirms immediately.
type LogSubmitter struct {
	logger zerolog.Logger
}

// NewLogSubmitter builds a dry-run submitter.
func NewLogSubmitter(logger zerolog.Logger) *LogSubmitter {
	return &LogSubmitter{logger: logger.With().Str("component", "tx_submitter").Logger()}
}

// Submit logs the descriptor and reports it confirmed.
func (s *LogSubmitter) Submit(_ context.Context, call CallDescriptor) (Txn, error) {
	s.logger.Info().
		Str("contract", call.Contract).
		Str("method", call.Method).
		Int("args", len(call.Args)).
		Str("gas_price", call.GasPrice.String()).
		Msg("dry-run call accepted")

	txn := NewTrackedTxn()
	txn.Advance(StatusConfirmed, "")
	return txn, nil
}

var _ Submitter = (*LogSubmitter)(nil)
