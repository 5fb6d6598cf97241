package feeds

// Status is the uniform per-feed readiness state.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusErrored Status = "errored"
)

// Canonical feed names used by the readiness set.
const (
	FeedIssuance    = "issuance"
	FeedBurn        = "burn"
	FeedPerformance = "performance"
	FeedRates       = "rates"
	FeedFeePool     = "feepool"
	FeedAccount     = "account"
	FeedNetworkDebt = "network_debt"
	FeedClaims      = "claims"
)

// State is one feed's readiness plus its failure, if any.
type State struct {
	Status Status
	Err    error
}

// StatusSet aggregates per-feed readiness. Derived values are recomputed
// only when every dependency feed is simultaneously ready; consumers check
// the conjunction through Ready before reading any data.
type StatusSet map[string]State

// NewStatusSet starts every named feed in the loading state.
func NewStatusSet(names ...string) StatusSet {
	set := make(StatusSet, len(names))
	for _, name := range names {
		set[name] = State{Status: StatusLoading}
	}
	return set
}

// Mark records a feed's fetch outcome.
func (s StatusSet) Mark(name string, err error) {
	if err != nil {
		s[name] = State{Status: StatusErrored, Err: err}
		return
	}
	s[name] = State{Status: StatusReady}
}

// Ready reports whether every named feed has loaded successfully. With no
// names it checks the whole set.
func (s StatusSet) Ready(names ...string) bool {
	if len(names) == 0 {
		for name := range s {
			names = append(names, name)
		}
	}
	for _, name := range names {
		if s[name].Status != StatusReady {
			return false
		}
	}
	return true
}

// FirstError returns one of the recorded feed errors, or nil.
func (s StatusSet) FirstError() error {
	for _, state := range s {
		if state.Err != nil {
			return state.Err
		}
	}
	return nil
}
