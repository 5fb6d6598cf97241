package timeline

import (
	"sort"

	"github.com/shopspring/decimal"
)

// EventKind labels the origin feed of a timeline event.
type EventKind int

const (
	// Issuance marks a debt-minting staking transaction.
	Issuance EventKind = iota
	// Burn marks a debt-repaying staking transaction.
	Burn
	// PerformanceSample marks a mirror-fund performance observation.
	PerformanceSample
)

// Event is a single normalized observation on the merged timeline.
// Timestamp is in seconds. For staking events Value is the account's total
// debt after the mutation; for performance samples it is a percentage.
type Event struct {
	Kind      EventKind
	Timestamp int64
	Value     decimal.Decimal
}

// StakingRecord is an issuance or burn record as delivered by the
// issuance subgraph. The record id doubles as a unix timestamp.
type StakingRecord struct {
	Timestamp int64
	TotalDebt decimal.Decimal
}

// PerfSample is one mirror-fund performance observation. The source reports
// timestamps in milliseconds; Performance is a percentage (the feed adapter
// converts the raw fractional encoding before it reaches the reconciler).
type PerfSample struct {
	TimestampMS int64
	Performance decimal.Decimal
}

// CurvePoint is one point of the reconciled debt-vs-mirror curve.
type CurvePoint struct {
	Timestamp  int64
	DebtPool   decimal.Decimal
	MirrorPool decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// normalize flattens the three feeds into one event list in fixed
// concatenation order: issuance, then burn, then performance. The order
// matters because the sort below is stable and equal timestamps keep it.
func normalize(issued, burned []StakingRecord, perf []PerfSample) []Event {
	events := make([]Event, 0, len(issued)+len(burned)+len(perf))

	for _, rec := range issued {
		events = append(events, Event{Kind: Issuance, Timestamp: rec.Timestamp, Value: rec.TotalDebt})
	}
	for _, rec := range burned {
		events = append(events, Event{Kind: Burn, Timestamp: rec.Timestamp, Value: rec.TotalDebt})
	}
	for _, sample := range perf {
		if sample.Performance.IsZero() {
			// Known artifact of the source feed: exact-zero performance
			// entries carry no information and would flatten the curve.
			continue
		}
		events = append(events, Event{
			Kind:      PerformanceSample,
			Timestamp: sample.TimestampMS / 1000,
			Value:     sample.Performance,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	return events
}

// trim cuts everything with no bearing on the displayed window: it keeps a
// single staking event immediately preceding the first performance sample to
// seed the baseline debt-pool price. Without any performance sample there is
// nothing to anchor against and the result is empty. If the first sample
// precedes every staking event the baseline starts at zero debt.
func trim(events []Event) []Event {
	first := -1
	for i, ev := range events {
		if ev.Kind == PerformanceSample {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}
	start := first - 1
	if start < 0 {
		start = 0
	}
	return events[start:]
}

// Reconcile merges issuance, burn, and performance feeds into one
// chronologically consistent debt curve. The mirror pool composes the
// index's percentage performance against the most recent known absolute
// debt-pool value. The returned slice is a complete replacement for any
// previous curve; callers must not patch it incrementally.
func Reconcile(issued, burned []StakingRecord, perf []PerfSample) []CurvePoint {
	events := trim(normalize(issued, burned, perf))
	if len(events) == 0 {
		return nil
	}

	curve := make([]CurvePoint, 0, len(events))
	lastKnownDebtPoolPrice := decimal.Zero
	lastKnownPerformance := decimal.Zero

	for _, ev := range events {
		switch ev.Kind {
		case Issuance, Burn:
			lastKnownDebtPoolPrice = ev.Value
			curve = append(curve, CurvePoint{
				Timestamp:  ev.Timestamp,
				DebtPool:   lastKnownDebtPoolPrice,
				MirrorPool: lastKnownDebtPoolPrice.Add(lastKnownPerformance),
			})
		case PerformanceSample:
			percentageOf := lastKnownDebtPoolPrice.Mul(ev.Value).Div(oneHundred)
			lastKnownPerformance = percentageOf
			curve = append(curve, CurvePoint{
				Timestamp:  ev.Timestamp,
				DebtPool:   lastKnownDebtPoolPrice,
				MirrorPool: lastKnownDebtPoolPrice.Add(percentageOf),
			})
		}
	}

	return curve
}
