package history

import (
	"sort"

	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/position"
	"stake-mirror-watch/internal/timeline"
)

// EntryType labels the originating action of a history entry.
type EntryType string

const (
	TypeMint  EntryType = "mint"
	TypeBurn  EntryType = "burn"
	TypeClaim EntryType = "claim"
)

// Entry is one row of the merged account history. Value carries the total
// debt after mint/burn entries and is zero for claims.
type Entry struct {
	Type      EntryType
	Timestamp int64
	Value     decimal.Decimal
}

// Merge flattens issuance, burn, and claim records into one list sorted
// newest first. Entries sharing a timestamp keep their concatenation order:
// mints, then burns, then claims.
func Merge(issued, burned []timeline.StakingRecord, claims []position.ClaimRecord, limit int) []Entry {
	entries := make([]Entry, 0, len(issued)+len(burned)+len(claims))

	for _, rec := range issued {
		entries = append(entries, Entry{Type: TypeMint, Timestamp: rec.Timestamp, Value: rec.TotalDebt})
	}
	for _, rec := range burned {
		entries = append(entries, Entry{Type: TypeBurn, Timestamp: rec.Timestamp, Value: rec.TotalDebt})
	}
	for _, claim := range claims {
		entries = append(entries, Entry{Type: TypeClaim, Timestamp: claim.Timestamp})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
