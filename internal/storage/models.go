package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurvePointRow is one persisted point of the reconciled debt curve.
type CurvePointRow struct {
	Account    string
	Timestamp  time.Time
	DebtPool   decimal.Decimal
	MirrorPool decimal.Decimal
}

// PositionSnapshot is the derived staking position at one poll bucket.
type PositionSnapshot struct {
	Account       string
	Bucket        time.Time
	Collateral    decimal.Decimal
	DebtBalance   decimal.Decimal
	CurrentCRatio decimal.Decimal
	TargetCRatio  decimal.Decimal
	IssuableDebt  decimal.Decimal
	StakedValue   decimal.Decimal
	StakingAPR    float64
	HasClaimed    bool
	CreatedAt     time.Time
}

// CRatioAlert captures an emitted collateralization alert for auditing.
type CRatioAlert struct {
	ID            int64
	Account       string
	Bucket        time.Time
	CurrentCRatio decimal.Decimal
	TargetCRatio  decimal.Decimal
	Channels      []string
	CreatedAt     time.Time
}
