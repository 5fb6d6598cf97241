package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	deleteCurveSQL = `DELETE FROM debt_curve_points WHERE account = $1;`

	insertCurvePointSQL = `INSERT INTO debt_curve_points (
        account,
        point_ts,
        debt_pool,
        mirror_pool
    ) VALUES ($1,$2,$3,$4);`

	listCurveBetweenSQL = `SELECT
        account,
        point_ts,
        debt_pool,
        mirror_pool
    FROM debt_curve_points
    WHERE account = $1
      AND point_ts >= $2
      AND point_ts < $3
    ORDER BY point_ts;`

	insertSnapshotSQL = `INSERT INTO position_snapshots (
        account,
        bucket_ts,
        collateral,
        debt_balance,
        current_cratio,
        target_cratio,
        issuable_debt,
        staked_value,
        staking_apr,
        has_claimed
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (account, bucket_ts) DO UPDATE
    SET
        collateral     = EXCLUDED.collateral,
        debt_balance   = EXCLUDED.debt_balance,
        current_cratio = EXCLUDED.current_cratio,
        target_cratio  = EXCLUDED.target_cratio,
        issuable_debt  = EXCLUDED.issuable_debt,
        staked_value   = EXCLUDED.staked_value,
        staking_apr    = EXCLUDED.staking_apr,
        has_claimed    = EXCLUDED.has_claimed;`

	listRecentSnapshotsSQL = `SELECT
        account,
        bucket_ts,
        collateral,
        debt_balance,
        current_cratio,
        target_cratio,
        issuable_debt,
        staked_value,
        staking_apr,
        has_claimed,
        created_at
    FROM position_snapshots
    WHERE account = $1
    ORDER BY bucket_ts DESC
    LIMIT $2;`

	insertCRatioAlertSQL = `INSERT INTO cratio_alerts (
        account,
        bucket_ts,
        current_cratio,
        target_cratio,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (account, bucket_ts) DO UPDATE
    SET current_cratio = EXCLUDED.current_cratio,
        target_cratio  = EXCLUDED.target_cratio,
        channels       = EXCLUDED.channels
    RETURNING id, account, bucket_ts, current_cratio, target_cratio, channels, created_at;`

	listRecentCRatioAlertsSQL = `SELECT
        id,
        account,
        bucket_ts,
        current_cratio,
        target_cratio,
        channels,
        created_at
    FROM cratio_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CurveStore persists reconciled debt curves. Replacement is atomic: the
// previous curve never coexists with a partial new one.
type CurveStore interface {
	ReplaceCurve(ctx context.Context, account string, points []CurvePointRow) error
	ListCurveBetween(ctx context.Context, account string, from, to time.Time) ([]CurvePointRow, error)
}

// PositionStore persists derived position snapshots.
type PositionStore interface {
	UpsertSnapshot(ctx context.Context, snap PositionSnapshot) error
	ListRecentSnapshots(ctx context.Context, account string, limit int) ([]PositionSnapshot, error)
}

// AlertStore persists collateralization alerts for auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert CRatioAlert) (CRatioAlert, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]CRatioAlert, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to curves, snapshots, and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// ReplaceCurve swaps the account's whole curve inside one transaction,
// matching the reconciler's full-replace contract.
func (s *Store) ReplaceCurve(ctx context.Context, account string, points []CurvePointRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin curve replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteCurveSQL, account); err != nil {
		return fmt.Errorf("delete curve: %w", err)
	}

	for _, point := range points {
		if _, err := tx.Exec(ctx, insertCurvePointSQL,
			account,
			point.Timestamp,
			point.DebtPool.String(),
			point.MirrorPool.String(),
		); err != nil {
			return fmt.Errorf("insert curve point: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit curve replace: %w", err)
	}
	return nil
}

// ListCurveBetween returns curve points within [from, to) ascending.
func (s *Store) ListCurveBetween(ctx context.Context, account string, from, to time.Time) ([]CurvePointRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCurveBetweenSQL, account, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list curve: %w", queryErr)
	}
	defer rows.Close()

	points := make([]CurvePointRow, 0)
	for rows.Next() {
		var point CurvePointRow
		var debtStr, mirrorStr string
		if err := rows.Scan(&point.Account, &point.Timestamp, &debtStr, &mirrorStr); err != nil {
			return nil, err
		}
		if point.DebtPool, err = decimal.NewFromString(debtStr); err != nil {
			return nil, fmt.Errorf("parse debt pool: %w", err)
		}
		if point.MirrorPool, err = decimal.NewFromString(mirrorStr); err != nil {
			return nil, fmt.Errorf("parse mirror pool: %w", err)
		}
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

// UpsertSnapshot persists or updates a position snapshot.
func (s *Store) UpsertSnapshot(ctx context.Context, snap PositionSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, insertSnapshotSQL,
		snap.Account,
		snap.Bucket,
		snap.Collateral.String(),
		snap.DebtBalance.String(),
		snap.CurrentCRatio.String(),
		snap.TargetCRatio.String(),
		snap.IssuableDebt.String(),
		snap.StakedValue.String(),
		snap.StakingAPR,
		snap.HasClaimed,
	); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// ListRecentSnapshots lists the most recent snapshots, newest first.
func (s *Store) ListRecentSnapshots(ctx context.Context, account string, limit int) ([]PositionSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, account, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]PositionSnapshot, 0, limit)
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (PositionSnapshot, error) {
	var snap PositionSnapshot
	var collateralStr, debtStr, currentStr, targetStr, issuableStr, stakedStr string
	if err := row.Scan(
		&snap.Account,
		&snap.Bucket,
		&collateralStr,
		&debtStr,
		&currentStr,
		&targetStr,
		&issuableStr,
		&stakedStr,
		&snap.StakingAPR,
		&snap.HasClaimed,
		&snap.CreatedAt,
	); err != nil {
		return PositionSnapshot{}, err
	}

	fields := []struct {
		src  string
		dest *decimal.Decimal
		name string
	}{
		{collateralStr, &snap.Collateral, "collateral"},
		{debtStr, &snap.DebtBalance, "debt balance"},
		{currentStr, &snap.CurrentCRatio, "current cratio"},
		{targetStr, &snap.TargetCRatio, "target cratio"},
		{issuableStr, &snap.IssuableDebt, "issuable debt"},
		{stakedStr, &snap.StakedValue, "staked value"},
	}
	for _, field := range fields {
		value, err := decimal.NewFromString(field.src)
		if err != nil {
			return PositionSnapshot{}, fmt.Errorf("parse %s: %w", field.name, err)
		}
		*field.dest = value
	}
	return snap, nil
}

// InsertAlert persists a collateralization alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert CRatioAlert) (CRatioAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return CRatioAlert{}, err
	}

	row := pool.QueryRow(ctx, insertCRatioAlertSQL,
		alert.Account,
		alert.Bucket,
		alert.CurrentCRatio.String(),
		alert.TargetCRatio.String(),
		alert.Channels,
	)

	var rec CRatioAlert
	var currentStr, targetStr string
	if scanErr := row.Scan(
		&rec.ID,
		&rec.Account,
		&rec.Bucket,
		&currentStr,
		&targetStr,
		&rec.Channels,
		&rec.CreatedAt,
	); scanErr != nil {
		return CRatioAlert{}, fmt.Errorf("insert alert: %w", scanErr)
	}

	var convErr error
	rec.CurrentCRatio, convErr = decimal.NewFromString(currentStr)
	if convErr != nil {
		return CRatioAlert{}, fmt.Errorf("parse current cratio: %w", convErr)
	}
	rec.TargetCRatio, convErr = decimal.NewFromString(targetStr)
	if convErr != nil {
		return CRatioAlert{}, fmt.Errorf("parse target cratio: %w", convErr)
	}

	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]CRatioAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentCRatioAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]CRatioAlert, 0, limit)
	for rows.Next() {
		var rec CRatioAlert
		var currentStr, targetStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.Account,
			&rec.Bucket,
			&currentStr,
			&targetStr,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		rec.CurrentCRatio, convErr = decimal.NewFromString(currentStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse current cratio: %w", convErr)
		}
		rec.TargetCRatio, convErr = decimal.NewFromString(targetStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse target cratio: %w", convErr)
		}

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

var (
	_ CurveStore     = (*Store)(nil)
	_ PositionStore  = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
