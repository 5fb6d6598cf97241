package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/alerting"
	"stake-mirror-watch/internal/config"
	"stake-mirror-watch/internal/feeds"
	"stake-mirror-watch/internal/guard"
	"stake-mirror-watch/internal/position"
	"stake-mirror-watch/internal/scheduler"
	"stake-mirror-watch/internal/storage"
	"stake-mirror-watch/internal/timeline"
)

// Feeds bundles every adapter the service polls.
type Feeds struct {
	Issuance    feeds.IssuanceFeed
	Burn        feeds.BurnFeed
	Performance feeds.PerformanceFeed
	Rates       feeds.RatesFeed
	FeePool     feeds.FeePoolFeed
	Account     feeds.AccountFeed
	NetworkDebt feeds.NetworkDebtFeed
	Claims      feeds.ClaimHistoryFeed
	LockProbe   feeds.LockProbe
}

// Observation is one fully-ready derived view: the reconciled curve plus
// the computed position. It is only ever produced whole.
type Observation struct {
	Curve      []timeline.CurvePoint
	Position   position.Position
	HasClaimed bool
	Account    feeds.Account
	Rates      feeds.Rates

	// Lock probe values, stale-but-safe.
	WaitingPeriod int64
	IssuanceDelay int64
}

// Service orchestrates polling, reconciliation, persistence, and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	feeds     Feeds

	curveStore    storage.CurveStore
	positionStore storage.PositionStore
	alertStore    storage.AlertStore
	notifier      alerting.Notifier
	logger        zerolog.Logger

	account      string
	channels     []string
	alertsOn     bool
	cratioBuffer decimal.Decimal
	locker       storage.AdvisoryLocker
	lockKey      int64
	clock        func() time.Time

	// Last known lock probe values; probe failures keep them in place.
	lastWaitingPeriod int64
	lastIssuanceDelay int64
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, adapters Feeds, store *storage.Store, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	buffer := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.CRatioBufferPct > 0 {
		buffer = decimal.NewFromFloat(cfg.Alerting.CRatioBufferPct)
	}

	svc := &Service{
		scheduler:    sched,
		feeds:        adapters,
		notifier:     notifier,
		logger:       logger.With().Str("component", "service").Logger(),
		account:      cfg.Wallet.Address,
		channels:     cfg.Alerting.Channels,
		alertsOn:     cfg.Alerting.Enabled,
		cratioBuffer: buffer,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
		clock:        time.Now,
	}
	if store != nil {
		svc.curveStore = store
		svc.positionStore = store
		svc.alertStore = store
		svc.locker = store
	}
	return svc
}

// Run begins the aligned polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶的采样逻辑。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	obs, err := s.Observe(ctx)
	if err != nil {
		return err
	}

	if err := s.persist(ctx, bucket, obs); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist observation")
	}

	s.logger.Info().Time("bucket", bucket).
		Int("curve_points", len(obs.Curve)).
		Str("current_cratio", obs.Position.CurrentCRatio.String()).
		Str("staked_value", obs.Position.StakedValue.String()).
		Bool("has_claimed", obs.HasClaimed).
		Msg("observation recorded")

	s.maybeAlert(ctx, bucket, obs)
	return nil
}

// Observe fetches every feed and, only once all of them are ready,
// produces the derived curve and position in one atomic value. A single
// failed feed withholds the whole output.
func (s *Service) Observe(ctx context.Context) (Observation, error) {
	set := feeds.NewStatusSet(
		feeds.FeedIssuance, feeds.FeedBurn, feeds.FeedPerformance,
		feeds.FeedRates, feeds.FeedFeePool, feeds.FeedAccount,
		feeds.FeedNetworkDebt, feeds.FeedClaims,
	)

	issued, err := s.feeds.Issuance.FetchIssued(ctx)
	set.Mark(feeds.FeedIssuance, err)

	burned, err := s.feeds.Burn.FetchBurned(ctx)
	set.Mark(feeds.FeedBurn, err)

	perf, err := s.feeds.Performance.FetchPerformance(ctx)
	set.Mark(feeds.FeedPerformance, err)

	rates, err := s.feeds.Rates.FetchRates(ctx)
	set.Mark(feeds.FeedRates, err)

	currentPeriod, err := s.feeds.FeePool.FetchFeePeriod(ctx, "0")
	var previousPeriod feeds.FeePeriod
	if err == nil {
		previousPeriod, err = s.feeds.FeePool.FetchFeePeriod(ctx, "1")
	}
	set.Mark(feeds.FeedFeePool, err)

	account, err := s.feeds.Account.FetchAccount(ctx, s.account)
	set.Mark(feeds.FeedAccount, err)

	totalDebt, err := s.feeds.NetworkDebt.FetchTotalNetworkDebt(ctx)
	set.Mark(feeds.FeedNetworkDebt, err)

	claims, err := s.feeds.Claims.FetchClaims(ctx, s.account)
	set.Mark(feeds.FeedClaims, err)

	if !set.Ready() {
		return Observation{}, fmt.Errorf("feeds not ready: %w", set.FirstError())
	}

	s.probeLocks(ctx)

	pos := position.Compute(position.Inputs{
		SUSDRate:            rates.SUSD,
		SNXRate:             rates.SNX,
		Collateral:          account.Collateral,
		DebtBalance:         account.DebtBalance,
		CurrentCRatio:       account.CurrentCRatio,
		TargetCRatio:        account.TargetCRatio,
		TotalNetworkDebt:    totalDebt,
		FeesToDistribute:    previousPeriod.FeesToDistribute,
		RewardsToDistribute: previousPeriod.RewardsToDistribute,
	})

	return Observation{
		Curve:         timeline.Reconcile(issued, burned, perf),
		Position:      pos,
		HasClaimed:    position.HasClaimed(claims, currentPeriod.StartTime, currentPeriod.FeePeriodDuration),
		Account:       account,
		Rates:         rates,
		WaitingPeriod: s.lastWaitingPeriod,
		IssuanceDelay: s.lastIssuanceDelay,
	}, nil
}

// probeLocks refreshes the burn time locks. Failures are logged and leave
// the previous values in place; they never withhold the observation.
func (s *Service) probeLocks(ctx context.Context) {
	if s.feeds.LockProbe == nil {
		return
	}

	if waiting, err := s.feeds.LockProbe.WaitingPeriod(ctx, s.account); err != nil {
		s.logger.Warn().Err(err).Msg("waiting period probe failed; keeping previous value")
	} else {
		s.lastWaitingPeriod = waiting
	}

	if lock, err := s.feeds.LockProbe.IssuanceLock(ctx, s.account); err != nil {
		s.logger.Warn().Err(err).Msg("issuance lock probe failed; keeping previous value")
	} else {
		s.lastIssuanceDelay = guard.IssuanceDelay(lock.LastIssueEvent, lock.MinimumStakeTime, lock.CanBurn, s.clock())
	}
}

func (s *Service) persist(ctx context.Context, bucket time.Time, obs Observation) error {
	if s.curveStore == nil || s.positionStore == nil {
		return nil
	}

	points := make([]storage.CurvePointRow, 0, len(obs.Curve))
	for _, point := range obs.Curve {
		points = append(points, storage.CurvePointRow{
			Account:    s.account,
			Timestamp:  time.Unix(point.Timestamp, 0).UTC(),
			DebtPool:   point.DebtPool,
			MirrorPool: point.MirrorPool,
		})
	}
	if err := s.curveStore.ReplaceCurve(ctx, s.account, points); err != nil {
		return fmt.Errorf("replace curve: %w", err)
	}

	snap := storage.PositionSnapshot{
		Account:       s.account,
		Bucket:        bucket,
		Collateral:    obs.Position.Collateral,
		DebtBalance:   obs.Position.DebtBalance,
		CurrentCRatio: obs.Position.CurrentCRatio,
		TargetCRatio:  obs.Position.TargetCRatio,
		IssuableDebt:  obs.Position.IssuableDebt,
		StakedValue:   obs.Position.StakedValue,
		StakingAPR:    obs.Position.StakingAPR,
		HasClaimed:    obs.HasClaimed,
		CreatedAt:     s.clock().UTC(),
	}
	if err := s.positionStore.UpsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// maybeAlert fires when the current c-ratio has drifted past the target
// by more than the configured buffer. Higher c-ratio means more debt per
// unit of collateral, i.e. closer to liquidation.
func (s *Service) maybeAlert(ctx context.Context, bucket time.Time, obs Observation) {
	if !s.alertsOn || s.notifier == nil || s.cratioBuffer.IsZero() {
		return
	}
	if obs.Position.TargetCRatio.Sign() <= 0 || obs.Position.CurrentCRatio.Sign() <= 0 {
		return
	}

	limit := obs.Position.TargetCRatio.Mul(
		decimal.NewFromInt(1).Add(s.cratioBuffer.Div(decimal.NewFromInt(100))),
	)
	if obs.Position.CurrentCRatio.LessThanOrEqual(limit) {
		return
	}

	if s.alertStore != nil {
		record := storage.CRatioAlert{
			Account:       s.account,
			Bucket:        bucket,
			CurrentCRatio: obs.Position.CurrentCRatio,
			TargetCRatio:  obs.Position.TargetCRatio,
			Channels:      s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist alert record")
		}
	}

	note := alerting.Notification{
		Account:       s.account,
		Bucket:        bucket,
		CurrentCRatio: obs.Position.CurrentCRatio,
		TargetCRatio:  obs.Position.TargetCRatio,
		DebtBalance:   obs.Position.DebtBalance,
		StakedValue:   obs.Position.StakedValue,
		Channels:      s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
