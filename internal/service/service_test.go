package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/alerting"
	"stake-mirror-watch/internal/feeds"
	"stake-mirror-watch/internal/position"
	"stake-mirror-watch/internal/storage"
	"stake-mirror-watch/internal/timeline"
)

type fakeFeeds struct {
	issued      []timeline.StakingRecord
	burned      []timeline.StakingRecord
	perf        []timeline.PerfSample
	rates       feeds.Rates
	periods     map[string]feeds.FeePeriod
	account     feeds.Account
	networkDebt decimal.Decimal
	claims      []position.ClaimRecord

	issuedErr error
	ratesErr  error

	waiting    int64
	waitingErr error
	lock       feeds.IssuanceLock
	lockErr    error
}

func (f *fakeFeeds) FetchIssued(ctx context.Context) ([]timeline.StakingRecord, error) {
	return f.issued, f.issuedErr
}

func (f *fakeFeeds) FetchBurned(ctx context.Context) ([]timeline.StakingRecord, error) {
	return f.burned, nil
}

func (f *fakeFeeds) FetchPerformance(ctx context.Context) ([]timeline.PerfSample, error) {
	return f.perf, nil
}

func (f *fakeFeeds) FetchRates(ctx context.Context) (feeds.Rates, error) {
	return f.rates, f.ratesErr
}

func (f *fakeFeeds) FetchFeePeriod(ctx context.Context, index string) (feeds.FeePeriod, error) {
	return f.periods[index], nil
}

func (f *fakeFeeds) FetchAccount(ctx context.Context, address string) (feeds.Account, error) {
	return f.account, nil
}

func (f *fakeFeeds) FetchTotalNetworkDebt(ctx context.Context) (decimal.Decimal, error) {
	return f.networkDebt, nil
}

func (f *fakeFeeds) FetchClaims(ctx context.Context, address string) ([]position.ClaimRecord, error) {
	return f.claims, nil
}

func (f *fakeFeeds) WaitingPeriod(ctx context.Context, address string) (int64, error) {
	return f.waiting, f.waitingErr
}

func (f *fakeFeeds) IssuanceLock(ctx context.Context, address string) (feeds.IssuanceLock, error) {
	return f.lock, f.lockErr
}

type fakeStore struct {
	curve     []storage.CurvePointRow
	snapshots []storage.PositionSnapshot
	alerts    []storage.CRatioAlert
}

func (s *fakeStore) ReplaceCurve(ctx context.Context, account string, points []storage.CurvePointRow) error {
	s.curve = points
	return nil
}

func (s *fakeStore) ListCurveBetween(ctx context.Context, account string, from, to time.Time) ([]storage.CurvePointRow, error) {
	return s.curve, nil
}

func (s *fakeStore) UpsertSnapshot(ctx context.Context, snap storage.PositionSnapshot) error {
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *fakeStore) ListRecentSnapshots(ctx context.Context, account string, limit int) ([]storage.PositionSnapshot, error) {
	return s.snapshots, nil
}

func (s *fakeStore) InsertAlert(ctx context.Context, alert storage.CRatioAlert) (storage.CRatioAlert, error) {
	s.alerts = append(s.alerts, alert)
	return alert, nil
}

func (s *fakeStore) ListRecentAlerts(ctx context.Context, limit int) ([]storage.CRatioAlert, error) {
	return s.alerts, nil
}

type fakeNotifier struct {
	notes []alerting.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	n.notes = append(n.notes, note)
	return nil
}

func healthyFeeds() *fakeFeeds {
	return &fakeFeeds{
		issued: []timeline.StakingRecord{{Timestamp: 100, TotalDebt: decimal.NewFromInt(1000)}},
		perf:   []timeline.PerfSample{{TimestampMS: 200_000, Performance: decimal.NewFromInt(10)}},
		rates:  feeds.Rates{SUSD: decimal.NewFromInt(1), SNX: decimal.NewFromInt(2)},
		periods: map[string]feeds.FeePeriod{
			"0": {StartTime: 1000, FeePeriodDuration: 100},
			"1": {FeesToDistribute: decimal.NewFromInt(100), RewardsToDistribute: decimal.NewFromInt(50)},
		},
		account: feeds.Account{
			Collateral:    decimal.NewFromInt(500),
			DebtBalance:   decimal.NewFromInt(200),
			CurrentCRatio: decimal.NewFromFloat(0.2),
			TargetCRatio:  decimal.NewFromFloat(0.2),
		},
		networkDebt: decimal.NewFromInt(100_000),
		claims:      []position.ClaimRecord{{Timestamp: 1050}},
		waiting:     30,
		lock:        feeds.IssuanceLock{LastIssueEvent: 0, MinimumStakeTime: 0, CanBurn: true},
	}
}

func newTestService(f *fakeFeeds, store *fakeStore, notifier *fakeNotifier) *Service {
	svc := &Service{
		feeds: Feeds{
			Issuance:    f,
			Burn:        f,
			Performance: f,
			Rates:       f,
			FeePool:     f,
			Account:     f,
			NetworkDebt: f,
			Claims:      f,
			LockProbe:   f,
		},
		logger:       zerolog.Nop(),
		account:      "0xabc",
		channels:     []string{"telegram"},
		alertsOn:     true,
		cratioBuffer: decimal.NewFromInt(10),
		clock:        func() time.Time { return time.Unix(2000, 0) },
	}
	if store != nil {
		svc.curveStore = store
		svc.positionStore = store
		svc.alertStore = store
	}
	if notifier != nil {
		svc.notifier = notifier
	}
	return svc
}

func TestObserveProducesWholeView(t *testing.T) {
	svc := newTestService(healthyFeeds(), nil, nil)

	obs, err := svc.Observe(context.Background())
	if err != nil {
		t.Fatalf("Observe 应成功: %v", err)
	}

	if len(obs.Curve) != 2 {
		t.Fatalf("曲线点数应为 2, 实际 %d", len(obs.Curve))
	}
	// 1000 debt + 10% performance composed against it.
	if !obs.Curve[1].MirrorPool.Equal(decimal.NewFromInt(1100)) {
		t.Fatalf("mirror pool 应为 1100, 实际 %s", obs.Curve[1].MirrorPool)
	}
	if !obs.HasClaimed {
		t.Fatal("claim at 1050 falls inside [1000, 1100) and must count")
	}
	if obs.WaitingPeriod != 30 {
		t.Fatalf("waiting period = %d, want 30", obs.WaitingPeriod)
	}
	if obs.Position.StakedValue.IsZero() {
		t.Fatal("staked value should be positive for an at-target staker")
	}
}

func TestObserveWithheldWhenAnyFeedFails(t *testing.T) {
	f := healthyFeeds()
	f.ratesErr = errors.New("oracle unavailable")
	svc := newTestService(f, nil, nil)

	if _, err := svc.Observe(context.Background()); err == nil {
		t.Fatal("单个 feed 失败时必须扣留整个观测结果")
	}
}

func TestProbeFailureKeepsPreviousValues(t *testing.T) {
	f := healthyFeeds()
	svc := newTestService(f, nil, nil)
	svc.lastWaitingPeriod = 99

	f.waitingErr = errors.New("probe timeout")
	obs, err := svc.Observe(context.Background())
	if err != nil {
		t.Fatalf("探测失败不应扣留观测: %v", err)
	}
	if obs.WaitingPeriod != 99 {
		t.Fatalf("waiting period 应保留旧值 99, 实际 %d", obs.WaitingPeriod)
	}
}

func TestProcessBucketPersistsAndAlerts(t *testing.T) {
	f := healthyFeeds()
	// Current c-ratio 25% vs target 20%: past the 10% buffer, must alert.
	f.account.CurrentCRatio = decimal.NewFromFloat(0.25)

	store := &fakeStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(f, store, notifier)

	bucket := time.Unix(1700000000, 0)
	if err := svc.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("ProcessBucket 应成功: %v", err)
	}

	if len(store.curve) != 2 {
		t.Fatalf("应持久化 2 个曲线点, 实际 %d", len(store.curve))
	}
	if len(store.snapshots) != 1 {
		t.Fatalf("应持久化 1 个快照, 实际 %d", len(store.snapshots))
	}
	if !store.snapshots[0].Bucket.Equal(bucket) {
		t.Fatalf("快照 bucket 不正确: %v", store.snapshots[0].Bucket)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("应触发 1 条告警, 实际 %d", len(notifier.notes))
	}
	if len(store.alerts) != 1 {
		t.Fatalf("告警记录应入库, 实际 %d", len(store.alerts))
	}
}

func TestProcessBucketNoAlertInsideBuffer(t *testing.T) {
	f := healthyFeeds()
	// 21% vs target 20% stays inside the 10% buffer.
	f.account.CurrentCRatio = decimal.NewFromFloat(0.21)

	store := &fakeStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(f, store, notifier)

	if err := svc.ProcessBucket(context.Background(), time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("ProcessBucket 应成功: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("缓冲区内不应触发告警: %d", len(notifier.notes))
	}
}

func TestIssuanceLockProbeFeedsGuardDelay(t *testing.T) {
	f := healthyFeeds()
	// Window still open for another 500 seconds relative to the fixed clock.
	f.lock = feeds.IssuanceLock{LastIssueEvent: 1_700, MinimumStakeTime: 800}
	svc := newTestService(f, nil, nil)

	obs, err := svc.Observe(context.Background())
	if err != nil {
		t.Fatalf("Observe 应成功: %v", err)
	}
	if obs.IssuanceDelay != 500 {
		t.Fatalf("issuance delay = %d, want 500", obs.IssuanceDelay)
	}
}
