package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/alerting"
	"stake-mirror-watch/internal/config"
	"stake-mirror-watch/internal/feeds"
	"stake-mirror-watch/internal/scheduler"
	"stake-mirror-watch/internal/service"
	"stake-mirror-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	cache *redis.Client
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newCache() *redis.Client {
	if !a.Config.Redis.Enabled {
		return nil
	}
	if a.cache == nil {
		a.cache = redis.NewClient(&redis.Options{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
	}
	return a.cache
}

func (a *App) newFeeds() service.Feeds {
	subgraph := feeds.NewSubgraph(feeds.SubgraphOptions{
		BaseURL:   a.Config.Subgraph.BaseURL,
		Timeout:   a.Config.Subgraph.RequestTimeout,
		PageSize:  a.Config.Subgraph.PageSize,
		UserAgent: a.Config.Subgraph.UserAgent,
	}, a.Logger)

	performance := feeds.NewPerformance(feeds.PerformanceOptions{
		BaseURL:     a.Config.Mirror.BaseURL,
		PoolAddress: a.Config.Mirror.PoolAddress,
		Period:      a.Config.Mirror.Period,
		Timeout:     a.Config.Mirror.RequestTimeout,
		UserAgent:   a.Config.Mirror.UserAgent,
		CacheTTL:    a.Config.Redis.CacheTTL,
	}, a.newCache(), a.Logger)

	chain := a.newChain()

	return service.Feeds{
		Issuance:    subgraph,
		Burn:        subgraph,
		Performance: performance,
		Rates:       chain,
		FeePool:     chain,
		Account:     chain,
		NetworkDebt: chain,
		Claims:      subgraph,
		LockProbe:   chain,
	}
}

func (a *App) newChain() *feeds.Chain {
	return feeds.NewChain(feeds.ChainOptions{
		RPCURL:                a.Config.Ethereum.RPCURL,
		SynthetixAddress:      a.Config.Ethereum.SynthetixAddress,
		ExchangeRatesAddress:  a.Config.Ethereum.ExchangeRatesAddress,
		FeePoolAddress:        a.Config.Ethereum.FeePoolAddress,
		ExchangerAddress:      a.Config.Ethereum.ExchangerAddress,
		IssuerAddress:         a.Config.Ethereum.IssuerAddress,
		SystemSettingsAddress: a.Config.Ethereum.SystemSettingsAddress,
		SUSDTokenAddress:      a.Config.Ethereum.SUSDTokenAddress,
		Timeout:               a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newSwap() *feeds.Swap {
	return feeds.NewSwap(feeds.SwapOptions{
		BaseURL:          a.Config.Swap.BaseURL,
		SUSDTokenAddress: a.Config.Ethereum.SUSDTokenAddress,
		Timeout:          a.Config.Swap.RequestTimeout,
		UserAgent:        a.Config.Swap.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) gasPrice() decimal.Decimal {
	if a.Config.Gas.PriceGwei <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(a.Config.Gas.PriceGwei)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, a.newFeeds(), store, a.newNotifier(), a.Logger)

	a.Logger.Info().Str("account", a.Config.Wallet.Address).Msg("starting staking monitor")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("staking monitor stopped")
	return nil
}

// ExportOptions hold parameters for exporting the reconciled curve.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// CurveOptions configure the one-shot curve command.
type CurveOptions struct {
	CSVPath string
	PNGPath string
	Limit   int
}

// BurnCheckOptions configure the burn dry-run command.
type BurnCheckOptions struct {
	Amount decimal.Decimal
	Mode   string
	Submit bool
}

// HistoryOptions configure the transaction history command.
type HistoryOptions struct {
	Limit int
}
