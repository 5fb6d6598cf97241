package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"stake-mirror-watch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Subgraph  SubgraphConfig  `mapstructure:"subgraph"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Swap      SwapConfig      `mapstructure:"swap"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Gas       GasConfig       `mapstructure:"gas"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// WalletConfig identifies the monitored staker.
type WalletConfig struct {
	Address  string `mapstructure:"address"`
	Delegate string `mapstructure:"delegate"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL                string        `mapstructure:"rpc_url"`
	SynthetixAddress      string        `mapstructure:"synthetix_address"`
	ExchangeRatesAddress  string        `mapstructure:"exchange_rates_address"`
	FeePoolAddress        string        `mapstructure:"fee_pool_address"`
	ExchangerAddress      string        `mapstructure:"exchanger_address"`
	IssuerAddress         string        `mapstructure:"issuer_address"`
	SystemSettingsAddress string        `mapstructure:"system_settings_address"`
	SUSDTokenAddress      string        `mapstructure:"susd_token_address"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
}

// SubgraphConfig captures the issuance subgraph endpoint.
type SubgraphConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PageSize       int           `mapstructure:"page_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MirrorConfig captures the external mirror-fund performance API.
type MirrorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PoolAddress    string        `mapstructure:"pool_address"`
	Period         string        `mapstructure:"period"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SwapConfig captures the swap aggregator used for clear-debt buys.
type SwapConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// RedisConfig enables the optional performance-feed cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// GasConfig sets the gas price attached to prepared calls.
type GasConfig struct {
	PriceGwei float64 `mapstructure:"price_gwei"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// CRatioBufferPct alerts when the current c-ratio drifts this many
	// percent above target (toward liquidation).
	CRatioBufferPct float64        `mapstructure:"cratio_buffer_pct"`
	Cooldown        time.Duration  `mapstructure:"cooldown"`
	Channels        []string       `mapstructure:"channels"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STAKEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stakewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("scheduler.interval", "10m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x736e7877))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("subgraph.base_url", "https://api.thegraph.com/subgraphs/name/synthetixio-team/issuance")
	v.SetDefault("subgraph.page_size", 1000)
	v.SetDefault("subgraph.request_timeout", "10s")
	v.SetDefault("subgraph.user_agent", "stakewatcher/1.0")

	v.SetDefault("mirror.base_url", "https://api-v2.dhedge.org/graphql")
	v.SetDefault("mirror.pool_address", "0x65bb99e80a863e0e27ee6d09c794ed8c0be47186")
	v.SetDefault("mirror.period", "1m")
	v.SetDefault("mirror.request_timeout", "10s")
	v.SetDefault("mirror.user_agent", "stakewatcher/1.0")

	v.SetDefault("swap.base_url", "https://api.0x.org")
	v.SetDefault("swap.request_timeout", "10s")
	v.SetDefault("swap.user_agent", "stakewatcher/1.0")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.cache_ttl", "5m")

	v.SetDefault("gas.price_gwei", 0.0)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cratio_buffer_pct", 10.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Subgraph.PageSize <= 0 {
		return fmt.Errorf("subgraph.page_size must be greater than zero")
	}
	if c.Alerting.CRatioBufferPct < 0 {
		return fmt.Errorf("alerting.cratio_buffer_pct cannot be negative")
	}
	if c.Gas.PriceGwei < 0 {
		return fmt.Errorf("gas.price_gwei cannot be negative")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr 必须配置")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
