package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"seeds/internal/rules"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Rules      rules.RuleSet    `mapstructure:"rules"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Auction    AuctionConfig    `mapstructure:"auction"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Schedules use robfig/cron syntax, including @every shorthand.
	DueScan     string `mapstructure:"due_scan"`
	LedgerAudit string `mapstructure:"ledger_audit"`
}

type ResolverConfig struct {
	// DueScanLimit caps how many overdue decisions one sweep resolves.
	DueScanLimit int `mapstructure:"due_scan_limit"`
}

type SettlementConfig struct {
	Workers int `mapstructure:"workers"`
}

type AuctionConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEEDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.due_scan", "@every 1m")
	v.SetDefault("cron.ledger_audit", "@every 1h")
	v.SetDefault("resolver.due_scan_limit", 50)
	v.SetDefault("settlement.workers", 4)
	v.SetDefault("auction.max_retries", 3)

	defaults := rules.Default()
	v.SetDefault("rules.works_threshold", defaults.WorksThreshold)
	v.SetDefault("rules.fails_threshold", defaults.FailsThreshold)
	v.SetDefault("rules.confidence_floor", defaults.ConfidenceFloor)
	v.SetDefault("rules.confidence_ceiling", defaults.ConfidenceCeiling)
	v.SetDefault("rules.weight_30d", defaults.Weight30d)
	v.SetDefault("rules.weight_90d", defaults.Weight90d)
	v.SetDefault("rules.weight_180d", defaults.Weight180d)
	v.SetDefault("rules.weight_365d", defaults.Weight365d)
	v.SetDefault("rules.min_indicators", defaults.MinIndicators)
	v.SetDefault("rules.gain_multiplier", defaults.GainMultiplier)
	v.SetDefault("rules.exact_bonus", defaults.ExactBonus)
	v.SetDefault("rules.partial_bonus", defaults.PartialBonus)
	v.SetDefault("rules.loss_multiplier", defaults.LossMultiplier)
	v.SetDefault("rules.min_earn_seeds", defaults.MinEarnSeeds)
	v.SetDefault("rules.min_first_bid", defaults.MinFirstBid)
	v.SetDefault("rules.level_divisor", defaults.LevelDivisor)
	v.SetDefault("rules.signup_grant_seeds", defaults.SignupGrantSeeds)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Rules.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
