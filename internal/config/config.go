// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
// Loaded values are immutable after startup; a reload is an explicit
// re-construction of a new Config at the composition root.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// Timezone names the IANA location whose calendar days gate the
	// daily games (check-in, mining accrual). Empty means UTC.
	Timezone string `mapstructure:"timezone"`

	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Lottery   LotteryConfig   `mapstructure:"lottery"`
	Checkin   CheckinConfig   `mapstructure:"checkin"`
	Mining    MiningConfig    `mapstructure:"mining"`
	RedPacket RedPacketConfig `mapstructure:"redpacket"`
	Recharge  RechargeConfig  `mapstructure:"recharge"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// LotteryConfig holds the number-draw game configuration.
type LotteryConfig struct {
	DrawIntervalMinutes int   `mapstructure:"draw_interval_minutes"`
	MinBet              int64 `mapstructure:"min_bet"`
	MaxBet              int64 `mapstructure:"max_bet"`
	// CashbackRateBps is the cashback rate in basis points (80 = 0.8%).
	CashbackRateBps     int64 `mapstructure:"cashback_rate_bps"`
	CashbackHours       int   `mapstructure:"cashback_hours"`
	SettleRetries       int   `mapstructure:"settle_retries"`
	SettleGuardSecs     int   `mapstructure:"settle_guard_seconds"`
}

// CheckinConfig holds daily check-in configuration.
type CheckinConfig struct {
	BasePoints int64 `mapstructure:"base_points"`
}

// MiningConfig holds the mining accrual tick configuration.
type MiningConfig struct {
	AccrualBatchSize int `mapstructure:"accrual_batch_size"`
	AccrualRetries   int `mapstructure:"accrual_retries"`
}

// RedPacketConfig holds red-packet configuration.
type RedPacketConfig struct {
	ExpireMinutes int `mapstructure:"expire_minutes"`
}

// RechargeConfig holds the recharge watcher configuration.
type RechargeConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WalletAddr   string        `mapstructure:"wallet_addr"`
	APIURL       string        `mapstructure:"api_url"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, LOTTERY_MAX_BET.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "UTC")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "lotterybot")
	v.SetDefault("database.name", "lotterybot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("lottery.draw_interval_minutes", 5)
	v.SetDefault("lottery.min_bet", 10)
	v.SetDefault("lottery.max_bet", 100000)
	v.SetDefault("lottery.cashback_rate_bps", 80)
	v.SetDefault("lottery.cashback_hours", 24)
	v.SetDefault("lottery.settle_retries", 3)
	v.SetDefault("lottery.settle_guard_seconds", 60)

	v.SetDefault("checkin.base_points", 100)

	v.SetDefault("mining.accrual_batch_size", 100)
	v.SetDefault("mining.accrual_retries", 3)

	v.SetDefault("redpacket.expire_minutes", 5)

	v.SetDefault("recharge.poll_interval", "30s")
	v.SetDefault("recharge.api_url", "")
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
