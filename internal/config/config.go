package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Configuration holds every runtime setting for the billing engine
type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Billing    BillingConfig    `mapstructure:"billing"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type DeploymentConfig struct {
	Mode string `mapstructure:"mode"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// GatewayConfig configures the external payment processor adapter
type GatewayConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	ThreeStepURL   string        `mapstructure:"three_step_url"`
	TransactionURL string        `mapstructure:"transaction_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// BillingConfig bounds billing behaviour
type BillingConfig struct {
	// MaxChargeAmount is the ceiling for a single subscription amount
	MaxChargeAmount decimal.Decimal `mapstructure:"-"`
	// RawMaxChargeAmount is the string form read from configuration
	RawMaxChargeAmount string `mapstructure:"max_charge_amount"`
	// DueBatchSchedule is the cron expression driving ProcessDue
	DueBatchSchedule string `mapstructure:"due_batch_schedule"`
	// CleanupSchedule is the cron expression driving expired vault cleanup
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// NewConfig loads configuration from config.yaml and REBILL_* environment
// variables. A .env file is honoured when present.
func NewConfig() (*Configuration, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("REBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	maxAmount, err := decimal.NewFromString(cfg.Billing.RawMaxChargeAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid billing.max_charge_amount %q: %w", cfg.Billing.RawMaxChargeAmount, err)
	}
	cfg.Billing.MaxChargeAmount = maxAmount

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", "api")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "rebill")
	v.SetDefault("postgres.dbname", "rebill")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.auto_migrate", true)
	v.SetDefault("postgres.migrations_path", "migrations")
	v.SetDefault("gateway.three_step_url", "https://secure.nmi.com/api/v2/three-step")
	v.SetDefault("gateway.transaction_url", "https://secure.nmi.com/api/transact.php")
	v.SetDefault("gateway.timeout", 30*time.Second)
	v.SetDefault("billing.max_charge_amount", "10000")
	v.SetDefault("billing.due_batch_schedule", "@hourly")
	v.SetDefault("billing.cleanup_schedule", "@daily")
	v.SetDefault("ratelimit.requests_per_minute", 120)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("logging.level", "info")
}

// Validate checks required settings
func (c *Configuration) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	if !c.Billing.MaxChargeAmount.IsPositive() {
		return fmt.Errorf("billing.max_charge_amount must be positive")
	}
	return nil
}

// GetDefaultConfig returns a configuration suitable for tests and scripts
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: "test"},
		Server:     ServerConfig{Address: ":8080"},
		Gateway: GatewayConfig{
			APIKey:         "test-api-key",
			ThreeStepURL:   "https://secure.nmi.com/api/v2/three-step",
			TransactionURL: "https://secure.nmi.com/api/transact.php",
			Timeout:        30 * time.Second,
		},
		Billing: BillingConfig{
			MaxChargeAmount:  decimal.NewFromInt(10000),
			DueBatchSchedule: "@hourly",
			CleanupSchedule:  "@daily",
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 120, Burst: 20},
		Logging:   LoggingConfig{Level: "debug"},
	}
}

// DSN builds the postgres connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}
