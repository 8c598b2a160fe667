package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Serp     SerpConfig     `mapstructure:"serp"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Credits  CreditsConfig  `mapstructure:"credits"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
// Parameters: none.
// Returns:
//   - string: connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

// QueueConfig holds the tuning knobs for the queue processor. All budgets and
// limits are externally configurable so they can be tuned without redeploying.
type QueueConfig struct {
	InvocationBudgetMs int    `mapstructure:"invocation_budget_ms"`
	JobBudgetMs        int    `mapstructure:"job_budget_ms"`
	StaleThresholdMs   int    `mapstructure:"stale_threshold_ms"`
	BatchLimit         int    `mapstructure:"batch_limit"`
	ReapLimit          int    `mapstructure:"reap_limit"`
	CronSecret         string `mapstructure:"cron_secret"`
}

// InvocationBudget returns the per-invocation wall-clock ceiling.
func (c *QueueConfig) InvocationBudget() time.Duration {
	return time.Duration(c.InvocationBudgetMs) * time.Millisecond
}

// JobBudget returns the per-job execution budget.
func (c *QueueConfig) JobBudget() time.Duration {
	return time.Duration(c.JobBudgetMs) * time.Millisecond
}

// StaleThreshold returns how long a job may sit in processing before the
// reaper force-fails it.
func (c *QueueConfig) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdMs) * time.Millisecond
}

type SerpConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	CostPerCheck float64 `mapstructure:"cost_per_check"`
}

type SummaryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type CreditsConfig struct {
	CreditsPerCheck int `mapstructure:"credits_per_check"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/rankgrid.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("queue.invocation_budget_ms", 50000)
	v.SetDefault("queue.job_budget_ms", 40000)
	v.SetDefault("queue.stale_threshold_ms", 600000)
	v.SetDefault("queue.batch_limit", 5)
	v.SetDefault("queue.reap_limit", 20)
	v.SetDefault("serp.base_url", "https://api.serpprovider.com/v1")
	v.SetDefault("serp.cost_per_check", 0.003)
	v.SetDefault("summary.enabled", true)
	v.SetDefault("summary.model", "gpt-4o-mini")
	v.SetDefault("summary.base_url", "https://api.openai.com/v1")
	v.SetDefault("credits.credits_per_check", 1)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("queue.cron_secret", "CRON_SECRET")
	v.BindEnv("serp.api_key", "SERP_API_KEY")
	v.BindEnv("summary.api_key", "OPENAI_API_KEY")
	v.BindEnv("summary.base_url", "OPENAI_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
