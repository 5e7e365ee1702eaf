package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Currency     CurrencyConfig     `mapstructure:"currency"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// CurrencyConfig holds exchange rate and country metadata provider configuration
type CurrencyConfig struct {
	RatesURL     string        `mapstructure:"rates_url"`
	CountriesURL string        `mapstructure:"countries_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateTTL      time.Duration `mapstructure:"rate_ttl"`
	CountryTTL   time.Duration `mapstructure:"country_ttl"`
	WarmBases    []string      `mapstructure:"warm_bases"`
}

// NotificationConfig holds decision notification configuration
type NotificationConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/expenseflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Currency defaults
	viper.SetDefault("currency.rates_url", "https://api.exchangerate-api.com/v4/latest/%s")
	viper.SetDefault("currency.countries_url", "https://restcountries.com/v3.1/all?fields=name,currencies")
	viper.SetDefault("currency.timeout", 10*time.Second)
	viper.SetDefault("currency.rate_ttl", 10*time.Minute)
	viper.SetDefault("currency.country_ttl", 12*time.Hour)
	viper.SetDefault("currency.warm_bases", []string{"USD"})

	// Notification defaults
	viper.SetDefault("notification.queue_size", 64)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("currency.api_key", "CURRENCY_API_KEY")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("server.port", "SERVER_PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Currency.RatesURL == "" {
		return fmt.Errorf("currency.rates_url is required")
	}
	if c.Currency.CountriesURL == "" {
		return fmt.Errorf("currency.countries_url is required")
	}
	if c.Currency.RateTTL <= 0 {
		return fmt.Errorf("currency.rate_ttl must be positive")
	}
	if c.Currency.CountryTTL <= 0 {
		return fmt.Errorf("currency.country_ttl must be positive")
	}

	return nil
}
