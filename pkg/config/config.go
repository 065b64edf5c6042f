package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the deposit gateway configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Payload    PayloadConfig    `mapstructure:"payload"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Chains     []ChainConfig    `mapstructure:"chains"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	SSLMode     string        `mapstructure:"ssl_mode"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// NATSConfig contains message transport settings for the deposit stream
type NATSConfig struct {
	URL        string `mapstructure:"url"`
	Subject    string `mapstructure:"subject"`
	QueueGroup string `mapstructure:"queue_group"`
	Workers    int    `mapstructure:"workers"`
}

// PayloadConfig controls verification of the signed notification envelope
type PayloadConfig struct {
	// Algorithm is "HS256" (shared secret) or "RS256" (watcher public key)
	Algorithm     string `mapstructure:"algorithm"`
	Secret        string `mapstructure:"secret"`
	PublicKeyFile string `mapstructure:"public_key_file"`
}

// EthereumConfig contains node access and gas estimation settings
type EthereumConfig struct {
	RPCURL             string            `mapstructure:"rpc_url"`
	ChainID            int64             `mapstructure:"chain_id"`
	Strict             bool              `mapstructure:"strict"`
	GasPriceMultiplier float64           `mapstructure:"gas_price_multiplier"`
	GasLimits          map[string]uint64 `mapstructure:"gas_limits"`
	SimulationTimeout  time.Duration     `mapstructure:"simulation_timeout"`
}

// ChainConfig describes one blockchain known to the gateway
type ChainConfig struct {
	Key         string `mapstructure:"key"`
	AddressType string `mapstructure:"address_type"`
}

// LedgerConfig contains the accounting service endpoint for deposit credits
type LedgerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
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

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.lock_timeout", "15s")

	// NATS defaults
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subject", "deposits.confirmed")
	viper.SetDefault("nats.queue_group", "deposit-gateway")
	viper.SetDefault("nats.workers", 8)

	// Payload defaults
	viper.SetDefault("payload.algorithm", "RS256")

	// Ethereum / gas defaults
	viper.SetDefault("ethereum.strict", true)
	viper.SetDefault("ethereum.gas_price_multiplier", 1.0)
	viper.SetDefault("ethereum.simulation_timeout", "10s")

	// Ledger defaults
	viper.SetDefault("ledger.timeout", "30s")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if config.NATS.Workers <= 0 {
		return fmt.Errorf("nats.workers must be positive")
	}
	if len(config.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	switch config.Payload.Algorithm {
	case "HS256":
		if config.Payload.Secret == "" {
			return fmt.Errorf("payload.secret is required for HS256")
		}
	case "RS256":
		if config.Payload.PublicKeyFile == "" {
			return fmt.Errorf("payload.public_key_file is required for RS256")
		}
	default:
		return fmt.Errorf("unsupported payload.algorithm: %s", config.Payload.Algorithm)
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
