package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "COOK_STAKING"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Token     TokenConfig     `mapstructure:"token"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port" validate:"required,numeric"`
}

type EthereumConfig struct {
	RPC            string        `mapstructure:"rpc" validate:"required,url"`
	ChainID        int64         `mapstructure:"chain_id" validate:"gt=0"`
	TokenAddress   string        `mapstructure:"token_address" validate:"required,eth_addr"`
	StakingAddress string        `mapstructure:"staking_address" validate:"required,eth_addr"`
	ClientID       string        `mapstructure:"client_id"`
	TxTimeout      time.Duration `mapstructure:"tx_timeout" validate:"gt=0"`
}

type WalletConfig struct {
	KeystoreDir string `mapstructure:"keystore_dir" validate:"required"`
	Account     string `mapstructure:"account" validate:"omitempty,eth_addr"`
	Passphrase  string `mapstructure:"passphrase"`
	LightKDF    bool   `mapstructure:"light_kdf"`
}

type TokenConfig struct {
	Symbol string `mapstructure:"symbol"`
}

type TelemetryConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	ServiceName   string              `mapstructure:"service_name"`
	OTELCollector OTELCollectorConfig `mapstructure:"otel_collector"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

type OTELCollectorConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type MetricsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("ethereum.chain_id", 8453)
	v.SetDefault("ethereum.tx_timeout", 2*time.Minute)
	v.SetDefault("ethereum.client_id", "")
	v.SetDefault("wallet.keystore_dir", "~/.cook-staking/keystore")
	v.SetDefault("wallet.account", "")
	v.SetDefault("wallet.passphrase", "")
	v.SetDefault("wallet.light_kdf", false)
	v.SetDefault("token.symbol", "COOK")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "cook-staking")
	v.SetDefault("telemetry.otel_collector.host", "localhost")
	v.SetDefault("telemetry.otel_collector.port", 4317)
	v.SetDefault("telemetry.metrics.interval", 15*time.Second)
}

// LoadConfig reads the file at path, applies COOK_STAKING_* environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	dir, err := expandHome(config.Wallet.KeystoreDir)
	if err != nil {
		return nil, err
	}
	config.Wallet.KeystoreDir = dir

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}
