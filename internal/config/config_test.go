package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: "9090"
ethereum:
  rpc: https://mainnet.base.org
  chain_id: 8453
  token_address: "0xa26c15133463962514F9E6a31f44e6182841E59B"
  staking_address: "0x455145789A6EFC690883b9E2467051169A839766"
  client_id: b2f0efa779d1c21ac55d26906bc544ae
  tx_timeout: 90s
wallet:
  keystore_dir: /tmp/keys
token:
  symbol: COOK
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, "https://mainnet.base.org", cfg.Ethereum.RPC)
		assert.Equal(t, int64(8453), cfg.Ethereum.ChainID)
		assert.Equal(t, "0xa26c15133463962514F9E6a31f44e6182841E59B", cfg.Ethereum.TokenAddress)
		assert.Equal(t, "0x455145789A6EFC690883b9E2467051169A839766", cfg.Ethereum.StakingAddress)
		assert.Equal(t, "b2f0efa779d1c21ac55d26906bc544ae", cfg.Ethereum.ClientID)
		assert.Equal(t, 90*time.Second, cfg.Ethereum.TxTimeout)
		assert.Equal(t, "/tmp/keys", cfg.Wallet.KeystoreDir)
		assert.Equal(t, "COOK", cfg.Token.Symbol)
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeConfig(t, `
ethereum:
  rpc: http://localhost:8545
  token_address: "0x1234567890123456789012345678901234567890"
  staking_address: "0x0987654321098765432109876543210987654321"
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, int64(8453), cfg.Ethereum.ChainID)
		assert.Equal(t, 2*time.Minute, cfg.Ethereum.TxTimeout)
		assert.Equal(t, "COOK", cfg.Token.Symbol)
		assert.False(t, cfg.Telemetry.Enabled)

		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".cook-staking", "keystore"), cfg.Wallet.KeystoreDir)
	})

	t.Run("environment override", func(t *testing.T) {
		path := writeConfig(t, `
ethereum:
  rpc: http://localhost:8545
  token_address: "0x1234567890123456789012345678901234567890"
  staking_address: "0x0987654321098765432109876543210987654321"
wallet:
  keystore_dir: /tmp/keys
`)
		t.Setenv("COOK_STAKING_WALLET_PASSPHRASE", "hunter2")
		t.Setenv("COOK_STAKING_ETHEREUM_CHAIN_ID", "84532")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "hunter2", cfg.Wallet.Passphrase)
		assert.Equal(t, int64(84532), cfg.Ethereum.ChainID)
	})

	t.Run("invalid contract address", func(t *testing.T) {
		path := writeConfig(t, `
ethereum:
  rpc: http://localhost:8545
  token_address: "0x1234"
  staking_address: "0x0987654321098765432109876543210987654321"
`)

		cfg, err := LoadConfig(path)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "TokenAddress")
	})

	t.Run("missing rpc", func(t *testing.T) {
		path := writeConfig(t, `
ethereum:
  token_address: "0x1234567890123456789012345678901234567890"
  staking_address: "0x0987654321098765432109876543210987654321"
`)

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/keys")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "keys"), got)

	got, err = expandHome("/abs/keys")
	require.NoError(t, err)
	assert.Equal(t, "/abs/keys", got)
}
