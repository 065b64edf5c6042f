package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
server:
  host: 127.0.0.1
  port: 9090

database:
  host: db.internal
  port: 5432
  user: gateway
  password: secret
  database: gateway
  lock_timeout: 5s

nats:
  url: nats://broker:4222
  subject: deposits.confirmed
  queue_group: deposit-gateway
  workers: 4

payload:
  algorithm: HS256
  secret: topsecret

ethereum:
  rpc_url: http://node:8545
  chain_id: 1
  strict: true
  gas_price_multiplier: 1.5
  gas_limits:
    native: 21000
    "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": 65000

chains:
  - key: eth-mainnet
    address_type: ethereum
  - key: btc-mainnet
    address_type: generic

ledger:
  url: http://ledger:8080
  timeout: 10s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, 4, cfg.NATS.Workers)
	assert.Equal(t, "HS256", cfg.Payload.Algorithm)
	assert.Equal(t, 1.5, cfg.Ethereum.GasPriceMultiplier)
	assert.Equal(t, uint64(21000), cfg.Ethereum.GasLimits["native"])
	assert.Len(t, cfg.Chains, 2)
	assert.Equal(t, "ethereum", cfg.Chains[0].AddressType)

	// Defaults fill unset sections.
	assert.True(t, cfg.Ethereum.Strict)
	assert.Equal(t, 30*time.Second, cfg.Shutdown.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingChains(t *testing.T) {
	broken := `
database:
  host: db.internal
nats:
  url: nats://broker:4222
payload:
  algorithm: HS256
  secret: topsecret
`
	_, err := Load(writeConfig(t, broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain")
}

func TestLoad_HS256RequiresSecret(t *testing.T) {
	broken := `
database:
  host: db.internal
payload:
  algorithm: HS256
chains:
  - key: eth-mainnet
    address_type: ethereum
`
	_, err := Load(writeConfig(t, broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload.secret")
}
