package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
	// 注释行
	"RpcLog": true,
	"Nats": {"Addr": "nats-1:4222", "ReconnectWait": "5s"},
	"Broker": {"Exchange": "accounts", "RoutingKeys": ["user.v2.register"]},
	"RPC": {"Timeout": 30},
	"Module": {
		"account": [{"ID": "account-1", "ProcessEnv": "dev", "Settings": {"Addr": ":9000"}}]
	}
}
`

func TestParse(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(strings.NewReader(sample), &cfg))

	assert.True(t, cfg.RpcLog)
	assert.Equal(t, "nats-1:4222", cfg.Nats.Addr)
	assert.Equal(t, 5*time.Second, cfg.Nats.ReconnectWait.Std())
	assert.Equal(t, -1, cfg.Nats.MaxReconnects) // 未配置保留默认值
	assert.Equal(t, "accounts", cfg.Broker.Exchange)
	assert.Equal(t, "messages", cfg.Broker.Queue)
	assert.Equal(t, []string{"user.v2.register"}, cfg.Broker.RoutingKeys)
	assert.Equal(t, 30*time.Second, cfg.RPC.Timeout.Std())
	require.Len(t, cfg.Module["account"], 1)
	assert.Equal(t, "account-1", cfg.Module["account"][0].ID)
	assert.Equal(t, ":9000", cfg.Module["account"][0].Settings["Addr"])
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("RPC_TIMEOUT", "2s")
	t.Setenv("ROUTING_KEYS", "a.b,c.d")
	t.Setenv("STORE_DRIVER", "redis")

	cfg := Default()
	require.NoError(t, Parse(strings.NewReader(sample), &cfg))
	assert.Equal(t, 2*time.Second, cfg.RPC.Timeout.Std())
	assert.Equal(t, []string{"a.b", "c.d"}, cfg.Broker.RoutingKeys)
	assert.Equal(t, "redis", cfg.Store.Driver)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "default_exchange", cfg.Broker.Exchange)
	assert.Equal(t, "messages", cfg.Broker.Queue)
	assert.Equal(t, []string{"user.v1.register", "user.v1.login"}, cfg.Broker.RoutingKeys)
	assert.Equal(t, 1, cfg.Broker.Prefetch)
	assert.Equal(t, 60*time.Second, cfg.RPC.Timeout.Std())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	old := Conf
	defer func() { Conf = old }()

	require.NoError(t, LoadConfig(path))
	assert.Equal(t, "accounts", Conf.Broker.Exchange)

	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "missing.json")))
}

func TestDurationInvalid(t *testing.T) {
	cfg := Default()
	err := Parse(strings.NewReader(`{"RPC": {"Timeout": "soon"}}`), &cfg)
	assert.Error(t, err)
}
