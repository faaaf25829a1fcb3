package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts := NewOptions(Parse(false))

	assert.Equal(t, "dev", opts.ProcessEnv)
	assert.Equal(t, "config/dev/server", opts.ConfigKey)
	assert.Equal(t, uint32(1), opts.RPCMaxCoroutine)
	assert.Equal(t, 60*time.Second, opts.KillWaitTTL)
	assert.NotEmpty(t, opts.WorkDir)
	assert.Equal(t, "logs/access.dev.log", opts.LogFileName("logs", "access", ".dev", ".log"))
}

func TestNewOptionsOverride(t *testing.T) {
	opts := NewOptions(
		Parse(false),
		ProcessID("prod"),
		ConfPath("server.json"),
		ConsulAddr("127.0.0.1:8500"),
		RPCMaxCoroutine(4),
		KillWaitTTL(time.Second),
	)

	assert.Equal(t, "prod", opts.ProcessEnv)
	assert.Equal(t, "config/prod/server", opts.ConfigKey)
	assert.Equal(t, "server.json", opts.ConfPath)
	assert.Equal(t, []string{"127.0.0.1:8500"}, opts.ConsulAddr)
	assert.Equal(t, uint32(4), opts.RPCMaxCoroutine)
	assert.Equal(t, time.Second, opts.KillWaitTTL)
}
