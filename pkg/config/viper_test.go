package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  port: 9001\nwebsocket:\n  ping_interval: 15s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gateway.yaml"), []byte(yaml), 0o644))

	t.Setenv("DOTENV_PATH", filepath.Join(dir, "missing.env"))
	t.Setenv("SERVER_HOST", "127.0.0.1")

	v, err := Load(dir, "gateway")
	require.NoError(t, err)

	assert.Equal(t, 9001, v.GetInt("server.port"))
	assert.Equal(t, "127.0.0.1", v.GetString("server.host"))
	assert.Equal(t, 15*time.Second, Duration(v, "websocket.ping_interval", time.Second))
	assert.Equal(t, time.Second, Duration(v, "websocket.pong_wait", time.Second))
}

func TestLoadDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WES_TEST_A=from-file\nWES_TEST_B=from-file\n"), 0o644))

	t.Setenv("WES_TEST_A", "from-process")
	os.Unsetenv("WES_TEST_B")
	t.Cleanup(func() { os.Unsetenv("WES_TEST_B") })

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "nope.env")))

	assert.Equal(t, "from-process", os.Getenv("WES_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("WES_TEST_B"))
}
