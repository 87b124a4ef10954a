package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/VoiceRelay/internal/config"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() config.Config {
	return config.Config{
		Mode:          "release",
		Port:          8080,
		TCPAddr:       ":20008",
		LogLevel:      "info",
		ReadLimit:     32768,
		ReadBuffer:    4096,
		MaxPayload:    1 << 20,
		SendQueue:     256,
		WriteTimeout:  5 * time.Second,
		PingPeriod:    54 * time.Second,
		SelfDelivery:  true,
		ForwardFramed: false,
		Backpressure:  "kick",
		JoinInterval:  time.Second,
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(defaults(), *cfg); diff != "" {
		t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFile_Overrides(t *testing.T) {
	path := writeFile(t, `
mode: debug
tcp_addr: "127.0.0.1:9000"
max_payload: 2048
send_queue: 8
write_timeout: 250ms
self_delivery: false
forward_framed: true
backpressure: drop
log_level: warn
`)
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	want := defaults()
	want.Mode = "debug"
	want.TCPAddr = "127.0.0.1:9000"
	want.MaxPayload = 2048
	want.SendQueue = 8
	want.WriteTimeout = 250 * time.Millisecond
	want.SelfDelivery = false
	want.ForwardFramed = true
	want.Backpressure = "drop"
	want.LogLevel = "warn"
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, zerolog.WarnLevel, cfg.Level())
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero max payload", body: "max_payload: 0\n"},
		{name: "empty send queue", body: "send_queue: 0\n"},
		{name: "zero read buffer", body: "read_buffer: 0\n"},
		{name: "unknown policy", body: "backpressure: block\n"},
		{name: "unknown log level", body: "log_level: loud\n"},
		{name: "negative join limit", body: "join_limit: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFile(writeFile(t, tt.body))
			require.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestLoad_UsesConfigEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte("port: 9999\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
}
