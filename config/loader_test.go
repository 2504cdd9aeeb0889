package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
feed:
  url: https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-ace
filter:
  route: A
  stop: A27N
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "A", cfg.Filter.Route)
	assert.Equal(t, "A27N", cfg.Filter.Stop)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, DefaultPayloadCapBytes, cfg.Limits.PayloadCapBytes)
	assert.Equal(t, DefaultReadChunkBytes, cfg.Limits.ReadChunkBytes)
	assert.Equal(t, DefaultHeaderLineBytes, cfg.Limits.HeaderLineBytes)
	assert.Equal(t, DefaultMaxArrivals, cfg.Limits.MaxArrivals)
	assert.Equal(t, DefaultFutureCount, cfg.Limits.FutureCount)
	assert.Equal(t, DefaultPresentationCount, cfg.Limits.PresentationCount)
	assert.Equal(t, 20*time.Second, cfg.Timeouts.Connect())
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Write())
	assert.Equal(t, 8*time.Second, cfg.Timeouts.Header())
	assert.Equal(t, time.Minute, cfg.Timeouts.Body())
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Idle())
	assert.Equal(t, DefaultUserAgent, cfg.Feed.UserAgent)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.Server.Port)
	assert.Equal(t, "json", cfg.NATS.Format)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(minimal + `
poll:
  intervalMS: 5000
limits:
  payloadCapBytes: 65536
  presentationCount: 2
timeouts:
  idleMS: 2000
server:
  port: 9090
nats:
  url: nats://127.0.0.1:4222
  subject: boards.A27N
  format: siri
  codespace: MTA
display:
  title: ["Penn Station", "Uptown A"]
logLevel: debug
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 65536, cfg.Limits.PayloadCapBytes)
	assert.Equal(t, 2, cfg.Limits.PresentationCount)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Idle())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "boards.A27N", cfg.NATS.Subject)
	assert.Equal(t, "siri", cfg.NATS.Format)
	assert.Equal(t, "MTA", cfg.NATS.Codespace)
	assert.Equal(t, []string{"Penn Station", "Uptown A"}, cfg.Display.Title)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"missing url", "filter: {route: A, stop: S}", "Feed"},
		{"bad url", "feed: {url: not-a-url}\nfilter: {route: A, stop: S}", "Feed.URL"},
		{"missing stop", "feed: {url: 'http://x.example.com/f'}\nfilter: {route: A}", "Filter.Stop"},
		{"presentation over future", minimal + "limits: {futureCount: 2, presentationCount: 3}", "PresentationCount"},
		{"idle over body", minimal + "timeouts: {bodyMS: 1000, idleMS: 2000}", "IdleMS"},
		{"tiny chunk", minimal + "limits: {readChunkBytes: 8}", "ReadChunkBytes"},
		{"nats without subject", minimal + "nats: {url: 'nats://localhost:4222'}", "NATS.Subject"},
		{"nats format", minimal + "nats: {url: 'nats://localhost:4222', subject: s, format: xml}", "NATS.Format"},
		{"log level", minimal + "logLevel: loud", "LogLevel"},
		{"port", minimal + "server: {port: 70000}", "Server.Port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := Parse([]byte("feed: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadAppConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "A27N", cfg.Filter.Stop)

	_, err = LoadAppConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
