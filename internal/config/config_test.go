package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WEBPUBSUB_GROUPS", "")
	t.Setenv("SESSION_ECHO_WINDOW", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"voice-chat"}, cfg.PubSub.Groups)
	assert.Equal(t, "voice-chat", cfg.PubSub.SendGroup())
	assert.Equal(t, 2*time.Second, cfg.Session.DedupWindow)
	assert.Equal(t, 10*time.Second, cfg.Session.EchoWindow)
	assert.Equal(t, 5*time.Second, cfg.Session.ConnectionGrace)
	assert.Equal(t, "en-US-JennyNeural", cfg.Speech.Voice)
	assert.Equal(t, "friendly", cfg.Speech.Style)
	assert.InDelta(t, 1.3, cfg.Speech.StyleDegree, 0.0001)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoadSessionWindowsFromEnv(t *testing.T) {
	t.Setenv("SESSION_DEDUP_WINDOW", "500ms")
	t.Setenv("SESSION_ECHO_WINDOW", "30s")
	t.Setenv("WEBPUBSUB_GROUPS", "room-a, room-b ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.DedupWindow)
	assert.Equal(t, 30*time.Second, cfg.Session.EchoWindow)
	assert.Equal(t, []string{"room-a", "room-b"}, cfg.PubSub.Groups)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SESSION_ECHO_WINDOW", "ten seconds")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_ECHO_WINDOW")

	t.Setenv("SESSION_ECHO_WINDOW", "")
	t.Setenv("STORAGE_DRIVER", "mongo")
	_, err = Load()
	require.Error(t, err)
}

func TestPubSubConnectionString(t *testing.T) {
	t.Setenv("WEBPUBSUB_ENDPOINT", "")
	t.Setenv("WEBPUBSUB_ACCESS_KEY", "")
	t.Setenv("WEBPUBSUB_CONNECTION_STRING", "Endpoint=https://demo.webpubsub.azure.com/;AccessKey=secret;Version=1.0;")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://demo.webpubsub.azure.com", cfg.PubSub.Endpoint)
	assert.Equal(t, "secret", cfg.PubSub.AccessKey)
	assert.True(t, cfg.PubSub.Enabled())
}

func TestParseConnectionStringErrors(t *testing.T) {
	_, _, err := ParseConnectionString("Endpoint=https://x")
	assert.Error(t, err)

	_, _, err = ParseConnectionString("garbage")
	assert.Error(t, err)
}

func TestSpeechCloudEnabled(t *testing.T) {
	assert.False(t, SpeechConfig{}.CloudEnabled())
	assert.False(t, SpeechConfig{Key: "k"}.CloudEnabled())
	assert.True(t, SpeechConfig{Key: "k", Region: "eastus"}.CloudEnabled())
}
