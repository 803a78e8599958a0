package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KodaTao/webhook-chat/config"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")

	log, err := New(config.LogConfig{Level: "info", File: path}, true)
	require.NoError(t, err)

	log.Named("webhook").Info("exchange finished")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"message":"exchange finished"`), string(data))
	require.True(t, strings.Contains(string(data), `"logger":"webhook"`), string(data))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, false)
	require.Error(t, err)
}
