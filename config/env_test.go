package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REVIEWSCOPE_SCROLL_ROUNDS=7\nREVIEWSCOPE_PORT=9999\n"), 0o600))

	t.Setenv("REVIEWSCOPE_ENV_FILE", path)
	t.Setenv("REVIEWSCOPE_PORT", "8081")
	// godotenv sets variables directly; make sure the test leaves none behind.
	t.Setenv("REVIEWSCOPE_SCROLL_ROUNDS", "")
	require.NoError(t, os.Unsetenv("REVIEWSCOPE_SCROLL_ROUNDS"))

	require.NoError(t, LoadEnvFile())

	cfg := Load()
	assert.Equal(t, 7, cfg.Scraper.ScrollRounds)
	assert.Equal(t, 8081, cfg.Server.Port, "existing environment wins over the file")
}

func TestLoadEnvFile_MissingExplicitFile(t *testing.T) {
	t.Setenv("REVIEWSCOPE_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, LoadEnvFile())
}

func TestInitLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	InitLogger(LogConfig{Level: "WARN", Format: "json"}, &buf)

	slog.Info("dropped")
	slog.Warn("kept", "url", "https://example.com")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "https://example.com", line["url"])

	buf.Reset()
	InitLogger(LogConfig{Level: "debug", Format: "text"}, &buf)
	slog.Debug("scroll", "rounds", 3)
	assert.Contains(t, buf.String(), "msg=scroll rounds=3")
}
