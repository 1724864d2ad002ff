package config

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"barangay-helpdesk/internal/dataset"
	"barangay-helpdesk/internal/integrations/httpfetch"
	"barangay-helpdesk/internal/integrations/paramstore"
)

type fakeParams map[string]string

func (f fakeParams) GetParameter(_ context.Context, name string) (string, error) {
	return f[name], nil
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.PollInterval)
	require.Equal(t, time.Second, cfg.WatchInterval)
	require.Equal(t, 500, cfg.MaxMessageLength)
	require.Equal(t, 0.5, cfg.FuzzyThreshold)
	require.Equal(t, "/barangay-helpdesk", cfg.ParamPrefix)
	require.Equal(t, slog.LevelInfo, cfg.Level())
	require.Error(t, cfg.RequireStateTable())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"STATE_TABLE":        "helpdesk",
		"POLL_INTERVAL":      "500ms",
		"MAX_MESSAGE_LENGTH": "120",
		"LOG_LEVEL":          "debug",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.RequireStateTable())
	require.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 120, cfg.MaxMessageLength)
	require.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := LoadFrom(map[string]string{"POLL_INTERVAL": "soon"})
	require.Error(t, err)

	_, err = LoadFrom(map[string]string{"MAX_MESSAGE_LENGTH": "0"})
	require.Error(t, err)

	cfg, err := LoadFrom(map[string]string{"LOG_LEVEL": "loud"})
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestDatasetSource_Precedence(t *testing.T) {
	cfg := &Config{ParamPrefix: "/bh"}
	src, err := cfg.DatasetSource(nil)
	require.NoError(t, err)
	require.Nil(t, src)

	cfg.DatasetParam = "dataset"
	_, err = cfg.DatasetSource(nil)
	require.Error(t, err)
	src, err = cfg.DatasetSource(fakeParams{"/bh/dataset": "User Query,Intent,Response\nhi,greet,hello\n"})
	require.NoError(t, err)
	require.IsType(t, paramstore.DatasetSource{}, src)

	store := dataset.New(src)
	store.Load(context.Background())
	require.Equal(t, 1, store.Len())

	cfg.DatasetPath = filepath.Join(t.TempDir(), "dataset.csv")
	src, err = cfg.DatasetSource(nil)
	require.NoError(t, err)
	require.IsType(t, dataset.File{}, src)

	cfg.DatasetURL = "https://example.com/dataset.csv"
	src, err = cfg.DatasetSource(nil)
	require.NoError(t, err)
	require.IsType(t, &httpfetch.Client{}, src)

	cfg.DatasetURL = "ftp://example.com/dataset.csv"
	_, err = cfg.DatasetSource(nil)
	require.Error(t, err)
}

func TestSetupLoggerWithWriters_Fanout(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("claimed", "conversationId", "abc")

	require.Contains(t, stderr.String(), "conversationId=abc")
	require.NotContains(t, stderr.String(), "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	require.Equal(t, "claimed", rec["msg"])
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helpdesk.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	noFile, cleanup := SetupLogger("", slog.LevelInfo)
	require.NotNil(t, noFile)
	require.NoError(t, cleanup())
}
