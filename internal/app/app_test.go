package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/neurocme/config"
	"github.com/fyerfyer/neurocme/internal/cache"
	"github.com/fyerfyer/neurocme/internal/models"
	"github.com/fyerfyer/neurocme/internal/outputs"
	"github.com/fyerfyer/neurocme/internal/services"
)

const note = `Status Epilepticus

Refractory status epilepticus is an emergency and clinicians should escalate to anesthetic infusion if seizures persist after benzodiazepines.`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestBuildDefaults(t *testing.T) {
	comps, err := Build(loadDefaults(t), quietLogger())
	require.NoError(t, err)
	defer comps.Close()

	assert.Nil(t, comps.Storage)
	analysis, err := comps.Service.AnalyzeText(context.Background(), "Note", note, services.TextPlain, models.AnalysisOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.Topics)

	_, err = comps.Service.ArchiveExport(context.Background(), analysis.AnalysisID, outputs.FormatCSV)
	assert.ErrorIs(t, err, models.ErrArchiveDisabled)
}

func TestBuildWithRedisAndStorage(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := loadDefaults(t)
	cfg.Cache.Type = "redis"
	cfg.Cache.Address = mr.Addr()
	cfg.Storage.Enable = true
	cfg.Storage.Type = "local"
	cfg.Storage.Path = t.TempDir()

	comps, err := Build(cfg, quietLogger())
	require.NoError(t, err)
	defer comps.Close()

	assert.IsType(t, &cache.RedisCache{}, comps.Cache)
	require.NotNil(t, comps.Storage)

	analysis, err := comps.Service.AnalyzeText(context.Background(), "Note", note, services.TextPlain, models.AnalysisOptions{})
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.AnalysisKey(cfg.Cache.KeyPrefix, analysis.AnalysisID)))

	info, err := comps.Service.ArchiveExport(context.Background(), analysis.AnalysisID, outputs.FormatMarkdown)
	require.NoError(t, err)
	exists, err := comps.Storage.Exists(context.Background(), info.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuildErrors(t *testing.T) {
	t.Run("redis unavailable", func(t *testing.T) {
		cfg := loadDefaults(t)
		cfg.Cache.Type = "redis"
		cfg.Cache.Address = "127.0.0.1:1"
		_, err := Build(cfg, quietLogger())
		assert.Error(t, err)
	})

	t.Run("missing weights file", func(t *testing.T) {
		cfg := loadDefaults(t)
		cfg.Scoring.WeightsFile = filepath.Join(t.TempDir(), "nope.yaml")
		_, err := Build(cfg, quietLogger())
		assert.Error(t, err)
	})

	t.Run("unknown storage", func(t *testing.T) {
		cfg := loadDefaults(t)
		cfg.Storage.Enable = true
		cfg.Storage.Type = "ftp"
		_, err := Build(cfg, quietLogger())
		assert.Error(t, err)
	})
}
