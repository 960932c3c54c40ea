package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, "out", cfg.Paths.OutDir)
	assert.Equal(t, "configs", cfg.Paths.ConfigDir)
	assert.Equal(t, float64(100), cfg.Grid.CellSize)
	assert.Equal(t, float64(75), cfg.Grid.Buffer)
	assert.Equal(t, "EPSG:3310", cfg.Grid.WorkingCRS)
	assert.Less(t, cfg.Grid.ExtentMinX, cfg.Grid.ExtentMaxX)
	assert.Less(t, cfg.Grid.ExtentMinY, cfg.Grid.ExtentMaxY)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pixelgrid.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PIXELGRID_STORE_DRIVER", "postgres")
	t.Setenv("PIXELGRID_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "loud", Format: "json"}))
}
