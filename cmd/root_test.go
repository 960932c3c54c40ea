package main

import (
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pixelgrid/internal/config"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"gridgen", "process", "fetch", "status", "serve"} {
		assert.True(t, names[want], "command %s registered", want)
	}
}

func TestDataPath(t *testing.T) {
	old := cfg
	defer func() { cfg = old }()
	cfg = &config.Config{}
	cfg.Paths.DataDir = "/srv/data"

	assert.Equal(t, filepath.Join("/srv/data", "lines.geojson"), dataPath("lines.geojson"))
	assert.Equal(t, "/abs/lines.geojson", dataPath("/abs/lines.geojson"))
}

func TestConfigExtent(t *testing.T) {
	old := cfg
	defer func() { cfg = old }()
	cfg = &config.Config{}

	cfg.Grid.ExtentMinX = -381105
	cfg.Grid.ExtentMinY = -606895
	cfg.Grid.ExtentMaxX = 540895
	cfg.Grid.ExtentMaxY = 456105
	want := orb.Bound{Min: orb.Point{-381105, -606895}, Max: orb.Point{540895, 456105}}
	assert.Equal(t, want, configExtent())

	// A degenerate configuration falls back to the derived envelope.
	cfg.Grid.ExtentMaxX = cfg.Grid.ExtentMinX
	assert.Equal(t, orb.Bound{}, configExtent())

	cfg = &config.Config{}
	assert.Equal(t, orb.Bound{}, configExtent())
}

func TestRootPreRunLoadsConfig(t *testing.T) {
	t.Setenv("PIXELGRID_LOG_LEVEL", "error")

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "error", cfg.Log.Level)
}
