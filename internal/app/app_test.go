package app

import (
	"context"
	"path/filepath"
	"testing"

	"seafile-thumbnail/internal/startup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *startup.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := startup.DefaultConfig()
	cfg.ThumbnailRoot = filepath.Join(dir, "thumbnail")
	cfg.DatabasePath = filepath.Join(dir, "seahub.db")
	cfg.S3.Bucket = "seafile"
	cfg.S3.Endpoint = "http://127.0.0.1:1"
	cfg.S3.ForcePathStyle = true
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.Generator)
	require.NotNil(t, a.Store)
	require.NoError(t, a.DB.Ping(context.Background()))
	assert.False(t, a.VideoReady)

	opts := a.Generator.Options()
	assert.Equal(t, cfg.ThumbnailRoot, opts.Root)
	assert.Equal(t, cfg.VideoFrameTime(), opts.VideoFrameTime)
	assert.Equal(t, cfg.OriginalSizeLimitMB, opts.OriginalSizeLimitMB)
}

func TestBuildBadFont(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatermarkFont = filepath.Join(t.TempDir(), "missing.ttf")

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watermark font")
}

func TestBuildBadDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "no", "such", "dir", "seahub.db")

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestCloseTwice(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
