package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-sentiment/internal/classifier"
	"review-sentiment/internal/config"
)

func TestConfigFrom(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	dir := t.TempDir()
	reviewsPath := filepath.Join(dir, "reviews.tsv")
	require.NoError(t, os.WriteFile(reviewsPath, []byte("text\nSolid kettle\n"), 0o644))

	settings := config.Default()
	settings.Reviews.Path = reviewsPath
	settings.Store.DBPath = filepath.Join(dir, "wire.db")
	settings.Store.Silent = true
	settings.Cache.RedisAddr = mr.Addr()
	settings.Classifier.Disable = true

	cfg, err := ConfigFrom(context.Background(), settings)
	require.NoError(t, err)
	assert.Nil(t, cfg.Classifier)
	assert.IsType(t, &classifier.RedisCache{}, cfg.Cache)
	require.Len(t, cfg.closers, 1)

	items, err := cfg.Reviews.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Solid kettle"}, items)

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	assert.Equal(t, "lexicon", srv.classifierName())
	require.NoError(t, srv.Close(context.Background()))
}

func TestClassifierCacheFallsBackToMemory(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cache, client := ClassifierCache(context.Background(), config.CacheConfig{RedisAddr: addr})
	assert.Nil(t, client)
	assert.IsType(t, &classifier.MemoryCache{}, cache)

	cache, client = ClassifierCache(context.Background(), config.CacheConfig{})
	assert.Nil(t, client)
	assert.IsType(t, &classifier.MemoryCache{}, cache)
}

func TestReviewSourceFallsBackToSamples(t *testing.T) {
	src, err := ReviewSource(context.Background(), config.ReviewsConfig{Path: filepath.Join(t.TempDir(), "missing.tsv"), Column: "text"})
	require.NoError(t, err)
	items, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, items)
}

func TestHostedClassifier(t *testing.T) {
	assert.Nil(t, HostedClassifier(config.ClassifierConfig{}))
	assert.Nil(t, HostedClassifier(config.ClassifierConfig{APIToken: "hf_x", Disable: true}))
	clf := HostedClassifier(config.ClassifierConfig{APIToken: "hf_x"})
	require.NotNil(t, clf)
	assert.Equal(t, "huggingface:"+classifier.DefaultModel, clf.Name())
}
