package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"review-sentiment/internal/classifier"
	"review-sentiment/internal/config"
	"review-sentiment/internal/reviews"
	"review-sentiment/internal/sheets"
)

// ConfigFrom builds server dependencies from loaded settings.
func ConfigFrom(ctx context.Context, settings *config.Config) (Config, error) {
	if settings == nil {
		return Config{}, errors.New("settings required")
	}
	source, err := ReviewSource(ctx, settings.Reviews)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:         settings.Store.DBPath,
		SilentDB:       settings.Store.Silent,
		AllowedOrigins: settings.Server.AllowedOrigins,
		DefaultLocale:  settings.Locale,
		Reviews:        source,
		Classifier:     HostedClassifier(settings.Classifier),
		Fallback:       OfflineClassifier(settings.Classifier),
		CacheTTL:       settings.Cache.TTL,
		Logger: sheets.NewClient(sheets.Config{
			WebhookURL: settings.Sheets.WebhookURL,
			Timeout:    settings.Sheets.Timeout,
			MaxRetries: settings.Sheets.MaxRetries,
		}),
		QueueSize: settings.Sheets.QueueSize,
	}

	cache, closer := ClassifierCache(ctx, settings.Cache)
	cfg.Cache = cache
	if closer != nil {
		cfg.closers = append(cfg.closers, closer)
	}
	return cfg, nil
}

// ReviewSource selects S3 or the local file, always backed by the built-in samples.
func ReviewSource(ctx context.Context, cfg config.ReviewsConfig) (reviews.Source, error) {
	var primary reviews.Source
	if cfg.S3Bucket != "" {
		s3src, err := reviews.NewS3Source(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Key, cfg.Column)
		if err != nil {
			return nil, fmt.Errorf("s3 review source: %w", err)
		}
		primary = s3src
	} else if cfg.Path != "" {
		primary = reviews.NewFileSource(cfg.Path, cfg.Column)
	}
	return reviews.WithFallback(primary, reviews.DefaultFallback()), nil
}

// HostedClassifier returns the Hugging Face client, or nil when disabled or unconfigured.
func HostedClassifier(cfg config.ClassifierConfig) classifier.Classifier {
	if cfg.Disable {
		logrus.Info("hosted classifier disabled via configuration")
		return nil
	}
	client, err := classifier.NewHuggingFaceClient(classifier.Config{
		APIToken:   cfg.APIToken,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		if !errors.Is(err, classifier.ErrDisabled) {
			logrus.WithError(err).Warn("hosted classifier unavailable")
		}
		return nil
	}
	return client
}

// OfflineClassifier returns the lexicon fallback, loading custom word lists when configured.
func OfflineClassifier(cfg config.ClassifierConfig) classifier.Classifier {
	if cfg.LexiconPath == "" {
		return classifier.NewLexicon()
	}
	lex, err := classifier.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		logrus.WithError(err).WithField("path", cfg.LexiconPath).Warn("load lexicon, using built-in word lists")
		return classifier.NewLexicon()
	}
	return lex
}

// ClassifierCache connects to Redis when configured, falling back to an in-process cache.
// The returned closer is nil unless a Redis client was opened.
func ClassifierCache(ctx context.Context, cfg config.CacheConfig) (classifier.Cache, *redis.Client) {
	if cfg.RedisAddr == "" {
		return classifier.NewMemoryCache(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logrus.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, using in-memory classifier cache")
		_ = client.Close()
		return classifier.NewMemoryCache(), nil
	}
	logrus.WithField("addr", cfg.RedisAddr).Info("classifier cache backed by redis")
	return classifier.NewRedisCache(client), client
}
