package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Digital-Shane/marquee/internal/cache"
	"github.com/Digital-Shane/marquee/internal/config"
	"github.com/Digital-Shane/marquee/internal/discovery"
	"github.com/Digital-Shane/marquee/internal/fallback"
	"github.com/Digital-Shane/marquee/internal/log"
	"github.com/Digital-Shane/marquee/internal/playback"
	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/Digital-Shane/marquee/internal/provider/builtin"
)

var registerOnce = sync.OnceValue(func() error {
	return builtin.Register(provider.GlobalRegistry)
})

// app is the wired core shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	search   *discovery.Service
	playback *playback.Manager
	closers  []io.Closer
}

// openApp loads configuration and builds the core. Missing provider keys,
// a disabled generator and an unavailable durable store all degrade the
// app rather than fail it.
func openApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, logCloser, err := log.Setup(log.Options{
		File:       cfg.Logging.File,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	var searchMirror, resumeMirror cache.Mirror
	if cfg.Cache.Durable {
		store, err := cache.OpenBolt(cfg.Cache.Path, cache.BucketSearch, cache.BucketResume)
		if err != nil {
			logger.Warn("durable store unavailable, using memory only",
				slog.String("path", cfg.Cache.Path),
				slog.Any("error", err))
		} else {
			a.closers = append([]io.Closer{store}, a.closers...)
			searchMirror = store.Mirror(cache.BucketSearch)
			resumeMirror = store.Mirror(cache.BucketResume)
		}
	}

	searchCache := cache.New(cache.Options{
		DefaultTTL: cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
		Mirror:     searchMirror,
		Logger:     logger,
	})

	client, err := newProviderClient(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	generator := fallback.NewGemini(fallback.GeminiOptions{
		APIKey:     cfg.FallbackKey(),
		Model:      cfg.Fallback.Model,
		BatchSize:  cfg.Fallback.BatchSize,
		HTTPClient: &http.Client{Timeout: cfg.Fallback.Timeout},
		Logger:     logger,
	})

	rotationRetries := cfg.Provider.RotationRetries
	if rotationRetries == 0 {
		rotationRetries = -1
	}
	a.search = discovery.New(client, generator, searchCache, discovery.Options{
		Pages:            cfg.Provider.Pages,
		RotationRetries:  rotationRetries,
		KeepArtless:      !cfg.Provider.RequireArt,
		MaxCandidates:    cfg.Provider.MaxCandidates,
		Concurrency:      cfg.Provider.Concurrency,
		CacheTTL:         cfg.Cache.TTL,
		FallbackTTL:      cfg.Cache.FallbackTTL,
		GeneratorTimeout: cfg.Fallback.Timeout,
		Logger:           logger,
	})

	var resume playback.ResumeStore = playback.NewMemoryStore()
	if resumeMirror != nil {
		resume = playback.NewMirrorStore(resumeMirror)
	}
	a.playback = playback.NewManager(playback.ManagerOptions{Store: resume, Logger: logger})
	return a, nil
}

// newProviderClient builds the configured backend. No api keys means no
// client: searches go straight to the generator.
func newProviderClient(cfg *config.Config, logger *slog.Logger) (*provider.Client, error) {
	if err := registerOnce(); err != nil {
		return nil, err
	}
	backend, err := provider.GlobalRegistry.New(cfg.Provider.Backend, provider.BackendOptions{
		HTTPClient: &http.Client{Timeout: cfg.Provider.Timeout},
		Language:   cfg.Provider.Language,
	})
	if err != nil {
		return nil, err
	}
	client, err := provider.NewClient(backend, provider.ClientOptions{
		Nodes:         cfg.Provider.Nodes,
		Timeout:       cfg.Provider.Timeout,
		RatePerSecond: cfg.Provider.RatePerSecond,
		Burst:         cfg.Provider.Concurrency,
		Logger:        logger,
	})
	if errors.Is(err, provider.ErrNotConfigured) {
		logger.Warn("no provider api keys configured, searches use the generator only",
			slog.String("backend", cfg.Provider.Backend))
		return nil, nil
	}
	return client, err
}

// Close releases the durable store and the log file.
func (a *app) Close() error {
	var errs []error
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
