package commands

import (
	"context"
	"fmt"

	"github.com/spherical/xtox/internal/apiclient"
	"github.com/spherical/xtox/internal/config"
	"github.com/spherical/xtox/internal/credentials"
	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/download"
	"github.com/spherical/xtox/internal/observability"
	"github.com/spherical/xtox/internal/orchestrator"
)

// app wires the collaborators every conversion command needs.
type app struct {
	cfg        *config.Config
	logger     *observability.Logger
	store      credentials.Store
	client     *apiclient.Client
	sink       *download.FileSink
	downloader *download.Downloader
}

func newApp(ctx context.Context, outputDir string) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := apiclient.NewClient(apiclient.Config{
		BaseURL: cfg.Service.BaseURL,
		Timeout: cfg.Service.Timeout,
		Retry: &apiclient.RetryConfig{
			MaxRetries:     cfg.Service.Retry.MaxRetries,
			InitialBackoff: cfg.Service.Retry.InitialBackoff,
			MaxBackoff:     cfg.Service.Retry.MaxBackoff,
		},
		Credentials: store,
		Logger:      logger,
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	if outputDir == "" {
		outputDir = cfg.Output.Dir
	}
	sink := download.NewFileSink(outputDir, cfg.Output.Overwrite)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		client:     client,
		sink:       sink,
		downloader: download.New(client, sink, logger),
	}, nil
}

func (a *app) Close() {
	closeStore(a.store)
}

func (a *app) orchestratorOptions(events chan<- domain.Event) []orchestrator.Option {
	return []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithEvents(events),
		orchestrator.WithProgress(orchestrator.ProgressConfig{
			Step:       a.cfg.Progress.Step,
			Interval:   a.cfg.Progress.Interval,
			Ceiling:    a.cfg.Progress.Ceiling,
			ResetDelay: a.cfg.Progress.ResetDelay,
		}),
	}
}

func (a *app) documentOrchestrator(events chan<- domain.Event) (*orchestrator.Orchestrator[domain.DocumentOptions], error) {
	return orchestrator.New(
		orchestrator.DocumentPipeline(a.cfg.Document.MaxFileSize),
		a.client, a.downloader, a.orchestratorOptions(events)...)
}

func (a *app) audioOrchestrator(events chan<- domain.Event) (*orchestrator.Orchestrator[domain.AudioOptions], error) {
	return orchestrator.New(
		orchestrator.AudioPipeline(a.cfg.Audio.MaxFileSize),
		a.client, a.downloader, a.orchestratorOptions(events)...)
}

func openStore(ctx context.Context, c *config.Config) (credentials.Store, error) {
	store, err := credentials.Open(ctx, credentials.Options{
		Driver:    c.Credentials.Driver,
		Token:     c.Credentials.Token,
		TokenFile: c.Credentials.TokenFile,
		RedisURL:  c.Credentials.Redis.URL,
		Redis: credentials.RedisConfig{
			Addr:     c.Credentials.Redis.Addr,
			Password: c.Credentials.Redis.Password,
			DB:       c.Credentials.Redis.DB,
			Key:      c.Credentials.Redis.Key,
			TTL:      c.Credentials.Redis.TTL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return store, nil
}

func closeStore(store credentials.Store) {
	if rs, ok := store.(*credentials.RedisStore); ok {
		_ = rs.Close()
	}
}
