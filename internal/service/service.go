// Package service assembles the generation stack shared by the API, the
// worker and genctl.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"genstudio/internal/adapter/cache"
	"genstudio/internal/adapter/repo"
	"genstudio/internal/archive"
	"genstudio/internal/artifact"
	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/hosting"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/providers"
	"genstudio/internal/storage"
)

type Service struct {
	Generations *repo.GenerationRepositoryPG
	Profiles    *repo.ProfileRepositoryPG
	Credentials *credentials.Store
	Dispatcher  *generation.Dispatcher
	Reconciler  *generation.Reconciler

	cfg    *infra.Config
	logger *infra.Logger
	redis  *redis.Client
}

// New wires repositories, providers, hosting and the job lifecycle on top of
// sql. Redis and the S3 archive are optional and follow the configuration.
func New(ctx context.Context, cfg *infra.Config, sql infra.SQLExecutor, logger *infra.Logger, metrics *infra.Metrics) (*Service, error) {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	s := &Service{
		Generations: repo.NewGenerationRepository(sql),
		Profiles:    repo.NewProfileRepository(sql),
		Credentials: credentials.NewStore(sql),
		cfg:         cfg,
		logger:      logger,
	}

	var models domain.ModelRepository = repo.NewModelRepository(sql)
	opts := generation.Options{
		Generations: s.Generations,
		LockTTL:     cfg.ReconcileLockTTL,
		ClaimTTL:    instantClaimTTL(cfg),
		Logger:      logger,
		Metrics:     metrics,
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		s.redis = rdb
		models = cache.NewModelCache(models, rdb, cfg.ModelCacheTTL, logger)
		opts.Locker = cache.NewLocker(rdb)
		logger.Info().Msg("redis model cache and reconcile lock enabled")
	}
	opts.Models = models

	client := providers.NewClient(providers.Options{
		Timeout: cfg.ProviderTimeout,
		Logger:  logger,
		Metrics: metrics,
	})
	opts.Registry = providers.DefaultRegistry(client)
	opts.Status = client

	zipline, err := hosting.NewZipline(hosting.Options{
		BaseURL:       cfg.ZiplineURL,
		UploadTimeout: cfg.HostingUploadTimeout,
		InfoTimeout:   cfg.HostingInfoTimeout,
		Logger:        logger,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("configure file hosting (ZIPLINE_URL): %w", err)
	}
	scratch, err := storage.NewFileStore(cfg.ScratchPath)
	if err != nil {
		s.Close()
		return nil, err
	}
	opts.Importer = artifact.NewImporter(artifact.ImporterOptions{
		DownloadTimeout: cfg.DownloadTimeout,
		Host:            zipline,
		Tokens:          s.Credentials,
		Files:           repo.NewFileRepository(sql),
		Previewer:       artifact.NewThumbnailer(scratch, artifact.FFmpegExtractor(cfg.FFmpegPath)),
		Logger:          logger,
		Metrics:         metrics,
	})

	sink, err := archive.New(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	opts.Archive = sink

	s.Dispatcher = generation.NewDispatcher(opts)
	s.Reconciler = generation.NewReconciler(opts)
	return s, nil
}

// instantClaimTTL covers one synchronous completion: a download, the hosting
// token check, the upload and the metadata fetch, plus slack for the ledger.
func instantClaimTTL(cfg *infra.Config) time.Duration {
	return cfg.DownloadTimeout + cfg.HostingUploadTimeout + 2*cfg.HostingInfoTimeout + time.Minute
}

// Poller builds the scheduled sweep over pending jobs.
func (s *Service) Poller() *generation.Poller {
	return generation.NewPoller(generation.PollerOptions{
		Generations: s.Generations,
		Reconciler:  s.Reconciler,
		MaxAge:      s.cfg.PollMaxAge,
		BatchSize:   s.cfg.PollBatchSize,
		Logger:      s.logger,
	})
}

func (s *Service) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close redis")
		}
	}
}
