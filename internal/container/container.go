package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ymlfeed/exporter/internal/client"
	"ymlfeed/exporter/internal/config"
	"ymlfeed/exporter/internal/domain"
	"ymlfeed/exporter/internal/export"
	"ymlfeed/exporter/internal/observability"
	"ymlfeed/exporter/internal/parser"
	"ymlfeed/exporter/internal/proxy"
	"ymlfeed/exporter/internal/queue"
	"ymlfeed/exporter/internal/repository"
	"ymlfeed/exporter/internal/service"
	"ymlfeed/exporter/internal/sink"
	"ymlfeed/exporter/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Client       client.FeedClient
	Repository   repository.OfferRepository
	Queue        *queue.RedisQueue
	StateManager state.StateManager
	Metrics      *observability.Metrics

	Service *service.Service

	db            *pgxpool.Pool
	redis         *redis.Client
	metricsServer *http.Server
}

// New creates a new container with all dependencies initialized. Redis and
// Postgres are only connected when enabled in the configuration.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config:  cfg,
		Metrics: observability.NewMetrics(),
	}

	delimiter, err := sink.ParseDelimiter(cfg.Output.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("invalid output delimiter: %w", err)
	}

	var proxySupplier proxy.ProxySupplier
	if len(cfg.Feed.Proxies) > 0 {
		proxySupplier = proxy.NewProxySupplier(ctx, cfg.Feed.Proxies, cfg.Feed.URL)
	}

	container.Client = client.NewFeedClient(cfg.Feed, proxySupplier)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		container.redis = rdb

		// Test connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		log.Info("✅ Connected to Redis successfully")

		container.Queue = queue.NewRedisQueue(rdb, cfg.Redis)
		container.StateManager = state.NewRedisStateManager(rdb)
	}

	if cfg.Database.Enabled {
		db, err := pgxpool.New(ctx,
			fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Database.Host,
				cfg.Database.Port,
				cfg.Database.User,
				cfg.Database.Password,
				cfg.Database.Name,
			))
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to create Postgres pool: %w", err)
		}
		container.db = db

		offerRepo := repository.NewOfferRepository(db)
		if err := offerRepo.EnsureSchema(ctx); err != nil {
			container.Close()
			return nil, err
		}
		container.Repository = offerRepo

		log.Info("✅ Connected to Postgres successfully")
	}

	if cfg.Metrics.Listen != "" {
		container.metricsServer = container.Metrics.Serve(cfg.Metrics.Listen)
	}

	// Optional collaborators are passed as untyped nils when disabled so the
	// service sees them as absent.
	var (
		stateManager state.StateManager
		publisher    queue.Publisher
		offerRepo    repository.OfferRepository
	)
	if container.StateManager != nil {
		stateManager = container.StateManager
	}
	if container.Queue != nil {
		publisher = container.Queue
	}
	if container.Repository != nil {
		offerRepo = container.Repository
	}

	container.Service = service.NewService(
		container.Client,
		parser.NewFeedParser(parser.Options{CollectPictures: cfg.Output.CollectPictures}),
		stateManager,
		publisher,
		offerRepo,
		container.Metrics,
		service.Options{
			Sink: sink.Options{
				Format:    cfg.Output.Format,
				Delimiter: delimiter,
			},
			Export: export.Options{
				StripHTML: cfg.Output.StripHTML,
			},
			Conditional: cfg.Feed.Conditional,
		},
	)

	return container, nil
}

// Run performs one export and writes the metrics textfile when configured.
func (c *Container) Run(ctx context.Context) (*domain.Summary, error) {
	summary, err := c.Service.Export(ctx, c.Config.Feed.URL, c.Config.Output.Path)

	if c.Config.Metrics.Textfile != "" {
		if werr := c.Metrics.WriteTextfile(c.Config.Metrics.Textfile); werr != nil {
			log.Warnf("⚠️ Failed to write metrics textfile: %v", werr)
		}
	}

	return summary, err
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Debug("Shutting down container...")

	var errs []error

	if c.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, c.metricsServer.Shutdown(shutdownCtx))
		cancel()
	}
	if c.Client != nil {
		errs = append(errs, c.Client.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.db != nil {
		c.db.Close()
	}

	log.Debug("Container shut down successfully")
	return errors.Join(errs...)
}
