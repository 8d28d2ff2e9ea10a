package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vadimbarashkov/shortlink/internal/adapter/cache/redis"
	"github.com/vadimbarashkov/shortlink/internal/adapter/metrics"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/ratelimit"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/pkg/clock"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
)

// repository is the storage surface shared by the postgres and memory drivers.
type repository interface {
	ratelimit.CreationCounter
	InsertShortLink(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error)
	FindShortLinkByCode(ctx context.Context, code string, includeExpired bool, now time.Time) (*entity.ShortLink, error)
	IncrementAccessCount(ctx context.Context, id int64, at time.Time) error
	InsertAccessEvent(ctx context.Context, event *entity.AccessEvent) (uuid.UUID, error)
	TrackAccess(ctx context.Context, event *entity.AccessEvent) error
	ListShortLinks(ctx context.Context, q entity.ListQuery) ([]entity.ShortLink, int64, error)
	CountAccessEventsByDay(ctx context.Context, from, to time.Time) ([]entity.DailyAccess, error)
	TopShortLinksByAccessCount(ctx context.Context, limit int) ([]entity.TopLink, error)
	PeakAccessDay(ctx context.Context) (*entity.DailyAccess, error)
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeRepo()

	logger.Info("storage ready", "driver", cfg.Storage.Driver)

	var cache *redis.Cache
	if cfg.Redis.Enabled {
		client, err := redis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}
		defer client.Close()

		cache = redis.New(client, cfg.Redis.TTL)
		logger.Info("redis cache enabled", "ttl", cfg.Redis.TTL)
	}

	router, urlUseCase := newRouter(cfg, logger, repo, cache, clock.Real{})
	defer urlUseCase.Wait()

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		logger.Info("starting server", "addr", server.Addr, "env", cfg.Env)

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

// newRouter assembles the use cases over repo and returns the HTTP handler
// serving them. cache may be nil.
func newRouter(
	cfg *config.Config,
	logger *httplog.Logger,
	repo repository,
	cache *redis.Cache,
	clk clock.Clock,
) (http.Handler, *usecase.URLUseCase) {
	opts := []usecase.URLOption{
		usecase.WithClock(clk),
		usecase.WithLogger(logger.Logger),
	}

	if cache != nil {
		opts = append(opts, usecase.WithCache(cache))
	}

	var collector *metrics.Metrics
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		opts = append(opts, usecase.WithNotifier(collector))
	}

	urlUseCase := usecase.NewURLUseCase(
		repo,
		ratelimit.New(repo, cfg.RateLimit.Max, cfg.RateLimit.Window),
		shortcode.NewGenerator(),
		usecase.URLConfig{
			Expiration:            cfg.Shortener.Expiration,
			MaxAttempts:           cfg.Shortener.MaxAttempts,
			TrackingTimeout:       cfg.Tracking.Timeout,
			TransactionalTracking: cfg.Tracking.Transactional,
		},
		opts...,
	)

	reportUseCase := usecase.NewReportUseCase(repo, clk)

	routerCfg := delivery.Config{
		BaseURL:     cfg.Shortener.BaseURL,
		DefaultDays: cfg.Reports.DefaultDays,
		TopLimit:    cfg.Reports.TopLimit,
	}

	if collector == nil {
		return delivery.NewRouter(logger, routerCfg, urlUseCase, reportUseCase, nil), urlUseCase
	}

	return delivery.NewRouter(logger, routerCfg, urlUseCase, reportUseCase, collector), urlUseCase
}

// openRepository connects the configured storage driver. The returned func
// releases it.
func openRepository(ctx context.Context, cfg *config.Config) (repository, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		return memory.NewRepository(), func() {}, nil
	default:
		db, err := postgres.Connect(
			ctx,
			cfg.Postgres.DSN(),
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := postgres.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return postgres.NewRepository(db), func() { db.Close() }, nil
	}
}

// newLogger builds the request logger. Output goes to stdout and, when a file
// is configured, to a rotated log file as well.
func newLogger(cfg *config.Config) *httplog.Logger {
	var w io.Writer = os.Stdout

	if cfg.Log.File != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		})
	}

	return httplog.NewLogger("shortlink", httplog.Options{
		LogLevel:       httplog.LevelByName(cfg.Log.Level),
		JSON:           cfg.JSONLogs(),
		Concise:        cfg.Env == config.EnvDev,
		RequestHeaders: cfg.Env != config.EnvProd,
		Tags: map[string]string{
			"env": cfg.Env,
		},
		Writer: w,
	})
}
