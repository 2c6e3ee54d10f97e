package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/auth"
	"timed-quiz-service/internal/broadcast"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/postgres"
	redisinfra "timed-quiz-service/internal/infra/redis"
	"timed-quiz-service/internal/infra/storage"
	"timed-quiz-service/internal/logging"
	"timed-quiz-service/internal/metrics"
	transport "timed-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.File)
}

func tokenTTL(cfg config.Config) time.Duration {
	return config.Duration(cfg.Auth.TokenTTL, 24*time.Hour)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) must be set")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store  app.Store
		loader memory.QuestionLoader
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
		db := postgres.Open(cfg.Postgres.URL)
		defer db.Close()
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		store = postgres.NewStore(db)
		loader = postgres.NewQuestionLoader(pool)
	} else {
		logger.Warn("postgres not configured, records are kept in memory only")
		mem := memory.NewStore()
		store = mem
		loader = mem
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	cacheTTL := config.Duration(cfg.Quiz.QuestionCacheTTL, 10*time.Minute)
	var (
		bank     app.QuestionBank
		presence interface {
			broadcast.Presence
			transport.LiveClients
		}
	)
	if redisClient != nil {
		bank = redisinfra.NewQuestionCache(redisClient, loader, cacheTTL)
		presence = redisinfra.NewPresence(redisClient, config.Duration(cfg.Redis.TTL, 2*time.Minute))
	} else {
		bank = memory.NewQuestionCache(loader, cacheTTL)
		presence = memory.NewPresence()
	}

	m := metrics.New()
	hub := broadcast.NewHub(
		broadcast.WithHeartbeat(
			config.Duration(cfg.Heartbeat.Interval, 30*time.Second),
			config.Duration(cfg.Heartbeat.Timeout, 65*time.Second),
		),
		broadcast.WithLogger(logger.Named("broadcast")),
		broadcast.WithMetrics(m),
		broadcast.WithPresence(presence),
	)

	images, uploadsDir, err := newImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	service := app.NewQuizService(store, bank, hub,
		app.WithLogger(logger.Named("quiz")),
		app.WithMetrics(m),
		app.WithQuizDuration(config.Duration(cfg.Quiz.Duration, 0)),
		app.WithImageStore(images),
	)
	if _, err := service.EnsureSettings(ctx); err != nil {
		return err
	}
	if err := service.Resume(ctx); err != nil {
		return err
	}
	defer service.Stop()

	authSvc := auth.NewService(store, auth.NewTokens(cfg.Auth.JWTSecret, tokenTTL(cfg)), logger.Named("auth"))

	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(transport.Deps{
		Quiz:       service,
		Auth:       authSvc,
		WS:         transport.NewWSHandler(service, hub, logger.Named("ws")),
		Metrics:    m,
		Logger:     logger.Named("http"),
		Presence:   presence,
		UploadsDir: uploadsDir,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newImageStore(ctx context.Context, cfg config.Config) (app.ImageStore, string, error) {
	switch cfg.Storage.Type {
	case "minio":
		store, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
			PublicURL: cfg.Storage.MinioPublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case "local":
		local := storage.NewLocal(cfg.Storage.LocalPath, "/uploads")
		return local, local.Dir(), nil
	}
	return nil, "", fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
}
