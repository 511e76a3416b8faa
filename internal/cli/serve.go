package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"statusboard/internal/config"
	"statusboard/internal/handler"
	"statusboard/internal/httpserver"
	"statusboard/internal/narrative"
	"statusboard/internal/repository"
	"statusboard/internal/service/dashboard"
	"statusboard/internal/session"
	"statusboard/pkg/db"
	"statusboard/pkg/mq"
	pkgredis "statusboard/pkg/redis"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand runs the HTTP dashboard until SIGINT or SIGTERM.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, log, err := setup(opts)
	defer log.Sync()
	if err != nil {
		return err
	}

	log.Info("Starting statusboard...",
		zap.String("env", opts.Env),
		zap.String("port", cfg.Server.Port),
		zap.Int("projects", len(cfg.Projects)),
	)

	// DB
	if !cfg.DB.Configured() {
		log.Fatal("Database connection string is not configured; set DATABASE_URL or db.host")
	}
	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	repo := repository.NewProjectRepository(pool, log)

	if cfg.Narrative.APIToken == "" {
		log.Warn("HUGGINGFACE_API_TOKEN is not set; narrative generation is disabled")
	}
	generator := narrative.NewClient(cfg.Narrative.Endpoint, log)

	sessions, closeSessions, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	svc := dashboard.NewService(cfg.Projects, repo, generator, cfg.Narrative.APIToken, publisher, log)
	projectHandler := handler.NewProjectHandler(svc, sessions, log)
	router := httpserver.NewRouter(projectHandler, log, pool)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// 优雅退出处理
	log.Info("Shutting down statusboard gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	log.Info("statusboard shutdown complete")
	return nil
}

// newSessionStore uses Redis when an address is configured so drafts survive
// restarts and are shared between replicas.
func newSessionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Info("Sessions kept in memory", zap.Duration("ttl", cfg.Session.TTL))
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	}

	rdb, err := pkgredis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("Sessions kept in Redis", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Session.TTL))
	return session.NewRedisStore(rdb, cfg.Session.TTL, log), func() { _ = rdb.Close() }, nil
}

// newPublisher degrades to a no-op publisher when RabbitMQ is not configured
// or unreachable; events are best effort.
func newPublisher(cfg *config.Config, log *zap.Logger) (mq.EventPublisher, func()) {
	if cfg.MQ.URL == "" {
		return mq.NopPublisher{}, func() {}
	}
	p, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Warn("MQ unavailable, project events will not be published", zap.Error(err))
		return mq.NopPublisher{}, func() {}
	}
	log.Info("Publishing project events", zap.String("exchange", mq.ExchangeName))
	return p, p.Close
}
