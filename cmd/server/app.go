package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"doc-tracker/internal/api"
	"doc-tracker/internal/geo"
	"doc-tracker/internal/notify"
	"doc-tracker/internal/repository"
	"doc-tracker/internal/service"
	"doc-tracker/pkg/config"
	"doc-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// 选择在线状态存储：配置了 redis 就用 redis，否则落在数据库
func newPresenceStore(ctx context.Context, cfg config.Config) (repository.PresenceStore, func(), error) {
	if cfg.Redis.Addr == "" {
		return repository.NewPresenceRepository(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	ttl := time.Duration(cfg.Tracking.PresenceTTLSeconds) * time.Second
	return repository.NewRedisPresenceStore(client, ttl), func() { _ = client.Close() }, nil
}

func newExecutor(cfg config.NotificationConfig) *notify.Executor {
	timeout := time.Duration(cfg.SendTimeoutSeconds) * time.Second
	client := &http.Client{Timeout: timeout}
	return notify.NewExecutor(timeout,
		notify.NewEmailChannel(cfg.Email, client),
		notify.NewChatChannel(client),
		notify.NewCRMChannel(cfg.CRM, client),
	)
}

func runServer(ctx context.Context, withWorkers bool) error {
	cfg := config.GlobalConfig
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	presence, closePresence, err := newPresenceStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePresence()

	queue, err := notify.NewQueue(cfg.Notification.Queue)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.L.Warn("Failed to close notification queue", zap.Error(err))
		}
	}()

	provider := cfg.Notification.Queue.Provider
	if withWorkers || provider == "" || provider == "channel" {
		if err := queue.Start(ctx, newExecutor(cfg.Notification).Execute); err != nil {
			return fmt.Errorf("failed to start notification workers: %w", err)
		}
	}

	shares := repository.NewShareRepository()
	spaces := repository.NewSpaceRepository()
	viewers := repository.NewViewerRepository()
	analytics := repository.NewAnalyticsRepository()

	interactions := repository.NewInteractionRepository()
	engagement := service.NewEngagement(shares, analytics, viewers, interactions, presence, cfg.Tracking)
	dispatcher := notify.NewDispatcher(queue, engagement, notify.NewComposer(cfg.Notification.AppBaseURL))
	defer dispatcher.Wait()

	validator, err := service.NewEventValidator()
	if err != nil {
		return err
	}

	deps := service.TrackingDeps{
		Shares:     shares,
		Spaces:     spaces,
		Guard:      service.NewAccessGuard(spaces, dispatcher),
		Sessions:   service.NewSessionTracker(repository.NewSessionRepository(), viewers, shares, analytics, cfg.Tracking),
		Engagement: engagement,
		Ledger:     notify.NewDedupGuard(repository.NewLedgerRepository()),
		Notifier:   dispatcher,
		Validator:  validator,
		Config:     cfg.Tracking,
	}
	if cfg.Geo.Enabled {
		deps.Locator = geo.NewLocator(cfg.Geo)
	}

	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(api.Handlers{
		Tracking:  api.NewTrackingHandler(service.NewTrackingService(deps)),
		Spaces:    api.NewSpaceHandler(deps.Guard),
		Analytics: api.NewAnalyticsHandler(service.NewAnalyticsService(shares, viewers, analytics, interactions, engagement)),
		Users:     repository.NewUserRepository(),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr),
			zap.String("queueProvider", provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.L.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runWorker 只消费队列，用于 kafka / rabbitmq
func runWorker(ctx context.Context) error {
	cfg := config.GlobalConfig
	provider := cfg.Notification.Queue.Provider
	if provider == "" || provider == "channel" {
		return errors.New("the channel queue runs inside the server process, use 'serve' instead")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue, err := notify.NewQueue(cfg.Notification.Queue)
	if err != nil {
		return err
	}
	defer queue.Close()

	if err := queue.Start(ctx, newExecutor(cfg.Notification).Execute); err != nil {
		return fmt.Errorf("failed to start notification workers: %w", err)
	}
	logger.L.Info("Notification worker started", zap.String("provider", provider))
	<-ctx.Done()
	logger.L.Info("Notification worker stopping")
	return nil
}

func issueToken(cmd *cobra.Command, email string) error {
	auth := service.NewAuthService(repository.NewUserRepository())
	token, owner, err := auth.IssueOwnerToken(cmd.Context(), email)
	if err != nil {
		return fmt.Errorf("failed to issue token for %s: %w", email, err)
	}
	logger.L.Info("Issued owner token", zap.Uint("ownerID", owner.ID))
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
