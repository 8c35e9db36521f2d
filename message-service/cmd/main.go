package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weiawesome/wes-io-chat/message-service/internal/config"
	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/message-service/internal/filter"
	"github.com/weiawesome/wes-io-chat/message-service/internal/handler"
	"github.com/weiawesome/wes-io-chat/message-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/message-service/internal/publisher"
	"github.com/weiawesome/wes-io-chat/message-service/internal/ratelimit"
	"github.com/weiawesome/wes-io-chat/message-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/message-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

func main() {
	if err := run(); err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("message service exited")
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pkglog.Init(cfg.Log)
	l := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	// Initialize event bus
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("failed to connect to event bus: %w", err)
	}
	defer bus.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	pub := publisher.New(bus, m, cfg.Publish.Timeout)

	// Initialize repositories
	messageRepo := repository.NewGormMessageRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	settingsRepo := repository.NewGormSettingsRepository(db)
	accountRepo := repository.NewGormAccountRepository(db)

	// Initialize services
	contentFilter := filter.New(nil)
	messageService := service.NewMessageService(messageRepo, contentFilter, pub, m)
	moderationService := service.NewModerationService(userRepo, settingsRepo, contentFilter, pub, m)
	accountService := service.NewAccountService(accountRepo, userRepo, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := moderationService.LoadSensitiveWords(ctx); err != nil {
		return fmt.Errorf("failed to load sensitive words: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimit.Events, cfg.RateLimit.Window)
	go limiter.Run(ctx)

	authMiddleware := middleware.NewAuthMiddleware(tokens, userRepo)
	httpHandler := handler.NewHandler(
		messageService,
		moderationService,
		authMiddleware,
		limiter.Middleware(m.RateLimited.Inc),
		handler.AdminConfig{Username: cfg.Admin.Username, Token: cfg.Admin.Token},
	)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery(), pkglog.GinMiddleware(l))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpHandler.RegisterRoutes(r)
	handler.NewAuthHandler(accountService).RegisterRoutes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		l.Info().Str("address", server.Addr).Str("pubsub", cfg.PubSub.Driver).Msg("message service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var exitErr error
	select {
	case sig := <-quit:
		l.Info().Str("signal", sig.String()).Msg("shutting down message service")
	case err := <-serverErr:
		exitErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("server forced to shutdown")
	}
	return exitErr
}
