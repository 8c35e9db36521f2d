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

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/auth"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/config"
	gatewaygrpc "github.com/weiawesome/wes-io-chat/gateway-service/internal/grpc"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/handler"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/health"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/relay"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/events"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

func main() {
	if err := run(); err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("gateway service exited")
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
	l := pkglog.L().With().Str(pkglog.FieldInstance, cfg.Instance.ID).Logger()

	l.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Str("driver", cfg.PubSub.Driver).Msg("starting gateway service")

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, 0, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	// Initialize event bus
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("failed to connect to event bus: %w", err)
	}
	defer bus.Close()

	var reg registry.Registry = registry.NopRegistry{}
	if cfg.Registry.Address != "" {
		redisReg, err := registry.NewRedisRegistry(cfg.Registry)
		if err != nil {
			l.Warn().Err(err).Msg("instance registry disabled")
		} else {
			defer redisReg.Close()
			reg = redisReg
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	state := health.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Hub
	wsHub := hub.NewHub(m)
	go wsHub.Run(ctx)

	rl := relay.New(bus, wsHub, events.NewLedger(cfg.Relay.LedgerSize), m, cfg.Relay.BusBuffer)
	gateway := service.NewGatewayService(wsHub, rl, state, reg, registry.Instance{
		ID:          cfg.Instance.ID,
		HTTPAddress: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		GRPCAddress: cfg.GRPC.AdvertiseAddress,
		StartedAt:   time.Now().UTC(),
	})

	// The bus must be reachable before any connection is accepted.
	if err := gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	grpcServer, err := gatewaygrpc.StartGRPCServer(grpcAddr, state, l)
	if err != nil {
		return fmt.Errorf("failed to start gRPC server: %w", err)
	}
	defer grpcServer.GracefulStop()

	wsHandler := handler.NewWSHandler(wsHub, auth.NewAuthenticator(tokens), state, m, cfg.WebSocket)

	router := mux.NewRouter()
	router.Use(pkglog.HTTPMiddleware(l))
	wsHandler.RegisterRoutes(router)
	handler.NewInstancesHandler(reg).RegisterRoutes(router)
	router.HandleFunc("/healthz", state.LiveHandler).Methods(http.MethodGet)
	router.HandleFunc("/readyz", state.ReadyHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		l.Info().Str("address", server.Addr).Msg("gateway service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- gateway.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var exitErr error
	select {
	case sig := <-quit:
		l.Info().Str("signal", sig.String()).Msg("shutting down gateway service")
	case err := <-serverErr:
		exitErr = fmt.Errorf("http server: %w", err)
	case err := <-runErr:
		exitErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := gateway.Stop(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("failed to close sessions")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	if exitErr == nil {
		l.Info().Msg("gateway service stopped")
	}
	return exitErr
}
