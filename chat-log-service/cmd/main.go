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

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/cache"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/cassandra"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/config"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/consumer"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/handler"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/segment"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/service"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/store"
	"github.com/weiawesome/wes-io-chat/pkg/events"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("chat log service exited")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize sinks
	var (
		sinks  store.Multi
		reader store.Reader
		sink   *segment.Sink
	)
	defer func() {
		if err := sinks.Close(); err != nil {
			l.Warn().Err(err).Msg("failed to close log sinks")
		}
	}()

	for _, name := range cfg.Store.Enabled() {
		switch name {
		case config.SinkCassandra:
			client, err := cassandra.NewClient(cfg.Cassandra)
			if err != nil {
				return fmt.Errorf("failed to connect to cassandra: %w", err)
			}
			defer client.Close()
			cs := cassandra.NewStore(client)
			sinks = append(sinks, cs)
			reader = cs
			l.Info().Str("keyspace", cfg.Cassandra.Keyspace).Strs("hosts", cfg.Cassandra.Hosts).Msg("connected to cassandra")
		case config.SinkObject:
			st, err := storage.New(ctx, cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to create object storage: %w", err)
			}
			sink = segment.NewSink(st, cfg.Segment)
			sinks = append(sinks, sink)
			if reader == nil {
				reader = sink
			}
			l.Info().Str("driver", cfg.Storage.Driver).Msg("segment sink enabled")
		}
	}
	if sink != nil {
		go sink.Run(ctx)
	}

	// Initialize audit query cache
	var recordsCache cache.RecordsCache = cache.Nop{}
	if cfg.Cache.Address != "" {
		rc, err := cache.NewRedisRecordsCache(cfg.Cache)
		if err != nil {
			return fmt.Errorf("failed to connect to cache: %w", err)
		}
		recordsCache = rc
	}
	defer recordsCache.Close()

	// Initialize event bus
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("failed to connect to event bus: %w", err)
	}
	defer bus.Close()

	cons := consumer.New(bus, sinks, events.NewLedger(cfg.Consumer.LedgerSize), m, cfg.Consumer.Group, cfg.Consumer.Buffer)
	if err := cons.Start(ctx); err != nil {
		return err
	}

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- cons.Run(ctx)
	}()

	queryService := service.NewQueryService(reader, recordsCache, cfg.Cache.TTL, m)
	httpHandler := handler.NewHandler(queryService)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery(), pkglog.GinMiddleware(l))

	r.GET("/health", func(c *gin.Context) {
		if err := bus.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "bus unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		l.Info().Str("address", server.Addr).Str("pubsub", cfg.PubSub.Driver).Strs("sinks", cfg.Store.Enabled()).Msg("chat log service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var exitErr error
	select {
	case sig := <-quit:
		l.Info().Str("signal", sig.String()).Msg("shutting down chat log service")
	case err := <-consumerDone:
		exitErr = err
		consumerDone = nil
	case err := <-serverErr:
		exitErr = fmt.Errorf("http server: %w", err)
	}

	cancel()
	if consumerDone != nil {
		select {
		case <-consumerDone:
		case <-time.After(cfg.Server.ShutdownTimeout):
			l.Warn().Msg("consumer shutdown timed out")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("server forced to shutdown")
	}
	return exitErr
}
