// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package office

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jurisdesk/jurisdesk/pkg/config"
	"github.com/jurisdesk/jurisdesk/pkg/viewstate"
	kvstore "github.com/jurisdesk/jurisdesk/storage/badger"
)

// Server owns the office service lifecycle: storage, router, change
// feed hub, and optional tracing.
type Server struct {
	cfg config.Config
	log *slog.Logger

	db            *kvstore.DB
	hub           *Hub
	router        *gin.Engine
	tracerCleanup func(context.Context)
}

// NewServer assembles the service from the configuration. A nil logger
// uses slog.Default().
func NewServer(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, log: logger}

	if cfg.Telemetry.TracingEnabled {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	storeCfg := kvstore.DefaultConfig()
	storeCfg.Path = cfg.Storage.Path
	storeCfg.InMemory = cfg.Storage.InMemory
	storeCfg.SyncWrites = cfg.Storage.SyncWrites
	storeCfg.Logger = logger
	db, err := kvstore.Open(storeCfg)
	if err != nil {
		s.shutdownTracer()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	s.db = db
	s.hub = NewHub(logger)

	handlers := NewHandlers(
		NewExpenseStore(db, logger),
		viewstate.NewManager(db, logger),
		db,
		s.hub,
		NewAuditTrail(db, logger),
		logger,
	)
	s.initRouter(handlers)
	return s, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a
// listener failure, then shuts down gracefully.
func (s *Server) Run() error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("office service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		s.log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) initRouter(h *Handlers) {
	if s.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.log))
	router.Use(otelgin.Middleware(s.cfg.Telemetry.ServiceName))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterRoutes(router.Group("/api/v1"), h)
	s.router = router
}

// requestLogger emits one structured access log line per request, so
// HTTP traffic follows the configured log format and destination.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}

// initTracer connects to the OTLP collector and installs a global
// tracer provider.
func (s *Server) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.cfg.Telemetry.OTLPEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(s.cfg.Telemetry.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)))

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := exporter.Shutdown(ctx); err != nil {
			s.log.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func (s *Server) shutdownTracer() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

func (s *Server) cleanup() {
	s.hub.Close()
	if err := s.db.Close(); err != nil {
		s.log.Warn("storage close error", "error", err)
	}
	s.shutdownTracer()
}
