package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"shortlink/pkg/config"
	"shortlink/pkg/logging"
	analytics "shortlink/services/analytics-service/service"
	"shortlink/services/api-gateway/handlers"
	"shortlink/services/api-gateway/router"
	"shortlink/services/url-service/engine"
)

func main() {
	configPath := flag.String("config", os.Getenv("SHORTLINK_CONFIG"), "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("api gateway failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("engine close", "error", err)
		}
	}()

	gin.SetMode(cfg.Server.Mode)
	h := handlers.New(eng.Service, cfg.Server.RequestTimeout, logging.Component(logger, "handler"))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(h, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpLis, grpcLis, err := listen(cfg.Addr(), cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("api gateway listening", "addr", httpLis.Addr().String(), "base_url", cfg.Server.BaseURL)
		if err := srv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcServer *grpc.Server
	if grpcLis != nil {
		grpcLogger := logging.Component(logger, "controller")
		grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(analytics.UnaryLogger(grpcLogger)))
		analytics.Register(grpcServer, analytics.NewServer(eng.Service, grpcLogger))
		reflection.Register(grpcServer)

		go func() {
			logger.Info("statistics grpc listening", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server stopped", "error", err)
	}

	logger.Info("shutting down api gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// listen binds every socket before anything starts serving, so a bad gRPC
// address fails startup without leaving the HTTP listener open. An empty
// grpcAddr yields a nil gRPC listener.
func listen(httpAddr, grpcAddr string) (net.Listener, net.Listener, error) {
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, nil, err
	}
	if grpcAddr == "" {
		return httpLis, nil, nil
	}

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		httpLis.Close()
		return nil, nil, err
	}
	return httpLis, grpcLis, nil
}
