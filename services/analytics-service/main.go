package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"shortlink/pkg/config"
	"shortlink/pkg/logging"
	"shortlink/services/analytics-service/service"
	"shortlink/services/url-service/engine"
)

const defaultAddr = ":50052"

func main() {
	configPath := flag.String("config", os.Getenv("SHORTLINK_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	addr := cfg.Server.GRPCAddr
	if addr == "" {
		addr = defaultAddr
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}

	grpcLogger := logging.Component(logger, "controller")
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(service.UnaryLogger(grpcLogger)))
	service.Register(grpcServer, service.NewServer(eng.Service, grpcLogger))
	reflection.Register(grpcServer)

	go func() {
		logger.Info("analytics service listening", "addr", addr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down analytics service")
	grpcServer.GracefulStop()
}
