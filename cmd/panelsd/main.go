package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/photo-panels/internal/app"
	"github.com/joseph-ayodele/photo-panels/internal/common"
	"github.com/joseph-ayodele/photo-panels/internal/daemon"
)

func main() {
	var (
		cfgFile = flag.String("config", "", "config file path (YAML)")
		inbox   = flag.String("inbox", "", "inbox directory (overrides config)")
		out     = flag.String("out", "", "output root (overrides config)")
		addr    = flag.String("grpc", "", "gRPC health listen address (overrides config)")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	logger := app.NewLogger(os.Stdout, true, *verbose)
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*cfgFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if *inbox != "" {
		cfg.Server.Inbox = *inbox
	}
	if *out != "" {
		cfg.Output.Dir = *out
	}
	if *addr != "" {
		cfg.Server.GRPCAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to wire pipeline", "error", err)
		os.Exit(2)
	}
	defer svc.Close()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	go func() {
		logger.Info("panelsd listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	d := daemon.New(daemon.Config{
		Inbox:        cfg.Server.Inbox,
		OutDir:       cfg.Output.Dir,
		Debounce:     cfg.Server.Debounce,
		Workers:      1,
		RunTimeout:   cfg.Server.RunTimeout,
		DrainTimeout: cfg.Server.DrainTimeout,
	}, svc.RunInto, healthServer, logger)

	if err := d.Serve(ctx); err != nil {
		logger.Error("daemon stopped", "error", err)
	}

	healthServer.Shutdown()
	stopped := make(chan struct{})
	go func() { grpcServer.GracefulStop(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		grpcServer.Stop()
	}
	logger.Info("panelsd stopped")
}
