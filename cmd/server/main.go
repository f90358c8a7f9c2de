package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsvm/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsvm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsvm/internal/server"
)

func main() {
	port := flag.String("port", "", "HTTP port (overrides PORT)")
	grpcPort := flag.String("grpc-port", "", "gRPC port (overrides GRPC_PORT)")
	noGRPC := flag.Bool("no-grpc", false, "Disable the gRPC listener")
	dev := flag.Bool("dev", false, "Development mode (colored logs, debug level)")
	configPath := flag.String("config", "", "YAML or TOML config file (overrides JSVM_CONFIG)")
	flag.Parse()

	if *configPath != "" {
		os.Setenv(config.FileEnv, *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *port != "" {
		cfg.Server.Port = *port
	}
	if *grpcPort != "" {
		cfg.GRPC.Port = *grpcPort
	}
	if *noGRPC {
		cfg.GRPC.Enabled = false
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)
	if runErr != nil {
		logger.Error("Server error", zap.Error(runErr))
	}
	if err := srv.Close(); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if runErr != nil {
		os.Exit(1)
	}
}
