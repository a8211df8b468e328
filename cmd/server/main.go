package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/console/internal/server"
	"github.com/GriffinCanCode/AgentOS/console/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse flags
	configFile := flag.String("config", "", "TOML or YAML config file")
	port := flag.String("port", "", "Server port")
	host := flag.String("host", "", "Server host")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dev := flag.Bool("dev", false, "Development mode (console logs, debug level)")
	noCapture := flag.Bool("no-capture", false, "Do not redirect fds 1 and 2")
	usePTY := flag.Bool("pty", false, "Capture through a pseudo-terminal")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if *noCapture {
		cfg.Runtime.CaptureFds = false
	}
	if *usePTY {
		cfg.Runtime.CapturePTY = true
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	srv, err := server.New(cfg, logger, metrics)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully...", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// newLogger writes to a duplicate of the original stderr so log lines are
// not captured as cell output once fd 2 is redirected.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Development = cfg.Logging.Development
	if !cfg.Runtime.CaptureFds {
		return logging.New(logCfg)
	}

	stderr, err := watcher.DupFile(2, "stderr")
	if err != nil {
		return logging.New(logCfg)
	}
	return logging.NewWithWriter(logCfg, zapcore.AddSync(stderr))
}
