package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"tranchepool/config"
	"tranchepool/core/events"
	"tranchepool/native/pool"
	"tranchepool/observability"
	"tranchepool/observability/logging"
	"tranchepool/rpc"
	"tranchepool/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	var logWriter io.Writer
	if cfg.LogFile != "" {
		logWriter = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    64, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	logger := logging.Setup(logWriter, "tranchepoold", cfg.Environment)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	store := storage.NewStore(db)

	engine := pool.NewEngine()
	engine.SetState(store.State())
	engine.SetTokens(store.Tokens())
	engine.SetEmitter(observability.NewMetricsEmitter(events.NoopEmitter{}))

	server := rpc.NewServer(engine, store, rpc.ServerConfig{
		AdminToken:     cfg.AdminToken,
		AdminJWTSecret: cfg.AdminJWTSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, logger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()
	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("starting metrics server", "addr", cfg.MetricsAddress)
			metricsServer := &http.Server{
				Addr:              cfg.MetricsAddress,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh <- metricsServer.ListenAndServe()
		}()
	}

	logger.Info("daemon started",
		"network", cfg.NetworkName,
		"rpc", cfg.RPCAddress,
		"data_dir", cfg.DataDir,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server stopped", "error", err)
		db.Close()
		os.Exit(1)
	}
}
