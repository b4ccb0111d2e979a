// Command retainiq 提供客户流失预测的 HTTP 服务与看板。
//
// 启动时加载 feature_meta.json / feature_scaler.json / model.json，任一必需产物
// 不可用时直接退出；运行中收到 SIGHUP 重新加载产物，SIGINT/SIGTERM 优雅退出。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rushteam/retainiq/artifact"
	"github.com/rushteam/retainiq/config"
	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/feast"
	"github.com/rushteam/retainiq/predictor"
	"github.com/rushteam/retainiq/server"
	"github.com/rushteam/retainiq/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("RETAINIQ_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "retainiq: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()

	var artifactStore core.Store
	if cfg.Redis.Addr != "" {
		rs, err := store.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rs.Close()
		artifactStore = rs
		logger.Info("artifact store connected", "backend", rs.Name(), "addr", cfg.Redis.Addr)
	}

	p, err := predictor.Load(ctx, predictor.Options{
		Fetcher:      artifact.NewRouter(cfg.Artifacts.HTTPTimeout, artifactStore),
		SchemaSource: cfg.Artifacts.Schema,
		ModelSource:  cfg.Artifacts.Model,
		ScalerSource: cfg.Artifacts.Scaler,
		Rules:        cfg.RiskFactors,
		TopK:         cfg.Inference.TopK,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("artifacts unavailable, refusing to serve", "error", err, "startup", core.IsStartupError(err))
		return err
	}
	if !p.Info().Calibrated {
		logger.Warn("running with approximate standardization, predictions are flagged uncalibrated")
	}

	opts := []server.Option{server.WithLogger(logger)}
	if cfg.Feast.Endpoint != "" {
		clientOpts := []feast.ClientOption{feast.WithTimeout(cfg.Feast.Timeout)}
		if cfg.Feast.Token != "" {
			clientOpts = append(clientOpts, feast.WithAuth(&feast.AuthConfig{Type: "static", Token: cfg.Feast.Token, TLS: true}))
		}
		client, err := feast.NewGrpcClient(cfg.Feast.Endpoint, cfg.Feast.Project, clientOpts...)
		if err != nil {
			return fmt.Errorf("feast client: %w", err)
		}
		defer client.Close()
		var profiles core.ProfileSource = feast.NewProfileSource(client, cfg.Feast.Project, cfg.Feast.FeatureView)
		if cfg.Feast.CacheTTL > 0 {
			cached := feast.NewCachedProfileSource(profiles, cfg.Feast.CacheSize, cfg.Feast.CacheTTL)
			defer cached.Close()
			profiles = cached
		}
		opts = append(opts, server.WithProfileSource(profiles))
		logger.Info("customer lookup enabled", "endpoint", cfg.Feast.Endpoint, "feature_view", cfg.Feast.FeatureView)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(p, opts...).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-sigCtx.Done():
				return
			case <-hup:
				logger.Info("reloading artifacts")
				// 失败时保留当前产物继续服务
				_ = p.Reload(sigCtx)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failure", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
