package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gatekeeper/internal/api"
	"gatekeeper/internal/blob"
	"gatekeeper/internal/config"
	"gatekeeper/internal/upstream"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Конфиг: def → config.json → .env.<mode> → ENV → флаги
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}
	if err := cfg.RequireUpstreams(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Клиенты внешних сервисов: один http.Client на всех
	hc := upstream.NewHTTPClient(cfg.UpstreamTimeout)
	auth := upstream.NewAuthClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, hc)
	users := upstream.NewGraphQLClient(cfg.HasuraEndpoint, cfg.HasuraAdminSecret, hc)

	// 3. Хранилище файлов
	var store api.ObjectStore
	switch cfg.BlobDriver {
	case config.BlobLocal:
		store = blob.NewLocalStore(cfg.FilesRoot, cfg.PublicBaseURL)
	default:
		store = upstream.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, hc)
	}
	log.Info("starting gateway",
		zap.String("mode", cfg.Mode),
		zap.String("blob", cfg.BlobDriver),
		zap.String("supabase", cfg.SupabaseURL),
		zap.String("hasura", cfg.HasuraEndpoint),
	)

	// 4. HTTP до SIGINT/SIGTERM
	gw := api.NewGateway(cfg, log, auth, store, users)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.RunServer(ctx, net.JoinHostPort("", cfg.Port), api.NewRouter(gw), log); err != nil {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}
