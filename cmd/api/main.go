package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"schnitzel-auth/internal/app"
	"schnitzel-auth/internal/config"
	apihttp "schnitzel-auth/internal/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err), zap.String("backend", cfg.StoreBackend))
	}
	defer store.Close()

	sender := app.NewEmailSender(cfg, logger)
	svcs, err := app.NewServices(cfg, logger, store.Users, sender)
	if err != nil {
		logger.Fatal("init services", zap.Error(err))
	}

	userHandler := apihttp.NewUserHandler(logger, svcs.Users, svcs.Auth)
	emailHandler := apihttp.NewEmailHandler(logger, svcs.Tokens)
	router := apihttp.NewRouter(logger, svcs.Auth, userHandler, emailHandler, store.Ping)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err), zap.String("addr", server.Addr))
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("backend", cfg.StoreBackend))

	if err := serve(ctx, server, ln, logger, 10*time.Second); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
