// Package app arma las dependencias compartidas por los binarios.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"schnitzel-auth/internal/config"
	"schnitzel-auth/internal/db"
	"schnitzel-auth/internal/email"
	"schnitzel-auth/internal/repository"
	"schnitzel-auth/internal/service"
)

// Services agrupa los servicios construidos a partir de la configuracion.
type Services struct {
	Users  *service.UserService
	Auth   *service.AuthService
	Tokens *service.TokenService
}

// Store es el backend abierto: el repositorio, un chequeo de salud para
// /healthz y el cierre de conexiones.
type Store struct {
	Users repository.UserRepository
	Ping  func(ctx context.Context) error
	Close func()
}

// OpenStore abre el backend configurado en STORE_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return nil, err
			}
			logger.Info("migrations applied")
		}
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		return &Store{
			Users: repository.NewPgUserRepository(pool),
			Ping:  func(ctx context.Context) error { return db.Ping(ctx, pool) },
			Close: pool.Close,
		}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(ctxPing).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return &Store{
			Users: repository.NewRedisUserRepository(client, cfg.RedisPrefix),
			Ping:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
			Close: func() { _ = client.Close() },
		}, nil

	case config.BackendMemory:
		logger.Warn("using in-memory user store, data is lost on restart")
		return &Store{
			Users: repository.NewMemoryUserRepository(),
			Ping:  func(context.Context) error { return nil },
			Close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// NewEmailSender devuelve un sender SMTP si SMTP_HOST esta configurado y uno
// deshabilitado si no.
func NewEmailSender(cfg *config.Config, logger *zap.Logger) email.Sender {
	if cfg.SMTPHost == "" {
		return email.NewDisabledSender("email sender not configured")
	}
	sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
	if err != nil {
		logger.Warn("smtp sender init failed", zap.Error(err))
		return email.NewDisabledSender(err.Error())
	}
	return sender
}

// NewServices construye los servicios del dominio. Falla si falta el secreto de
// firma.
func NewServices(cfg *config.Config, logger *zap.Logger, users repository.UserRepository, sender email.Sender) (*Services, error) {
	jwtSvc, err := service.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrMissingSigningSecret, err)
	}
	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	tokens := service.NewTokenService(logger, users, hasher, jwtSvc, sender, service.TokenServiceConfig{
		AppURL:          cfg.AppURL,
		ConfirmationTTL: cfg.ConfirmationTTL,
		ResetTTL:        cfg.ResetTokenTTL,
	})
	return &Services{
		Users:  service.NewUserService(logger, users, hasher),
		Auth:   service.NewAuthService(logger, users, hasher, jwtSvc, cfg.JWTTTL),
		Tokens: tokens,
	}, nil
}
