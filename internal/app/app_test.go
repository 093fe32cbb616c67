package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schnitzel-auth/internal/config"
	"schnitzel-auth/internal/email"
	"schnitzel-auth/internal/repository"
	"schnitzel-auth/internal/service"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreBackend:    config.BackendMemory,
		JWTSecret:       "secret",
		JWTIssuer:       "test",
		JWTTTL:          time.Hour,
		ConfirmationTTL: time.Hour,
		ResetTokenTTL:   time.Hour,
		BcryptCost:      4,
		AppURL:          "http://localhost:8080",
	}
}

func TestOpenStore_Memory(t *testing.T) {
	store, err := OpenStore(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &repository.MemoryUserRepository{}, store.Users)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = "mongo"
	_, err := OpenStore(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewEmailSender_DisabledWithoutHost(t *testing.T) {
	sender := NewEmailSender(memoryConfig(), zap.NewNop())
	err := sender.Send(context.Background(), "a@x.com", "s", "b")
	assert.True(t, errors.Is(err, email.ErrDisabled))
}

func TestNewServices(t *testing.T) {
	cfg := memoryConfig()
	store := repository.NewMemoryUserRepository()
	svcs, err := NewServices(cfg, zap.NewNop(), store, email.NewDisabledSender(""))
	require.NoError(t, err)

	_, err = svcs.Users.Register(context.Background(), service.RegisterInput{Name: "alice", Password: "secret1"})
	require.NoError(t, err)
	res, err := svcs.Auth.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	cfg.JWTSecret = ""
	_, err = NewServices(cfg, zap.NewNop(), store, nil)
	assert.ErrorIs(t, err, config.ErrMissingSigningSecret)
}
