package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"schnitzel-auth/internal/repository"
)

// LoginResult es lo que recibe el cliente tras un login correcto.
type LoginResult struct {
	SubjectID string
	Token     string
	ExpiresAt time.Time
}

// AuthService verifica credenciales y emite tokens de sesion.
type AuthService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	hasher     PasswordHasher
	tokens     *JWTService
	sessionTTL time.Duration

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens *JWTService, sessionTTL time.Duration) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger:     logger,
		users:      users,
		hasher:     hasher,
		tokens:     tokens,
		sessionTTL: sessionTTL,
	}
}

// Login busca al usuario por nombre y compara la contraseña. Usuario inexistente
// y contraseña incorrecta son errores distintos aqui; ambos envuelven
// ErrAuthentication.
func (s *AuthService) Login(ctx context.Context, name, password string) (LoginResult, error) {
	if s.users == nil || s.hasher == nil || s.tokens == nil {
		return LoginResult{}, ErrConfiguration
	}

	user, err := s.users.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Mismo costo que una contraseña incorrecta.
			s.hasher.Verify(password, s.timingHash())
			recordLogin(resultRejected)
			return LoginResult{}, ErrUserNotFound
		}
		recordLogin(resultError)
		s.logger.Warn("login lookup failed", zap.Error(err))
		return LoginResult{}, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		recordLogin(resultRejected)
		return LoginResult{}, ErrBadCredentials
	}

	token, expiresAt, err := s.tokens.Issue(PurposeSession, TokenSubject{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}, s.sessionTTL)
	if err != nil {
		recordLogin(resultError)
		return LoginResult{}, err
	}

	recordLogin(resultOK)
	return LoginResult{SubjectID: user.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// timingHash devuelve un hash descartable con el costo del hasher configurado.
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("timing-only-password")
		if err != nil {
			s.logger.Warn("dummy hash failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Authenticate valida un token de sesion y devuelve el id del usuario. No consulta
// el repositorio.
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := s.AuthenticateClaims(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *AuthService) AuthenticateClaims(token string) (Claims, error) {
	if s.tokens == nil {
		return Claims{}, ErrConfiguration
	}
	claims, err := s.tokens.Verify(token, PurposeSession)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return Claims{}, err
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return claims, nil
}
