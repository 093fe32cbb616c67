package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"schnitzel-auth/internal/domain"
	"schnitzel-auth/internal/email"
	"schnitzel-auth/internal/repository"
)

// TokenServiceConfig agrupa TTLs y la URL publica usada en los enlaces.
type TokenServiceConfig struct {
	AppURL          string
	ConfirmationTTL time.Duration
	ResetTTL        time.Duration
}

const defaultResetTTL = time.Hour

// TokenService maneja los tokens de un solo uso: confirmacion de correo (firmado)
// y reset de contraseña (opaco, guardado en el usuario).
type TokenService struct {
	logger *zap.Logger
	users  repository.UserRepository
	hasher PasswordHasher
	tokens *JWTService
	sender email.Sender
	cfg    TokenServiceConfig

	now           func() time.Time
	generateToken func() (string, error)
}

func NewTokenService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens *JWTService, sender email.Sender, cfg TokenServiceConfig) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = defaultResetTTL
	}
	cfg.AppURL = strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/")
	return &TokenService{
		logger:        logger,
		users:         users,
		hasher:        hasher,
		tokens:        tokens,
		sender:        sender,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
		generateToken: GenerateOpaqueToken,
	}
}

// IssueConfirmationToken firma un token de confirmacion cuyo unico dato es el id.
func (s *TokenService) IssueConfirmationToken(subjectID string, ttl time.Duration) (string, error) {
	if s.tokens == nil {
		return "", ErrConfiguration
	}
	if ttl <= 0 {
		ttl = s.cfg.ConfirmationTTL
	}
	token, _, err := s.tokens.Issue(PurposeEmailConfirmation, TokenSubject{ID: subjectID}, ttl)
	return token, err
}

// SendConfirmation emite un token de confirmacion y lo envia al correo del usuario.
func (s *TokenService) SendConfirmation(ctx context.Context, subjectID string) (err error) {
	defer func() { recordTokenOp("send_confirmation", err) }()

	if s.tokens == nil {
		return ErrConfiguration
	}
	user, err := s.loadUser(ctx, subjectID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(user.Email) == "" {
		return ErrNoEmail
	}

	ttl := s.cfg.ConfirmationTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	token, expiresAt, err := s.tokens.Issue(PurposeEmailConfirmation, TokenSubject{ID: user.ID}, ttl)
	if err != nil {
		return err
	}

	msg, err := email.RenderConfirmation(email.LinkData{
		Name:      user.Name,
		Link:      s.link("/api/email/confirm-email", token),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	return s.deliver(ctx, "confirmation", user.Email, msg)
}

// ConfirmEmail marca el correo como confirmado. Confirmar dos veces no es error.
func (s *TokenService) ConfirmEmail(ctx context.Context, token string) (err error) {
	defer func() { recordTokenOp("confirm_email", err) }()

	if s.tokens == nil {
		return ErrConfiguration
	}
	claims, err := s.tokens.Verify(token, PurposeEmailConfirmation)
	if err != nil {
		return err
	}
	if err := s.users.ConfirmEmail(ctx, claims.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Warn("confirm email failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return err
	}
	return nil
}

// RequestReset genera un token de reset, lo guarda con su expiracion y envia el
// enlace. Un pedido nuevo reemplaza al anterior. Si el envio falla el token
// queda guardado y se devuelve ErrDelivery.
func (s *TokenService) RequestReset(ctx context.Context, emailAddr string) (err error) {
	defer func() { recordTokenOp("request_reset", err) }()

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrNotFound
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	token, err := s.generateToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.cfg.ResetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Warn("store reset token failed", zap.String("user_id", user.ID), zap.Error(err))
		return err
	}

	msg, err := email.RenderReset(email.LinkData{
		Name:      user.Name,
		Link:      s.link("/reset-password", token),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	return s.deliver(ctx, "reset", user.Email, msg)
}

// ValidateResetToken comprueba un token de reset sin consumirlo.
func (s *TokenService) ValidateResetToken(ctx context.Context, token string) (subjectID string, err error) {
	defer func() { recordTokenOp("validate_reset", err) }()

	user, err := s.lookupResetToken(ctx, token)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ResetPassword consume el token y cambia la contraseña en una sola operacion
// atomica del repositorio. Token inexistente, expirado o ya usado dan
// ErrInvalidToken.
func (s *TokenService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { recordTokenOp("reset_password", err) }()

	if s.hasher == nil {
		return ErrConfiguration
	}
	user, err := s.lookupResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.ConsumeResetToken(ctx, user.ID, token, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		s.logger.Warn("consume reset token failed", zap.String("user_id", user.ID), zap.Error(err))
		return err
	}
	return nil
}

// lookupResetToken aplica la regla de expiracion: el token vale mientras
// now < expiracion.
func (s *TokenService) lookupResetToken(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, ErrInvalidToken
	}
	user, err := s.users.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrInvalidToken
		}
		return domain.User{}, err
	}
	if !user.HasPendingReset() || user.ResetToken != token || !s.now().Before(*user.ResetTokenExpiration) {
		return domain.User{}, ErrInvalidToken
	}
	return user, nil
}

func (s *TokenService) loadUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *TokenService) deliver(ctx context.Context, kind, to string, msg email.Rendered) error {
	if s.sender == nil {
		recordDelivery(kind, ErrDelivery)
		return ErrDelivery
	}
	err := s.sender.Send(ctx, to, msg.Subject, msg.HTML)
	recordDelivery(kind, err)
	if err != nil {
		s.logger.Warn("send email failed", zap.String("kind", kind), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

func (s *TokenService) link(path, token string) string {
	return s.cfg.AppURL + path + "?token=" + url.QueryEscape(token)
}
