package service

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose distingue tokens de sesion de tokens de confirmacion, para que
// uno no pueda usarse en lugar del otro.
type TokenPurpose string

const (
	PurposeSession           TokenPurpose = "session"
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
)

const defaultTokenTTL = time.Hour

// TokenSubject son los datos que se copian en el token al emitirlo. Name y
// Email son una foto del usuario en ese momento.
type TokenSubject struct {
	ID    string
	Name  string
	Email string
}

type Claims struct {
	UserID    string       `json:"uid"`
	Name      string       `json:"name,omitempty"`
	Email     string       `json:"email,omitempty"`
	TokenType TokenPurpose `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService emite y valida tokens JWT firmados con HS256. No guarda estado:
// la validez depende solo de firma, expiracion y reloj.
type JWTService struct {
	secret     []byte
	defaultTTL time.Duration
	issuer     string
	now        func() time.Time
}

func NewJWTService(secret, issuer string, defaultTTL time.Duration) (*JWTService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrConfiguration
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultTokenTTL
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "schnitzel-auth"
	}
	return &JWTService{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		issuer:     issuer,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue firma un token para subject. ttl <= 0 usa el TTL por defecto.
func (s *JWTService) Issue(purpose TokenPurpose, subject TokenSubject, ttl time.Duration) (string, time.Time, error) {
	if s == nil || len(s.secret) == 0 {
		return "", time.Time{}, ErrConfiguration
	}
	if strings.TrimSpace(subject.ID) == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID:    subject.ID,
		Name:      subject.Name,
		Email:     subject.Email,
		TokenType: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify valida firma, expiracion y forma de los claims. Cualquier fallo se
// reporta como ErrInvalidToken, sin distinguir expirado de falsificado.
func (s *JWTService) Verify(tokenString string, purpose TokenPurpose) (Claims, error) {
	if s == nil || len(s.secret) == 0 {
		return Claims{}, ErrConfiguration
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrInvalidToken
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.TokenType != purpose || !s.isValidClaims(claims) {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	return claims.Subject == claims.UserID
}
