package repository

import (
	"context"
	"errors"
	"time"

	"schnitzel-auth/internal/domain"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrNameTaken  = errors.New("user name already taken")
	ErrEmailTaken = errors.New("email already taken")
)

// UserRepository define el contrato de persistencia para usuarios.
//
// SetResetToken, ConfirmEmail y ConsumeResetToken son updates dirigidos sobre un
// solo registro. ConsumeResetToken es atomico: actualiza el hash y limpia el token
// solo si el token guardado sigue siendo el indicado, y devuelve ErrNotFound si no.
//
// Save reemplaza el registro completo. La confirmacion de correo se conserva
// mientras el correo no cambie.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	Save(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByName(ctx context.Context, name string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByResetToken(ctx context.Context, token string) (domain.User, error)
	Delete(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ConfirmEmail(ctx context.Context, id string) error
	ConsumeResetToken(ctx context.Context, id, token, passwordHash string) error
}
