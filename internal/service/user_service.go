package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schnitzel-auth/internal/domain"
	"schnitzel-auth/internal/repository"
)

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
	hasher PasswordHasher
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger: logger,
		users:  users,
		hasher: hasher,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register crea un usuario con el correo sin confirmar. El nombre distingue
// mayusculas; el correo es opcional pero unico si esta presente.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil || s.hasher == nil {
		return domain.User{}, ErrConfiguration
	}

	name := strings.TrimSpace(input.Name)
	if name == "" || name != input.Name {
		return domain.User{}, ErrInvalidName
	}
	emailAddr := normalizeEmail(input.Email)

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        emailAddr,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrNameTaken):
			return domain.User{}, ErrNameTaken
		case errors.Is(err, repository.ErrEmailTaken):
			return domain.User{}, ErrEmailTaken
		}
		s.logger.Warn("create user failed", zap.Error(err))
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, ErrConfiguration
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// UpdateInput lista los campos editables. Un campo nil no se toca.
type UpdateInput struct {
	Name  *string
	Email *string
}

// Update cambia nombre y/o correo. Un correo distinto vuelve a quedar sin
// confirmar y descarta cualquier reset pendiente, que apuntaba a la casilla
// anterior.
func (s *UserService) Update(ctx context.Context, id string, input UpdateInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, ErrConfiguration
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	changed := false
	if input.Name != nil && *input.Name != user.Name {
		name := strings.TrimSpace(*input.Name)
		if name == "" || name != *input.Name {
			return domain.User{}, ErrInvalidName
		}
		user.Name = name
		changed = true
	}
	if input.Email != nil {
		if emailAddr := normalizeEmail(*input.Email); emailAddr != user.Email {
			user.Email = emailAddr
			user.EmailConfirmed = false
			user.ResetToken = ""
			user.ResetTokenExpiration = nil
			changed = true
		}
	}
	if !changed {
		return user, nil
	}

	if err := s.users.Save(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrNameTaken):
			return domain.User{}, ErrNameTaken
		case errors.Is(err, repository.ErrEmailTaken):
			return domain.User{}, ErrEmailTaken
		}
		s.logger.Warn("update user failed", zap.String("user_id", id), zap.Error(err))
		return domain.User{}, err
	}
	return s.Get(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if s.users == nil {
		return ErrConfiguration
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
