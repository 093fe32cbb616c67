package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"schnitzel-auth/internal/domain"
)

// pgxQuerier es el subconjunto de pgxpool.Pool que usa el repositorio.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, name, email, password_hash, email_confirmed, reset_token, reset_token_expiration, created_at, updated_at`

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool pgxQuerier
	now  func() time.Time
}

func NewPgUserRepository(pool pgxQuerier) *PgUserRepository {
	return &PgUserRepository{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, email, password_hash, email_confirmed, reset_token, reset_token_expiration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		nullString(user.Email),
		user.PasswordHash,
		user.EmailConfirmed,
		nullString(user.ResetToken),
		user.ResetTokenExpiration,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err, "insert user", user.ID)
	}
	return nil
}

func (r *PgUserRepository) Save(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, email, password_hash, email_confirmed, reset_token, reset_token_expiration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			email_confirmed = CASE
				WHEN users.email IS NOT DISTINCT FROM EXCLUDED.email THEN users.email_confirmed OR EXCLUDED.email_confirmed
				ELSE EXCLUDED.email_confirmed
			END,
			reset_token = EXCLUDED.reset_token,
			reset_token_expiration = EXCLUDED.reset_token_expiration,
			updated_at = EXCLUDED.updated_at
	`
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		nullString(user.Email),
		user.PasswordHash,
		user.EmailConfirmed,
		nullString(user.ResetToken),
		user.ResetTokenExpiration,
		createdAt,
		r.now(),
	)
	if err != nil {
		return mapWriteError(err, "upsert user", user.ID)
	}
	return nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *PgUserRepository) GetByName(ctx context.Context, name string) (domain.User, error) {
	return r.getOne(ctx, "name", name)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *PgUserRepository) GetByResetToken(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, ErrNotFound
	}
	return r.getOne(ctx, "reset_token", token)
}

func (r *PgUserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return oops.With("operation", "delete user").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *PgUserRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_token = $2, reset_token_expiration = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, token, expiresAt, r.now())
	if err != nil {
		return oops.With("operation", "set reset token").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *PgUserRepository) ConfirmEmail(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET email_confirmed = TRUE, updated_at = $2
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, r.now())
	if err != nil {
		return oops.With("operation", "confirm email").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *PgUserRepository) ConsumeResetToken(ctx context.Context, id, token, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $3, reset_token = NULL, reset_token_expiration = NULL, updated_at = $4
		WHERE id = $1 AND reset_token = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, token, passwordHash, r.now())
	if err != nil {
		return oops.With("operation", "consume reset token").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RESET_TOKEN_NOT_FOUND").With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

// getOne busca por una columna fija; column nunca viene del usuario.
func (r *PgUserRepository) getOne(ctx context.Context, column, value string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	var (
		u          domain.User
		email      *string
		resetToken *string
	)
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&u.ID,
		&u.Name,
		&email,
		&u.PasswordHash,
		&u.EmailConfirmed,
		&resetToken,
		&u.ResetTokenExpiration,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, oops.Code("USER_NOT_FOUND").With("lookup", column).Wrap(ErrNotFound)
	}
	if err != nil {
		return domain.User{}, oops.With("operation", "select user").With("lookup", column).Wrap(err)
	}
	if email != nil {
		u.Email = *email
	}
	if resetToken != nil {
		u.ResetToken = *resetToken
	}
	return u, nil
}

func mapWriteError(err error, operation, id string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case "users_name_key":
			return oops.Code("USER_NAME_TAKEN").With("user_id", id).Wrap(ErrNameTaken)
		case "users_email_key":
			return oops.Code("USER_EMAIL_TAKEN").With("user_id", id).Wrap(ErrEmailTaken)
		}
	}
	return oops.With("operation", operation).With("user_id", id).Wrap(err)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
