package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"schnitzel-auth/internal/repository"
)

func TestUserService_Register(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.users.Register(context.Background(), RegisterInput{
		Name:     "alice",
		Email:    " Alice@X.com ",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || user.Name != "alice" || user.Email != "alice@x.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.EmailConfirmed {
		t.Fatalf("expected new user to be unconfirmed")
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret1" {
		t.Fatalf("expected password to be hashed")
	}
	if !env.hasher.Verify("secret1", user.PasswordHash) {
		t.Fatalf("expected stored hash to verify")
	}
}

func TestUserService_RegisterConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com", "secret1")

	tests := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{name: "name taken", input: RegisterInput{Name: "alice", Password: "p"}, want: ErrNameTaken},
		{name: "email taken", input: RegisterInput{Name: "bob", Email: "ALICE@x.com", Password: "p"}, want: ErrEmailTaken},
		{name: "empty name", input: RegisterInput{Name: "", Password: "p"}, want: ErrInvalidName},
		{name: "padded name", input: RegisterInput{Name: " carol", Password: "p"}, want: ErrInvalidName},
		{name: "empty password", input: RegisterInput{Name: "carol"}, want: ErrEmptyPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Register(context.Background(), tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := env.users.Register(context.Background(), RegisterInput{Name: "Alice", Password: "p"}); err != nil {
		t.Fatalf("expected names to be case sensitive, got %v", err)
	}
}

func TestUserService_GetDelete(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	user, err := env.users.Get(ctx, id)
	if err != nil || user.Name != "alice" {
		t.Fatalf("expected alice, got %+v, %v", user, err)
	}
	if err := env.users.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.users.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := env.users.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "alice", "secret1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected deleted user to be unable to log in, got %v", err)
	}
}

func strPtr(s string) *string { return &s }

func TestUserService_Update(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice", "alice@x.com", "secret1")
	env.register(t, "bob", "bob@x.com", "secret1")
	ctx := context.Background()

	if err := env.repo.ConfirmEmail(ctx, id); err != nil {
		t.Fatalf("confirm email: %v", err)
	}

	user, err := env.users.Update(ctx, id, UpdateInput{Name: strPtr("alice2")})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if user.Name != "alice2" || !user.EmailConfirmed {
		t.Fatalf("expected rename to keep confirmation, got %+v", user)
	}
	if _, err := env.auth.Login(ctx, "alice2", "secret1"); err != nil {
		t.Fatalf("expected login with new name, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "alice", "secret1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected old name gone, got %v", err)
	}

	user, err = env.users.Update(ctx, id, UpdateInput{Email: strPtr(" ALICE@x.com ")})
	if err != nil || !user.EmailConfirmed {
		t.Fatalf("expected same normalized email to be a no-op, got %+v, %v", user, err)
	}

	tests := []struct {
		name  string
		input UpdateInput
		want  error
	}{
		{name: "name taken", input: UpdateInput{Name: strPtr("bob")}, want: ErrNameTaken},
		{name: "email taken", input: UpdateInput{Email: strPtr("BOB@x.com")}, want: ErrEmailTaken},
		{name: "empty name", input: UpdateInput{Name: strPtr("")}, want: ErrInvalidName},
		{name: "padded name", input: UpdateInput{Name: strPtr("carol ")}, want: ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.users.Update(ctx, id, tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := env.users.Update(ctx, "missing", UpdateInput{Name: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_UpdateEmailDropsConfirmationAndReset(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	if err := env.repo.ConfirmEmail(ctx, id); err != nil {
		t.Fatalf("confirm email: %v", err)
	}
	if err := env.tokens.RequestReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	reset := env.resetTokenFor(t, "alice@x.com")

	user, err := env.users.Update(ctx, id, UpdateInput{Email: strPtr("alice@new.com")})
	if err != nil {
		t.Fatalf("update email: %v", err)
	}
	if user.Email != "alice@new.com" || user.EmailConfirmed {
		t.Fatalf("expected new unconfirmed email, got %+v", user)
	}
	if user.HasPendingReset() {
		t.Fatalf("expected pending reset to be cleared")
	}
	if _, err := env.tokens.ValidateResetToken(ctx, reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected old reset token rejected, got %v", err)
	}
	if err := env.tokens.ResetPassword(ctx, reset, "hijack"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected reset with old token rejected, got %v", err)
	}
	if _, err := env.repo.GetByEmail(ctx, "alice@x.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected old email free, got %v", err)
	}
}

func TestUserService_NotConfigured(t *testing.T) {
	svc := NewUserService(zap.NewNop(), nil, nil)
	if _, err := svc.Register(context.Background(), RegisterInput{Name: "a", Password: "p"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "x"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
