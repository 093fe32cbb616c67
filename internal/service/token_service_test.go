package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"schnitzel-auth/internal/repository"
)

var confirmLinkPattern = regexp.MustCompile(`confirm-email\?token=([A-Za-z0-9_\-.]+)`)

func TestTokenService_RequestResetStoresTokenAndSendsLink(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com", "secret1")

	if err := env.tokens.RequestReset(context.Background(), "alice@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}

	user, err := env.repo.GetByEmail(context.Background(), "alice@x.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(user.ResetToken) != 2*OpaqueTokenBytes {
		t.Fatalf("expected 40-char reset token, got %q", user.ResetToken)
	}
	if user.ResetTokenExpiration == nil || !user.ResetTokenExpiration.Equal(env.clock.Now().Add(time.Hour)) {
		t.Fatalf("expected expiration one hour ahead, got %v", user.ResetTokenExpiration)
	}

	mail := env.sender.last(t)
	if mail.to != "alice@x.com" {
		t.Fatalf("expected email to alice@x.com, got %s", mail.to)
	}
	wantLink := "http://localhost:8080/reset-password?token=" + user.ResetToken
	if !strings.Contains(mail.body, wantLink) {
		t.Fatalf("expected link %s in body, got %s", wantLink, mail.body)
	}
}

func TestTokenService_RequestResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	if err := env.tokens.RequestReset(context.Background(), "nobody@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(env.sender.sent) != 0 {
		t.Fatalf("expected no email for unknown address")
	}
}

func TestTokenService_SecondRequestInvalidatesFirst(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	if err := env.tokens.RequestReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	first := env.resetTokenFor(t, "alice@x.com")
	if err := env.tokens.RequestReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("second request: %v", err)
	}
	second := env.resetTokenFor(t, "alice@x.com")
	if first == second {
		t.Fatalf("expected a fresh token on second request")
	}

	if err := env.tokens.ResetPassword(ctx, first, "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for superseded token, got %v", err)
	}
	if err := env.tokens.ResetPassword(ctx, second, "secret2"); err != nil {
		t.Fatalf("expected second token to work, got %v", err)
	}
}

func TestTokenService_ResetPasswordSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	if err := env.tokens.RequestReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.resetTokenFor(t, "alice@x.com")

	if err := env.tokens.ResetPassword(ctx, token, "secret2"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if err := env.tokens.ResetPassword(ctx, token, "secret3"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on replay, got %v", err)
	}

	user, _ := env.repo.GetByName(ctx, "alice")
	if user.ResetToken != "" || user.ResetTokenExpiration != nil {
		t.Fatalf("expected token and expiration cleared, got %+v", user)
	}
	if _, err := env.auth.Login(ctx, "alice", "secret2"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "alice", "secret1"); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
}

func TestTokenService_ResetTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	if err := env.tokens.RequestReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.resetTokenFor(t, "alice@x.com")

	env.clock.Advance(time.Hour)
	if _, err := env.tokens.ValidateResetToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken at expiry, got %v", err)
	}
	if err := env.tokens.ResetPassword(ctx, token, "secret2"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken at expiry, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("expected old password to keep working, got %v", err)
	}
}

func TestTokenService_ValidateResetTokenDoesNotConsume(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	if err := env.tokens.RequestReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.resetTokenFor(t, "alice@x.com")

	for i := 0; i < 2; i++ {
		got, err := env.tokens.ValidateResetToken(ctx, token)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if got != id {
			t.Fatalf("expected subject %s, got %s", id, got)
		}
	}
	if _, err := env.tokens.ValidateResetToken(ctx, "deadbeef"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown token, got %v", err)
	}
	if _, err := env.tokens.ValidateResetToken(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestTokenService_DeliveryFailureKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com", "secret1")
	env.sender.err = errors.New("smtp down")
	ctx := context.Background()

	err := env.tokens.RequestReset(ctx, "alice@x.com")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	token := env.resetTokenFor(t, "alice@x.com")

	env.sender.err = nil
	if err := env.tokens.ResetPassword(ctx, token, "secret2"); err != nil {
		t.Fatalf("expected stored token to remain usable, got %v", err)
	}
}

func TestTokenService_ConcurrentResetSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	if err := env.tokens.RequestReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.resetTokenFor(t, "alice@x.com")

	var (
		wg      sync.WaitGroup
		wins    int32
		invalid int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := env.tokens.ResetPassword(ctx, token, "secret2")
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrInvalidToken):
				atomic.AddInt32(&invalid, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || invalid != 7 {
		t.Fatalf("expected one winner and seven rejections, got %d and %d", wins, invalid)
	}
}

func TestTokenService_ConfirmEmail(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	token, err := env.tokens.IssueConfirmationToken(id, time.Hour)
	if err != nil {
		t.Fatalf("issue confirmation: %v", err)
	}
	if err := env.tokens.ConfirmEmail(ctx, token); err != nil {
		t.Fatalf("confirm email: %v", err)
	}
	user, _ := env.repo.GetByID(ctx, id)
	if !user.EmailConfirmed {
		t.Fatalf("expected email confirmed")
	}

	if err := env.tokens.ConfirmEmail(ctx, token); err != nil {
		t.Fatalf("expected second confirmation to be a no-op, got %v", err)
	}
	user, _ = env.repo.GetByID(ctx, id)
	if !user.EmailConfirmed {
		t.Fatalf("expected email to stay confirmed")
	}
}

func TestTokenService_ConfirmEmailFailures(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	session, _, err := env.jwt.Issue(PurposeSession, TokenSubject{ID: id}, time.Hour)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if err := env.tokens.ConfirmEmail(ctx, session); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected session token rejected, got %v", err)
	}

	expiring, err := env.tokens.IssueConfirmationToken(id, time.Minute)
	if err != nil {
		t.Fatalf("issue confirmation: %v", err)
	}
	env.clock.Advance(time.Minute)
	if err := env.tokens.ConfirmEmail(ctx, expiring); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired confirmation rejected, got %v", err)
	}

	orphan, err := env.tokens.IssueConfirmationToken("missing-user", time.Hour)
	if err != nil {
		t.Fatalf("issue confirmation: %v", err)
	}
	if err := env.tokens.ConfirmEmail(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}

	user, _ := env.repo.GetByID(ctx, id)
	if user.EmailConfirmed {
		t.Fatalf("expected email to remain unconfirmed")
	}
}

func TestTokenService_SendConfirmation(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice", "alice@x.com", "secret1")
	noMail := env.register(t, "bob", "", "secret1")
	ctx := context.Background()

	if err := env.tokens.SendConfirmation(ctx, noMail); !errors.Is(err, ErrNoEmail) {
		t.Fatalf("expected ErrNoEmail, got %v", err)
	}
	if err := env.tokens.SendConfirmation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := env.tokens.SendConfirmation(ctx, id); err != nil {
		t.Fatalf("send confirmation: %v", err)
	}
	mail := env.sender.last(t)
	if !strings.Contains(mail.body, "http://localhost:8080/api/email/confirm-email?token=") {
		t.Fatalf("expected confirmation link, got %s", mail.body)
	}
	match := confirmLinkPattern.FindStringSubmatch(mail.body)
	if match == nil {
		t.Fatalf("expected token in confirmation link, got %s", mail.body)
	}
	if err := env.tokens.ConfirmEmail(ctx, match[1]); err != nil {
		t.Fatalf("confirm with emailed token: %v", err)
	}
}

func TestTokenService_SendConfirmationWithoutSender(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "alice", "alice@x.com", "secret1")
	svc := NewTokenService(zap.NewNop(), env.repo, env.hasher, env.jwt, nil, TokenServiceConfig{})

	if err := svc.SendConfirmation(context.Background(), id); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery without sender, got %v", err)
	}
}

func TestTokenService_Metrics(t *testing.T) {
	env := newTestEnv(t)
	counter := tokenOperations.WithLabelValues("reset_password", resultRejected)
	before := testutil.ToFloat64(counter)

	_ = env.tokens.ResetPassword(context.Background(), "unknown", "x")

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("expected rejected reset counter +1, got %v -> %v", before, got)
	}
}

type failingResetRepo struct {
	*repository.MemoryUserRepository
	err error
}

func (f *failingResetRepo) SetResetToken(context.Context, string, string, time.Time) error {
	return f.err
}

func TestTokenService_RequestResetStoreError(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@x.com", "secret1")
	storeErr := errors.New("db down")
	repo := &failingResetRepo{MemoryUserRepository: env.repo, err: storeErr}
	svc := NewTokenService(zap.NewNop(), repo, env.hasher, env.jwt, env.sender, TokenServiceConfig{})

	err := svc.RequestReset(context.Background(), "alice@x.com")
	if !errors.Is(err, storeErr) || errors.Is(err, ErrDelivery) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(env.sender.sent) != 0 {
		t.Fatalf("expected no email when the token could not be stored")
	}
}

func TestCredentialLifecycle_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "alice@x.com", "secret1")

	res, err := env.auth.Login(ctx, "alice", "secret1")
	if err != nil || res.Token == "" {
		t.Fatalf("expected login success, got %+v, %v", res, err)
	}
	if _, err := env.auth.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for wrong password, got %v", err)
	}

	if err := env.tokens.RequestReset(ctx, "alice@x.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := env.resetTokenFor(t, "alice@x.com")
	if err := env.tokens.ResetPassword(ctx, token, "secret2"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	if _, err := env.auth.Login(ctx, "alice", "secret1"); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := env.auth.Login(ctx, "alice", "secret2"); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}
}
