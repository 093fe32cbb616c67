package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"schnitzel-auth/internal/repository"
	"schnitzel-auth/internal/service"
)

type mockEmailSender struct {
	mu     sync.Mutex
	to     []string
	bodies []string
	err    error
}

func (m *mockEmailSender) Send(_ context.Context, to, _, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.bodies = append(m.bodies, htmlBody)
	return nil
}

func (m *mockEmailSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bodies)
}

type testServer struct {
	router *gin.Engine
	repo   *repository.MemoryUserRepository
	jwt    *service.JWTService
	auth   *service.AuthService
	sender *mockEmailSender

	healthErr error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	repo := repository.NewMemoryUserRepository()
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	jwtSvc, err := service.NewJWTService("secret", "test", time.Hour)
	if err != nil {
		t.Fatalf("new jwt service: %v", err)
	}
	sender := &mockEmailSender{}
	authSvc := service.NewAuthService(logger, repo, hasher, jwtSvc, time.Hour)
	userSvc := service.NewUserService(logger, repo, hasher)
	tokenSvc := service.NewTokenService(logger, repo, hasher, jwtSvc, sender, service.TokenServiceConfig{
		AppURL:          "http://localhost:8080",
		ConfirmationTTL: time.Hour,
		ResetTTL:        time.Hour,
	})

	srv := &testServer{repo: repo, jwt: jwtSvc, auth: authSvc, sender: sender}
	srv.router = NewRouter(logger, authSvc,
		NewUserHandler(logger, userSvc, authSvc),
		NewEmailHandler(logger, tokenSvc),
		func(context.Context) error { return srv.healthErr },
	)
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, name, email, password string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/users", map[string]string{"name": name, "email": email, "password": password}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", name, rec.Code, rec.Body.String())
	}
}

func (s *testServer) login(t *testing.T, name, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/login", map[string]string{"name": name, "password": password}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", name, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
