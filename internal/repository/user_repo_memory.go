package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"schnitzel-auth/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria. Sirve para desarrollo local
// (STORE_BACKEND=memory) y para tests.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	byName  map[string]string
	byEmail map[string]string
	byReset map[string]string
	now     func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]domain.User),
		byName:  make(map[string]string),
		byEmail: make(map[string]string),
		byReset: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[user.ID]; ok {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	if err := m.checkUnique(user); err != nil {
		return err
	}
	m.put(user)
	return nil
}

func (m *MemoryUserRepository) Save(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(user); err != nil {
		return err
	}
	if prev, ok := m.byID[user.ID]; ok {
		m.drop(prev)
		if prev.Email == user.Email {
			user.EmailConfirmed = user.EmailConfirmed || prev.EmailConfirmed
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = prev.CreatedAt
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.now()
	}
	user.UpdatedAt = m.now()
	m.put(user)
	return nil
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *MemoryUserRepository) GetByName(_ context.Context, name string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(m.byName, name)
}

func (m *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(m.byEmail, email)
}

func (m *MemoryUserRepository) GetByResetToken(_ context.Context, token string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(m.byReset, token)
}

func (m *MemoryUserRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.get(id)
	if err != nil {
		return err
	}
	m.drop(user)
	return nil
}

func (m *MemoryUserRepository) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.get(id)
	if err != nil {
		return err
	}
	m.drop(user)
	exp := expiresAt
	user.ResetToken = token
	user.ResetTokenExpiration = &exp
	user.UpdatedAt = m.now()
	m.put(user)
	return nil
}

func (m *MemoryUserRepository) ConfirmEmail(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.get(id)
	if err != nil {
		return err
	}
	user.EmailConfirmed = true
	user.UpdatedAt = m.now()
	m.byID[id] = user
	return nil
}

func (m *MemoryUserRepository) ConsumeResetToken(_ context.Context, id, token, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.get(id)
	if err != nil {
		return err
	}
	if token == "" || user.ResetToken != token {
		return ErrNotFound
	}
	m.drop(user)
	user.PasswordHash = passwordHash
	user.ResetToken = ""
	user.ResetTokenExpiration = nil
	user.UpdatedAt = m.now()
	m.put(user)
	return nil
}

func (m *MemoryUserRepository) get(id string) (domain.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

func (m *MemoryUserRepository) lookup(index map[string]string, key string) (domain.User, error) {
	if key == "" {
		return domain.User{}, ErrNotFound
	}
	id, ok := index[key]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return m.get(id)
}

func (m *MemoryUserRepository) checkUnique(user domain.User) error {
	if id, ok := m.byName[user.Name]; ok && id != user.ID {
		return ErrNameTaken
	}
	if user.Email != "" {
		if id, ok := m.byEmail[user.Email]; ok && id != user.ID {
			return ErrEmailTaken
		}
	}
	return nil
}

func (m *MemoryUserRepository) put(user domain.User) {
	m.byID[user.ID] = user
	m.byName[user.Name] = user.ID
	if user.Email != "" {
		m.byEmail[user.Email] = user.ID
	}
	if user.ResetToken != "" {
		m.byReset[user.ResetToken] = user.ID
	}
}

func (m *MemoryUserRepository) drop(user domain.User) {
	delete(m.byID, user.ID)
	delete(m.byName, user.Name)
	if user.Email != "" {
		delete(m.byEmail, user.Email)
	}
	if user.ResetToken != "" {
		delete(m.byReset, user.ResetToken)
	}
}
