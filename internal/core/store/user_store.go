package store

import (
	"context"
	"strings"
	"sync"

	"github.com/markdave123-py/neurodoc/internal/models"
)

// UserStore keeps accounts in memory when no database is configured.
type UserStore struct {
	mu      sync.RWMutex
	byEmail map[string]models.User
}

func NewUserStore() *UserStore {
	return &UserStore{byEmail: make(map[string]models.User)}
}

func (s *UserStore) CreateUser(_ context.Context, user *models.User) error {
	if user == nil || user.Email == "" {
		return models.ErrInvalidInput
	}
	key := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[key]; ok {
		return models.ErrAlreadyExists
	}
	s.byEmail[key] = *user
	return nil
}

// GetUserByEmail returns (nil, nil) for unknown addresses, like the Postgres client.
func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
