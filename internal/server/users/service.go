package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/wiliyo/wiliyo/internal/common"
)

// Service wraps a Repository with credential hashing and verification.
// Hashes are bcrypt strings, so the salt travels inside the stored digest
// and the repository never sees a plaintext password.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Lookup resolves a username to its stored record, mapping a repository miss
// to ErrUserNotFound for the auth gate.
func (s *Service) Lookup(ctx context.Context, username string) (*User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return user, nil
}

func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	return s.repo.Exists(ctx, username)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Register hashes the password and creates the record. The repository's
// atomic Create decides races: the loser gets ErrUsernameTaken.
func (s *Service) Register(ctx context.Context, username, password, peerIP string) (*User, error) {
	if password == "" {
		return nil, common.ErrPasswordRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		LastIP:       peerIP,
	}

	user, err = s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies a candidate password against the stored hash.
// A wrong password and an unknown user are reported as distinct errors;
// the gate reveals the difference to the client, as the protocol requires.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrBadCredentials
	}

	return user, nil
}
