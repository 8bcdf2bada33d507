// Package auth manages user accounts and bearer-token sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"recipelab/internal/config"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

var (
	ErrCredentialsRequired = errors.New("username and password are required")
	ErrUsernameTooShort    = fmt.Errorf("username must be at least %d characters", minUsernameLen)
	ErrPasswordTooShort    = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrUsernameTaken       = errors.New("username already exists")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidToken        = errors.New("invalid or expired token")
)

// Service registers users, checks passwords and issues session tokens.
type Service struct {
	users    *userFile
	sessions *sessionTable
	cost     int
	log      *zap.Logger
	now      func() time.Time
}

// NewService loads accounts from dir/users.json.
func NewService(dir string, cfg config.AuthConfig, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	users, err := openUserFile(dir)
	if err != nil {
		return nil, err
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}

	return &Service{
		users:    users,
		sessions: newSessionTable(cfg.SessionTTL),
		cost:     cost,
		log:      log,
		now:      time.Now,
	}, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, username, password string) (User, string, error) {
	username = normalizeUsername(username)
	switch {
	case username == "" || password == "":
		return User{}, "", ErrCredentialsRequired
	case len(username) < minUsernameLen:
		return User{}, "", ErrUsernameTooShort
	case len(password) < minPasswordLen:
		return User{}, "", ErrPasswordTooShort
	}
	if err := ctx.Err(); err != nil {
		return User{}, "", err
	}
	if s.users.find(username) != nil {
		return User{}, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	rec := &userRecord{Username: username, PasswordHash: string(hash), CreatedAt: s.now().UTC()}
	if err := s.users.add(rec); err != nil {
		return User{}, "", err
	}
	s.log.Info("Registered user", zap.String("username", username))

	session, err := s.sessions.create(username, s.now())
	if err != nil {
		return User{}, "", err
	}
	return rec.user(), session.Token, nil
}

// Login checks the password and opens a new session.
func (s *Service) Login(ctx context.Context, username, password string) (User, string, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return User{}, "", ErrCredentialsRequired
	}
	if err := ctx.Err(); err != nil {
		return User{}, "", err
	}

	rec := s.users.find(username)
	if rec == nil {
		return User{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return User{}, "", ErrInvalidCredentials
	}

	session, err := s.sessions.create(username, s.now())
	if err != nil {
		return User{}, "", err
	}
	return rec.user(), session.Token, nil
}

// Authenticate resolves a bearer token.
func (s *Service) Authenticate(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	session, ok := s.sessions.lookup(token, s.now())
	if !ok {
		return Session{}, ErrInvalidToken
	}
	return session, nil
}

// User returns the account behind a session.
func (s *Service) User(username string) (User, bool) {
	rec := s.users.find(username)
	if rec == nil {
		return User{}, false
	}
	return rec.user(), true
}

// Logout ends a session. Unknown tokens are ignored.
func (s *Service) Logout(token string) {
	s.sessions.remove(token)
}
