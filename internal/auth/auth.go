// Package auth handles user accounts and bearer tokens. Passwords are
// bcrypt-hashed; sessions are HS256 JWTs carrying the user id in the sub
// claim.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tally/internal/core"
)

const minPasswordLen = 6

type User struct {
	ID    string
	Email string
}

// UserStore persists accounts. Implemented by storage.SQLiteRepository and
// by the in-memory store used in tests.
type UserStore interface {
	CreateUser(ctx context.Context, id, email string, passwordHash []byte) error
	UserByEmail(ctx context.Context, email string) (id string, passwordHash []byte, err error)
}

type Service struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
}

func NewService(users UserStore, secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

// Register creates an account. The uniqueness check lives in the store so
// concurrent registrations cannot race past it.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("invalid email: %w", core.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return User{}, fmt.Errorf("password too short (min %d): %w", minPasswordLen, core.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	if err := s.users.CreateUser(ctx, id, email, hash); err != nil {
		return User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", id)
	return User{ID: id, Email: email}, nil
}

// SignIn verifies the credentials and issues a session token. Wrong email
// and wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	id, hash, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return "", User{}, fmt.Errorf("invalid credentials: %w", core.ErrAuth)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", User{}, fmt.Errorf("invalid credentials: %w", core.ErrAuth)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", User{}, fmt.Errorf("sign token: %w", err)
	}

	slog.InfoContext(ctx, "User signed in", "user_id", id)
	return signed, User{ID: id, Email: email}, nil
}

// VerifyToken validates a bearer token and returns the user id it was
// issued for.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", core.ErrAuth)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token missing subject: %w", core.ErrAuth)
	}
	return sub, nil
}
