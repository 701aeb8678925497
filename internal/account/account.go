// Package account owns user identity records: registration and password
// authentication.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"sanjeevika-api/internal/apperr"
	"sanjeevika-api/internal/auth"
	"sanjeevika-api/internal/model"
	"sanjeevika-api/internal/store"
)

var (
	ErrAlreadyExists  = apperr.Conflict("AlreadyExists", "user already exists")
	ErrNotFound       = apperr.NotFound("NotFound", "user does not exist")
	ErrBadCredentials = apperr.New(apperr.KindAuth, "BadCredentials", "invalid credentials")
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
}

type Service struct {
	users UserRepository
}

func New(users UserRepository) *Service {
	return &Service{users: users}
}

// compared against when the email is unknown so both failure paths pay for a
// bcrypt comparison
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("not-a-real-password")
	return h
})

func (s *Service) Register(ctx context.Context, email, name, password string) (string, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || password == "" {
		return "", apperr.Validation("missing email, password, or name")
	}
	if len(password) > auth.MaxPasswordBytes {
		return "", apperr.Validation(fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", apperr.Internal(err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrAlreadyExists
		}
		return "", apperr.Internal(err)
	}
	return u.ID, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("missing email or password")
	}

	u, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.CheckPassword(dummyHash(), password)
			return nil, ErrNotFound
		}
		return nil, apperr.Internal(err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Lookup resolves the identity named by a verified token.
func (s *Service) Lookup(ctx context.Context, email string) (*model.User, error) {
	u, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrUnknownIdentity
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
