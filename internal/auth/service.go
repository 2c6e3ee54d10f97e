// Package auth resolves the "current user" for the quiz core: it owns password
// hashing, account creation and bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"timed-quiz-service/internal/domain"
)

const minPasswordLen = 6

// UserRepository is the subset of the record store auth needs.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByUsername(ctx context.Context, username string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type Service struct {
	users  UserRepository
	tokens *Tokens
	logger *zap.Logger
	now    func() time.Time
	cost   int
}

func NewService(users UserRepository, tokens *Tokens, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, tokens: tokens, logger: logger, now: time.Now, cost: bcrypt.DefaultCost}
}

// Tokens exposes the token verifier for transport middleware.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Register creates a student account.
func (s *Service) Register(ctx context.Context, username, password string, school *string) (domain.User, error) {
	return s.create(ctx, username, password, domain.RoleStudent, school)
}

// CreateUser lets an administrator create accounts. Only a superadmin may mint another superadmin.
func (s *Service) CreateUser(ctx context.Context, actor domain.Identity, username, password string, role domain.Role, school *string) (domain.User, error) {
	if !actor.Role.AtLeast(domain.RoleAdmin) {
		return domain.User{}, domain.ErrForbidden
	}
	if role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return domain.User{}, domain.ErrForbidden
	}
	return s.create(ctx, username, password, role, school)
}

// Bootstrap creates a superadmin without an acting identity. Used by the CLI only.
func (s *Service) Bootstrap(ctx context.Context, username, password string) (domain.User, error) {
	return s.create(ctx, username, password, domain.RoleSuperAdmin, nil)
}

// Login checks the password and returns a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, domain.User, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", domain.User{}, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("last login not recorded", zap.Int64("user", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}

// ListUsers returns every account. Admins and above only.
func (s *Service) ListUsers(ctx context.Context, actor domain.Identity) ([]domain.User, error) {
	if !actor.Role.AtLeast(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	return s.users.ListUsers(ctx)
}

func (s *Service) create(ctx context.Context, username, password string, role domain.Role, school *string) (domain.User, error) {
	if len(password) < minPasswordLen {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := domain.NewUser(username, string(hash), role, school, s.now())
	if err != nil {
		return domain.User{}, err
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		return domain.User{}, err
	}
	s.logger.Info("user created", zap.Int64("user", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}
