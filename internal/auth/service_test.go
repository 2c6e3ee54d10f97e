package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

func newTestService() *Service {
	s := NewService(memory.NewStore(), NewTokens("test-secret", time.Hour), nil)
	s.cost = bcrypt.MinCost
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	school := "Northside High"

	user, err := svc.Register(ctx, "Alice", "s3cret!", &school)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != domain.RoleStudent || user.PasswordHash == "s3cret!" {
		t.Fatalf("unexpected user %+v", user)
	}

	token, logged, err := svc.Login(ctx, "alice", "s3cret!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.LastLogin == nil {
		t.Fatalf("expected last login to be recorded")
	}
	id, err := svc.Tokens().Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.UserID != user.ID || id.Role != domain.RoleStudent {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	school := "Northside High"
	_, _ = svc.Register(ctx, "bob", "correct-horse", &school)

	if _, _, err := svc.Login(ctx, "bob", "battery"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "battery"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRegisterRejectsDuplicateUsernameAnyCase(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	school := "Northside High"
	_, _ = svc.Register(ctx, "carol", "password1", &school)

	if _, err := svc.Register(ctx, "CAROL", "password2", &school); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
}

func TestCreateUserRoleRules(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	admin := domain.Identity{UserID: 1, Role: domain.RoleAdmin}
	root := domain.Identity{UserID: 2, Role: domain.RoleSuperAdmin}
	student := domain.Identity{UserID: 3, Role: domain.RoleStudent}

	if _, err := svc.CreateUser(ctx, student, "eve", "password", domain.RoleAdmin, nil); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("student must not create users, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, admin, "mallory", "password", domain.RoleSuperAdmin, nil); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("admin must not create superadmins, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, root, "trent", "password", domain.RoleSuperAdmin, nil); err != nil {
		t.Fatalf("superadmin create: %v", err)
	}
}

func TestTokensRejectTamperingAndExpiry(t *testing.T) {
	tokens := NewTokens("secret-a", time.Minute)
	now := time.Now()
	tokens.now = func() time.Time { return now }

	raw, err := tokens.Issue(domain.User{ID: 9, Username: "dave", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewTokens("secret-b", time.Minute)
	if _, err := other.Parse(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected signature failure, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := tokens.Parse(raw); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected expiry failure, got %v", err)
	}
}
