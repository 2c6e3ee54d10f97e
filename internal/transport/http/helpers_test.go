package http

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/auth"
	"timed-quiz-service/internal/broadcast"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

type testServer struct {
	router  *gin.Engine
	hub     *broadcast.Hub
	service *app.QuizService
	auth    *auth.Service
	store   *memory.Store
	tokens  map[string]string
	users   map[string]domain.User
}

func newTestServer(t *testing.T, hubOpts ...broadcast.Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.NewStore()
	hub := broadcast.NewHub(hubOpts...)
	go func() { _ = hub.Run(ctx) }()

	service := app.NewQuizService(store, memory.NewQuestionCache(store, time.Minute), hub)
	authSvc := auth.NewService(store, auth.NewTokens("test-secret", time.Hour), nil)

	ts := &testServer{
		hub:     hub,
		service: service,
		auth:    authSvc,
		store:   store,
		tokens:  make(map[string]string),
		users:   make(map[string]domain.User),
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	school := "Northside High"
	for _, seed := range []struct {
		name string
		role domain.Role
	}{
		{"alice", domain.RoleStudent},
		{"bob", domain.RoleStudent},
		{"admin", domain.RoleAdmin},
		{"root", domain.RoleSuperAdmin},
	} {
		u := domain.User{Username: seed.name, PasswordHash: string(hash), Role: seed.role, School: &school}
		if err := store.CreateUser(ctx, &u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		token, err := authSvc.Tokens().Issue(u)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		ts.users[seed.name] = u
		ts.tokens[seed.name] = token
	}

	text := "What is 2 + 2?"
	q := domain.Question{
		QuestionText: &text, OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "22",
		CorrectAnswer: "B", Difficulty: domain.DifficultyEasy, CreatedBy: ts.users["admin"].ID,
	}
	if err := store.CreateQuestion(ctx, &q); err != nil {
		t.Fatalf("seed question: %v", err)
	}

	ts.router = NewRouter(Deps{
		Quiz: service,
		Auth: authSvc,
		WS:   NewWSHandler(service, hub, nil),
	})
	return ts
}
