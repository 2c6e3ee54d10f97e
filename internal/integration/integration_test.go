package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/postgres"
	infraredis "timed-quiz-service/internal/infra/redis"
)

type recordingPublisher struct {
	mu     sync.Mutex
	states []domain.Phase
}

func (p *recordingPublisher) PublishSettings(_ context.Context, st domain.QuizSetting) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, st.State)
}

func (p *recordingPublisher) snapshot() []domain.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Phase(nil), p.states...)
}

func TestQuizRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.Open(pgURL)
	defer db.Close()
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := postgres.NewStore(db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	bank := infraredis.NewQuestionCache(redisClient, postgres.NewQuestionLoader(pool), 5*time.Minute)
	publisher := &recordingPublisher{}
	service := app.NewQuizService(store, bank, publisher)

	school := "Northside High"
	alice := domain.User{Username: "alice", PasswordHash: "x", Role: domain.RoleStudent, School: &school}
	bob := domain.User{Username: "bob", PasswordHash: "x", Role: domain.RoleStudent, School: &school}
	admin := domain.User{Username: "admin", PasswordHash: "x", Role: domain.RoleAdmin}
	root := domain.User{Username: "root", PasswordHash: "x", Role: domain.RoleSuperAdmin}
	for _, u := range []*domain.User{&alice, &bob, &admin, &root} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user %s: %v", u.Username, err)
		}
	}
	dup := domain.User{Username: "ALICE", PasswordHash: "x", Role: domain.RoleStudent, School: &school}
	if err := store.CreateUser(ctx, &dup); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected case-insensitive username clash, got %v", err)
	}

	for i, text := range []string{"What is 2 + 2?", "What is 3 + 3?"} {
		text := text
		in := domain.QuestionInput{
			QuestionText: &text, OptionA: "4", OptionB: "6", OptionC: "8", OptionD: "10",
			CorrectAnswer: []string{"A", "B"}[i], Difficulty: domain.DifficultyEasy,
		}
		if _, err := service.CreateQuestion(ctx, admin.Identity(), in, nil); err != nil {
			t.Fatalf("create question: %v", err)
		}
	}

	if _, err := service.StartQuiz(ctx, admin.Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}
	submit := func(u domain.User, question int64, choice string) domain.QuizAnswer {
		t.Helper()
		seconds := 5.0
		ans, err := service.SubmitAnswer(ctx, u.Identity(), app.AnswerSubmission{
			UserID: u.ID, QuestionID: question, UserAnswer: &choice, ResponseTimeSeconds: &seconds,
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		return ans
	}
	first := submit(alice, 1, "B")
	again := submit(alice, 1, "A")
	if again.ID != first.ID || !again.IsCorrect {
		t.Fatalf("expected the answer row to be overwritten, got %+v then %+v", first, again)
	}
	submit(alice, 2, "B")
	submit(bob, 1, "C")

	for _, u := range []domain.User{bob, alice} {
		if _, err := service.SaveResult(ctx, u.Identity(), app.ResultSubmission{UserID: u.ID}); err != nil {
			t.Fatalf("save result: %v", err)
		}
	}
	board, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].Username != "alice" || board[0].Score != 4 || board[1].Score != -1 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}

	if _, err := service.ResetQuiz(ctx, root.Identity()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	results, err := store.ListResults(ctx)
	if err != nil || len(results) != 0 {
		t.Fatalf("expected no results after reset, got %d (%v)", len(results), err)
	}
	if _, err := service.StartQuiz(ctx, admin.Identity()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if ans := submit(bob, 2, "B"); ans.ID != 1 {
		t.Fatalf("expected answer ids to restart at 1, got %d", ans.ID)
	}

	want := []domain.Phase{domain.PhaseStarted, domain.PhaseWaiting, domain.PhaseStarted}
	if got := publisher.snapshot(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected broadcasts %v, got %v", want, got)
	}

	// a timed round completes on its own against timestamps stored by postgres
	timedPublisher := &recordingPublisher{}
	timed := app.NewQuizService(store, bank, timedPublisher, app.WithQuizDuration(200*time.Millisecond))
	defer timed.Stop()
	if _, err := timed.ResetQuiz(ctx, root.Identity()); err != nil {
		t.Fatalf("reset before timed round: %v", err)
	}
	if _, err := timed.StartQuiz(ctx, admin.Identity()); err != nil {
		t.Fatalf("start timed round: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := timed.Settings(ctx)
		if err != nil {
			t.Fatalf("settings: %v", err)
		}
		if st.State == domain.PhaseCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed round never completed, state=%s", st.State)
		}
		time.Sleep(20 * time.Millisecond)
	}
	want = []domain.Phase{domain.PhaseWaiting, domain.PhaseStarted, domain.PhaseCompleted}
	if got := timedPublisher.snapshot(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected broadcasts %v, got %v", want, got)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
