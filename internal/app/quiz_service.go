package app

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/metrics"
)

// UserRepository persists accounts. Username lookups are case-insensitive.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id int64) (domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// QuestionRepository persists question content.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q *domain.Question) error
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	UpdateQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, id int64) error
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// AnswerRepository persists answers, one row per (user, question).
type AnswerRepository interface {
	UpsertAnswer(ctx context.Context, a *domain.QuizAnswer) error
	ListAnswersByUser(ctx context.Context, userID int64) ([]domain.QuizAnswer, error)
}

// ResultRepository persists results. ListResults returns them in id order.
type ResultRepository interface {
	GetResultByUser(ctx context.Context, userID int64) (domain.Result, error)
	CreateResult(ctx context.Context, r *domain.Result) error
	UpdateResult(ctx context.Context, r domain.Result) error
	ListResults(ctx context.Context) ([]domain.Result, error)
	SaveRanks(ctx context.Context, ranks map[int64]int) error
}

// SettingsRepository persists the QuizSetting singleton.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (domain.QuizSetting, bool, error)
	SaveSettings(ctx context.Context, s domain.QuizSetting) error
}

// Store is the record store the quiz core runs against.
type Store interface {
	UserRepository
	QuestionRepository
	AnswerRepository
	ResultRepository
	SettingsRepository
	// ResetCompetition removes every answer and result, restarts their ids at 1 and
	// saves st, all as one unit.
	ResetCompetition(ctx context.Context, st domain.QuizSetting) error
}

// QuestionBank serves the full question set, usually from a cache.
type QuestionBank interface {
	Questions(ctx context.Context) ([]domain.Question, error)
	Invalidate(ctx context.Context) error
}

// Publisher fans lifecycle changes out to connected clients.
type Publisher interface {
	PublishSettings(ctx context.Context, s domain.QuizSetting)
}

// ImageStore keeps uploaded question images and returns a reference to them.
type ImageStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	store     Store
	questions QuestionBank
	publisher Publisher
	images    ImageStore
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	duration  time.Duration

	// lifecycleMu makes the lifecycle the single writer of QuizSetting.
	lifecycleMu sync.Mutex
	timer       *time.Timer

	// resultsMu serialises result saves with the re-rank that follows them.
	resultsMu sync.Mutex
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithClock replaces time.Now, for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *QuizService) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

// WithQuizDuration sets the time limit after which a started quiz completes on its own.
// Zero disables the timer.
func WithQuizDuration(d time.Duration) Option {
	return func(s *QuizService) { s.duration = d }
}

// WithImageStore enables image uploads for questions.
func WithImageStore(images ImageStore) Option {
	return func(s *QuizService) { s.images = images }
}

func NewQuizService(store Store, questions QuestionBank, publisher Publisher, opts ...Option) *QuizService {
	s := &QuizService{
		store:     store,
		questions: questions,
		publisher: publisher,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Stored timestamps keep microseconds, so the service never produces finer ones.
	clock := s.now
	s.now = func() time.Time { return clock().Truncate(time.Microsecond) }
	return s
}

func requireRole(actor domain.Identity, min domain.Role) error {
	if !actor.Role.AtLeast(min) {
		return domain.ErrForbidden
	}
	return nil
}
