package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

type answerKey struct {
	userID     int64
	questionID int64
}

// Store is an in-memory implementation of app.Store. Ids are assigned from
// per-collection counters starting at 1.
type Store struct {
	mu sync.RWMutex

	users     map[int64]domain.User
	questions map[int64]domain.Question
	answers   map[int64]domain.QuizAnswer
	answerIdx map[answerKey]int64
	results   map[int64]domain.Result
	settings  *domain.QuizSetting

	nextUser     int64
	nextQuestion int64
	nextAnswer   int64
	nextResult   int64
}

func NewStore() *Store {
	return &Store{
		users:        make(map[int64]domain.User),
		questions:    make(map[int64]domain.Question),
		answers:      make(map[int64]domain.QuizAnswer),
		answerIdx:    make(map[answerKey]int64),
		results:      make(map[int64]domain.Result),
		nextUser:     1,
		nextQuestion: 1,
		nextAnswer:   1,
		nextResult:   1,
	}
}

func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return domain.ErrUsernameTaken
		}
	}
	user.ID = s.nextUser
	s.nextUser++
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LastLogin = &at
	s.users[id] = u
	return nil
}

func (s *Store) CreateQuestion(_ context.Context, q *domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextQuestion
	s.nextQuestion++
	s.questions[q.ID] = *q
	return nil
}

func (s *Store) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) UpdateQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.questions[q.ID] = q
	return nil
}

func (s *Store) DeleteQuestion(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.questions, id)
	return nil
}

func (s *Store) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadQuestions lets the store back a question cache directly.
func (s *Store) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.ListQuestions(ctx)
}

func (s *Store) UpsertAnswer(_ context.Context, a *domain.QuizAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := answerKey{userID: a.UserID, questionID: a.QuestionID}
	if id, ok := s.answerIdx[key]; ok {
		a.ID = id
		a.CreatedAt = s.answers[id].CreatedAt
	} else {
		a.ID = s.nextAnswer
		s.nextAnswer++
		s.answerIdx[key] = a.ID
	}
	s.answers[a.ID] = *a
	return nil
}

func (s *Store) ListAnswersByUser(_ context.Context, userID int64) ([]domain.QuizAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QuizAnswer
	for _, a := range s.answers {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetResultByUser(_ context.Context, userID int64) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.UserID == userID {
			return r, nil
		}
	}
	return domain.Result{}, domain.ErrResultNotFound
}

func (s *Store) CreateResult(_ context.Context, r *domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextResult
	s.nextResult++
	s.results[r.ID] = *r
	return nil
}

func (s *Store) UpdateResult(_ context.Context, r domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.ID]; !ok {
		return domain.ErrResultNotFound
	}
	s.results[r.ID] = r
	return nil
}

func (s *Store) ListResults(_ context.Context) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveRanks(_ context.Context, ranks map[int64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rank := range ranks {
		r, ok := s.results[id]
		if !ok {
			continue
		}
		rank := rank
		r.Rank = &rank
		s.results[id] = r
	}
	return nil
}

func (s *Store) GetSettings(_ context.Context) (domain.QuizSetting, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return domain.QuizSetting{}, false, nil
	}
	return *s.settings, true, nil
}

func (s *Store) SaveSettings(_ context.Context, st domain.QuizSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = domain.SettingsID
	s.settings = &st
	return nil
}

func (s *Store) ResetCompetition(_ context.Context, st domain.QuizSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = domain.SettingsID
	s.settings = &st
	s.answers = make(map[int64]domain.QuizAnswer)
	s.answerIdx = make(map[answerKey]int64)
	s.results = make(map[int64]domain.Result)
	s.nextAnswer = 1
	s.nextResult = 1
	return nil
}
