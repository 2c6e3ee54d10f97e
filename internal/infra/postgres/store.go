package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"timed-quiz-service/internal/domain"
)

// Store implements app.Store on PostgreSQL through bun.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	row := newUserRow(*user)
	row.ID = 0
	if _, err := s.db.NewInsert().Model(&row).Returning("id, created_at").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = row.ID
	user.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("lower(username) = lower(?)", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	out := make([]domain.User, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("last_login = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return expectRow(res, domain.ErrUserNotFound)
}

func (s *Store) CreateQuestion(ctx context.Context, q *domain.Question) error {
	row := newQuestionRow(*q)
	row.ID = 0
	if _, err := s.db.NewInsert().Model(&row).Returning("id, created_at").Exec(ctx); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	q.ID = row.ID
	q.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	var row questionRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("select question: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateQuestion(ctx context.Context, q domain.Question) error {
	row := newQuestionRow(q)
	res, err := s.db.NewUpdate().Model(&row).WherePK().ExcludeColumn("created_at", "created_by").Exec(ctx)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return expectRow(res, domain.ErrQuestionNotFound)
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*questionRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return expectRow(res, domain.ErrQuestionNotFound)
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	var rows []questionRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	out := make([]domain.Question, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// UpsertAnswer keeps one row per (user, question). A resubmission overwrites the
// choice and timing but keeps the original id and created_at.
func (s *Store) UpsertAnswer(ctx context.Context, a *domain.QuizAnswer) error {
	row := answerRow{
		UserID:       a.UserID,
		QuestionID:   a.QuestionID,
		UserAnswer:   a.UserAnswer,
		ResponseTime: a.ResponseTimeSeconds,
		IsCorrect:    a.IsCorrect,
		CreatedAt:    a.CreatedAt,
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id, question_id) DO UPDATE").
		Set("user_answer = EXCLUDED.user_answer").
		Set("response_time = EXCLUDED.response_time").
		Set("is_correct = EXCLUDED.is_correct").
		Returning("id, created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	a.ID = row.ID
	a.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) ListAnswersByUser(ctx context.Context, userID int64) ([]domain.QuizAnswer, error) {
	var rows []answerRow
	if err := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	out := make([]domain.QuizAnswer, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) GetResultByUser(ctx context.Context, userID int64) (domain.Result, error) {
	var row resultRow
	err := s.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("select result: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) CreateResult(ctx context.Context, r *domain.Result) error {
	row := newResultRow(*r)
	row.ID = 0
	if _, err := s.db.NewInsert().Model(&row).Returning("id, created_at, updated_at").Exec(ctx); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	r.ID = row.ID
	r.CreatedAt = row.CreatedAt
	r.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) UpdateResult(ctx context.Context, r domain.Result) error {
	row := newResultRow(r)
	res, err := s.db.NewUpdate().Model(&row).WherePK().ExcludeColumn("created_at", "user_id").Exec(ctx)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	return expectRow(res, domain.ErrResultNotFound)
}

func (s *Store) ListResults(ctx context.Context) ([]domain.Result, error) {
	var rows []resultRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select results: %w", err)
	}
	out := make([]domain.Result, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// SaveRanks writes every rank in one transaction so readers never see a half-ranked table.
func (s *Store) SaveRanks(ctx context.Context, ranks map[int64]int) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for id, rank := range ranks {
			_, err := tx.NewUpdate().
				Model((*resultRow)(nil)).
				Set("rank = ?", rank).
				Where("id = ?", id).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update rank of result %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *Store) GetSettings(ctx context.Context) (domain.QuizSetting, bool, error) {
	var row settingsRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", domain.SettingsID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuizSetting{}, false, nil
	}
	if err != nil {
		return domain.QuizSetting{}, false, fmt.Errorf("select settings: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *Store) SaveSettings(ctx context.Context, st domain.QuizSetting) error {
	return saveSettings(ctx, s.db, st)
}

func saveSettings(ctx context.Context, db bun.IDB, st domain.QuizSetting) error {
	row := settingsRow{
		ID:        domain.SettingsID,
		State:     string(st.State),
		StartTime: st.StartTime,
		EndTime:   st.EndTime,
		LastReset: st.LastReset,
		UpdatedAt: st.UpdatedAt,
	}
	_, err := db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("last_reset = EXCLUDED.last_reset").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ResetCompetition empties answers and results, restarts both id sequences and
// saves st in the same transaction.
func (s *Store) ResetCompetition(ctx context.Context, st domain.QuizSetting) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE quiz_answers, results RESTART IDENTITY`); err != nil {
			return fmt.Errorf("reset competition: %w", err)
		}
		return saveSettings(ctx, tx, st)
	})
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
